package document

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

const sampleResume = `# Ada Lovelace
[ada@example.com](mailto:ada@example.com) | London

## Summary

Mathematician and first programmer.

## Experience

### Analyst, Engines Ltd (1842-1843)
- Wrote the first algorithm
- Translated Menabrea's notes

### Assistant, Babbage & Co
Part time.

- Tested the difference engine

## Skills

- **Math:** analysis, probability
- **Languages:** English, French
`

func TestParse_Identity(t *testing.T) {
	tests := []struct {
		name        string
		md          string
		wantName    string
		wantContact string
	}{
		{"contact on line two", "# Ada\nada@example.com\n## S\n- x", "Ada", "ada@example.com"},
		{"contact after blank", "# Ada\n\nada@example.com\n\n## S\n- x", "Ada", "ada@example.com"},
		{"heading after name", "# Ada\n## S\n- x", "Ada", ""},
		{"blank then heading", "# Ada\n\n## S\n- x", "Ada", ""},
		{"two blanks", "# Ada\n\n\nada@example.com\n## S", "Ada", ""},
		{"byte order mark", "\ufeff# Ada\nada@example.com\n## S", "Ada", "ada@example.com"},
		{"leading blank lines", "\n\n  \n# Ada\nada@example.com\n## S", "Ada", "ada@example.com"},
		{"crlf", "# Ada\r\nada@example.com\r\n\r\n## S\r\n- x", "Ada", "ada@example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Parse(tt.md)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if d.Identity.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", d.Identity.Name, tt.wantName)
			}
			if d.Identity.Contact != tt.wantContact {
				t.Errorf("Contact = %q, want %q", d.Identity.Contact, tt.wantContact)
			}
		})
	}
}

func TestParse_NoName(t *testing.T) {
	for _, md := range []string{"## Experience\n- x", "", "\n\n", "Ada Lovelace\n# Ada"} {
		if _, err := Parse(md); !errors.Is(err, ErrNoName) {
			t.Errorf("Parse(%q) error = %v, want %v", md, err, ErrNoName)
		}
	}
}

func TestStripIdentity(t *testing.T) {
	tests := []struct {
		name string
		md   string
		want string
	}{
		{"name and contact", "# Ada\nada@example.com\n\n## S\n- x\n", "\n## S\n- x\n"},
		{"name only", "# Ada\n## S\n- x", "## S\n- x"},
		{"blank lines first", "\n# Ada\n\nada@example.com\n## S", "## S"},
		{"no name", "## S\n- x", "## S\n- x"},
		{"section heading kept", "## Ada\nada@example.com", "## Ada\nada@example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripIdentity(tt.md); got != tt.want {
				t.Errorf("StripIdentity() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParse_Body(t *testing.T) {
	d, err := Parse(sampleResume)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	want := Stats{Sections: 3, Entries: 4, Bullets: 5}
	got := d.Body.Stats()
	got.Chars = 0
	if got != want {
		t.Errorf("Stats() = %+v, want %+v", got, want)
	}

	exp, ok := d.Body.Section("experience")
	if !ok {
		t.Fatal("Section(experience) not found")
	}
	if exp.Entries[1].Heading != "Assistant, Babbage & Co" {
		t.Errorf("Heading = %q", exp.Entries[1].Heading)
	}
	if !reflect.DeepEqual(exp.Entries[1].Text(), []string{"Part time."}) {
		t.Errorf("Text() = %v", exp.Entries[1].Text())
	}
	if n := len(exp.Entries[1].Blocks); n != 2 {
		t.Errorf("len(Blocks) = %d, want 2", n)
	}
	if got := d.Body.Stats().Size(); got != 9 {
		t.Errorf("Size() = %d, want 9", got)
	}
}

func TestBody_MarkdownRoundTrip(t *testing.T) {
	d, err := Parse(sampleResume)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	again, err := Parse(d.Markdown())
	if err != nil {
		t.Fatalf("Parse(Markdown()) error = %v", err)
	}
	if !reflect.DeepEqual(d, again) {
		t.Errorf("round trip changed draft:\n got %+v\nwant %+v", again, d)
	}
	if !reflect.DeepEqual(ParseBody(d.Body.Markdown()), d.Body) {
		t.Error("ParseBody(Markdown()) changed body")
	}
}

func TestBody_IsEmpty(t *testing.T) {
	if !ParseBody("\n\n  \n").IsEmpty() {
		t.Error("IsEmpty() = false for blank body")
	}
	if ParseBody("- x").IsEmpty() {
		t.Error("IsEmpty() = true for one bullet")
	}
}

func TestBody_CloneIsDeep(t *testing.T) {
	b := ParseBody("## S\n- one\n- two")
	c := b.Clone()
	c.Sections[0].Entries[0].Blocks[0].Bullets[0].Text = "changed"

	if got := b.Sections[0].Entries[0].Bullets()[0].Text; got != "one" {
		t.Errorf("Clone() shares bullet storage, original = %q", got)
	}
}

// layoutBody exercises paragraphs split by blank lines, hard breaks, nested
// lists and text that follows a list.
const layoutBody = `## Education
M.S. Computer Science, MIT, 2020

B.S. Mathematics, Oxford, 2018

## Skills
**Languages:** Go, Python  
**Tools:** Docker, Git

## Experience
### Engineer, Acme
- did x
  - nested detail
  - second detail
- did y
continued on the next line

* starred list

*Tech: Go, Postgres*
`

func renderHTML(t *testing.T, md string) string {
	t.Helper()
	var buf bytes.Buffer
	if err := goldmark.New(goldmark.WithExtensions(extension.GFM)).Convert([]byte(md), &buf); err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	return buf.String()
}

func TestBody_MarkdownPreservesLayout(t *testing.T) {
	b := ParseBody(layoutBody)

	want := renderHTML(t, layoutBody)
	if got := renderHTML(t, b.Markdown()); got != want {
		t.Errorf("re-emitted body renders differently:\n got %s\nwant %s", got, want)
	}

	for _, frag := range []string{
		"<p>M.S. Computer Science, MIT, 2020</p>\n<p>B.S. Mathematics, Oxford, 2018</p>",
		"Python<br>",
		"<ul>\n<li>nested detail</li>\n<li>second detail</li>\n</ul>",
		"<p><em>Tech: Go, Postgres</em></p>",
	} {
		if !bytes.Contains([]byte(want), []byte(frag)) {
			t.Errorf("rendered body missing %q:\n%s", frag, want)
		}
	}
}

func TestBody_LayoutShape(t *testing.T) {
	b := ParseBody(layoutBody)

	exp, ok := b.Section("Experience")
	if !ok {
		t.Fatal("Section(Experience) not found")
	}
	e := exp.Entries[0]
	if len(e.Blocks) != 3 {
		t.Fatalf("len(Blocks) = %d, want 3", len(e.Blocks))
	}
	items := e.Blocks[0].Bullets
	if len(items) != 2 {
		t.Fatalf("top-level bullets = %d, want 2", len(items))
	}
	if want := []string{"  - nested detail", "  - second detail"}; !reflect.DeepEqual(items[0].Children, want) {
		t.Errorf("Children = %q, want %q", items[0].Children, want)
	}
	if want := []string{"continued on the next line"}; !reflect.DeepEqual(items[1].Children, want) {
		t.Errorf("Children = %q, want %q", items[1].Children, want)
	}
	if e.Blocks[1].Bullets[0].Marker != "* " {
		t.Errorf("Marker = %q, want %q", e.Blocks[1].Bullets[0].Marker, "* ")
	}
	if want := []string{"*Tech: Go, Postgres*"}; !reflect.DeepEqual(e.Blocks[2].Lines, want) {
		t.Errorf("trailing block = %q, want %q", e.Blocks[2].Lines, want)
	}

	skills, _ := b.Section("skills")
	if got := skills.Entries[0].Text()[0]; got != "**Languages:** Go, Python  " {
		t.Errorf("hard break lost: %q", got)
	}

	// Education 1 + Skills 1 + Experience 1 entries, 3 top-level bullets.
	if got := b.Stats().Size(); got != 6 {
		t.Errorf("Size() = %d, want 6", got)
	}
}

func TestBody_LooseItemKeepsParagraphs(t *testing.T) {
	md := "- a\n\n  more about a\n- b\n"
	b := ParseBody(md)

	items := b.Sections[0].Entries[0].Bullets()
	if len(items) != 2 {
		t.Fatalf("bullets = %d, want 2", len(items))
	}
	if want := []string{"", "  more about a"}; !reflect.DeepEqual(items[0].Children, want) {
		t.Errorf("Children = %q, want %q", items[0].Children, want)
	}
	if got := b.Markdown(); got != md {
		t.Errorf("Markdown() = %q, want %q", got, md)
	}
}
