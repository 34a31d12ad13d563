package document

import (
	"errors"
	"strings"
)

// ErrNoName is returned by Parse when the first non-blank line is not a "# " heading.
var ErrNoName = errors.New("draft has no name heading")

// Parse splits markdown into identity and body.
//
// Leading blank lines and a byte order mark are skipped. The first line left
// must be "# Name". The contact line is the next non-blank, non-heading line,
// with at most one blank line in between.
func Parse(md string) (Draft, error) {
	id, rest, ok := splitIdentity(splitLines(md))
	if !ok {
		return Draft{}, ErrNoName
	}
	return Draft{Identity: id, Body: ParseBody(strings.Join(rest, "\n"))}, nil
}

// StripIdentity removes a leading name heading and its contact line from md.
// Markdown without a name heading is returned unchanged.
func StripIdentity(md string) string {
	_, rest, ok := splitIdentity(splitLines(md))
	if !ok {
		return md
	}
	return strings.Join(rest, "\n")
}

func splitIdentity(lines []string) (Identity, []string, bool) {
	for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}
	if len(lines) == 0 || !strings.HasPrefix(lines[0], "# ") {
		return Identity{}, nil, false
	}

	id := Identity{Name: strings.TrimSpace(lines[0][2:])}
	start := 1
	switch {
	case len(lines) > 1 && isContact(lines[1]):
		id.Contact = strings.TrimSpace(lines[1])
		start = 2
	case len(lines) > 2 && strings.TrimSpace(lines[1]) == "" && isContact(lines[2]):
		id.Contact = strings.TrimSpace(lines[2])
		start = 3
	}
	return id, lines[start:], true
}

func splitLines(md string) []string {
	md = strings.TrimPrefix(md, "\ufeff")
	return strings.Split(strings.ReplaceAll(md, "\r\n", "\n"), "\n")
}

func isContact(line string) bool {
	t := strings.TrimSpace(line)
	return t != "" && !strings.HasPrefix(t, "#")
}

// listMarker returns the bullet marker t starts with, or "".
func listMarker(t string) string {
	for _, m := range []string{"- ", "* ", "+ "} {
		if strings.HasPrefix(t, m) {
			return m
		}
	}
	return ""
}

func indentOf(line string) int {
	return len(line) - len(strings.TrimLeft(line, " \t"))
}

// ParseBody parses a markdown body. It never fails; unknown lines become text.
//
// Lines are kept verbatim, trailing spaces included. Blank lines split an
// entry into blocks. Indented lines and lazy continuation lines after a
// bullet stay with that bullet.
func ParseBody(md string) Body {
	var b Body
	var sec *Section
	var ent *Entry
	var blk *Block
	blank := false

	openSection := func(title string) {
		b.Sections = append(b.Sections, Section{Title: title})
		sec = &b.Sections[len(b.Sections)-1]
		ent, blk = nil, nil
	}
	openEntry := func(heading string) {
		if sec == nil {
			openSection("")
		}
		sec.Entries = append(sec.Entries, Entry{Heading: heading})
		ent = &sec.Entries[len(sec.Entries)-1]
		blk = nil
	}
	openBlock := func(bl Block) {
		if ent == nil {
			openEntry("")
		}
		ent.Blocks = append(ent.Blocks, bl)
		blk = &ent.Blocks[len(ent.Blocks)-1]
	}

	for _, raw := range splitLines(md) {
		t := strings.TrimSpace(raw)
		if t == "" {
			if blk != nil {
				blank = true
			}
			continue
		}

		indent := indentOf(raw)
		marker := ""
		if indent < 2 {
			marker = listMarker(strings.TrimLeft(raw, " \t"))
		}

		switch {
		case indent < 4 && strings.HasPrefix(t, "### "):
			openEntry(strings.TrimSpace(t[4:]))
		case indent < 4 && strings.HasPrefix(t, "## "):
			openSection(strings.TrimSpace(t[3:]))
		case marker != "":
			item := Bullet{Marker: marker, Text: strings.TrimLeft(raw, " \t")[len(marker):]}
			if blk == nil || !blk.IsList() || blank || blk.Bullets[len(blk.Bullets)-1].marker() != marker {
				openBlock(Block{})
			}
			blk.Bullets = append(blk.Bullets, item)
		case blk != nil && blk.IsList() && (indent >= 2 || !blank):
			last := &blk.Bullets[len(blk.Bullets)-1]
			if blank {
				last.Children = append(last.Children, "")
			}
			last.Children = append(last.Children, raw)
		case blk != nil && !blk.IsList() && !blank:
			blk.Lines = append(blk.Lines, raw)
		default:
			openBlock(Block{Lines: []string{raw}})
		}
		blank = false
	}
	return b
}

func (it Bullet) marker() string {
	if it.Marker == "" {
		return "- "
	}
	return it.Marker
}

// Markdown renders the body back to markdown. Blocks keep their order and
// are separated by one blank line.
func (b Body) Markdown() string {
	var sb strings.Builder
	for i, sec := range b.Sections {
		if i > 0 {
			sb.WriteString("\n")
		}
		if sec.Title != "" {
			sb.WriteString("## " + sec.Title + "\n\n")
		}
		for j, e := range sec.Entries {
			if j > 0 {
				sb.WriteString("\n")
			}
			if e.Heading != "" {
				sb.WriteString("### " + e.Heading + "\n")
			}
			for k, bl := range e.Blocks {
				if k > 0 {
					sb.WriteString("\n")
				}
				for _, l := range bl.Lines {
					sb.WriteString(l + "\n")
				}
				for _, it := range bl.Bullets {
					sb.WriteString(it.marker() + it.Text + "\n")
					for _, c := range it.Children {
						sb.WriteString(c + "\n")
					}
				}
			}
		}
	}
	return sb.String()
}

// Markdown renders the full draft, identity first.
func (d Draft) Markdown() string {
	var sb strings.Builder
	sb.WriteString("# " + d.Identity.Name + "\n")
	if d.Identity.Contact != "" {
		sb.WriteString(d.Identity.Contact + "\n")
	}
	if body := d.Body.Markdown(); body != "" {
		sb.WriteString("\n" + body)
	}
	return sb.String()
}
