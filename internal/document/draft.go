// Package document models a résumé draft as an immutable identity block
// plus a structured body that can be shrunk entry by entry.
package document

import "strings"

// Identity is the name and contact block. It is never rewritten.
type Identity struct {
	Name    string
	Contact string
}

// Draft is a parsed résumé.
type Draft struct {
	Identity Identity
	Body     Body
}

// Body is the rewritable part of a draft.
type Body struct {
	Sections []Section
}

// Section is a "## " block.
type Section struct {
	Title   string
	Entries []Entry
}

// Entry is a "### " block, or the heading-less run of lines directly under a
// section title. Its content is kept as blocks in source order.
type Entry struct {
	Heading string
	Blocks  []Block
}

// Block is a paragraph or a list. Blocks are separated by blank lines.
// Exactly one of Lines and Bullets is set.
type Block struct {
	Lines   []string
	Bullets []Bullet
}

// IsList reports whether the block is a list.
func (b Block) IsList() bool {
	return len(b.Bullets) > 0
}

// Bullet is a top-level list item. Text is the first line after the marker.
// Children holds the lines that belong to the item verbatim, nested items and
// continuation lines included.
type Bullet struct {
	Marker   string
	Text     string
	Children []string
}

// Bullets returns the top-level list items of the entry in order.
func (e Entry) Bullets() []Bullet {
	var out []Bullet
	for _, bl := range e.Blocks {
		out = append(out, bl.Bullets...)
	}
	return out
}

// Text returns the paragraph lines of the entry in order.
func (e Entry) Text() []string {
	var out []string
	for _, bl := range e.Blocks {
		out = append(out, bl.Lines...)
	}
	return out
}

// Stats summarises the shape of a body.
type Stats struct {
	Sections int
	Entries  int
	Bullets  int
	Chars    int
}

// Size is the measure a shrink step must not increase. Nested items count
// with their parent.
func (s Stats) Size() int {
	return s.Entries + s.Bullets
}

// Stats counts sections, entries and bullets.
func (b Body) Stats() Stats {
	st := Stats{Sections: len(b.Sections)}
	for _, sec := range b.Sections {
		st.Entries += len(sec.Entries)
		for _, e := range sec.Entries {
			st.Bullets += len(e.Bullets())
		}
	}
	st.Chars = len(b.Markdown())
	return st
}

// IsEmpty reports whether the body carries no text at all.
func (b Body) IsEmpty() bool {
	return strings.TrimSpace(b.Markdown()) == ""
}

// Clone returns a deep copy.
func (b Body) Clone() Body {
	out := Body{Sections: make([]Section, len(b.Sections))}
	for i, sec := range b.Sections {
		ns := Section{Title: sec.Title, Entries: make([]Entry, len(sec.Entries))}
		for j, e := range sec.Entries {
			ns.Entries[j] = e.clone()
		}
		out.Sections[i] = ns
	}
	return out
}

func (e Entry) clone() Entry {
	out := Entry{Heading: e.Heading}
	if e.Blocks == nil {
		return out
	}
	out.Blocks = make([]Block, len(e.Blocks))
	for i, bl := range e.Blocks {
		nb := Block{Lines: append([]string(nil), bl.Lines...)}
		if bl.Bullets != nil {
			nb.Bullets = make([]Bullet, len(bl.Bullets))
			for k, it := range bl.Bullets {
				nb.Bullets[k] = Bullet{
					Marker:   it.Marker,
					Text:     it.Text,
					Children: append([]string(nil), it.Children...),
				}
			}
		}
		out.Blocks[i] = nb
	}
	return out
}

// Section returns the first section whose title matches name, ignoring case.
func (b Body) Section(name string) (Section, bool) {
	for _, sec := range b.Sections {
		if strings.EqualFold(strings.TrimSpace(sec.Title), name) {
			return sec, true
		}
	}
	return Section{}, false
}
