package render

import (
	"bytes"
	"context"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// MarkdownConverter turns a markdown body into an HTML fragment.
type MarkdownConverter struct {
	md goldmark.Markdown
}

// NewMarkdownConverter returns a converter with GitHub-flavoured extensions.
func NewMarkdownConverter() *MarkdownConverter {
	return &MarkdownConverter{md: goldmark.New(goldmark.WithExtensions(extension.GFM))}
}

// ToRenderForm implements domain.StructuralConverter.
func (c *MarkdownConverter) ToRenderForm(ctx context.Context, body string) (string, error) {
	var buf bytes.Buffer
	if err := c.md.Convert([]byte(body), &buf); err != nil {
		return "", fmt.Errorf("convert markdown: %w", err)
	}
	return buf.String(), nil
}
