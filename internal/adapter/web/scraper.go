package web

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/net/html"
)

// ErrNoDescription is returned when the page has no description element or it is empty.
var ErrNoDescription = errors.New("no job description found")

// DescriptionScraper returns the text of the first element carrying a class.
type DescriptionScraper struct {
	class   string
	fetcher *Fetcher
}

// NewDescriptionScraper creates a scraper for elements with the given class.
func NewDescriptionScraper(class string, fetcher *Fetcher) *DescriptionScraper {
	return &DescriptionScraper{class: class, fetcher: fetcher}
}

// Scrape implements domain.DescriptionScraper.
func (s *DescriptionScraper) Scrape(ctx context.Context, url string) (string, error) {
	doc, err := s.fetcher.Document(ctx, url)
	if err != nil {
		return "", err
	}
	text := ExtractDescription(doc, s.class)
	if text == "" {
		return "", fmt.Errorf("%w: class %q on %s", ErrNoDescription, s.class, url)
	}
	return text, nil
}

// ExtractDescription returns the text of the first element with class, or "".
func ExtractDescription(doc *html.Node, class string) string {
	var found *html.Node
	walk(doc, func(n *html.Node) bool {
		if n.Type == html.ElementNode && hasClass(n, class) {
			found = n
			return false
		}
		return true
	})
	if found == nil {
		return ""
	}
	return Text(found)
}
