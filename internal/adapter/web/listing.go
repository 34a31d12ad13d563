package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/cwygoda/autoapply/internal/domain"
)

// ListingDiscoverer extracts job links from listing pages. A link is an
// anchor whose class list contains LinkClass.
type ListingDiscoverer struct {
	name      string
	urls      []string
	linkClass string
	fetcher   *Fetcher
	logger    *slog.Logger
}

// NewListingDiscoverer creates a discoverer for one configured source.
func NewListingDiscoverer(name string, urls []string, linkClass string, fetcher *Fetcher, logger *slog.Logger) *ListingDiscoverer {
	if logger == nil {
		logger = slog.Default()
	}
	return &ListingDiscoverer{
		name:      name,
		urls:      urls,
		linkClass: linkClass,
		fetcher:   fetcher,
		logger:    logger.With("source", name),
	}
}

func (d *ListingDiscoverer) Name() string {
	return d.name
}

// Discover fetches every listing page. Pages that fail are logged and
// skipped; an error is returned only if all of them fail.
func (d *ListingDiscoverer) Discover(ctx context.Context) ([]domain.JobStub, error) {
	var stubs []domain.JobStub
	var errs []error
	seen := make(map[string]bool)

	for _, page := range d.urls {
		if err := ctx.Err(); err != nil {
			return stubs, err
		}
		doc, err := d.fetcher.Document(ctx, page)
		if err != nil {
			d.logger.Warn("discover.page_failed", "url", page, "error", err)
			errs = append(errs, err)
			continue
		}
		found := ExtractLinks(doc, page, d.linkClass)
		d.logger.Info("discover.page_ok", "url", page, "links", len(found))
		for _, s := range found {
			if seen[s.ID] {
				continue
			}
			seen[s.ID] = true
			stubs = append(stubs, s)
		}
	}
	if len(errs) > 0 && len(errs) == len(d.urls) {
		return nil, fmt.Errorf("all listing pages failed: %w", errors.Join(errs...))
	}
	return stubs, nil
}

// ExtractLinks returns a stub per matching anchor, with hrefs resolved
// against pageURL and fragments removed.
func ExtractLinks(doc *html.Node, pageURL, linkClass string) []domain.JobStub {
	base, _ := url.Parse(pageURL)
	var stubs []domain.JobStub
	walk(doc, func(n *html.Node) bool {
		if n.Type != html.ElementNode || n.Data != "a" || !hasClass(n, linkClass) {
			return true
		}
		href := strings.TrimSpace(attr(n, "href"))
		if href == "" || strings.HasPrefix(href, "javascript:") {
			return true
		}
		u, err := url.Parse(href)
		if err != nil {
			return true
		}
		if base != nil {
			u = base.ResolveReference(u)
		}
		u.Fragment = ""
		title := strings.ReplaceAll(Text(n), "\n", " ")
		if title == "" {
			title = attr(n, "title")
		}
		stubs = append(stubs, domain.JobStub{ID: u.String(), Title: title})
		return true
	})
	return stubs
}
