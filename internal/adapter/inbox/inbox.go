// Package inbox holds job links pushed in from outside a pass, such as
// webhook deliveries, until the next pass picks them up.
package inbox

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"

	"github.com/cwygoda/autoapply/internal/domain"
)

// ErrInvalidURL is returned by Push for anything but an absolute http(s) URL.
var ErrInvalidURL = errors.New("invalid job URL")

// Inbox is a thread-safe, de-duplicating queue of job stubs.
type Inbox struct {
	mu      sync.Mutex
	pending []domain.JobStub
	queued  map[string]bool
}

// New returns an empty inbox.
func New() *Inbox {
	return &Inbox{queued: make(map[string]bool)}
}

// Push queues a job. It reports false if the id was already waiting.
func (b *Inbox) Push(id, title string) (bool, error) {
	id = strings.TrimSpace(id)
	u, err := url.Parse(id)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return false, ErrInvalidURL
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.queued[id] {
		return false, nil
	}
	b.queued[id] = true
	b.pending = append(b.pending, domain.JobStub{ID: id, Title: strings.TrimSpace(title)})
	return true, nil
}

// Len returns the number of waiting stubs.
func (b *Inbox) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

func (b *Inbox) Name() string {
	return "inbox"
}

// Discover drains the queue.
func (b *Inbox) Discover(ctx context.Context) ([]domain.JobStub, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.pending
	b.pending = nil
	clear(b.queued)
	return out, nil
}
