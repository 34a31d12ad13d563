// Package submit delivers finished applications through external commands.
package submit

import (
	"context"
	"errors"
	"fmt"

	"github.com/cwygoda/autoapply/internal/domain"
)

// ErrNoSubmitter is returned when no registered submitter matches a job URL.
var ErrNoSubmitter = errors.New("no submitter for URL")

// Registry holds registered submitters.
type Registry struct {
	submitters []domain.Submitter
}

// NewRegistry creates a new submitter registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a submitter to the registry.
func (r *Registry) Register(s domain.Submitter) {
	r.submitters = append(r.submitters, s)
}

// Match returns the first submitter that matches the URL, or nil.
func (r *Registry) Match(url string) domain.Submitter {
	for _, s := range r.submitters {
		if s.Match(url) {
			return s
		}
	}
	return nil
}

// Submitters returns all registered submitters.
func (r *Registry) Submitters() []domain.Submitter {
	return r.submitters
}

// Submit implements domain.SubmissionDriver using the first matching submitter.
func (r *Registry) Submit(ctx context.Context, req domain.SubmitRequest) error {
	s := r.Match(req.JobID)
	if s == nil {
		return fmt.Errorf("%w: %s", ErrNoSubmitter, req.JobID)
	}
	if err := s.Submit(ctx, req); err != nil {
		return fmt.Errorf("%s: %w", s.Name(), err)
	}
	return nil
}
