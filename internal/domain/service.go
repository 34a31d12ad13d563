package domain

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

var (
	ErrJobNotFound   = errors.New("job not found")
	ErrEmptyJobID    = errors.New("empty job id")
	ErrInvalidStatus = errors.New("invalid job status")
	ErrPersist       = errors.New("persist job state")
)

// JobStore tracks every discovered job and decides which ones need work.
// Each status change is written through the repository before RecordStatus returns.
type JobStore struct {
	mu      sync.Mutex
	repo    StateRepository
	records map[string]*JobRecord
	dirty   bool
	now     func() time.Time
}

// NewJobStore loads the full state from repo.
func NewJobStore(ctx context.Context, repo StateRepository) (*JobStore, error) {
	recs, err := repo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load job state: %w", err)
	}
	s := &JobStore{
		repo:    repo,
		records: make(map[string]*JobRecord, len(recs)),
		now:     time.Now,
	}
	for i := range recs {
		r := recs[i].Clone()
		s.records[r.ID] = &r
	}
	return s, nil
}

// Classify splits candidates into never-seen jobs and jobs that should be retried.
// Terminal jobs are dropped. The result is de-duplicated by id.
//
// Relevant jobs are retried along with the error statuses on purpose: a job
// whose pipeline stopped after the relevance check resumes at tailoring
// without a second relevance call.
func (s *JobStore) Classify(candidates []JobStub) (fresh, retry []JobStub) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{}, len(candidates))
	type slot struct {
		retry bool
		idx   int
	}
	placed := make(map[string]slot, len(candidates))

	for _, c := range candidates {
		if c.ID == "" {
			continue
		}
		if _, dup := seen[c.ID]; dup {
			// a later duplicate may carry the title the first one lacked
			if p, ok := placed[c.ID]; ok && c.Title != "" {
				if p.retry && retry[p.idx].Title == "" {
					retry[p.idx].Title = c.Title
				} else if !p.retry && fresh[p.idx].Title == "" {
					fresh[p.idx].Title = c.Title
				}
			}
			continue
		}
		seen[c.ID] = struct{}{}

		rec, ok := s.records[c.ID]
		if !ok {
			placed[c.ID] = slot{idx: len(fresh)}
			fresh = append(fresh, c)
			continue
		}
		if !rec.Status().IsRetryable() {
			continue
		}
		stub := JobStub{ID: c.ID, Title: rec.Title}
		if stub.Title == "" {
			stub.Title = c.Title
		}
		placed[c.ID] = slot{retry: true, idx: len(retry)}
		retry = append(retry, stub)
	}
	return fresh, retry
}

// RecordStatus appends a status transition for id and persists the store.
// On a persistence error the in-memory change is kept; call Flush to retry.
func (s *JobStore) RecordStatus(ctx context.Context, id, title string, status JobStatus, explanation string) error {
	if id == "" {
		return ErrEmptyJobID
	}
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	if canon, ok := ParseStatus(string(status)); ok {
		status = canon
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		rec = &JobRecord{ID: id, Title: title}
		s.records[id] = rec
	} else if rec.Title == "" {
		rec.Title = title
	}
	rec.History = append(rec.History, HistoryEntry{
		Timestamp:   s.now(),
		Status:      status,
		Explanation: explanation,
	})
	s.dirty = true

	return s.persistLocked(ctx)
}

// Flush writes the store if a previous write failed.
func (s *JobStore) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return nil
	}
	return s.persistLocked(ctx)
}

func (s *JobStore) persistLocked(ctx context.Context) error {
	if err := s.repo.Save(ctx, s.snapshotLocked()); err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	s.dirty = false
	return nil
}

func (s *JobStore) snapshotLocked() []JobRecord {
	out := make([]JobRecord, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Dirty reports whether the store holds changes that were not persisted.
func (s *JobStore) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// Get returns a copy of the record for id.
func (s *JobStore) Get(id string) (JobRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return JobRecord{}, false
	}
	return r.Clone(), true
}

// Lookup is Get with errors: ErrEmptyJobID for an empty id, ErrJobNotFound
// for an unknown one.
func (s *JobStore) Lookup(id string) (JobRecord, error) {
	if id == "" {
		return JobRecord{}, ErrEmptyJobID
	}
	rec, ok := s.Get(id)
	if !ok {
		return JobRecord{}, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return rec, nil
}

// List returns copies of all records sorted by id.
func (s *JobStore) List() []JobRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Counts returns the number of records per current status.
func (s *JobStore) Counts() map[JobStatus]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[JobStatus]int)
	for _, r := range s.records {
		counts[r.Status()]++
	}
	return counts
}
