// Package jsonfile stores job state in a single JSON document keyed by job id.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/cwygoda/autoapply/internal/domain"
)

type entryDoc struct {
	Timestamp   string `json:"timestamp"`
	Status      string `json:"status"`
	Explanation string `json:"explanation,omitempty"`
}

type recordDoc struct {
	Title       string     `json:"title"`
	Status      string     `json:"status,omitempty"`
	Explanation string     `json:"explanation,omitempty"`
	LastUpdated string     `json:"last_updated,omitempty"`
	History     []entryDoc `json:"history"`
}

// timestamps written by older tools carry no zone
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// replaced in tests
var rename = os.Rename

// Repository implements domain.StateRepository on a JSON file.
type Repository struct {
	path string
}

// New returns a repository for path. The file is created on first Save.
func New(path string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	return &Repository{path: path}, nil
}

// Path returns the backing file.
func (r *Repository) Path() string {
	return r.path
}

// Close is a no-op.
func (r *Repository) Close() error {
	return nil
}

// Load reads the file. A missing or empty file is an empty store.
func (r *Repository) Load(ctx context.Context) ([]domain.JobRecord, error) {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}

	var docs map[string]recordDoc
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", r.path, err)
	}

	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	recs := make([]domain.JobRecord, 0, len(docs))
	for _, id := range ids {
		recs = append(recs, fromDoc(id, docs[id]))
	}
	return recs, nil
}

// Save writes the whole snapshot to a temp file in the same directory and
// renames it over the target.
func (r *Repository) Save(ctx context.Context, records []domain.JobRecord) error {
	docs := make(map[string]recordDoc, len(records))
	for _, rec := range records {
		docs[rec.ID] = toDoc(rec)
	}
	data, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return err
	}
	return writeAtomic(r.path, data)
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return err
	}
	return rename(tmpName, path)
}

func toDoc(rec domain.JobRecord) recordDoc {
	doc := recordDoc{
		Title:       rec.Title,
		Status:      string(rec.Status()),
		Explanation: rec.Explanation(),
		History:     make([]entryDoc, len(rec.History)),
	}
	if ts := rec.LastUpdated(); !ts.IsZero() {
		doc.LastUpdated = ts.Format(time.RFC3339Nano)
	}
	for i, h := range rec.History {
		doc.History[i] = entryDoc{
			Timestamp:   h.Timestamp.Format(time.RFC3339Nano),
			Status:      string(h.Status),
			Explanation: h.Explanation,
		}
	}
	return doc
}

func fromDoc(id string, doc recordDoc) domain.JobRecord {
	rec := domain.JobRecord{ID: id, Title: doc.Title}
	for _, e := range doc.History {
		rec.History = append(rec.History, domain.HistoryEntry{
			Timestamp:   parseTime(e.Timestamp),
			Status:      parseStatus(e.Status),
			Explanation: e.Explanation,
		})
	}
	// hand-edited records may only carry the current status
	if len(rec.History) == 0 && doc.Status != "" {
		rec.History = []domain.HistoryEntry{{
			Timestamp:   parseTime(doc.LastUpdated),
			Status:      parseStatus(doc.Status),
			Explanation: doc.Explanation,
		}}
	}
	return rec
}

func parseStatus(s string) domain.JobStatus {
	if st, ok := domain.ParseStatus(s); ok {
		return st
	}
	return domain.JobStatus(s)
}

// parseTime returns the zero time for values it cannot read.
func parseTime(s string) time.Time {
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t
		}
	}
	return time.Time{}
}
