package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cwygoda/autoapply/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
    id    TEXT PRIMARY KEY,
    title TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS job_history (
    job_id      TEXT NOT NULL REFERENCES jobs(id),
    seq         INTEGER NOT NULL,
    ts          TEXT NOT NULL,
    status      TEXT NOT NULL,
    explanation TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (job_id, seq)
);
`

// Repository implements domain.StateRepository using SQLite.
type Repository struct {
	db *sql.DB
}

// New creates a new SQLite repository, initializing the schema if needed.
func New(dbPath string) (*Repository, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// one writer; avoids SQLITE_BUSY between pooled connections
	db.SetMaxOpenConns(1)

	// Initialize schema
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	return &Repository{db: db}, nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Load reads every job with its full history.
func (r *Repository) Load(ctx context.Context) ([]domain.JobRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, title FROM jobs ORDER BY id`)
	if err != nil {
		return nil, err
	}
	var recs []domain.JobRecord
	index := make(map[string]int)
	for rows.Next() {
		var rec domain.JobRecord
		if err := rows.Scan(&rec.ID, &rec.Title); err != nil {
			rows.Close()
			return nil, err
		}
		index[rec.ID] = len(recs)
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	hrows, err := r.db.QueryContext(ctx,
		`SELECT job_id, ts, status, explanation FROM job_history ORDER BY job_id, seq`)
	if err != nil {
		return nil, err
	}
	defer hrows.Close()

	for hrows.Next() {
		var id, ts, status, explanation string
		if err := hrows.Scan(&id, &ts, &status, &explanation); err != nil {
			return nil, err
		}
		i, ok := index[id]
		if !ok {
			continue
		}
		entry, err := decodeEntry(ts, status, explanation)
		if err != nil {
			return nil, fmt.Errorf("job %s: %w", id, err)
		}
		recs[i].History = append(recs[i].History, entry)
	}
	return recs, hrows.Err()
}

// Save writes the snapshot in one transaction. History rows are keyed by
// (job_id, seq), so entries already on disk are left alone.
func (r *Repository) Save(ctx context.Context, records []domain.JobRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	upsertJob, err := tx.PrepareContext(ctx,
		`INSERT INTO jobs (id, title) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET title = excluded.title`)
	if err != nil {
		return err
	}
	defer upsertJob.Close()

	insertEntry, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO job_history (job_id, seq, ts, status, explanation)
		 VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer insertEntry.Close()

	for _, rec := range records {
		if _, err := upsertJob.ExecContext(ctx, rec.ID, rec.Title); err != nil {
			return fmt.Errorf("upsert job %s: %w", rec.ID, err)
		}
		for seq, h := range rec.History {
			_, err := insertEntry.ExecContext(ctx,
				rec.ID, seq, h.Timestamp.UTC().Format(time.RFC3339Nano), string(h.Status), h.Explanation)
			if err != nil {
				return fmt.Errorf("insert history %s/%d: %w", rec.ID, seq, err)
			}
		}
	}
	return tx.Commit()
}

func decodeEntry(ts, status, explanation string) (domain.HistoryEntry, error) {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return domain.HistoryEntry{}, fmt.Errorf("parse timestamp %q: %w", ts, err)
	}
	s, ok := domain.ParseStatus(status)
	if !ok {
		s = domain.JobStatus(status)
	}
	return domain.HistoryEntry{Timestamp: t, Status: s, Explanation: explanation}, nil
}
