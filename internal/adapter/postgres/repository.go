// Package postgres implements domain.StateRepository on PostgreSQL through a pgx pool.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cwygoda/autoapply/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
    id    TEXT PRIMARY KEY,
    title TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS job_history (
    job_id      TEXT NOT NULL REFERENCES jobs(id),
    seq         INTEGER NOT NULL,
    ts          TIMESTAMPTZ NOT NULL,
    status      TEXT NOT NULL,
    explanation TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (job_id, seq)
);
`

// Config tunes the connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MaxConnIdleTime time.Duration
	DialTimeout     time.Duration
}

// Repository stores job state in two tables.
type Repository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// Open connects, pings and creates the schema.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Repository, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnIdleTime > 0 {
		pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	pc.ConnConfig.RuntimeParams["application_name"] = "autoapply"

	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	logger.Info("store.postgres.connected", "host", pc.ConnConfig.Host, "database", pc.ConnConfig.Database)
	return &Repository{pool: pool, logger: logger}, nil
}

// Close releases the pool.
func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

// Load reads every job with its history ordered by sequence.
func (r *Repository) Load(ctx context.Context) ([]domain.JobRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT j.id, j.title, h.ts, h.status, h.explanation
		FROM jobs j
		LEFT JOIN job_history h ON h.job_id = j.id
		ORDER BY j.id, h.seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []domain.JobRecord
	for rows.Next() {
		var (
			id, title   string
			ts          *time.Time
			status      *string
			explanation *string
		)
		if err := rows.Scan(&id, &title, &ts, &status, &explanation); err != nil {
			return nil, err
		}
		if len(recs) == 0 || recs[len(recs)-1].ID != id {
			recs = append(recs, domain.JobRecord{ID: id, Title: title})
		}
		if ts == nil || status == nil {
			continue
		}
		st, ok := domain.ParseStatus(*status)
		if !ok {
			st = domain.JobStatus(*status)
		}
		entry := domain.HistoryEntry{Timestamp: *ts, Status: st}
		if explanation != nil {
			entry.Explanation = *explanation
		}
		last := &recs[len(recs)-1]
		last.History = append(last.History, entry)
	}
	return recs, rows.Err()
}

// Save writes the snapshot in one transaction, batching all statements.
func (r *Repository) Save(ctx context.Context, records []domain.JobRecord) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(`INSERT INTO jobs (id, title) VALUES ($1, $2)
			ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title`, rec.ID, rec.Title)
		for seq, h := range rec.History {
			batch.Queue(`INSERT INTO job_history (job_id, seq, ts, status, explanation)
				VALUES ($1, $2, $3, $4, $5) ON CONFLICT (job_id, seq) DO NOTHING`,
				rec.ID, seq, h.Timestamp, string(h.Status), h.Explanation)
		}
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("write batch: %w", err)
	}
	return tx.Commit(ctx)
}
