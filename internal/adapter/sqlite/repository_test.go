package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cwygoda/autoapply/internal/domain"
)

func setupTestRepo(t *testing.T) (*Repository, string, func()) {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	repo, err := New(dbPath)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	cleanup := func() {
		repo.Close()
		os.Remove(dbPath)
	}
	return repo, dbPath, cleanup
}

func sampleRecords() []domain.JobRecord {
	t0 := time.Date(2025, 4, 2, 9, 30, 0, 123456789, time.UTC)
	return []domain.JobRecord{
		{
			ID:    "https://jobs.example.com/a_WD100",
			Title: "Data Scientist",
			History: []domain.HistoryEntry{
				{Timestamp: t0, Status: domain.StatusRelevant, Explanation: "python, ml"},
				{Timestamp: t0.Add(time.Minute), Status: domain.StatusApplied},
			},
		},
		{
			ID: "https://jobs.example.com/b",
			History: []domain.HistoryEntry{
				{Timestamp: t0, Status: domain.StatusErrorScraping, Explanation: "timeout"},
			},
		},
	}
}

func TestRepository_LoadEmpty(t *testing.T) {
	repo, _, cleanup := setupTestRepo(t)
	defer cleanup()

	recs, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("Load() = %d records, want 0", len(recs))
	}
}

func TestRepository_SaveLoadRoundTrip(t *testing.T) {
	repo, _, cleanup := setupTestRepo(t)
	defer cleanup()
	ctx := context.Background()

	want := sampleRecords()
	if err := repo.Save(ctx, want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("Load() = %d records, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].ID != want[i].ID || got[i].Title != want[i].Title {
			t.Errorf("record %d = %q/%q, want %q/%q", i, got[i].ID, got[i].Title, want[i].ID, want[i].Title)
		}
		if len(got[i].History) != len(want[i].History) {
			t.Fatalf("record %d history = %d entries, want %d", i, len(got[i].History), len(want[i].History))
		}
		for j, h := range want[i].History {
			g := got[i].History[j]
			if !g.Timestamp.Equal(h.Timestamp) || g.Status != h.Status || g.Explanation != h.Explanation {
				t.Errorf("history[%d][%d] = %+v, want %+v", i, j, g, h)
			}
		}
	}
	if got[0].Status() != domain.StatusApplied {
		t.Errorf("Status() = %q, want %q", got[0].Status(), domain.StatusApplied)
	}
}

func TestRepository_SaveAppendsHistory(t *testing.T) {
	repo, _, cleanup := setupTestRepo(t)
	defer cleanup()
	ctx := context.Background()

	recs := sampleRecords()
	if err := repo.Save(ctx, recs); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	recs[1].Title = "Filled Later"
	recs[1].History = append(recs[1].History, domain.HistoryEntry{
		Timestamp: time.Now().UTC(),
		Status:    domain.StatusNotRelevant,
	})
	if err := repo.Save(ctx, recs); err != nil {
		t.Fatalf("second Save() error = %v", err)
	}

	got, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got[1].Title != "Filled Later" {
		t.Errorf("Title = %q, want %q", got[1].Title, "Filled Later")
	}
	if len(got[1].History) != 2 || got[1].Status() != domain.StatusNotRelevant {
		t.Errorf("history = %+v", got[1].History)
	}
}

func TestRepository_PersistsAcrossReopen(t *testing.T) {
	repo, dbPath, cleanup := setupTestRepo(t)
	defer cleanup()
	ctx := context.Background()

	if err := repo.Save(ctx, sampleRecords()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	repo.Close()

	reopened, err := New(dbPath)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(got) != 2 {
		t.Errorf("Load() = %d records, want 2", len(got))
	}
}

func TestRepository_WithJobStore(t *testing.T) {
	repo, _, cleanup := setupTestRepo(t)
	defer cleanup()
	ctx := context.Background()

	store, err := domain.NewJobStore(ctx, repo)
	if err != nil {
		t.Fatalf("NewJobStore() error = %v", err)
	}
	if err := store.RecordStatus(ctx, "https://x/1", "Analyst", domain.StatusErrorEditingResume, "empty"); err != nil {
		t.Fatalf("RecordStatus() error = %v", err)
	}
	if err := store.RecordStatus(ctx, "https://x/1", "", domain.StatusApplied, ""); err != nil {
		t.Fatalf("RecordStatus() error = %v", err)
	}

	again, err := domain.NewJobStore(ctx, repo)
	if err != nil {
		t.Fatalf("NewJobStore() error = %v", err)
	}
	rec, ok := again.Get("https://x/1")
	if !ok {
		t.Fatal("record missing after reload")
	}
	if rec.Title != "Analyst" || len(rec.History) != 2 || rec.Status() != domain.StatusApplied {
		t.Errorf("reloaded = %+v", rec)
	}
}
