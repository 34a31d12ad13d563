package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cwygoda/autoapply/internal/domain"
)

func setupTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := New(filepath.Join(t.TempDir(), "state", "processed_jobs.json"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return repo
}

func TestRepository_LoadMissingFile(t *testing.T) {
	repo := setupTestRepo(t)

	recs, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("Load() = %d records, want 0", len(recs))
	}
}

func TestRepository_SaveLoadRoundTrip(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	t0 := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)

	want := []domain.JobRecord{
		{
			ID:    "https://jobs.example.com/1",
			Title: "Analyst",
			History: []domain.HistoryEntry{
				{Timestamp: t0, Status: domain.StatusErrorScraping, Explanation: "timeout"},
				{Timestamp: t0.Add(time.Hour), Status: domain.StatusNotRelevant, Explanation: "requires java"},
			},
		},
	}
	if err := repo.Save(ctx, want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != want[0].ID || got[0].Title != "Analyst" {
		t.Fatalf("Load() = %+v", got)
	}
	if len(got[0].History) != 2 {
		t.Fatalf("history = %d entries, want 2", len(got[0].History))
	}
	if !got[0].History[1].Timestamp.Equal(t0.Add(time.Hour)) {
		t.Errorf("Timestamp = %v", got[0].History[1].Timestamp)
	}
	if got[0].Status() != domain.StatusNotRelevant || got[0].Explanation() != "requires java" {
		t.Errorf("current = %q/%q", got[0].Status(), got[0].Explanation())
	}
}

func TestRepository_FileLayout(t *testing.T) {
	repo := setupTestRepo(t)
	t0 := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)

	err := repo.Save(context.Background(), []domain.JobRecord{{
		ID:      "https://jobs.example.com/1",
		Title:   "Analyst",
		History: []domain.HistoryEntry{{Timestamp: t0, Status: domain.StatusApplied}},
	}})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	data, err := os.ReadFile(repo.Path())
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	var raw map[string]map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	rec, ok := raw["https://jobs.example.com/1"]
	if !ok {
		t.Fatalf("file keyed wrong: %s", data)
	}
	if rec["status"] != "Applied" || rec["title"] != "Analyst" {
		t.Errorf("record = %v", rec)
	}
	if _, ok := rec["explanation"]; ok {
		t.Error("empty explanation should be omitted")
	}
	if rec["last_updated"] != t0.Format(time.RFC3339Nano) {
		t.Errorf("last_updated = %v", rec["last_updated"])
	}
}

func TestRepository_LoadLegacyFile(t *testing.T) {
	repo := setupTestRepo(t)
	legacy := `{
  "https://careers.example.com/job2": {"title": "Data Engineer", "status": "Applied", "last_updated": "2024-11-02T10:15:30.123456"},
  "https://careers.example.com/job4": {
    "title": "Software Engineer",
    "status": "Not Relevant",
    "explanation": "frontend",
    "last_updated": "2024-11-02T10:20:00",
    "history": [
      {"timestamp": "2024-11-02T10:19:00", "status": "Error_Checking_Relevance", "explanation": "quota"},
      {"timestamp": "2024-11-02T10:20:00", "status": "Not Relevant", "explanation": "frontend"}
    ]
  }
}`
	if err := os.WriteFile(repo.Path(), []byte(legacy), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	recs, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("Load() = %d records, want 2", len(recs))
	}

	// record without history gets one synthesized entry
	if len(recs[0].History) != 1 || recs[0].Status() != domain.StatusApplied {
		t.Errorf("job2 = %+v", recs[0])
	}
	if recs[0].LastUpdated().IsZero() {
		t.Error("job2 LastUpdated is zero")
	}

	if recs[1].History[0].Status != domain.StatusErrorCheckingRelevance {
		t.Errorf("legacy error status = %q", recs[1].History[0].Status)
	}
	if recs[1].Status() != domain.StatusNotRelevant {
		t.Errorf("legacy terminal status = %q", recs[1].Status())
	}
}

func TestRepository_FailedSaveKeepsPreviousFile(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	first := []domain.JobRecord{{ID: "a", History: []domain.HistoryEntry{{Timestamp: time.Now(), Status: domain.StatusApplied}}}}
	if err := repo.Save(ctx, first); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	before, _ := os.ReadFile(repo.Path())

	rename = func(string, string) error { return errors.New("rename failed") }
	defer func() { rename = os.Rename }()

	second := append(first, domain.JobRecord{ID: "b", History: []domain.HistoryEntry{{Timestamp: time.Now(), Status: domain.StatusRelevant}}})
	if err := repo.Save(ctx, second); err == nil {
		t.Fatal("Save() error = nil, want error")
	}

	after, _ := os.ReadFile(repo.Path())
	if string(after) != string(before) {
		t.Error("target file changed after failed save")
	}
	entries, _ := os.ReadDir(filepath.Dir(repo.Path()))
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temp file %s left behind", e.Name())
		}
	}
}

func TestRepository_CorruptFile(t *testing.T) {
	repo := setupTestRepo(t)
	if err := os.WriteFile(repo.Path(), []byte("{not json"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if _, err := repo.Load(context.Background()); err == nil {
		t.Error("Load() error = nil, want decode error")
	}
}
