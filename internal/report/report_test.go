package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/cwygoda/autoapply/internal/domain"
)

func records(now time.Time) []domain.JobRecord {
	return []domain.JobRecord{
		{
			ID:    "https://example.com/job/WD1",
			Title: "Data Engineer",
			History: []domain.HistoryEntry{
				{Timestamp: now.Add(-3 * time.Hour), Status: domain.StatusRelevant},
				{Timestamp: now.Add(-2 * time.Hour), Status: domain.StatusApplied},
			},
		},
		{
			ID:      "https://example.com/job/WD2",
			Title:   "A very long title that goes on and on about the role and its team",
			History: []domain.HistoryEntry{{Timestamp: now.Add(-48 * time.Hour), Status: domain.StatusErrorScraping}},
		},
	}
}

func TestRender(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	var buf bytes.Buffer

	if err := Render(&buf, records(now), Options{Now: now, MaxTitle: 20}); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"2 jobs",
		"Applied 1",
		"Error_Scraping 1",
		"Data Engineer",
		"2 hours ago",
		"2 days ago",
		"A very long title t…",
		"https://example.com/job/WD2",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRender_StatusFilter(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	var buf bytes.Buffer

	Render(&buf, records(now), Options{Now: now, Status: domain.StatusApplied})

	out := buf.String()
	if !strings.Contains(out, "WD1") || strings.Contains(out, "job/WD2") {
		t.Errorf("filter not applied:\n%s", out)
	}
	// the summary still counts every job
	if !strings.Contains(out, "2 jobs") {
		t.Errorf("summary should cover all jobs:\n%s", out)
	}
}

func TestSummary(t *testing.T) {
	got := Summary(1234, map[domain.JobStatus]int{domain.StatusApplied: 3, domain.StatusErrorScraping: 1})
	want := "1,234 jobs · Applied 3 · Error_Scraping 1"
	if got != want {
		t.Errorf("Summary() = %q, want %q", got, want)
	}
}
