package submit

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cwygoda/autoapply/internal/config"
	"github.com/cwygoda/autoapply/internal/domain"
)

func boolPtr(b bool) *bool { return &b }

func TestNewCommandSubmitter(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.SubmitterConfig
		wantErr bool
	}{
		{
			name: "valid config",
			cfg: config.SubmitterConfig{
				Name:    "test",
				Pattern: `^https?://example\.com/`,
				Command: "echo",
				Args:    []string{"{url}"},
			},
			wantErr: false,
		},
		{
			name: "invalid regex",
			cfg: config.SubmitterConfig{
				Name:    "bad",
				Pattern: `[invalid`,
				Command: "echo",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCommandSubmitter(tt.cfg, t.TempDir(), nil)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewCommandSubmitter() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCommandSubmitter_Match(t *testing.T) {
	s, _ := NewCommandSubmitter(config.SubmitterConfig{
		Name:    "workday",
		Pattern: `^https?://[^/]+/.*WD\d+`,
	}, "", nil)

	tests := []struct {
		url  string
		want bool
	}{
		{"https://careers.example.com/us/jobs/WD1866909-principal-data-scientist", true},
		{"http://jobs.example.org/WD42", true},
		{"https://careers.example.com/us/jobs/12345", false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			if got := s.Match(tt.url); got != tt.want {
				t.Errorf("Match(%q) = %v, want %v", tt.url, got, tt.want)
			}
		})
	}
}

func TestCommandSubmitter_Placeholders(t *testing.T) {
	dir := t.TempDir()

	s, err := NewCommandSubmitter(config.SubmitterConfig{
		Name:    "test",
		Pattern: ".*",
		Command: "sh",
		Args:    []string{"-c", "printf '%s|%s|%s' '{url}' '{title}' '{pdf}' > out.txt"},
		Isolate: boolPtr(false),
	}, dir, nil)
	if err != nil {
		t.Fatal(err)
	}

	req := domain.SubmitRequest{
		JobID:        "https://example.com/job/1",
		Title:        "Data Scientist",
		ArtifactPath: "/tmp/resume.pdf",
	}
	if err := s.Submit(context.Background(), req); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	content, err := os.ReadFile(filepath.Join(dir, "out.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if got := string(content); got != "https://example.com/job/1|Data Scientist|/tmp/resume.pdf" {
		t.Errorf("placeholders not replaced: got %q", got)
	}
}

func TestCommandSubmitter_Isolated(t *testing.T) {
	dir := t.TempDir()

	s, err := NewCommandSubmitter(config.SubmitterConfig{
		Name:    "test",
		Pattern: ".*",
		Command: "touch",
		Args:    []string{"receipt.txt"},
	}, dir, nil)
	if err != nil {
		t.Fatal(err)
	}

	if err := s.Submit(context.Background(), domain.SubmitRequest{JobID: "https://example.com"}); err != nil {
		t.Errorf("Submit() error = %v", err)
	}

	// Check file was moved to dir
	if _, err := os.Stat(filepath.Join(dir, "receipt.txt")); os.IsNotExist(err) {
		t.Error("expected receipt.txt to exist in dir")
	}
}

func TestCommandSubmitter_IsolatedRelativeArtifact(t *testing.T) {
	work := t.TempDir()
	t.Chdir(work)
	if err := os.MkdirAll("generated_pdfs", 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join("generated_pdfs", "resume.pdf"), []byte("%PDF"), 0644); err != nil {
		t.Fatal(err)
	}

	s, err := NewCommandSubmitter(config.SubmitterConfig{
		Name:    "test",
		Pattern: ".*",
		Command: "test",
		Args:    []string{"-f", "{pdf}"},
	}, t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}

	req := domain.SubmitRequest{JobID: "https://example.com/job/1", ArtifactPath: filepath.Join("generated_pdfs", "resume.pdf")}
	if err := s.Submit(context.Background(), req); err != nil {
		t.Errorf("Submit() error = %v, want relative artifact resolved before isolating", err)
	}
}

func TestCommandSubmitter_NoOverwrite(t *testing.T) {
	dir := t.TempDir()

	// Create existing file with content
	existingFile := filepath.Join(dir, "existing.txt")
	if err := os.WriteFile(existingFile, []byte("original"), 0644); err != nil {
		t.Fatal(err)
	}

	s, err := NewCommandSubmitter(config.SubmitterConfig{
		Name:    "test",
		Pattern: ".*",
		Command: "sh",
		Args:    []string{"-c", "echo new > existing.txt"},
		Isolate: boolPtr(true),
	}, dir, nil)
	if err != nil {
		t.Fatal(err)
	}

	if err := s.Submit(context.Background(), domain.SubmitRequest{JobID: "https://example.com"}); err != nil {
		t.Errorf("Submit() error = %v", err)
	}

	content, err := os.ReadFile(existingFile)
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "original" {
		t.Errorf("file was overwritten: got %q, want %q", string(content), "original")
	}
}

func TestCommandSubmitter_FailureIncludesOutput(t *testing.T) {
	s, err := NewCommandSubmitter(config.SubmitterConfig{
		Name:    "test",
		Pattern: ".*",
		Command: "sh",
		Args:    []string{"-c", "echo login required >&2; exit 3"},
	}, t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}

	err = s.Submit(context.Background(), domain.SubmitRequest{JobID: "https://example.com"})
	if err == nil || !strings.Contains(err.Error(), "login required") {
		t.Errorf("Submit() error = %v, want command output", err)
	}
}

func TestCommandSubmitter_Defaults(t *testing.T) {
	s, err := NewCommandSubmitter(config.SubmitterConfig{
		Name:    "test",
		Pattern: ".*",
		Command: "echo",
	}, "/default/dir", nil)
	if err != nil {
		t.Fatal(err)
	}

	// Default should be true (isolate enabled)
	if !s.isolate {
		t.Error("expected isolate to default to true")
	}
	if s.Dir() != "/default/dir" {
		t.Errorf("Dir() = %q, want %q", s.Dir(), "/default/dir")
	}
}

func TestNewRegistryFromConfig(t *testing.T) {
	dir := t.TempDir()
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	r, err := NewRegistryFromConfig([]config.SubmitterConfig{
		{Name: "a", Pattern: "alpha", Command: "true"},
		{Name: "b", Pattern: ".*", Command: "true"},
	}, dir, logger)
	if err != nil {
		t.Fatalf("NewRegistryFromConfig() error = %v", err)
	}
	if got := strings.Count(logs.String(), "dir="+dir); got != 2 {
		t.Errorf("registered submitters logged with dir %d times, want 2:\n%s", got, logs.String())
	}
	if got := r.Match("https://alpha.example.com"); got == nil || got.Name() != "a" {
		t.Errorf("Match() = %v, want a", got)
	}

	if _, err := NewRegistryFromConfig([]config.SubmitterConfig{{Name: "x", Pattern: "("}}, "", nil); err == nil {
		t.Error("NewRegistryFromConfig() error = nil, want invalid pattern")
	}
}
