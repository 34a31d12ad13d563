package submit

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/cwygoda/autoapply/internal/config"
	"github.com/cwygoda/autoapply/internal/domain"
)

// CommandSubmitter runs an external command for matching job URLs.
type CommandSubmitter struct {
	name    string
	pattern *regexp.Regexp
	command string
	args    []string
	dir     string
	isolate bool
	logger  *slog.Logger
}

// NewCommandSubmitter creates a submitter from config.
// Uses defaultDir if dir not set, isolate defaults to true.
func NewCommandSubmitter(sc config.SubmitterConfig, defaultDir string, logger *slog.Logger) (*CommandSubmitter, error) {
	re, err := regexp.Compile(sc.Pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", sc.Pattern, err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	dir := sc.Dir
	if dir == "" {
		dir = defaultDir
	} else {
		dir = config.ExpandPath(dir)
	}

	isolate := true
	if sc.Isolate != nil {
		isolate = *sc.Isolate
	}

	return &CommandSubmitter{
		name:    sc.Name,
		pattern: re,
		command: sc.Command,
		args:    sc.Args,
		dir:     dir,
		isolate: isolate,
		logger:  logger.With("submitter", sc.Name),
	}, nil
}

func (s *CommandSubmitter) Name() string {
	return s.name
}

// Dir is where the command runs, or where its output files end up when isolated.
func (s *CommandSubmitter) Dir() string {
	return s.dir
}

func (s *CommandSubmitter) Match(url string) bool {
	return s.pattern.MatchString(url)
}

// Submit runs the command with {url}, {title} and {pdf} placeholders replaced.
func (s *CommandSubmitter) Submit(ctx context.Context, req domain.SubmitRequest) error {
	pdf := req.ArtifactPath
	if pdf != "" && !filepath.IsAbs(pdf) {
		// isolated commands run in a temp dir
		abs, err := filepath.Abs(pdf)
		if err != nil {
			return fmt.Errorf("resolve artifact path: %w", err)
		}
		pdf = abs
	}
	r := strings.NewReplacer("{url}", req.JobID, "{title}", req.Title, "{pdf}", pdf)
	args := make([]string, len(s.args))
	for i, arg := range s.args {
		args[i] = r.Replace(arg)
	}

	if s.isolate {
		return s.submitIsolated(ctx, req.JobID, args)
	}
	return s.submitDirect(ctx, args)
}

// submitDirect runs command directly in dir.
func (s *CommandSubmitter) submitDirect(ctx context.Context, args []string) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	return s.run(ctx, s.dir, args)
}

// submitIsolated runs in temp dir, moves files on success.
func (s *CommandSubmitter) submitIsolated(ctx context.Context, jobID string, args []string) error {
	tempDir, err := os.MkdirTemp("", "autoapply-submit-*")
	if err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}
	s.logger.Debug("submit.isolated", "job_id", jobID, "dir", tempDir)
	defer os.RemoveAll(tempDir)

	if err := s.run(ctx, tempDir, args); err != nil {
		return err
	}
	return s.moveFiles(jobID, tempDir)
}

func (s *CommandSubmitter) run(ctx context.Context, dir string, args []string) error {
	cmd := exec.CommandContext(ctx, s.command, args...)
	cmd.Dir = dir
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s failed: %w: %s", s.command, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// moveFiles moves files from src to dir, skipping existing.
func (s *CommandSubmitter) moveFiles(jobID, srcDir string) error {
	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return err
	}

	var moved []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		src := filepath.Join(srcDir, entry.Name())
		dst := filepath.Join(s.dir, entry.Name())

		// Skip if destination exists (no overwrite)
		if _, err := os.Stat(dst); err == nil {
			s.logger.Info("submit.skip_existing", "job_id", jobID, "file", entry.Name())
			continue
		}

		if err := os.Rename(src, dst); err != nil {
			// Cross-device fallback
			if err := copyFile(src, dst); err != nil {
				return err
			}
			os.Remove(src)
		}
		moved = append(moved, entry.Name())
	}
	if len(moved) > 0 {
		s.logger.Info("submit.moved", "job_id", jobID, "files", moved, "dir", s.dir)
	}
	return nil
}

// copyFile copies a file from src to dst.
func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0644)
}

// NewRegistryFromConfig registers one CommandSubmitter per config entry, in order.
func NewRegistryFromConfig(cfgs []config.SubmitterConfig, defaultDir string, logger *slog.Logger) (*Registry, error) {
	r := NewRegistry()
	for _, sc := range cfgs {
		s, err := NewCommandSubmitter(sc, defaultDir, logger)
		if err != nil {
			return nil, fmt.Errorf("submitter %s: %w", sc.Name, err)
		}
		s.logger.Debug("submit.registered", "pattern", sc.Pattern, "dir", s.Dir(), "isolate", s.isolate)
		r.Register(s)
	}
	return r, nil
}
