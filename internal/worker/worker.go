// Package worker runs discovery passes and drives each job through the pipeline.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cwygoda/autoapply/internal/document"
	"github.com/cwygoda/autoapply/internal/domain"
	"github.com/cwygoda/autoapply/internal/fitter"
)

const (
	editedDir = "edited_resumes"
	pdfDir    = "generated_pdfs"
)

var errTailoredNoBody = errors.New("tailored résumé has no body")

// Profile is the candidate's base résumé and long-form CV, both markdown.
type Profile struct {
	Resume string
	CV     string
}

// Deps are the collaborators a Worker drives.
type Deps struct {
	Store       *domain.JobStore
	Discoverers []domain.Discoverer
	Scraper     domain.DescriptionScraper
	Oracle      domain.RelevanceOracle
	Rewriter    domain.ContentRewriter
	Fitter      *fitter.Fitter
	Submitter   domain.SubmissionDriver
}

// Options tune a Worker.
type Options struct {
	Interval        time.Duration
	Workers         int
	MaxIterations   int
	SubmitOversized bool
	OutputDir       string
}

// PassSummary describes one discovery pass.
type PassSummary struct {
	Discovered  int
	Fresh       int
	Retried     int
	Outcomes    map[domain.JobStatus]int
	StoreErrors int
	Elapsed     time.Duration
}

// Worker runs passes on a timer and on demand.
type Worker struct {
	deps    Deps
	opts    Options
	profile Profile
	logger  *slog.Logger
	trigger chan struct{}

	passMu  sync.Mutex
	claimMu sync.Mutex
	claimed map[string]bool
}

// New creates a new worker.
func New(deps Deps, profile Profile, opts Options, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Minute
	}
	return &Worker{
		deps:    deps,
		opts:    opts,
		profile: profile,
		logger:  logger,
		trigger: make(chan struct{}, 1),
		claimed: make(map[string]bool),
	}
}

// Trigger asks Run for an extra pass. It never blocks.
func (w *Worker) Trigger() {
	select {
	case w.trigger <- struct{}{}:
	default:
	}
}

// Run starts the worker loop until context is cancelled. The first pass
// starts immediately.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("worker.started", "interval", w.opts.Interval.String(), "workers", w.opts.Workers)
	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	w.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker.stopped")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		case <-w.trigger:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single pass. Passes never overlap.
func (w *Worker) RunOnce(ctx context.Context) PassSummary {
	w.passMu.Lock()
	defer w.passMu.Unlock()

	start := time.Now()
	sum := PassSummary{Outcomes: make(map[domain.JobStatus]int)}
	var mu sync.Mutex

	var stubs []domain.JobStub
	for _, d := range w.deps.Discoverers {
		found, err := d.Discover(ctx)
		if err != nil {
			w.logger.Warn("worker.discover_error", "source", d.Name(), "error", err)
			continue
		}
		w.logger.Info("worker.discovered", "source", d.Name(), "count", len(found))
		stubs = append(stubs, found...)
	}
	sum.Discovered = len(stubs)

	fresh, retry := w.deps.Store.Classify(stubs)
	sum.Fresh, sum.Retried = len(fresh), len(retry)
	w.logger.Info("worker.pass.start", "discovered", sum.Discovered, "new", sum.Fresh, "retry", sum.Retried)

	g := new(errgroup.Group)
	g.SetLimit(w.opts.Workers)
	for _, stub := range append(fresh, retry...) {
		if ctx.Err() != nil {
			break
		}
		if !w.claim(stub.ID) {
			continue
		}
		g.Go(func() error {
			defer w.release(stub.ID)
			status, storeErrs := w.processJob(ctx, stub)
			mu.Lock()
			sum.Outcomes[status]++
			sum.StoreErrors += storeErrs
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	if err := w.deps.Store.Flush(context.WithoutCancel(ctx)); err != nil {
		w.logger.Error("worker.flush_error", "error", err)
		sum.StoreErrors++
	}
	sum.Elapsed = time.Since(start)
	w.logger.Info("worker.pass.done",
		"applied", sum.Outcomes[domain.StatusApplied],
		"not_relevant", sum.Outcomes[domain.StatusNotRelevant],
		"store_errors", sum.StoreErrors,
		"elapsed_ms", sum.Elapsed.Milliseconds(),
	)
	return sum
}

func (w *Worker) claim(id string) bool {
	w.claimMu.Lock()
	defer w.claimMu.Unlock()
	if w.claimed[id] {
		return false
	}
	w.claimed[id] = true
	return true
}

func (w *Worker) release(id string) {
	w.claimMu.Lock()
	defer w.claimMu.Unlock()
	delete(w.claimed, id)
}

// jobRun carries one job through its stages and records each transition.
type jobRun struct {
	w           *Worker
	ctx         context.Context
	id          string
	title       string
	log         *slog.Logger
	storeErrors int
}

func (j *jobRun) record(status domain.JobStatus, explanation string) domain.JobStatus {
	// status writes survive cancellation so an interrupted job is still retryable
	err := j.w.deps.Store.RecordStatus(context.WithoutCancel(j.ctx), j.id, j.title, status, explanation)
	if err != nil {
		j.storeErrors++
		j.log.Error("job.record_error", "status", string(status), "error", err)
	}
	lvl := slog.LevelInfo
	if status.IsError() {
		lvl = slog.LevelWarn
	}
	j.log.Log(j.ctx, lvl, "job.status", "status", string(status), "explanation", explanation)
	return status
}

func (j *jobRun) fail(status domain.JobStatus, err error) domain.JobStatus {
	return j.record(status, err.Error())
}

// processJob returns the last status recorded for the job and the number of
// failed store writes.
func (w *Worker) processJob(ctx context.Context, stub domain.JobStub) (domain.JobStatus, int) {
	start := time.Now()
	title := stub.Title
	prev, known := w.deps.Store.Get(stub.ID)
	if known && prev.Title != "" {
		title = prev.Title
	}
	j := &jobRun{w: w, ctx: ctx, id: stub.ID, title: title, log: w.logger.With("job_id", stub.ID)}

	status := j.run(prev.WasRelevant())
	j.log.Info("job.done", "status", string(status), "elapsed_ms", time.Since(start).Milliseconds())
	return status, j.storeErrors
}

func (j *jobRun) run(wasRelevant bool) domain.JobStatus {
	w, ctx := j.w, j.ctx

	description, err := w.deps.Scraper.Scrape(ctx, j.id)
	if err == nil && strings.TrimSpace(description) == "" {
		err = errors.New("empty job description")
	}
	if err != nil {
		return j.fail(domain.StatusErrorScraping, err)
	}

	if !wasRelevant {
		verdict, err := w.deps.Oracle.Evaluate(ctx, w.relevanceProfile(), j.title, description)
		if err != nil {
			return j.fail(domain.StatusErrorCheckingRelevance, err)
		}
		if st := j.record(verdict.Status(), verdict.Explanation); st != domain.StatusRelevant {
			return st
		}
	}

	tailored, err := w.deps.Rewriter.Rewrite(ctx, domain.RewriteRequest{
		Mode:      domain.RewriteTailor,
		Content:   w.profile.Resume,
		Context:   description,
		Title:     j.title,
		Reference: w.profile.CV,
	})
	if err == nil && strings.TrimSpace(tailored) == "" {
		err = errors.New("tailored résumé is empty")
	}
	if err != nil {
		return j.fail(domain.StatusErrorEditingResume, err)
	}
	draft, err := w.parseTailored(tailored)
	if err != nil {
		return j.fail(domain.StatusErrorEditingResume, fmt.Errorf("parse tailored résumé: %w", err))
	}
	if _, err := w.writeOutput(editedDir, ArtifactName(j.title, j.id, ".md"), []byte(draft.Markdown())); err != nil {
		return j.fail(domain.StatusErrorEditingResume, err)
	}

	res, err := w.deps.Fitter.Fit(ctx, draft, description, w.opts.MaxIterations)
	if err != nil {
		return j.fail(domain.StatusErrorPdfGeneration, err)
	}
	if res.Artifact == nil {
		return j.fail(domain.StatusErrorPdfGeneration, fmt.Errorf("no pdf produced (%s): %w", res.Reason, res.Err))
	}
	pdfPath, err := w.writeOutput(pdfDir, ArtifactName(j.title, j.id, ".pdf"), res.Artifact.Data)
	if err != nil {
		return j.fail(domain.StatusErrorPdfGeneration, err)
	}
	if !res.Fitted {
		if !w.opts.SubmitOversized {
			return j.fail(domain.StatusErrorPdfGeneration, fmt.Errorf("résumé still %d pages after %d renders (%s)", res.Pages, res.Renders, res.Reason))
		}
		j.log.Warn("job.submit_oversized", "pages", res.Pages, "reason", string(res.Reason))
	}

	err = w.deps.Submitter.Submit(ctx, domain.SubmitRequest{
		JobID:        j.id,
		Title:        j.title,
		Description:  description,
		ArtifactPath: pdfPath,
	})
	if err != nil {
		return j.fail(domain.StatusErrorSubmitting, err)
	}
	return j.record(domain.StatusApplied, fmt.Sprintf("submitted %s", filepath.Base(pdfPath)))
}

// parseTailored parses rewriter output. Output that lost the name heading is
// treated as body only and takes the identity of the base résumé.
func (w *Worker) parseTailored(tailored string) (document.Draft, error) {
	draft, err := document.Parse(tailored)
	if errors.Is(err, document.ErrNoName) {
		base, baseErr := document.Parse(w.profile.Resume)
		if baseErr != nil {
			return document.Draft{}, err
		}
		draft, err = document.Draft{Identity: base.Identity, Body: document.ParseBody(tailored)}, nil
	}
	if err != nil {
		return document.Draft{}, err
	}
	if draft.Body.IsEmpty() {
		return document.Draft{}, errTailoredNoBody
	}
	return draft, nil
}

func (w *Worker) relevanceProfile() string {
	if strings.TrimSpace(w.profile.CV) == "" {
		return w.profile.Resume
	}
	return w.profile.Resume + "\n\n" + w.profile.CV
}

// writeOutput stores data under OutputDir and returns its absolute path.
func (w *Worker) writeOutput(sub, name string, data []byte) (string, error) {
	dir := filepath.Join(w.opts.OutputDir, sub)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path, err := filepath.Abs(filepath.Join(dir, name))
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", name, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	return path, nil
}
