// Package fitter shrinks a résumé body until its rendered form fits on one page.
package fitter

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cwygoda/autoapply/internal/document"
	"github.com/cwygoda/autoapply/internal/domain"
)

var (
	ErrNegativeBudget = errors.New("max iterations must not be negative")
	ErrEmptyBody      = errors.New("draft body is empty")
	ErrEmptyRewrite   = errors.New("rewrite returned an empty body")
)

// StopReason says why a Fit call ended.
type StopReason string

const (
	ReasonFitted          StopReason = "fitted"
	ReasonBudgetExhausted StopReason = "budget_exhausted"
	ReasonConvertFailed   StopReason = "convert_failed"
	ReasonRenderFailed    StopReason = "render_failed"
	ReasonPageCountFailed StopReason = "page_count_failed"
	ReasonRewriteFailed   StopReason = "rewrite_failed"
	ReasonCanceled        StopReason = "canceled"
)

// Result is the outcome of a Fit call.
//
// Artifact is the last successful render and may be nil. Body is the body
// that produced it. Err holds the collaborator error behind a failure reason.
type Result struct {
	Artifact *domain.Artifact
	Fitted   bool
	Renders  int
	Rewrites int
	Pages    int
	Reason   StopReason
	Body     document.Body
	Err      error
}

// Fitter runs the render, measure, shrink loop. It is strictly serial.
type Fitter struct {
	converter domain.StructuralConverter
	renderer  domain.LayoutRenderer
	rewriter  domain.ContentRewriter
	policy    domain.ShrinkPolicy
	logger    *slog.Logger
}

// New creates a Fitter.
func New(converter domain.StructuralConverter, renderer domain.LayoutRenderer, rewriter domain.ContentRewriter, policy domain.ShrinkPolicy, logger *slog.Logger) *Fitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fitter{
		converter: converter,
		renderer:  renderer,
		rewriter:  rewriter,
		policy:    policy,
		logger:    logger,
	}
}

// Fit renders draft at most maxIterations+1 times, asking the rewriter for one
// shrink action between renders, and stops at the first single-page render.
//
// The returned error is only set for invalid arguments. Collaborator failures
// are reported through Result.Reason and Result.Err.
func (f *Fitter) Fit(ctx context.Context, draft document.Draft, jobContext string, maxIterations int) (Result, error) {
	if maxIterations < 0 {
		return Result{}, ErrNegativeBudget
	}
	if draft.Body.IsEmpty() {
		return Result{}, ErrEmptyBody
	}

	t0 := time.Now()
	body := draft.Body.Clone()
	res := Result{Body: body}

	stop := func(reason StopReason, err error) (Result, error) {
		res.Reason = reason
		res.Err = err
		lvl := slog.LevelInfo
		if err != nil {
			lvl = slog.LevelWarn
		}
		f.logger.Log(ctx, lvl, "fitter.done",
			"reason", string(reason),
			"fitted", res.Fitted,
			"renders", res.Renders,
			"rewrites", res.Rewrites,
			"pages", res.Pages,
			"elapsed_ms", time.Since(t0).Milliseconds(),
			"err", err,
		)
		return res, nil
	}

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return stop(ReasonCanceled, err)
		}

		html, err := f.converter.ToRenderForm(ctx, body.Markdown())
		if err != nil {
			return stop(ReasonConvertFailed, err)
		}

		res.Renders++
		art, err := f.renderer.Render(ctx, domain.RenderRequest{
			Name:    draft.Identity.Name,
			Contact: draft.Identity.Contact,
			Body:    html,
			Attempt: attempt,
		})
		if err != nil {
			return stop(ReasonRenderFailed, err)
		}
		res.Artifact = art
		res.Body = body

		pages, err := f.renderer.PageCount(ctx, art)
		if err == nil && pages < 1 {
			err = errors.New("artifact has no pages")
		}
		if err != nil {
			return stop(ReasonPageCountFailed, err)
		}
		res.Pages = pages

		size := body.Stats().Size()
		f.logger.Debug("fitter.attempt", "attempt", attempt, "pages", pages, "size", size)

		if pages == 1 {
			res.Fitted = true
			return stop(ReasonFitted, nil)
		}
		if attempt > maxIterations {
			return stop(ReasonBudgetExhausted, nil)
		}
		if err := ctx.Err(); err != nil {
			return stop(ReasonCanceled, err)
		}

		res.Rewrites++
		out, err := f.rewriter.Rewrite(ctx, domain.RewriteRequest{
			Mode:    domain.RewriteShrink,
			Content: body.Markdown(),
			Context: jobContext,
			Actions: domain.ShrinkPriority,
			Policy:  f.policy,
		})
		if err != nil {
			return stop(ReasonRewriteFailed, err)
		}
		// an echoed name heading and contact line never become body text
		next := document.ParseBody(document.StripIdentity(out))
		if next.IsEmpty() {
			return stop(ReasonRewriteFailed, ErrEmptyRewrite)
		}

		// the working body never grows; a growing rewrite still spends the iteration
		if nextSize := next.Stats().Size(); nextSize > size {
			f.logger.Warn("fitter.rewrite_discarded", "attempt", attempt, "size", size, "rewritten_size", nextSize)
			continue
		}
		body = next
	}
}
