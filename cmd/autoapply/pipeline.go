package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cwygoda/autoapply/internal/adapter/inbox"
	"github.com/cwygoda/autoapply/internal/adapter/llm"
	"github.com/cwygoda/autoapply/internal/adapter/render"
	"github.com/cwygoda/autoapply/internal/adapter/submit"
	"github.com/cwygoda/autoapply/internal/adapter/web"
	"github.com/cwygoda/autoapply/internal/config"
	"github.com/cwygoda/autoapply/internal/domain"
	"github.com/cwygoda/autoapply/internal/fitter"
	"github.com/cwygoda/autoapply/internal/worker"
)

// buildWorker wires every adapter the pipeline needs from cfg.
func buildWorker(cfg *config.Config, store *domain.JobStore, box *inbox.Inbox, logger *slog.Logger) (*worker.Worker, error) {
	profile, err := loadProfile(cfg.Profile)
	if err != nil {
		return nil, err
	}

	client, err := llm.NewClient(llm.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
		Rules:       cfg.LLM.Rules,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("llm client: %w", err)
	}

	renderer, err := render.NewWeasyPrint(render.Config{
		WorkDir:    cfg.Render.WorkDir,
		Stylesheet: cfg.Render.Stylesheet,
		Command:    cfg.Render.Command,
		PdfInfo:    cfg.Render.PdfInfo,
	}, nil, logger)
	if err != nil {
		return nil, fmt.Errorf("renderer: %w", err)
	}

	submitters, err := submit.NewRegistryFromConfig(cfg.Submitters, filepath.Join(cfg.OutputDir, "submissions"), logger)
	if err != nil {
		return nil, err
	}

	fetcher := web.NewFetcher(cfg.Scrape.Timeout, cfg.Scrape.UserAgent)
	discoverers := []domain.Discoverer{box}
	for _, src := range cfg.Sources {
		discoverers = append(discoverers, web.NewListingDiscoverer(src.Name, src.URLs, src.LinkClass, fetcher, logger))
	}

	deps := worker.Deps{
		Store:       store,
		Discoverers: discoverers,
		Scraper:     web.NewDescriptionScraper(cfg.Scrape.DescriptionClass, fetcher),
		Oracle:      client,
		Rewriter:    client,
		Fitter:      fitter.New(render.NewMarkdownConverter(), renderer, client, domain.DefaultShrinkPolicy(), logger),
		Submitter:   submitters,
	}
	opts := worker.Options{
		Interval:        cfg.Pipeline.Interval,
		Workers:         cfg.Pipeline.Workers,
		MaxIterations:   cfg.Pipeline.MaxIterations,
		SubmitOversized: cfg.Pipeline.SubmitOversized,
		OutputDir:       cfg.OutputDir,
	}
	return worker.New(deps, profile, opts, logger), nil
}

func loadProfile(pc config.ProfileConfig) (worker.Profile, error) {
	resume, err := os.ReadFile(pc.Resume)
	if err != nil {
		return worker.Profile{}, fmt.Errorf("read résumé: %w", err)
	}
	p := worker.Profile{Resume: string(resume)}
	if pc.CV != "" {
		cv, err := os.ReadFile(pc.CV)
		if err != nil {
			return worker.Profile{}, fmt.Errorf("read CV: %w", err)
		}
		p.CV = string(cv)
	}
	return p, nil
}

// openStore opens the configured state backend and loads it into a JobStore.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*domain.JobStore, domain.StateRepository, error) {
	repo, err := openState(ctx, cfg.State, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open state %s: %w", cfg.State, err)
	}
	store, err := domain.NewJobStore(ctx, repo)
	if err != nil {
		repo.Close()
		return nil, nil, err
	}
	return store, repo, nil
}
