package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	httpAdapter "github.com/cwygoda/autoapply/internal/adapter/http"
	"github.com/cwygoda/autoapply/internal/adapter/inbox"
	"github.com/cwygoda/autoapply/internal/config"
	"github.com/cwygoda/autoapply/internal/domain"
	"github.com/cwygoda/autoapply/internal/export"
	"github.com/cwygoda/autoapply/internal/report"
)

const usage = `Usage: autoapply <command> [flags] [args]

Commands:
  run      discover and apply on a timer, serve the webhook API
  once     run a single pass and exit
  status   print job state [STATUS]
  export   write job state to an XLSX workbook FILE

Run "autoapply <command> -h" for flags.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	cmd, args := os.Args[1], os.Args[2:]

	var run func(context.Context, *config.Config, *slog.Logger) error
	switch cmd {
	case "run":
		run = runDaemon
	case "once":
		run = runOnce
	case "status":
		run = runStatus
	case "export":
		run = runExport
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}

	cfg, err := config.Load(cmd, args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logger := newLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("command failed", "command", cmd, "error", err)
		os.Exit(1)
	}
}

func newLogger(w io.Writer, level, format string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func runDaemon(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger.Info("starting autoapply", "config", cfg.ConfigFile, "state", cfg.State, "output", cfg.OutputDir, "port", cfg.Server.Port)

	store, repo, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer repo.Close()

	box := inbox.New()
	w, err := buildWorker(cfg, store, box, logger)
	if err != nil {
		return err
	}

	var srv *httpAdapter.Server
	if cfg.Server.Port > 0 {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		srv = httpAdapter.NewServer(store, box, addr, cfg.Server.Secret, logger)
		srv.OnEnqueue(w.Trigger)
		go func() {
			logger.Info("http.listening", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http.serve_error", "error", err)
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http.shutdown_error", "error", err)
		}
	}
	<-done

	if err := store.Flush(context.Background()); err != nil {
		return fmt.Errorf("final flush: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}

func runOnce(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	store, repo, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer repo.Close()

	w, err := buildWorker(cfg, store, inbox.New(), logger)
	if err != nil {
		return err
	}
	sum := w.RunOnce(ctx)

	fmt.Println(report.Summary(sum.Fresh+sum.Retried, sum.Outcomes))
	if sum.StoreErrors > 0 {
		return fmt.Errorf("%d state writes failed", sum.StoreErrors)
	}
	return ctx.Err()
}

func runStatus(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	store, repo, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer repo.Close()

	var opts report.Options
	if len(cfg.Args) > 0 {
		st, ok := domain.ParseStatus(cfg.Args[0])
		if !ok {
			return fmt.Errorf("unknown status %q", cfg.Args[0])
		}
		opts.Status = st
	}
	return report.Render(os.Stdout, store.List(), opts)
}

func runExport(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if len(cfg.Args) != 1 {
		return errors.New("export needs exactly one output file")
	}
	store, repo, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer repo.Close()

	path := config.ExpandPath(cfg.Args[0])
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := export.WriteXLSX(f, store.List(), logger); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}
