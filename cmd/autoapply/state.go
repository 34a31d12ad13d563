package main

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/cwygoda/autoapply/internal/adapter/jsonfile"
	"github.com/cwygoda/autoapply/internal/adapter/postgres"
	"github.com/cwygoda/autoapply/internal/adapter/sqlite"
	"github.com/cwygoda/autoapply/internal/config"
	"github.com/cwygoda/autoapply/internal/domain"
)

type stateKind string

const (
	stateSQLite   stateKind = "sqlite"
	stateJSON     stateKind = "json"
	statePostgres stateKind = "postgres"
)

// parseState picks a backend from the state setting. Bare paths ending in
// .json use the JSON file store; anything else is a SQLite database.
func parseState(state string) (stateKind, string) {
	switch {
	case strings.HasPrefix(state, "postgres://"), strings.HasPrefix(state, "postgresql://"):
		return statePostgres, state
	case strings.HasPrefix(state, "json://"):
		return stateJSON, config.ExpandPath(strings.TrimPrefix(state, "json://"))
	case strings.HasPrefix(state, "sqlite://"):
		return stateSQLite, config.ExpandPath(strings.TrimPrefix(state, "sqlite://"))
	case strings.EqualFold(filepath.Ext(state), ".json"):
		return stateJSON, config.ExpandPath(state)
	}
	return stateSQLite, config.ExpandPath(state)
}

func openState(ctx context.Context, state string, logger *slog.Logger) (domain.StateRepository, error) {
	kind, target := parseState(state)
	switch kind {
	case statePostgres:
		logger.Info("state.open", "backend", string(kind))
		repo, err := postgres.Open(ctx, postgres.Config{
			DSN:             target,
			MaxConns:        4,
			MaxConnIdleTime: 5 * time.Minute,
			DialTimeout:     5 * time.Second,
		}, logger)
		if err != nil {
			return nil, err
		}
		return repo, nil
	case stateJSON:
		repo, err := jsonfile.New(target)
		if err != nil {
			return nil, err
		}
		logger.Info("state.open", "backend", string(kind), "path", repo.Path())
		return repo, nil
	}
	logger.Info("state.open", "backend", string(kind), "path", target)
	repo, err := sqlite.New(target)
	if err != nil {
		return nil, err
	}
	return repo, nil
}
