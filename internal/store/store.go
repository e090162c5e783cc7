// Package store persists pipeline runs and scored signals. Two drivers are
// provided: SQLite for local single-operator use and Postgres for shared
// deployments.
package store

import (
	"context"

	"github.com/stealthee/radar-cli/internal/model"
)

// SignalFilter specifies criteria for listing stored signals.
type SignalFilter struct {
	RunID         string  `json:"run_id,omitempty"`
	MinLikelihood float64 `json:"min_likelihood,omitempty"`
	Limit         int     `json:"limit,omitempty"`
	Offset        int     `json:"offset,omitempty"`
}

// Store defines the persistence interface for the detection pipeline.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, query string) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, summary *model.RunSummary) error
	FailRun(ctx context.Context, runID string, status model.RunStatus, reason string) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)

	// Signals: append-only, one row per processed signal regardless of score.
	InsertSignal(ctx context.Context, runID string, rec *model.StoredRecord) (int64, error)
	ListSignals(ctx context.Context, filter SignalFilter) ([]model.StoredRecord, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
