// Package store persists run history, per-document results, and
// dead-letter entries so batch outcomes survive the process.
package store

import (
	"context"

	"github.com/doctrove/enrich-cli/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the enrichment pipeline.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, documentIDs []int) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	CompleteRun(ctx context.Context, runID string, status model.RunStatus, summary *model.BatchSummary) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Per-document results
	SaveResults(ctx context.Context, runID string, results []model.ProcessingResult) error
	GetResults(ctx context.Context, runID string) ([]model.ProcessingResult, error)

	// Dead letters
	SaveDeadLetters(ctx context.Context, runID string, entries []model.DeadLetterEntry) error
	ListDeadLetters(ctx context.Context, limit int) ([]model.DeadLetterEntry, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
