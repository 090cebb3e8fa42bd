// Package store persists pipeline run history.
package store

import (
	"context"

	"github.com/sells-group/wnv-cli/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for run history.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, subtitle string) (*model.Run, error)
	FinishRun(ctx context.Context, runID string, result *model.RunResult) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Steps
	RecordStep(ctx context.Context, runID string, step model.StepResult) error
	ListSteps(ctx context.Context, runID string) ([]model.StepResult, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
