package ports

import (
	"context"

	"tomoseq/domain/core"
	"tomoseq/domain/run"
)

// PeakRunRepository persists finished peak runs.
type PeakRunRepository interface {
	SaveRun(ctx context.Context, rec *run.Record) error
	GetRun(ctx context.Context, id core.RunID) (*run.Record, error)
	ListRuns(ctx context.Context, limit int) ([]run.Summary, error)
}
