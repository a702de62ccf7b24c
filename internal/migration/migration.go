package migration

import (
	"context"

	"tomoseq/internal/errors"

	"github.com/jmoiron/sqlx"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner handles database schema migrations
type MigrationRunner struct {
	version string
}

// NewRunner creates a new migration runner
func NewRunner() *MigrationRunner {
	return &MigrationRunner{
		version: "1.0.0",
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Statements returns the DDL in the order Run applies it.
func (r *MigrationRunner) Statements() []Step {
	return []Step{
		{Name: "peak_runs", SQL: createPeakRunsTable},
		{Name: "peak_genes", SQL: createPeakGenesTable},
		{Name: "skipped_genes", SQL: createSkippedGenesTable},
		{Name: "indexes", SQL: createIndexes},
	}
}

// Step is one named migration statement.
type Step struct {
	Name string
	SQL  string
}

// Run executes all database migrations in the correct order. Every
// statement is idempotent.
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	for _, step := range r.Statements() {
		if _, err := db.ExecContext(ctx, step.SQL); err != nil {
			return errors.DatabaseError("failed to create "+step.Name, err)
		}
	}
	return nil
}

const createPeakRunsTable = `
	CREATE TABLE IF NOT EXISTS peak_runs (
		id UUID PRIMARY KEY,
		input_hash VARCHAR(64) NOT NULL,
		fingerprint VARCHAR(64) NOT NULL,
		genes INTEGER NOT NULL,
		sections INTEGER NOT NULL,
		seed BIGINT NOT NULL,
		peak_count INTEGER NOT NULL DEFAULT 0,
		skipped_count INTEGER NOT NULL DEFAULT 0,
		manifest JSONB NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)
`

const createPeakGenesTable = `
	CREATE TABLE IF NOT EXISTS peak_genes (
		run_id UUID NOT NULL REFERENCES peak_runs(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		gene TEXT NOT NULL,
		start_section INTEGER NOT NULL,
		end_section INTEGER NOT NULL,
		center_section INTEGER NOT NULL,
		statistic DOUBLE PRECISION NOT NULL,
		p_value DOUBLE PRECISION NOT NULL,
		adjusted_p_value DOUBLE PRECISION NOT NULL,
		null_summary JSONB,
		PRIMARY KEY (run_id, position)
	)
`

const createSkippedGenesTable = `
	CREATE TABLE IF NOT EXISTS skipped_genes (
		run_id UUID NOT NULL REFERENCES peak_runs(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		gene TEXT NOT NULL,
		stage VARCHAR(32) NOT NULL,
		reason VARCHAR(32) NOT NULL,
		message TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (run_id, position)
	)
`

const createIndexes = `
	CREATE INDEX IF NOT EXISTS idx_peak_runs_created_at ON peak_runs(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_peak_runs_input_hash ON peak_runs(input_hash);
	CREATE INDEX IF NOT EXISTS idx_peak_genes_gene ON peak_genes(gene)
`
