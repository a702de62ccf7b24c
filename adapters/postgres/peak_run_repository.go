package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"tomoseq/domain/core"
	"tomoseq/domain/peaks"
	"tomoseq/domain/run"
	"tomoseq/ports"

	"github.com/jmoiron/sqlx"
)

// PeakRunRepositoryImpl implements PeakRunRepository for PostgreSQL
type PeakRunRepositoryImpl struct {
	db *sqlx.DB
}

// NewPeakRunRepository creates a new PostgreSQL peak run repository
func NewPeakRunRepository(db *sqlx.DB) ports.PeakRunRepository {
	return &PeakRunRepositoryImpl{db: db}
}

type peakGeneRow struct {
	RunID          core.RunID `db:"run_id"`
	Position       int        `db:"position"`
	Gene           string     `db:"gene"`
	StartSection   int        `db:"start_section"`
	EndSection     int        `db:"end_section"`
	CenterSection  int        `db:"center_section"`
	Statistic      float64    `db:"statistic"`
	PValue         float64    `db:"p_value"`
	AdjustedPValue float64    `db:"adjusted_p_value"`
	NullSummary    []byte     `db:"null_summary"`
}

type skippedGeneRow struct {
	RunID    core.RunID `db:"run_id"`
	Position int        `db:"position"`
	Gene     string     `db:"gene"`
	Stage    string     `db:"stage"`
	Reason   string     `db:"reason"`
	Message  string     `db:"message"`
}

// SaveRun stores a run with its peak table and skipped genes in one
// transaction. Saving the same run ID again replaces it.
func (r *PeakRunRepositoryImpl) SaveRun(ctx context.Context, rec *run.Record) error {
	if rec == nil || rec.Manifest == nil {
		return fmt.Errorf("%w: run record has no manifest", core.ErrInvalidInput)
	}
	m := rec.Manifest
	manifestJSON, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM peak_runs WHERE id = $1`, m.RunID); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO peak_runs (
			id, input_hash, fingerprint, genes, sections, seed,
			peak_count, skipped_count, manifest, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		m.RunID, m.InputHash, m.Fingerprint.Fingerprint, m.Genes, m.Sections, m.Seed,
		len(rec.Peaks), len(rec.Skipped), manifestJSON, m.CreatedAt)
	if err != nil {
		return err
	}

	for i, p := range rec.Peaks {
		row := peakGeneRow{
			RunID:          m.RunID,
			Position:       i,
			Gene:           p.Gene,
			StartSection:   p.Start,
			EndSection:     p.End,
			CenterSection:  p.Center,
			Statistic:      p.Statistic,
			PValue:         p.PValue,
			AdjustedPValue: p.AdjustedPValue,
		}
		if p.Null != nil {
			row.NullSummary, _ = json.Marshal(p.Null)
		}
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO peak_genes (
				run_id, position, gene, start_section, end_section, center_section,
				statistic, p_value, adjusted_p_value, null_summary
			) VALUES (
				:run_id, :position, :gene, :start_section, :end_section, :center_section,
				:statistic, :p_value, :adjusted_p_value, :null_summary
			)`, row); err != nil {
			return fmt.Errorf("failed to insert peak gene %s: %w", p.Gene, err)
		}
	}

	for i, s := range rec.Skipped {
		row := skippedGeneRow{
			RunID:    m.RunID,
			Position: i,
			Gene:     s.Gene,
			Stage:    s.Stage,
			Reason:   string(s.Reason),
			Message:  s.Message,
		}
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO skipped_genes (run_id, position, gene, stage, reason, message)
			VALUES (:run_id, :position, :gene, :stage, :reason, :message)`, row); err != nil {
			return fmt.Errorf("failed to insert skipped gene %s: %w", s.Gene, err)
		}
	}

	return tx.Commit()
}

// GetRun loads a stored run; the peak table keeps the order it was saved in.
func (r *PeakRunRepositoryImpl) GetRun(ctx context.Context, id core.RunID) (*run.Record, error) {
	var manifestJSON []byte
	err := r.db.GetContext(ctx, &manifestJSON, `SELECT manifest FROM peak_runs WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", core.ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	var manifest run.Manifest
	if err := json.Unmarshal(manifestJSON, &manifest); err != nil {
		return nil, fmt.Errorf("failed to unmarshal manifest for run %s: %w", id, err)
	}

	var geneRows []peakGeneRow
	if err := r.db.SelectContext(ctx, &geneRows, `
		SELECT run_id, position, gene, start_section, end_section, center_section,
			   statistic, p_value, adjusted_p_value, null_summary
		FROM peak_genes
		WHERE run_id = $1
		ORDER BY position`, id); err != nil {
		return nil, err
	}

	var skippedRows []skippedGeneRow
	if err := r.db.SelectContext(ctx, &skippedRows, `
		SELECT run_id, position, gene, stage, reason, message
		FROM skipped_genes
		WHERE run_id = $1
		ORDER BY position`, id); err != nil {
		return nil, err
	}

	rec := &run.Record{
		Manifest: &manifest,
		Peaks:    make([]peaks.Row, 0, len(geneRows)),
		Skipped:  make([]peaks.SkippedGene, 0, len(skippedRows)),
	}
	for _, g := range geneRows {
		row := peaks.Row{
			Candidate: peaks.Candidate{
				Gene:      g.Gene,
				Start:     g.StartSection,
				End:       g.EndSection,
				Center:    g.CenterSection,
				Statistic: g.Statistic,
			},
			PValue:         g.PValue,
			AdjustedPValue: g.AdjustedPValue,
		}
		if len(g.NullSummary) > 0 {
			var null peaks.NullSummary
			if err := json.Unmarshal(g.NullSummary, &null); err != nil {
				return nil, fmt.Errorf("failed to unmarshal null summary for %s: %w", g.Gene, err)
			}
			row.Null = &null
		}
		rec.Peaks = append(rec.Peaks, row)
	}
	for _, s := range skippedRows {
		rec.Skipped = append(rec.Skipped, peaks.SkippedGene{
			Gene:    s.Gene,
			Stage:   s.Stage,
			Reason:  peaks.ReasonCode(s.Reason),
			Message: s.Message,
		})
	}
	return rec, nil
}

// ListRuns returns run summaries, newest first, optionally limited
func (r *PeakRunRepositoryImpl) ListRuns(ctx context.Context, limit int) ([]run.Summary, error) {
	query := `
		SELECT id, genes, sections, peak_count, skipped_count, fingerprint, created_at
		FROM peak_runs
		ORDER BY created_at DESC, id DESC
	`
	var args []interface{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	summaries := []run.Summary{}
	if err := r.db.SelectContext(ctx, &summaries, query, args...); err != nil {
		return nil, err
	}
	return summaries, nil
}
