package run

import (
	"tomoseq/domain/core"
	"tomoseq/domain/peaks"
)

// Record is a finished peak run as it is stored and served.
type Record struct {
	Manifest *Manifest           `json:"manifest"`
	Peaks    []peaks.Row         `json:"peaks"`
	Skipped  []peaks.SkippedGene `json:"skipped"`
}

// Summary is the listing form of a Record.
type Summary struct {
	RunID       core.RunID     `json:"run_id" db:"id"`
	Genes       int            `json:"genes" db:"genes"`
	Sections    int            `json:"sections" db:"sections"`
	PeakCount   int            `json:"peak_count" db:"peak_count"`
	Skipped     int            `json:"skipped" db:"skipped_count"`
	Fingerprint core.Hash      `json:"fingerprint" db:"fingerprint"`
	CreatedAt   core.Timestamp `json:"created_at" db:"created_at"`
}

// Summarize derives the listing form.
func (r *Record) Summarize() Summary {
	return Summary{
		RunID:       r.Manifest.RunID,
		Genes:       r.Manifest.Genes,
		Sections:    r.Manifest.Sections,
		PeakCount:   len(r.Peaks),
		Skipped:     len(r.Skipped),
		Fingerprint: r.Manifest.Fingerprint.Fingerprint,
		CreatedAt:   r.Manifest.CreatedAt,
	}
}
