package run

import (
	"fmt"

	"tomoseq/domain/core"
	"tomoseq/domain/peaks"
)

// Manifest records everything needed to replay a peak run: the input
// fingerprint, the effective parameters and the base seed actually used.
type Manifest struct {
	RunID        core.RunID     `json:"run_id"`
	InputHash    core.Hash      `json:"input_hash"`
	Genes        int            `json:"genes"`
	Sections     int            `json:"sections"`
	Params       peaks.Params   `json:"params"`
	Seed         int64          `json:"seed"`
	SeedProvided bool           `json:"seed_provided"`
	CodeVersion  string         `json:"code_version"`
	Fingerprint  RunFingerprint `json:"fingerprint"`
	CreatedAt    core.Timestamp `json:"created_at"`
}

// NewManifest builds a manifest. When params carry no seed, seed is the one
// drawn for this run and is written back into the recorded params.
func NewManifest(runID core.RunID, inputHash core.Hash, genes, sections int, params peaks.Params, seed int64) *Manifest {
	provided := params.Seed != nil
	if provided {
		seed = *params.Seed
	} else {
		params = params.WithSeed(seed)
	}
	paramsHash := core.ComputeParamsHash(params.Fingerprint())

	return &Manifest{
		RunID:        runID,
		InputHash:    inputHash,
		Genes:        genes,
		Sections:     sections,
		Params:       params,
		Seed:         seed,
		SeedProvided: provided,
		CodeVersion:  CodeVersion,
		Fingerprint:  NewRunFingerprint(inputHash, paramsHash, seed, CodeVersion),
		CreatedAt:    core.Now(),
	}
}

// Validate checks if the manifest is complete
func (m *Manifest) Validate() error {
	if core.ID(m.RunID).IsEmpty() {
		return fmt.Errorf("%w: run_manifest: run_id cannot be empty", core.ErrInvalidInput)
	}
	if m.InputHash.IsEmpty() {
		return fmt.Errorf("%w: run_manifest: input_hash cannot be empty", core.ErrInvalidInput)
	}
	if m.CodeVersion == "" {
		return fmt.Errorf("%w: run_manifest: code_version cannot be empty", core.ErrInvalidInput)
	}
	if m.Params.Seed == nil || *m.Params.Seed != m.Seed {
		return fmt.Errorf("%w: run_manifest: recorded seed does not match params", core.ErrInvalidInput)
	}
	return nil
}
