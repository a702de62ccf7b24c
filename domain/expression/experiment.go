package expression

import (
	"fmt"

	"tomoseq/domain/core"
)

// LayerName identifies one of the logical matrix variants.
type LayerName string

const (
	LayerCount      LayerName = "count"
	LayerNormalized LayerName = "normalized"
	LayerScaled     LayerName = "scaled"
)

// Experiment bundles the count matrix with the layers derived from it.
// Scaled may hold fewer genes than Count when degenerate rows were dropped.
type Experiment struct {
	layers map[LayerName]*Matrix
}

// NewExperiment starts an experiment from a raw count matrix.
func NewExperiment(counts *Matrix) (*Experiment, error) {
	if counts == nil {
		return nil, core.NewStageError(core.StageValidate, "", core.ErrEmptyMatrix)
	}
	if err := counts.ValidateCounts(core.StageValidate); err != nil {
		return nil, err
	}
	return &Experiment{layers: map[LayerName]*Matrix{LayerCount: counts}}, nil
}

// SetLayer stores a derived layer. The layer must share the section axis of
// the count matrix and only contain genes present there.
func (e *Experiment) SetLayer(name LayerName, m *Matrix) error {
	switch name {
	case LayerNormalized, LayerScaled:
	case LayerCount:
		return fmt.Errorf("%w: count layer is fixed at construction", core.ErrInvalidInput)
	default:
		return fmt.Errorf("%w: %q", core.ErrUnknownLayer, name)
	}

	counts := e.layers[LayerCount]
	cs, ms := counts.Sections(), m.Sections()
	if len(cs) != len(ms) {
		return core.NewStageError(core.StageValidate, string(name),
			fmt.Errorf("%w: %d sections, want %d", core.ErrShapeMismatch, len(ms), len(cs)))
	}
	for j := range cs {
		if cs[j] != ms[j] {
			return core.NewStageError(core.StageValidate, string(name),
				fmt.Errorf("%w: section %d is %q, want %q", core.ErrShapeMismatch, j+1, ms[j], cs[j]))
		}
	}
	for _, g := range m.genes {
		if _, ok := counts.GeneIndex(g); !ok {
			return core.NewStageError(core.StageValidate, g,
				fmt.Errorf("%w: gene absent from count layer", core.ErrShapeMismatch))
		}
	}

	e.layers[name] = m
	return nil
}

// Layer retrieves a layer by name.
func (e *Experiment) Layer(name LayerName) (*Matrix, error) {
	m, ok := e.layers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownLayer, name)
	}
	return m, nil
}

// Counts returns the raw count layer.
func (e *Experiment) Counts() *Matrix {
	return e.layers[LayerCount]
}

// HasLayer reports whether a layer has been computed.
func (e *Experiment) HasLayer(name LayerName) bool {
	_, ok := e.layers[name]
	return ok
}
