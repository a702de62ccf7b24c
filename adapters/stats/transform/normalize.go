// Package transform turns a raw count matrix into the scaled matrix the peak
// detector works on: gene filtering, library-size normalization and per-gene
// Z-scoring. None of these change the section order.
package transform

import (
	"fmt"

	"tomoseq/domain/core"
	"tomoseq/domain/expression"
	"tomoseq/domain/peaks"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/floats"
)

// CPMScale is the target library size for counts-per-million.
const CPMScale = 1e6

// LibrarySizes returns the column sums of a count matrix.
func LibrarySizes(raw *expression.Matrix) []float64 {
	_, c := raw.Dims()
	sizes := make([]float64, c)
	for j := 0; j < c; j++ {
		sizes[j] = floats.Sum(raw.Col(j))
	}
	return sizes
}

// SizeFactors returns the multiplier applied to every count of each column.
func SizeFactors(raw *expression.Matrix, method peaks.NormalizeMethod) ([]float64, error) {
	if err := raw.ValidateCounts(core.StageNormalize); err != nil {
		return nil, err
	}

	sizes := LibrarySizes(raw)
	for j, s := range sizes {
		if s == 0 {
			return nil, core.NewStageError(core.StageNormalize, raw.Section(j), core.ErrZeroLibrarySize)
		}
	}

	var target float64
	switch method {
	case peaks.NormalizeMedian, "":
		median, err := stats.Median(sizes)
		if err != nil {
			return nil, core.NewStageError(core.StageNormalize, "", fmt.Errorf("%w: %v", core.ErrInvalidInput, err))
		}
		target = median
	case peaks.NormalizeCPM:
		target = CPMScale
	default:
		return nil, core.NewStageError(core.StageNormalize, "",
			core.NewParameterError("normalize_method", method, "must be median or cpm"))
	}

	factors := make([]float64, len(sizes))
	for j, s := range sizes {
		factors[j] = target / s
	}
	return factors, nil
}

// Normalize rescales every column to a common library size. The output keeps
// the input's shape and labels.
func Normalize(raw *expression.Matrix, method peaks.NormalizeMethod) (*expression.Matrix, error) {
	factors, err := SizeFactors(raw, method)
	if err != nil {
		return nil, err
	}

	dense := raw.Dense()
	dense.Apply(func(_, j int, v float64) float64 {
		return v * factors[j]
	}, dense)

	out, err := expression.NewDense(raw.Genes(), raw.Sections(), dense)
	if err != nil {
		return nil, core.NewStageError(core.StageNormalize, "", err)
	}
	return out, nil
}
