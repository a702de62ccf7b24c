package transform

import (
	"fmt"
	"math"

	"tomoseq/domain/core"
	"tomoseq/domain/expression"
	"tomoseq/domain/peaks"
	"tomoseq/internal"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// relZeroVariance is the SD, relative to the row mean, below which a row is
// treated as constant; it absorbs the rounding left by the mean computation.
const relZeroVariance = 1e-12

// ScaleResult is the Z-scored matrix plus the genes that could not be scaled.
type ScaleResult struct {
	Scaled  *expression.Matrix
	Skipped []peaks.SkippedGene
}

// Scale Z-scores each gene row across sections using the sample standard
// deviation. Zero-variance rows are dropped and reported rather than failing
// the whole matrix; if nothing survives the call fails.
func Scale(norm *expression.Matrix) (*ScaleResult, error) {
	return scaleWithLogger(norm, internal.DefaultLogger)
}

func scaleWithLogger(norm *expression.Matrix, logger *internal.Logger) (*ScaleResult, error) {
	r, c := norm.Dims()
	if c < 2 {
		return nil, core.NewStageError(core.StageScale, "",
			fmt.Errorf("%w: need at least 2 sections to scale, got %d", core.ErrInvalidInput, c))
	}
	if err := norm.ValidateFinite(core.StageScale); err != nil {
		return nil, err
	}

	kept := make([]int, 0, r)
	values := make([][]float64, 0, r)
	var skipped []peaks.SkippedGene

	for i := 0; i < r; i++ {
		row := norm.Row(i)
		mean, sd := stat.MeanStdDev(row, nil)
		if isConstant(row, mean, sd) {
			gene := norm.Gene(i)
			logger.Warn("[Scaler] excluding gene %s: constant expression across %d sections", gene, c)
			skipped = append(skipped, peaks.SkippedGene{
				Gene:    gene,
				Stage:   core.StageScale,
				Reason:  peaks.ReasonZeroVariance,
				Message: core.NewStageError(core.StageScale, gene, core.ErrZeroVariance).Error(),
			})
			continue
		}
		for j, v := range row {
			row[j] = (v - mean) / sd
		}
		kept = append(kept, i)
		values = append(values, row)
	}

	if len(kept) == 0 {
		return nil, core.NewStageError(core.StageScale, "",
			fmt.Errorf("%w: all %d genes have zero variance", core.ErrZeroVariance, r))
	}

	genes := make([]string, len(kept))
	for k, i := range kept {
		genes[k] = norm.Gene(i)
	}
	scaled, err := expression.New(genes, norm.Sections(), values)
	if err != nil {
		return nil, core.NewStageError(core.StageScale, "", err)
	}

	logger.Debug("[Scaler] scaled %d genes, skipped %d", len(kept), len(skipped))
	return &ScaleResult{Scaled: scaled, Skipped: skipped}, nil
}

func isConstant(row []float64, mean, sd float64) bool {
	if floats.Max(row) == floats.Min(row) {
		return true
	}
	if math.IsNaN(sd) || math.IsInf(sd, 0) {
		return true
	}
	return sd <= relZeroVariance*math.Max(1, math.Abs(mean))
}
