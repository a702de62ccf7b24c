package transform

import (
	"fmt"

	"tomoseq/domain/core"
	"tomoseq/domain/expression"
	"tomoseq/domain/peaks"
)

// FilterResult is the count matrix restricted to sufficiently expressed genes.
type FilterResult struct {
	Counts  *expression.Matrix
	Skipped []peaks.SkippedGene
}

// FilterGenes keeps genes whose count exceeds minCount in at least
// minSections sections. minSections == 0 keeps every gene.
func FilterGenes(raw *expression.Matrix, minCount float64, minSections int) (*FilterResult, error) {
	if minSections < 0 {
		return nil, core.NewParameterError("min_sections", minSections, "must be non-negative")
	}
	if minCount < 0 {
		return nil, core.NewParameterError("min_count", minCount, "must be non-negative")
	}
	if minSections == 0 {
		return &FilterResult{Counts: raw}, nil
	}

	r, _ := raw.Dims()
	kept := make([]int, 0, r)
	var skipped []peaks.SkippedGene
	for i := 0; i < r; i++ {
		expressed := 0
		for _, v := range raw.Row(i) {
			if v > minCount {
				expressed++
			}
		}
		if expressed >= minSections {
			kept = append(kept, i)
			continue
		}
		skipped = append(skipped, peaks.SkippedGene{
			Gene:    raw.Gene(i),
			Stage:   core.StageFilter,
			Reason:  peaks.ReasonLowExpression,
			Message: fmt.Sprintf("count > %g in %d sections, need %d", minCount, expressed, minSections),
		})
	}

	if len(kept) == 0 {
		return nil, core.NewStageError(core.StageFilter, "",
			fmt.Errorf("%w: no gene passes count > %g in %d sections", core.ErrEmptyMatrix, minCount, minSections))
	}
	if len(kept) == r {
		return &FilterResult{Counts: raw}, nil
	}

	counts, err := raw.SelectRows(kept)
	if err != nil {
		return nil, core.NewStageError(core.StageFilter, "", err)
	}
	return &FilterResult{Counts: counts, Skipped: skipped}, nil
}
