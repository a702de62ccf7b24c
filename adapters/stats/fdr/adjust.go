// Package fdr adjusts a family of p-values for multiple testing.
package fdr

import (
	"fmt"
	"math"
	"sort"

	"tomoseq/domain/core"
	"tomoseq/domain/peaks"
)

// Adjust applies method to p and returns the adjusted values in input order.
// p is not modified.
func Adjust(p []float64, method peaks.AdjustMethod) ([]float64, error) {
	for i, v := range p {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return nil, core.NewStageError(core.StageAdjust, "",
				fmt.Errorf("%w: p-value %v at position %d outside [0, 1]", core.ErrInvalidInput, v, i))
		}
	}

	switch method {
	case peaks.AdjustBH, "":
		return BenjaminiHochberg(p), nil
	case peaks.AdjustBY:
		return BenjaminiYekutieli(p), nil
	case peaks.AdjustBonferroni:
		return Bonferroni(p), nil
	case peaks.AdjustNone:
		out := make([]float64, len(p))
		copy(out, p)
		return out, nil
	default:
		return nil, core.NewParameterError("adjust_method", method, "must be BH, BY, bonferroni or none")
	}
}

// BenjaminiHochberg returns step-up adjusted p-values:
// q_(i) = min over j >= i of p_(j) * m / j, clipped to 1.
func BenjaminiHochberg(p []float64) []float64 {
	return stepUp(p, 1)
}

// BenjaminiYekutieli is BH scaled by the harmonic sum over m tests, valid
// under arbitrary dependence.
func BenjaminiYekutieli(p []float64) []float64 {
	c := 0.0
	for k := 1; k <= len(p); k++ {
		c += 1 / float64(k)
	}
	return stepUp(p, c)
}

// Bonferroni multiplies each p-value by the family size.
func Bonferroni(p []float64) []float64 {
	m := float64(len(p))
	out := make([]float64, len(p))
	for i, v := range p {
		out[i] = math.Min(1, v*m)
	}
	return out
}

func stepUp(p []float64, scale float64) []float64 {
	n := len(p)
	out := make([]float64, n)
	if n == 0 {
		return out
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return p[idx[a]] < p[idx[b]]
	})

	running := 1.0
	for i := n - 1; i >= 0; i-- {
		q := p[idx[i]] * scale * float64(n) / float64(i+1)
		if q < running {
			running = q
		}
		out[idx[i]] = math.Max(0, running)
	}
	return out
}
