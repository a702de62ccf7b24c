// Package runs finds contiguous stretches of sections where a scaled gene
// vector stays strictly above a threshold.
package runs

import (
	"fmt"
	"math"

	"tomoseq/domain/core"
)

// Run is a maximal qualifying range. Start, End and Center are 1-based and
// inclusive. Statistic is the sum of (value - threshold) over the run.
type Run struct {
	Start     int     `json:"start"`
	End       int     `json:"end"`
	Center    int     `json:"center"`
	Statistic float64 `json:"statistic"`
}

// Length returns the number of sections in the run.
func (r Run) Length() int {
	return r.End - r.Start + 1
}

// Detector holds the run criteria and a scratch-free scan. It is safe for
// concurrent use.
type Detector struct {
	Threshold float64
	MinLength int
}

// NewDetector validates the criteria.
func NewDetector(threshold float64, minLength int) (*Detector, error) {
	if math.IsNaN(threshold) || math.IsInf(threshold, 0) {
		return nil, core.NewParameterError("threshold", threshold, "must be finite")
	}
	if minLength < 1 {
		return nil, core.NewParameterError("min_length", minLength, "must be a positive integer")
	}
	return &Detector{Threshold: threshold, MinLength: minLength}, nil
}

// FindRuns returns every qualifying run of row in section order.
func FindRuns(row []float64, threshold float64, minLength int) ([]Run, error) {
	d, err := NewDetector(threshold, minLength)
	if err != nil {
		return nil, err
	}
	if err := CheckFinite(row); err != nil {
		return nil, err
	}
	var out []Run
	d.scan(row, func(r Run) { out = append(out, r) })
	return out, nil
}

// BestRun returns the run with the largest statistic; ties go to the earliest.
func BestRun(row []float64, threshold float64, minLength int) (Run, bool, error) {
	d, err := NewDetector(threshold, minLength)
	if err != nil {
		return Run{}, false, err
	}
	if err := CheckFinite(row); err != nil {
		return Run{}, false, err
	}
	best, ok := d.Best(row)
	return best, ok, nil
}

// CheckFinite fails when row holds no finite value at all.
func CheckFinite(row []float64) error {
	for _, v := range row {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			return nil
		}
	}
	return fmt.Errorf("%w: vector of length %d has no finite values", core.ErrInvalidInput, len(row))
}

// Best returns the best run of row without validating it. This is the hot
// path of the permutation test.
func (d *Detector) Best(row []float64) (Run, bool) {
	var best Run
	found := false
	d.scan(row, func(r Run) {
		if !found || r.Statistic > best.Statistic {
			best = r
			found = true
		}
	})
	return best, found
}

// BestStatistic returns the best run statistic, or 0 when no run qualifies.
func (d *Detector) BestStatistic(row []float64) float64 {
	best, ok := d.Best(row)
	if !ok {
		return 0
	}
	return best.Statistic
}

// scan walks row once. A value belongs to a run only when it is strictly
// greater than the threshold; NaN never does.
func (d *Detector) scan(row []float64, emit func(Run)) {
	if d.MinLength > len(row) {
		return
	}

	start := -1
	var sum, peak float64
	peakAt := -1

	closeRun := func(end int) {
		if end-start+1 >= d.MinLength {
			emit(Run{Start: start + 1, End: end + 1, Center: peakAt + 1, Statistic: sum})
		}
		start = -1
	}

	for i, v := range row {
		if v > d.Threshold {
			if start < 0 {
				start = i
				sum = 0
				peak = v
				peakAt = i
			} else if v > peak {
				peak = v
				peakAt = i
			}
			sum += v - d.Threshold
			continue
		}
		if start >= 0 {
			closeRun(i - 1)
		}
	}
	if start >= 0 {
		closeRun(len(row) - 1)
	}
}
