package peaks

import (
	"math"
	"runtime"
	"strconv"

	"tomoseq/domain/core"
)

// NormalizeMethod selects the library-size normalization.
type NormalizeMethod string

const (
	NormalizeMedian NormalizeMethod = "median"
	NormalizeCPM    NormalizeMethod = "cpm"
)

// AdjustMethod selects the multiple-testing correction.
type AdjustMethod string

const (
	AdjustBH         AdjustMethod = "BH"
	AdjustBY         AdjustMethod = "BY"
	AdjustBonferroni AdjustMethod = "bonferroni"
	AdjustNone       AdjustMethod = "none"
)

// SortKey selects the output row order.
type SortKey string

const (
	SortInput  SortKey = "input"
	SortStart  SortKey = "start"
	SortCenter SortKey = "center"
	SortPValue SortKey = "p_value"
)

// Defaults
const (
	DefaultThreshold    = 1.0
	DefaultMinLength    = 4
	DefaultPermutations = 100000
	DefaultBlockSize    = 1024
	DefaultMinSections  = 1
)

// Params is the explicit configuration consumed by every core call.
type Params struct {
	Threshold       float64         `json:"threshold"`
	MinLength       int             `json:"min_length"`
	Permutations    int             `json:"n_permutations"`
	NormalizeMethod NormalizeMethod `json:"normalize_method"`
	AdjustMethod    AdjustMethod    `json:"adjust_method"`
	Seed            *int64          `json:"rng_seed,omitempty"`

	// Gene pre-filter: keep genes with count > MinCount in >= MinSections sections.
	MinCount    float64 `json:"min_count"`
	MinSections int     `json:"min_sections"`

	// Execution
	Workers            int `json:"workers"`
	PermutationWorkers int `json:"permutation_workers"`
	BlockSize          int `json:"block_size"`

	// Output shaping
	SortBy       SortKey `json:"sort_by"`
	MaxAdjustedP float64 `json:"max_adjusted_p"`
	KeepNull     bool    `json:"keep_null"`
}

// DefaultParams returns the documented defaults.
func DefaultParams() Params {
	return Params{
		Threshold:          DefaultThreshold,
		MinLength:          DefaultMinLength,
		Permutations:       DefaultPermutations,
		NormalizeMethod:    NormalizeMedian,
		AdjustMethod:       AdjustBH,
		MinCount:           0,
		MinSections:        DefaultMinSections,
		Workers:            runtime.NumCPU(),
		PermutationWorkers: 1,
		BlockSize:          DefaultBlockSize,
		SortBy:             SortInput,
		MaxAdjustedP:       1,
	}
}

// WithSeed returns a copy of p with a fixed RNG seed.
func (p Params) WithSeed(seed int64) Params {
	p.Seed = &seed
	return p
}

// Clone returns a copy of p that shares no pointers with it.
func (p Params) Clone() Params {
	if p.Seed != nil {
		seed := *p.Seed
		p.Seed = &seed
	}
	return p
}

// Validate checks every parameter domain.
func (p Params) Validate() error {
	if math.IsNaN(p.Threshold) || math.IsInf(p.Threshold, 0) {
		return core.NewParameterError("threshold", p.Threshold, "must be finite")
	}
	if p.MinLength < 1 {
		return core.NewParameterError("min_length", p.MinLength, "must be a positive integer")
	}
	if p.Permutations < 1 {
		return core.NewParameterError("n_permutations", p.Permutations, "must be a positive integer")
	}
	switch p.NormalizeMethod {
	case NormalizeMedian, NormalizeCPM:
	default:
		return core.NewParameterError("normalize_method", p.NormalizeMethod, "must be median or cpm")
	}
	switch p.AdjustMethod {
	case AdjustBH, AdjustBY, AdjustBonferroni, AdjustNone:
	default:
		return core.NewParameterError("adjust_method", p.AdjustMethod, "must be BH, BY, bonferroni or none")
	}
	if p.MinCount < 0 || math.IsNaN(p.MinCount) {
		return core.NewParameterError("min_count", p.MinCount, "must be non-negative")
	}
	if p.MinSections < 0 {
		return core.NewParameterError("min_sections", p.MinSections, "must be non-negative")
	}
	if p.Workers < 1 {
		return core.NewParameterError("workers", p.Workers, "must be a positive integer")
	}
	if p.PermutationWorkers < 1 {
		return core.NewParameterError("permutation_workers", p.PermutationWorkers, "must be a positive integer")
	}
	if p.BlockSize < 1 {
		return core.NewParameterError("block_size", p.BlockSize, "must be a positive integer")
	}
	switch p.SortBy {
	case SortInput, SortStart, SortCenter, SortPValue:
	default:
		return core.NewParameterError("sort_by", p.SortBy, "must be input, start, center or p_value")
	}
	if !(p.MaxAdjustedP > 0 && p.MaxAdjustedP <= 1) {
		return core.NewParameterError("max_adjusted_p", p.MaxAdjustedP, "must be in (0, 1]")
	}
	return nil
}

// Fingerprint flattens the parameters that affect results. Worker counts are
// left out: results do not depend on them.
func (p Params) Fingerprint() map[string]string {
	seed := "none"
	if p.Seed != nil {
		seed = strconv.FormatInt(*p.Seed, 10)
	}
	return map[string]string{
		"threshold":        strconv.FormatFloat(p.Threshold, 'g', -1, 64),
		"min_length":       strconv.Itoa(p.MinLength),
		"n_permutations":   strconv.Itoa(p.Permutations),
		"normalize_method": string(p.NormalizeMethod),
		"adjust_method":    string(p.AdjustMethod),
		"rng_seed":         seed,
		"min_count":        strconv.FormatFloat(p.MinCount, 'g', -1, 64),
		"min_sections":     strconv.Itoa(p.MinSections),
		"block_size":       strconv.Itoa(p.BlockSize),
	}
}
