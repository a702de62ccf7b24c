package battery

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"tomoseq/adapters/rng"
	"tomoseq/adapters/stats/runs"
	"tomoseq/domain/core"
	"tomoseq/domain/peaks"
	"tomoseq/internal"
	"tomoseq/ports"

	"github.com/montanaflynn/stats"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// StagePermutation is the stage name mixed into every permutation stream.
const StagePermutation = "permutation"

// PermutationTester estimates how often a shuffled section order produces a
// run at least as strong as the observed one.
type PermutationTester struct {
	rngPort   ports.RNGPort
	seed      int64
	runKey    string
	blockSize int
	workers   int
	keepNull  bool
	blockSem  *semaphore.Weighted
	logger    *internal.Logger
}

// Option configures a PermutationTester.
type Option func(*PermutationTester)

// WithBlockSize sets how many permutations share one RNG stream.
func WithBlockSize(n int) Option {
	return func(pt *PermutationTester) {
		if n > 0 {
			pt.blockSize = n
		}
	}
}

// WithWorkers lets the blocks of one gene run concurrently. The limit is
// shared by every gene tested through the same tester.
func WithWorkers(n int) Option {
	return func(pt *PermutationTester) {
		if n > 0 {
			pt.workers = n
		}
	}
}

// WithRunKey namespaces the RNG streams.
func WithRunKey(key string) Option {
	return func(pt *PermutationTester) {
		pt.runKey = key
	}
}

// WithNullSummary keeps the null statistics so a summary can be reported.
func WithNullSummary(keep bool) Option {
	return func(pt *PermutationTester) {
		pt.keepNull = keep
	}
}

// WithLogger overrides the default logger.
func WithLogger(logger *internal.Logger) Option {
	return func(pt *PermutationTester) {
		if logger != nil {
			pt.logger = logger
		}
	}
}

// NewPermutationTester creates a tester drawing every stream from seed.
func NewPermutationTester(rngPort ports.RNGPort, seed int64, opts ...Option) *PermutationTester {
	pt := &PermutationTester{
		rngPort:   rngPort,
		seed:      seed,
		blockSize: peaks.DefaultBlockSize,
		workers:   1,
		logger:    internal.DefaultLogger,
	}
	for _, opt := range opts {
		opt(pt)
	}
	pt.blockSem = semaphore.NewWeighted(int64(pt.workers))
	return pt
}

// Seed returns the base seed.
func (pt *PermutationTester) Seed() int64 {
	return pt.seed
}

// PermutationResult is the outcome for one gene.
type PermutationResult struct {
	PValue       float64
	Exceedances  int
	Permutations int
	Null         *peaks.NullSummary
}

// PValue returns only the permutation p-value.
func (pt *PermutationTester) PValue(ctx context.Context, gene string, row []float64, observed, threshold float64, minLength, nPerm int) (float64, error) {
	res, err := pt.Test(ctx, gene, row, observed, threshold, minLength, nPerm)
	if err != nil {
		return 0, err
	}
	return res.PValue, nil
}

// Test runs nPerm shuffles of row. Each null value is the best run statistic
// of the shuffled row, or 0 when nothing qualifies. The p-value is
// (1 + #{null >= observed}) / (nPerm + 1); the comparison tolerates rounding
// so that a reordering of the observed run counts as an exceedance.
func (pt *PermutationTester) Test(ctx context.Context, gene string, row []float64, observed, threshold float64, minLength, nPerm int) (*PermutationResult, error) {
	if nPerm < 1 {
		return nil, core.NewParameterError("n_permutations", nPerm, "must be a positive integer")
	}
	if math.IsNaN(observed) || math.IsInf(observed, 0) {
		return nil, core.NewStageError(core.StagePermute, gene,
			fmt.Errorf("%w: observed statistic %v", core.ErrInvalidInput, observed))
	}
	detector, err := runs.NewDetector(threshold, minLength)
	if err != nil {
		return nil, err
	}
	if err := runs.CheckFinite(row); err != nil {
		return nil, core.NewStageError(core.StagePermute, gene, err)
	}

	cutoff := observed - 1e-12*math.Max(1, math.Abs(observed))
	nBlocks := (nPerm + pt.blockSize - 1) / pt.blockSize
	exceed := make([]int, nBlocks)
	var null []float64
	if pt.keepNull {
		null = make([]float64, nPerm)
	}

	runBlock := func(ctx context.Context, b int) error {
		lo := b * pt.blockSize
		hi := min(lo+pt.blockSize, nPerm)
		r, err := pt.rngPort.Stream(ctx, pt.runKey, StagePermutation, gene+"/"+strconv.Itoa(b), pt.seed)
		if err != nil {
			return err
		}

		shuffled := make([]float64, len(row))
		copy(shuffled, row)
		count := 0
		for k := lo; k < hi; k++ {
			r.Shuffle(len(shuffled), func(i, j int) {
				shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
			})
			s := detector.BestStatistic(shuffled)
			if s >= cutoff {
				count++
			}
			if null != nil {
				null[k] = s
			}
		}
		exceed[b] = count
		return nil
	}

	if pt.workers <= 1 || nBlocks == 1 {
		for b := 0; b < nBlocks; b++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if err := runBlock(ctx, b); err != nil {
				return nil, err
			}
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		for b := 0; b < nBlocks; b++ {
			if err := pt.blockSem.Acquire(gctx, 1); err != nil {
				break
			}
			g.Go(func() error {
				defer pt.blockSem.Release(1)
				if err := gctx.Err(); err != nil {
					return err
				}
				return runBlock(gctx, b)
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	total := 0
	for _, c := range exceed {
		total += c
	}
	res := &PermutationResult{
		PValue:       float64(1+total) / float64(nPerm+1),
		Exceedances:  total,
		Permutations: nPerm,
	}
	if null != nil {
		res.Null = summarizeNull(null, total)
	}

	pt.logger.Trace("[PermutationTester] %s: %d/%d exceedances, p=%.6g", gene, total, nPerm, res.PValue)
	return res, nil
}

func summarizeNull(null []float64, exceedances int) *peaks.NullSummary {
	summary := &peaks.NullSummary{Permutations: len(null), Exceedances: exceedances}
	data := stats.Float64Data(null)
	if mean, err := data.Mean(); err == nil {
		summary.Mean = mean
	}
	if p95, err := data.Percentile(95); err == nil {
		summary.Percentile95 = p95
	}
	if top, err := data.Max(); err == nil {
		summary.Max = top
	}
	return summary
}

// PermutationPValue is the stand-alone form of Test. A nil seed draws one
// from the OS entropy source.
func PermutationPValue(row []float64, observed, threshold float64, minLength, nPerm int, seed *int64) (float64, error) {
	var base int64
	if seed != nil {
		base = *seed
	} else {
		s, err := rng.RandomSeed()
		if err != nil {
			return 0, err
		}
		base = s
	}
	pt := NewPermutationTester(rng.New(), base)
	return pt.PValue(context.Background(), "", row, observed, threshold, minLength, nPerm)
}
