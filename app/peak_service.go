package app

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"tomoseq/adapters/battery"
	"tomoseq/adapters/rng"
	"tomoseq/adapters/stats/fdr"
	"tomoseq/adapters/stats/runs"
	"tomoseq/adapters/stats/transform"
	"tomoseq/domain/core"
	"tomoseq/domain/expression"
	"tomoseq/domain/peaks"
	"tomoseq/domain/run"
	"tomoseq/internal"
	"tomoseq/ports"

	"golang.org/x/sync/errgroup"
)

// PeakService runs the full peak-gene pipeline: filter, normalize, scale,
// detect, permute, adjust.
type PeakService struct {
	rngPort    ports.RNGPort
	repository ports.PeakRunRepository
	observer   ports.RunObserver
	logger     *internal.Logger
}

// NewPeakService creates a peak service. repository may be nil, in which case
// results are returned but not stored.
func NewPeakService(rngPort ports.RNGPort, repository ports.PeakRunRepository) *PeakService {
	if rngPort == nil {
		rngPort = rng.New()
	}
	return &PeakService{
		rngPort:    rngPort,
		repository: repository,
		logger:     internal.DefaultLogger,
	}
}

// WithLogger overrides the service logger.
func (s *PeakService) WithLogger(logger *internal.Logger) *PeakService {
	s.logger = logger
	return s
}

// WithObserver reports run events to observer.
func (s *PeakService) WithObserver(observer ports.RunObserver) *PeakService {
	s.observer = observer
	return s
}

func (s *PeakService) emit(runID core.RunID, eventType string, done, total int, message string) {
	if s.observer == nil {
		return
	}
	s.observer.ObserveRun(ports.RunEvent{
		RunID:     runID,
		Type:      eventType,
		Done:      done,
		Total:     total,
		Message:   message,
		Timestamp: core.Now(),
	})
}

// PeakRequest defines the inputs of one run.
type PeakRequest struct {
	Matrix *expression.Matrix
	Params peaks.Params
	RunID  core.RunID // optional, will be generated if empty
}

// PeakResult contains the complete output of a run.
type PeakResult struct {
	RunID      core.RunID             `json:"run_id"`
	Manifest   *run.Manifest          `json:"manifest"`
	Table      *peaks.Table           `json:"peaks"`
	Skipped    []peaks.SkippedGene    `json:"skipped"`
	Experiment *expression.Experiment `json:"-"`
	RuntimeMs  int64                  `json:"runtime_ms"`
}

// Record converts the result to its stored form.
func (r *PeakResult) Record() *run.Record {
	return &run.Record{
		Manifest: r.Manifest,
		Peaks:    r.Table.Rows,
		Skipped:  r.Skipped,
	}
}

// geneOutcome is the slot one worker fills for one scaled gene.
type geneOutcome struct {
	row  *peaks.Row
	skip *peaks.SkippedGene
}

// FindPeakGenes executes the pipeline. Errors in the whole-matrix stages
// abort the call; problems with a single gene are reported in Skipped.
func (s *PeakService) FindPeakGenes(ctx context.Context, req PeakRequest) (*PeakResult, error) {
	if req.RunID == "" {
		req.RunID = core.NewRunID()
	}
	result, err := s.findPeakGenes(ctx, req)
	if err != nil {
		s.emit(req.RunID, ports.RunFailed, 0, 0, err.Error())
		return nil, err
	}
	s.emit(req.RunID, ports.RunCompleted, result.Table.Len(), result.Manifest.Genes,
		fmt.Sprintf("%d peak genes, %d skipped", result.Table.Len(), len(result.Skipped)))
	return result, nil
}

func (s *PeakService) findPeakGenes(ctx context.Context, req PeakRequest) (*PeakResult, error) {
	startTime := time.Now()
	params := req.Params
	runID := req.RunID

	if err := params.Validate(); err != nil {
		return nil, err
	}
	if req.Matrix == nil {
		return nil, core.NewStageError(core.StageValidate, "", fmt.Errorf("%w: no matrix", core.ErrEmptyMatrix))
	}

	experiment, err := expression.NewExperiment(req.Matrix)
	if err != nil {
		return nil, err
	}

	seed, err := resolveSeed(params)
	if err != nil {
		return nil, err
	}
	nGenes, nSections := req.Matrix.Dims()
	manifest := run.NewManifest(runID, req.Matrix.Fingerprint(), nGenes, nSections, params, seed)

	s.logger.Info("[PeakService] run %s: %d genes x %d sections, seed=%d, permutations=%d, input=%s",
		runID, nGenes, nSections, seed, params.Permutations, manifest.InputHash.Short())

	filtered, err := transform.FilterGenes(req.Matrix, params.MinCount, params.MinSections)
	if err != nil {
		return nil, err
	}
	skipped := append([]peaks.SkippedGene(nil), filtered.Skipped...)

	normalized, err := transform.Normalize(filtered.Counts, params.NormalizeMethod)
	if err != nil {
		return nil, err
	}
	if err := experiment.SetLayer(expression.LayerNormalized, normalized); err != nil {
		return nil, err
	}

	scaled, err := transform.Scale(normalized)
	if err != nil {
		return nil, err
	}
	if err := experiment.SetLayer(expression.LayerScaled, scaled.Scaled); err != nil {
		return nil, err
	}
	skipped = append(skipped, scaled.Skipped...)

	outcomes, err := s.testGenes(ctx, runID, scaled.Scaled, params, seed)
	if err != nil {
		return nil, fmt.Errorf("peak detection for run %s aborted: %w", runID, err)
	}

	rows := make([]peaks.Row, 0, len(outcomes))
	for _, o := range outcomes {
		switch {
		case o.row != nil:
			rows = append(rows, *o.row)
		case o.skip != nil:
			skipped = append(skipped, *o.skip)
		}
	}

	pvals := make([]float64, len(rows))
	for i, r := range rows {
		pvals[i] = r.PValue
	}
	adjusted, err := fdr.Adjust(pvals, params.AdjustMethod)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].AdjustedPValue = adjusted[i]
	}

	table := peaks.NewTable(rows)
	table.FilterAdjusted(params.MaxAdjustedP)
	table.SortBy(params.SortBy)

	result := &PeakResult{
		RunID:      runID,
		Manifest:   manifest,
		Table:      table,
		Skipped:    skipped,
		Experiment: experiment,
		RuntimeMs:  time.Since(startTime).Milliseconds(),
	}

	s.logger.Info("[PeakService] run %s: %d peak genes, %d skipped, %dms",
		runID, table.Len(), len(skipped), result.RuntimeMs)

	if s.repository != nil {
		if err := s.repository.SaveRun(ctx, result.Record()); err != nil {
			return nil, fmt.Errorf("failed to store run %s: %w", runID, err)
		}
	}
	return result, nil
}

// testGenes fans out one task per gene. Each task writes only its own slot,
// so the merge keeps input order without locking.
func (s *PeakService) testGenes(ctx context.Context, runID core.RunID, scaled *expression.Matrix, params peaks.Params, seed int64) ([]geneOutcome, error) {
	detector, err := runs.NewDetector(params.Threshold, params.MinLength)
	if err != nil {
		return nil, err
	}
	tester := battery.NewPermutationTester(s.rngPort, seed,
		battery.WithBlockSize(params.BlockSize),
		battery.WithWorkers(params.PermutationWorkers),
		battery.WithNullSummary(params.KeepNull),
		battery.WithLogger(s.logger),
	)

	nGenes, _ := scaled.Dims()
	outcomes := make([]geneOutcome, nGenes)

	s.emit(runID, ports.RunStarted, 0, nGenes, "")
	var done atomic.Int64
	step := max(1, nGenes/100)
	progress := func() {
		if n := int(done.Add(1)); n%step == 0 || n == nGenes {
			s.emit(runID, ports.RunProgress, n, nGenes, "")
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(params.Workers)
	for i := 0; i < nGenes; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			defer progress()
			gene := scaled.Gene(i)
			row := scaled.Row(i)

			if err := runs.CheckFinite(row); err != nil {
				outcomes[i].skip = &peaks.SkippedGene{
					Gene:    gene,
					Stage:   core.StageDetect,
					Reason:  peaks.ReasonNoFiniteValues,
					Message: core.NewStageError(core.StageDetect, gene, err).Error(),
				}
				return nil
			}

			best, ok := detector.Best(row)
			if !ok {
				return nil
			}

			res, err := tester.Test(gctx, gene, row, best.Statistic, params.Threshold, params.MinLength, params.Permutations)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				s.logger.Warn("[PeakService] permutation test failed for %s: %v", gene, err)
				outcomes[i].skip = &peaks.SkippedGene{
					Gene:    gene,
					Stage:   core.StagePermute,
					Reason:  peaks.ReasonTestFailed,
					Message: err.Error(),
				}
				return nil
			}

			outcomes[i].row = &peaks.Row{
				Candidate: peaks.Candidate{
					Gene:      gene,
					Start:     best.Start,
					End:       best.End,
					Center:    best.Center,
					Statistic: best.Statistic,
				},
				PValue: res.PValue,
				Null:   res.Null,
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

func resolveSeed(params peaks.Params) (int64, error) {
	if params.Seed != nil {
		return *params.Seed, nil
	}
	return rng.RandomSeed()
}
