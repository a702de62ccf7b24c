package testkit

import (
	"context"
	"sort"
	"sync"

	"tomoseq/adapters/rng"
	"tomoseq/domain/core"
	"tomoseq/domain/expression"
	"tomoseq/domain/run"
	"tomoseq/ports"
)

// TestKit provides testing utilities and fixtures
type TestKit struct {
	repository *InMemoryRunRepository
	streams    *rng.Streams
}

// NewTestKit creates a new test kit instance with an empty in-memory store
func NewTestKit() *TestKit {
	return &TestKit{
		repository: NewInMemoryRunRepository(),
		streams:    rng.New(),
	}
}

// Repository returns the shared in-memory run store.
func (k *TestKit) Repository() *InMemoryRunRepository {
	return k.repository
}

// RNG returns the seeded stream factory.
func (k *TestKit) RNG() ports.RNGPort {
	return k.streams
}

// ScenarioGenes and ScenarioCounts form the 5 x 10 reference scenario: G1
// peaks over sections 3-6, the other genes are flat noise between 1 and 3.
var (
	ScenarioGenes    = []string{"G1", "G2", "G3", "G4", "G5"}
	ScenarioSections = []string{"S01", "S02", "S03", "S04", "S05", "S06", "S07", "S08", "S09", "S10"}
	ScenarioCounts   = [][]float64{
		{1, 1, 50, 52, 49, 51, 1, 1, 1, 1},
		{2, 1, 3, 2, 2, 1, 3, 2, 1, 2},
		{1, 2, 2, 3, 1, 2, 1, 3, 2, 2},
		{3, 2, 1, 2, 3, 1, 2, 2, 3, 1},
		{2, 3, 2, 1, 2, 3, 1, 2, 2, 3},
	}
)

// ScenarioMatrix builds the reference scenario matrix.
func ScenarioMatrix() *expression.Matrix {
	m, err := expression.New(ScenarioGenes, ScenarioSections, ScenarioCounts)
	if err != nil {
		panic(err)
	}
	return m
}

// InMemoryRunRepository implements ports.PeakRunRepository with in-memory storage
type InMemoryRunRepository struct {
	records map[core.RunID]*run.Record
	mu      sync.RWMutex
}

var _ ports.PeakRunRepository = (*InMemoryRunRepository)(nil)

func NewInMemoryRunRepository() *InMemoryRunRepository {
	return &InMemoryRunRepository{records: make(map[core.RunID]*run.Record)}
}

func (s *InMemoryRunRepository) SaveRun(ctx context.Context, rec *run.Record) error {
	if rec == nil || rec.Manifest == nil {
		return core.NewStageError(core.StageValidate, "", core.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.Manifest.RunID] = rec
	return nil
}

func (s *InMemoryRunRepository) GetRun(ctx context.Context, id core.RunID) (*run.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, core.NewNotFoundError("run", id.String())
	}
	return rec, nil
}

func (s *InMemoryRunRepository) ListRuns(ctx context.Context, limit int) ([]run.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]run.Summary, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec.Summarize())
	}
	// newest first; v7 run IDs sort by creation time
	sort.Slice(out, func(i, j int) bool { return out[i].RunID > out[j].RunID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
