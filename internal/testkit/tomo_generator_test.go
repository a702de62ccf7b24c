package testkit

import (
	"context"
	"testing"

	"tomoseq/domain/core"
	"tomoseq/domain/peaks"
	"tomoseq/domain/run"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTomoDataGenerator_Deterministic(t *testing.T) {
	a, err := NewTomoDataGenerator(DefaultTomoConfig()).Generate()
	require.NoError(t, err)
	b, err := NewTomoDataGenerator(DefaultTomoConfig()).Generate()
	require.NoError(t, err)

	assert.Equal(t, a.Counts.Fingerprint(), b.Counts.Fingerprint())
	assert.Equal(t, a.Peaks, b.Peaks)
}

func TestTomoDataGenerator_PlantsPeaks(t *testing.T) {
	cfg := DefaultTomoConfig()
	ds, err := NewTomoDataGenerator(cfg).Generate()
	require.NoError(t, err)

	r, c := ds.Counts.Dims()
	assert.Equal(t, cfg.GeneCount, r)
	assert.Equal(t, cfg.SectionCount, c)
	require.Len(t, ds.Peaks, cfg.PeakGenes)

	assert.Equal(t, 1, ds.Peaks[0].Start)
	assert.Equal(t, cfg.SectionCount, ds.Peaks[len(ds.Peaks)-1].End)

	for _, p := range ds.Peaks {
		assert.Equal(t, cfg.PeakWidth, p.End-p.Start+1)
		i, ok := ds.Counts.GeneIndex(p.Gene)
		require.True(t, ok)
		for s := p.Start; s <= p.End; s++ {
			assert.GreaterOrEqual(t, ds.Counts.At(i, s-1), float64(cfg.BaseMax))
		}
	}
}

func TestTomoDataGenerator_RejectsBadConfig(t *testing.T) {
	cfg := DefaultTomoConfig()
	cfg.PeakGenes = cfg.GeneCount + 1
	_, err := NewTomoDataGenerator(cfg).Generate()
	assert.Error(t, err)

	cfg = DefaultTomoConfig()
	cfg.PeakWidth = 0
	_, err = NewTomoDataGenerator(cfg).Generate()
	assert.Error(t, err)
}

func TestInMemoryRunRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewTestKit().Repository()

	manifest := run.NewManifest(core.NewRunID(), ScenarioMatrix().Fingerprint(), 5, 10, peaks.DefaultParams(), 42)
	rec := &run.Record{
		Manifest: manifest,
		Peaks:    []peaks.Row{{Candidate: peaks.Candidate{Gene: "G1", Start: 3, End: 6, Center: 4}}},
	}
	require.NoError(t, repo.SaveRun(ctx, rec))

	got, err := repo.GetRun(ctx, manifest.RunID)
	require.NoError(t, err)
	assert.Same(t, rec, got)

	list, err := repo.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 1, list[0].PeakCount)

	_, err = repo.GetRun(ctx, core.NewRunID())
	assert.True(t, core.IsNotFoundError(err))
}
