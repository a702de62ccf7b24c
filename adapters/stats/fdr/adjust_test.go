package fdr

import (
	"math"
	"testing"

	"tomoseq/domain/core"
	"tomoseq/domain/peaks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBenjaminiHochberg(t *testing.T) {
	p := []float64{0.01, 0.02, 0.03, 0.5}
	q := BenjaminiHochberg(p)

	want := []float64{0.04, 0.04, 0.04, 0.5}
	require.Len(t, q, len(want))
	for i := range want {
		assert.InDelta(t, want[i], q[i], 1e-12)
		assert.GreaterOrEqual(t, q[i], p[i])
	}
	for i := 1; i < len(q); i++ {
		assert.GreaterOrEqual(t, q[i], q[i-1])
	}
	assert.Equal(t, []float64{0.01, 0.02, 0.03, 0.5}, p, "input must not be modified")
}

func TestBenjaminiHochberg_RestoresInputOrder(t *testing.T) {
	q := BenjaminiHochberg([]float64{0.5, 0.01, 0.03, 0.02})
	assert.InDelta(t, 0.5, q[0], 1e-12)
	assert.InDelta(t, 0.04, q[1], 1e-12)
	assert.InDelta(t, 0.04, q[2], 1e-12)
	assert.InDelta(t, 0.04, q[3], 1e-12)
}

func TestBenjaminiHochberg_ClipsAndHandlesEmpty(t *testing.T) {
	assert.Empty(t, BenjaminiHochberg(nil))

	q := BenjaminiHochberg([]float64{0.9, 0.8, 1})
	for _, v := range q {
		assert.LessOrEqual(t, v, 1.0)
	}
	assert.InDelta(t, 1.0, q[2], 1e-12)
}

func TestAdjust_Methods(t *testing.T) {
	p := []float64{0.01, 0.04}

	bh, err := Adjust(p, peaks.AdjustBH)
	require.NoError(t, err)
	assert.InDelta(t, 0.02, bh[0], 1e-12)
	assert.InDelta(t, 0.04, bh[1], 1e-12)

	by, err := Adjust(p, peaks.AdjustBY)
	require.NoError(t, err)
	assert.InDelta(t, 0.03, by[0], 1e-12)
	assert.InDelta(t, 0.06, by[1], 1e-12)

	bonf, err := Adjust(p, peaks.AdjustBonferroni)
	require.NoError(t, err)
	assert.InDelta(t, 0.02, bonf[0], 1e-12)
	assert.InDelta(t, 0.08, bonf[1], 1e-12)

	none, err := Adjust(p, peaks.AdjustNone)
	require.NoError(t, err)
	assert.Equal(t, p, none)

	empty, err := Adjust(nil, peaks.AdjustBH)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestAdjust_Errors(t *testing.T) {
	for _, bad := range []float64{-0.1, 1.5, math.NaN()} {
		_, err := Adjust([]float64{0.1, bad}, peaks.AdjustBH)
		assert.True(t, core.IsInvalidInput(err), "p=%v", bad)
		assert.Equal(t, core.StageAdjust, core.StageOf(err))
	}

	_, err := Adjust([]float64{0.1}, "holm")
	assert.True(t, core.IsInvalidParameter(err))
}
