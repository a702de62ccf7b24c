package rng

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func draw(t *testing.T, s *Streams, runKey, stage, key string, seed int64) []int64 {
	t.Helper()
	r, err := s.Stream(context.Background(), runKey, stage, key, seed)
	require.NoError(t, err)
	out := make([]int64, 8)
	for i := range out {
		out[i] = r.Int63()
	}
	return out
}

func TestStream_Deterministic(t *testing.T) {
	s := New()
	a := draw(t, s, "", "permutation", "G1/0", 42)
	b := draw(t, s, "", "permutation", "G1/0", 42)
	assert.Equal(t, a, b)
}

func TestStream_KeysSeparateStreams(t *testing.T) {
	s := New()
	base := draw(t, s, "", "permutation", "G1/0", 42)

	assert.NotEqual(t, base, draw(t, s, "", "permutation", "G1/1", 42))
	assert.NotEqual(t, base, draw(t, s, "", "permutation", "G2/0", 42))
	assert.NotEqual(t, base, draw(t, s, "", "permutation", "G1/0", 43))
	assert.NotEqual(t, base, draw(t, s, "run-a", "permutation", "G1/0", 42))
}

func TestStream_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().Stream(ctx, "", "permutation", "G1/0", 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRandomSeed(t *testing.T) {
	seed, err := RandomSeed()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, seed, int64(0))
}
