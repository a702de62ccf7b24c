package ports

import (
	"context"
	"math/rand"
)

// RNGPort provides seeded random number generation for deterministic operations
type RNGPort interface {
	// Stream derives an independent stream for one unit of work (stage + key)
	// of a run. The same arguments always yield the same sequence.
	Stream(ctx context.Context, runKey, stageName, key string, baseSeed int64) (*rand.Rand, error)
}
