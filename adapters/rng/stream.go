// Package rng derives reproducible math/rand streams from a base seed.
package rng

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	mrand "math/rand"

	"tomoseq/domain/core"
	"tomoseq/ports"
)

// Streams implements ports.RNGPort.
type Streams struct{}

var _ ports.RNGPort = (*Streams)(nil)

// New returns the stream factory.
func New() *Streams {
	return &Streams{}
}

// Stream mixes runKey, stage and key into baseSeed. Empty parts are skipped.
func (s *Streams) Stream(ctx context.Context, runKey, stageName, key string, baseSeed int64) (*mrand.Rand, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return mrand.New(mrand.NewSource(DeriveSeed(runKey, stageName, key, baseSeed))), nil
}

// DeriveSeed is the seed Stream uses.
func DeriveSeed(runKey, stageName, key string, baseSeed int64) int64 {
	seed := uint64(baseSeed)
	for _, part := range []string{runKey, stageName, key} {
		if part == "" {
			continue
		}
		// splitmix-style step so adjacent keys ("g/1", "g/2") land far apart
		seed = mix(seed ^ core.HashString(part))
	}
	return int64(seed)
}

func mix(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// RandomSeed draws a base seed from the OS entropy source, for runs that did
// not ask for one. The value is recorded so the run can be replayed.
func RandomSeed() (int64, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, fmt.Errorf("read seed entropy: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(buf[:]) >> 1), nil
}
