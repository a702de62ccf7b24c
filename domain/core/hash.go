package core

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash/fnv"
	"math"
	"sort"
	"strings"
)

// Hash represents a cryptographic hash
type Hash string

// NewHash creates a new hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// IsEmpty checks if the hash is empty
func (h Hash) IsEmpty() bool {
	return h == ""
}

// Short returns the first 12 hex characters, for log lines.
func (h Hash) Short() string {
	if len(h) <= 12 {
		return string(h)
	}
	return string(h[:12])
}

// ComputeMatrixHash fingerprints labels and values of a matrix in row-major
// order. Values are hashed by their IEEE-754 bits, so any change is detected.
func ComputeMatrixHash(genes, sections []string, rowMajor []float64) Hash {
	h := sha256.New()
	for _, g := range genes {
		h.Write([]byte(g))
		h.Write([]byte{0})
	}
	h.Write([]byte{1})
	for _, s := range sections {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}
	var buf [8]byte
	for _, v := range rowMajor {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		h.Write(buf[:])
	}
	return Hash(hex.EncodeToString(h.Sum(nil)))
}

// ComputeParamsHash fingerprints a flat parameter map independent of key order
func ComputeParamsHash(params map[string]string) Hash {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var data strings.Builder
	for _, key := range keys {
		data.WriteString(key)
		data.WriteString("=")
		data.WriteString(params[key])
		data.WriteString(";")
	}
	return NewHash([]byte(data.String()))
}

// HashString returns a 64-bit FNV-1a hash of s
func HashString(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}
