package run

import (
	"crypto/sha256"
	"fmt"

	"tomoseq/domain/core"
)

// CodeVersion is stamped on every manifest. Bump it when a change alters
// results for identical inputs.
const CodeVersion = "tomoseq/1"

// RunFingerprint ensures deterministic replay
type RunFingerprint struct {
	InputHash   core.Hash `json:"input_hash"`
	ParamsHash  core.Hash `json:"params_hash"`
	Seed        int64     `json:"seed"`
	CodeVersion string    `json:"code_version"`
	Fingerprint core.Hash `json:"fingerprint"` // Hash of all above
}

// NewRunFingerprint creates a fingerprint from determinism parameters
func NewRunFingerprint(inputHash, paramsHash core.Hash, seed int64, codeVersion string) RunFingerprint {
	return RunFingerprint{
		InputHash:   inputHash,
		ParamsHash:  paramsHash,
		Seed:        seed,
		CodeVersion: codeVersion,
		Fingerprint: computeRunFingerprint(inputHash, paramsHash, seed, codeVersion),
	}
}

// computeRunFingerprint generates deterministic hash from all determinism parameters
func computeRunFingerprint(inputHash, paramsHash core.Hash, seed int64, codeVersion string) core.Hash {
	data := fmt.Sprintf("input:%s|params:%s|seed:%d|code:%s", inputHash, paramsHash, seed, codeVersion)
	hash := sha256.Sum256([]byte(data))
	return core.Hash(fmt.Sprintf("%x", hash))
}

// Matches reports whether two fingerprints describe the same computation.
func (f RunFingerprint) Matches(other RunFingerprint) bool {
	return f.Fingerprint != "" && f.Fingerprint == other.Fingerprint
}
