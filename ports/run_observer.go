package ports

import (
	"tomoseq/domain/core"
)

// Run event types
const (
	RunStarted   = "started"
	RunProgress  = "progress"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// RunEvent reports the progress of one peak run. Done and Total count genes
// through the permutation stage.
type RunEvent struct {
	RunID     core.RunID     `json:"run_id"`
	Type      string         `json:"type"`
	Done      int            `json:"done"`
	Total     int            `json:"total"`
	Message   string         `json:"message,omitempty"`
	Timestamp core.Timestamp `json:"timestamp"`
}

// RunObserver receives run events. Implementations must not block.
type RunObserver interface {
	ObserveRun(event RunEvent)
}
