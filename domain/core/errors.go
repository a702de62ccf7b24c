package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Input errors: malformed or missing data
	ErrInvalidInput   = errors.New("invalid input")
	ErrNonFinite      = fmt.Errorf("%w: non-finite value", ErrInvalidInput)
	ErrNegativeCount  = fmt.Errorf("%w: negative count", ErrInvalidInput)
	ErrShapeMismatch  = fmt.Errorf("%w: shape mismatch", ErrInvalidInput)
	ErrDuplicateLabel = fmt.Errorf("%w: duplicate label", ErrInvalidInput)
	ErrEmptyMatrix    = fmt.Errorf("%w: empty matrix", ErrInvalidInput)
	ErrUnknownLayer   = fmt.Errorf("%w: unknown layer", ErrInvalidInput)

	// Degenerate errors: statistically undefined operations
	ErrDegenerateInput = errors.New("degenerate input")
	ErrZeroLibrarySize = fmt.Errorf("%w: zero library size", ErrDegenerateInput)
	ErrZeroVariance    = fmt.Errorf("%w: zero variance", ErrDegenerateInput)

	// Parameter errors
	ErrInvalidParameter = errors.New("invalid parameter")

	// Not found errors
	ErrNotFound    = errors.New("resource not found")
	ErrRunNotFound = fmt.Errorf("%w: run", ErrNotFound)
)

// Stage names used in StageError
const (
	StageValidate  = "validate"
	StageFilter    = "filter"
	StageNormalize = "normalize"
	StageScale     = "scale"
	StageDetect    = "detect"
	StagePermute   = "permute"
	StageAdjust    = "adjust"
)

// StageError identifies the pipeline stage and the entity (gene or section)
// that triggered a failure.
type StageError struct {
	Stage  string
	Entity string
	Err    error
}

func (e *StageError) Error() string {
	if e.Entity == "" {
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Stage, e.Entity, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError wraps err with stage and entity context
func NewStageError(stage, entity string, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Entity: entity, Err: err}
}

// NewParameterError reports an out-of-domain parameter value
func NewParameterError(name string, value interface{}, reason string) error {
	return fmt.Errorf("%w: %s=%v: %s", ErrInvalidParameter, name, value, reason)
}

// NewNotFoundError reports a missing resource
func NewNotFoundError(resource string, id string) error {
	return fmt.Errorf("%w: %s with id %s", ErrNotFound, resource, id)
}

// Error checking helpers
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

func IsDegenerate(err error) bool {
	return errors.Is(err, ErrDegenerateInput)
}

func IsInvalidParameter(err error) bool {
	return errors.Is(err, ErrInvalidParameter)
}

func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// StageOf returns the stage recorded on err, or "" if none.
func StageOf(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
