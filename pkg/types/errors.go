package types

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across package boundaries.
var (
	// ErrNotFound indicates an unknown node or hyperedge reference.
	ErrNotFound = errors.New("not found")

	// ErrProviderUnavailable indicates the embedding provider or vector
	// index backend is unreachable after retries. Callers degrade to their
	// documented fallback path; it only surfaces when the fallback itself
	// also fails.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrInvalidInterval indicates valid_to precedes valid_from.
	ErrInvalidInterval = errors.New("valid_to precedes valid_from")

	ErrEmptyTitle  = errors.New("node title is empty")
	ErrUnknownKind = errors.New("unknown node kind")
)

// SchemaError reports a hyperedge that fails its relation-type schema,
// typically a missing required role.
type SchemaError struct {
	Relation string
	Role     string
	Reason   string
}

func (e *SchemaError) Error() string {
	if e.Role != "" {
		return fmt.Sprintf("relation %q: missing required role %q", e.Relation, e.Role)
	}
	return fmt.Sprintf("relation %q: %s", e.Relation, e.Reason)
}

// Is lets errors.Is match any SchemaError regardless of detail.
func (e *SchemaError) Is(target error) bool {
	_, ok := target.(*SchemaError)
	return ok
}

// DimensionError reports a vector whose length does not match the active
// index generation. Only the offending write is rejected.
type DimensionError struct {
	Want int
	Got  int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("dimension mismatch: index expects %d, got %d", e.Want, e.Got)
}

func (e *DimensionError) Is(target error) bool {
	_, ok := target.(*DimensionError)
	return ok
}

// ValidationError reports a malformed ingest row. The row is skipped and the
// error recorded in the batch report; it never propagates past the batch.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid row: " + e.Reason
}

func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)
	return ok
}

// NewValidationError builds a ValidationError from a format string.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}
