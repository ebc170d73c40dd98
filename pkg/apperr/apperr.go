package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the ledger and directory services. Handlers map these
// to HTTP status codes; services wrap them with context via fmt.Errorf and %w.
var (
	// ErrInvalidInput marks malformed or out-of-range request fields.
	ErrInvalidInput = errors.New("invalid input")

	// ErrHierarchyViolation marks a sender/receiver role mismatch or a broken
	// superior chain. Non-retryable: the actor data itself is misconfigured.
	ErrHierarchyViolation = errors.New("hierarchy violation")

	// ErrNotFound marks an absent record or actor, including records not
	// addressable by the caller.
	ErrNotFound = errors.New("not found")
)

func InvalidInput(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrInvalidInput}, args...)...)
}

func HierarchyViolation(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrHierarchyViolation}, args...)...)
}

func NotFound(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrNotFound}, args...)...)
}

// PropagationStep records the outcome of one ancestor-tier write during a
// status update. Propagation is a sequence of independent lookups and writes,
// not a transaction; each step succeeds or fails on its own.
type PropagationStep struct {
	Tier   string `json:"tier"`
	Reason string `json:"reason"`
}

// PropagationError reports ancestor records that could not be located or
// written after the primary update already succeeded. It is a warning: the
// primary mutation is authoritative and is never rolled back.
type PropagationError struct {
	Failed []PropagationStep
}

func (e *PropagationError) Error() string {
	tiers := make([]string, 0, len(e.Failed))
	for _, s := range e.Failed {
		tiers = append(tiers, s.Tier)
	}
	return fmt.Sprintf("propagation incomplete at tiers: %s", strings.Join(tiers, ", "))
}

// AsPropagation returns the PropagationError inside err, or nil.
func AsPropagation(err error) *PropagationError {
	var pe *PropagationError
	if errors.As(err, &pe) {
		return pe
	}
	return nil
}
