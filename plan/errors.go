package plan

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrPlanNotFound is returned when an id does not match any plan in the collection.
	ErrPlanNotFound = errors.New("plan not found")

	// ErrInvalidState is returned for a state name outside the five lifecycle states.
	ErrInvalidState = errors.New("invalid plan state")

	// ErrMissingID is returned for a server record that carries no id.
	ErrMissingID = errors.New("plan record has no id")

	// ErrInvariantViolation is returned when a plan breaks a data-model invariant.
	ErrInvariantViolation = errors.New("plan invariant violated")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// NotFoundError names the missing plan.
type NotFoundError struct {
	ID ID
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("plan %s not found", e.ID) }
func (e *NotFoundError) Unwrap() error { return ErrPlanNotFound }

// InvariantError describes which rule a plan breaks.
type InvariantError struct {
	ID   ID
	Rule string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("plan %s: %s", e.ID, e.Rule)
}

func (e *InvariantError) Unwrap() error { return ErrInvariantViolation }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing plan.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPlanNotFound)
}
