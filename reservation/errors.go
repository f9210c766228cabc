package reservation

import (
	"errors"
	"fmt"

	"github.com/perugo/reservation-engine/calendar"
	"github.com/perugo/reservation-engine/plan"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrIllegalTransition is returned when an action is not allowed from the plan's state.
	ErrIllegalTransition = errors.New("illegal state transition")

	// ErrDateRequired is returned when scheduling without a start date.
	ErrDateRequired = errors.New("start date is required")

	// ErrReviewAlreadySubmitted is returned for a second review of the same trip.
	ErrReviewAlreadySubmitted = errors.New("review already submitted")

	// ErrInvalidReview is returned for a rating outside 1..5.
	ErrInvalidReview = errors.New("invalid review")

	// ErrPaymentFailed wraps any error from the payment processor.
	ErrPaymentFailed = errors.New("payment failed")
)

// TransitionError names the rejected move.
type TransitionError struct {
	PlanID plan.ID
	From   plan.State
	Action Action
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s plan %s while %s", e.Action, e.PlanID, e.From)
}

func (e *TransitionError) Unwrap() error { return ErrIllegalTransition }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsValidation returns true if the error is due to invalid user input or
// an action the plan's state does not allow. Nothing was changed.
func IsValidation(err error) bool {
	return errors.Is(err, calendar.ErrInvalidDate) ||
		errors.Is(err, calendar.ErrPastDate) ||
		errors.Is(err, ErrDateRequired) ||
		errors.Is(err, ErrInvalidReview) ||
		errors.Is(err, ErrReviewAlreadySubmitted) ||
		errors.Is(err, ErrIllegalTransition)
}
