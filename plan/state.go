package plan

import (
	"fmt"
	"strings"
)

// State is the lifecycle position of a plan.
type State string

const (
	StateDraft     State = "draft"
	StatePending   State = "pending"
	StateConfirmed State = "confirmed"
	StateCancelled State = "cancelled"
	StateCompleted State = "completed"
)

// States lists every valid state in lifecycle order.
var States = []State{StateDraft, StatePending, StateConfirmed, StateCancelled, StateCompleted}

var labels = map[State]string{
	StateDraft:     "Borrador",
	StatePending:   "Pendiente de pago",
	StateConfirmed: "Confirmado",
	StateCancelled: "Cancelado",
	StateCompleted: "Completado",
}

// ParseState accepts the English state names, case-insensitively.
func ParseState(s string) (State, error) {
	st := State(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidState, s)
	}
	return st, nil
}

func (s State) Valid() bool {
	_, ok := labels[s]
	return ok
}

// Label is the user-facing name of the state.
func (s State) Label() string {
	if l, ok := labels[s]; ok {
		return l
	}
	return string(s)
}

// Dated reports whether a plan in this state must carry start and end dates.
func (s State) Dated() bool {
	return s == StatePending || s == StateConfirmed || s == StateCompleted
}

func (s State) String() string { return string(s) }
