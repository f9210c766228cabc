package reservation

import "github.com/perugo/reservation-engine/plan"

// Action is a user-facing operation on a plan.
type Action string

const (
	ActionSchedule   Action = "schedule"
	ActionPay        Action = "pay"
	ActionCancel     Action = "cancel"
	ActionComplete   Action = "complete"
	ActionReschedule Action = "reschedule"
	ActionReview     Action = "review"
)

// Transition is a single allowed edge of the reservation lifecycle.
type Transition struct {
	From   plan.State
	To     plan.State
	Action Action
}

var transitionsTable = []Transition{
	{From: plan.StateDraft, To: plan.StatePending, Action: ActionSchedule},
	{From: plan.StatePending, To: plan.StateConfirmed, Action: ActionPay},
	{From: plan.StatePending, To: plan.StateCancelled, Action: ActionCancel},
	{From: plan.StateConfirmed, To: plan.StateCompleted, Action: ActionComplete},
	{From: plan.StateCancelled, To: plan.StatePending, Action: ActionReschedule},

	// Reviewing keeps the plan completed; it is allowed once.
	{From: plan.StateCompleted, To: plan.StateCompleted, Action: ActionReview},
}

// TransitionFor returns the allowed transition for a state and action.
func TransitionFor(from plan.State, a Action) (Transition, bool) {
	for _, tr := range transitionsTable {
		if tr.From == from && tr.Action == a {
			return tr, true
		}
	}
	return Transition{}, false
}

// Actions lists what can be done from a state, in table order.
func Actions(from plan.State) []Action {
	var out []Action
	for _, tr := range transitionsTable {
		if tr.From == from {
			out = append(out, tr.Action)
		}
	}
	return out
}

// ActionsFor is Actions narrowed to a specific plan: a submitted review
// cannot be submitted again.
func ActionsFor(p plan.Plan) []Action {
	var out []Action
	for _, a := range Actions(p.State) {
		if a == ActionReview && p.ReviewSubmitted {
			continue
		}
		out = append(out, a)
	}
	return out
}
