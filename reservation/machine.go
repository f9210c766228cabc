/*
Package reservation moves plans through their lifecycle.

PURPOSE:
  Every user action on a trip (schedule, pay, cancel, complete, reschedule,
  review) goes through Machine. It checks the transition table and the
  action's guard, then persists the change through the plan store.

TRANSITIONS:
  ┌────────────┬───────────┬────────────┬──────────────────────────────────┐
  │ Action     │ From      │ To         │ Guard / effect                   │
  ├────────────┼───────────┼────────────┼──────────────────────────────────┤
  │ schedule   │ draft     │ pending    │ valid, non-past start date;      │
  │            │           │            │ end = start + duration           │
  │ pay        │ pending   │ confirmed  │ payment approved                 │
  │ cancel     │ pending   │ cancelled  │ dates cleared                    │
  │ complete   │ confirmed │ completed  │ user action (or the sweep)       │
  │ reschedule │ cancelled │ pending    │ fresh valid date                 │
  │ review     │ completed │ completed  │ once; 1..5 stars                 │
  └────────────┴───────────┴────────────┴──────────────────────────────────┘

  Anything else fails with *TransitionError before the store is touched.

VALIDATION BEFORE MUTATION:
  Guards run against the store's current snapshot. A failed guard returns
  a validation error (see IsValidation) and nothing is sent anywhere.

SEE ALSO:
  - transitions.go: The table
  - sweep.go: Automatic completion of finished trips
  - planstore/store.go: Optimistic persistence
*/
package reservation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/perugo/reservation-engine/calendar"
	"github.com/perugo/reservation-engine/plan"
	"github.com/perugo/reservation-engine/planstore"
)

// PlanStore is the part of planstore.Store the machine uses.
type PlanStore interface {
	Get(id plan.ID) (plan.Plan, error)
	Plans() []plan.Plan
	Update(ctx context.Context, id plan.ID, c plan.Changes) (plan.Plan, error)
	Subscribe(fn func(planstore.Event)) (unsubscribe func())
}

type Machine struct {
	Store    PlanStore
	Payments PaymentProcessor
	Today    func() calendar.Date
	Logger   *slog.Logger

	sweeping atomic.Bool
}

func NewMachine(store PlanStore, payments PaymentProcessor) *Machine {
	if payments == nil {
		payments = SimulatedProcessor{Delay: DefaultPaymentDelay}
	}
	return &Machine{Store: store, Payments: payments, Today: calendar.Today}
}

// =============================================================================
// ACTIONS
// =============================================================================

// Schedule picks the start date of a draft and makes it pending.
func (m *Machine) Schedule(ctx context.Context, id plan.ID, dateText string) (plan.Plan, error) {
	return m.dated(ctx, id, ActionSchedule, dateText)
}

// Reschedule revives a cancelled plan with a new start date.
func (m *Machine) Reschedule(ctx context.Context, id plan.ID, dateText string) (plan.Plan, error) {
	return m.dated(ctx, id, ActionReschedule, dateText)
}

func (m *Machine) dated(ctx context.Context, id plan.ID, a Action, dateText string) (plan.Plan, error) {
	p, tr, err := m.guard(id, a)
	if err != nil {
		return plan.Plan{}, err
	}
	text := strings.TrimSpace(dateText)
	if text == "" {
		return plan.Plan{}, ErrDateRequired
	}
	start, err := calendar.ParseAt(text, m.today())
	if err != nil {
		return plan.Plan{}, err
	}
	end := start.AddDays(durationDays(p))

	m.logger().Info("scheduling plan", "id", id, "action", a, "start", start, "end", end)
	return m.Store.Update(ctx, id, plan.Changes{
		State:     plan.StatePtr(tr.To),
		StartDate: &start,
		EndDate:   &end,
	})
}

// Pay charges a pending plan and confirms it once the payment is approved.
func (m *Machine) Pay(ctx context.Context, id plan.ID) (plan.Plan, error) {
	p, tr, err := m.guard(id, ActionPay)
	if err != nil {
		return plan.Plan{}, err
	}

	if err := m.Payments.Charge(ctx, p); err != nil {
		return plan.Plan{}, fmt.Errorf("%w for plan %s: %w", ErrPaymentFailed, id, err)
	}

	// The plan may have been cancelled or reloaded while the charge was running.
	if _, _, err := m.guard(id, ActionPay); err != nil {
		return plan.Plan{}, err
	}

	m.logger().Info("payment approved", "id", id)
	return m.Store.Update(ctx, id, plan.Changes{State: plan.StatePtr(tr.To)})
}

// Cancel drops a pending reservation. Its dates are cleared.
func (m *Machine) Cancel(ctx context.Context, id plan.ID) (plan.Plan, error) {
	_, tr, err := m.guard(id, ActionCancel)
	if err != nil {
		return plan.Plan{}, err
	}
	return m.Store.Update(ctx, id, plan.Changes{State: plan.StatePtr(tr.To), ClearDates: true})
}

// Complete marks a confirmed trip as done.
func (m *Machine) Complete(ctx context.Context, id plan.ID) (plan.Plan, error) {
	_, tr, err := m.guard(id, ActionComplete)
	if err != nil {
		return plan.Plan{}, err
	}
	return m.Store.Update(ctx, id, plan.Changes{State: plan.StatePtr(tr.To)})
}

// SubmitReview records the traveller's rating. Only once per trip.
func (m *Machine) SubmitReview(ctx context.Context, id plan.ID, r plan.Review) (plan.Plan, error) {
	p, _, err := m.guard(id, ActionReview)
	if err != nil {
		return plan.Plan{}, err
	}
	if p.ReviewSubmitted {
		return plan.Plan{}, fmt.Errorf("plan %s: %w", id, ErrReviewAlreadySubmitted)
	}
	if r.Stars < plan.MinStars || r.Stars > plan.MaxStars {
		return plan.Plan{}, fmt.Errorf("%w: %d stars, want %d..%d", ErrInvalidReview, r.Stars, plan.MinStars, plan.MaxStars)
	}
	r.Comment = strings.TrimSpace(r.Comment)

	return m.Store.Update(ctx, id, plan.Changes{
		ReviewSubmitted: plan.BoolPtr(true),
		Review:          &r,
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func (m *Machine) guard(id plan.ID, a Action) (plan.Plan, Transition, error) {
	p, err := m.Store.Get(id)
	if err != nil {
		return plan.Plan{}, Transition{}, err
	}
	tr, ok := TransitionFor(p.State, a)
	if !ok {
		return plan.Plan{}, Transition{}, &TransitionError{PlanID: id, From: p.State, Action: a}
	}
	return p, tr, nil
}

func durationDays(p plan.Plan) int {
	if p.DurationDays <= 0 {
		return 1
	}
	return p.DurationDays
}

func (m *Machine) today() calendar.Date {
	if m.Today == nil {
		return calendar.Today()
	}
	return m.Today()
}

func (m *Machine) logger() *slog.Logger {
	if m.Logger == nil {
		return slog.Default().With("component", "reservation")
	}
	return m.Logger.With("component", "reservation")
}
