/*
Package plan defines the data model of a reserved trip.

PURPOSE:
  A Plan is a user's selected tour at a destination. It moves through a
  small lifecycle (draft, pending, confirmed, cancelled, completed) and
  carries the dates of the trip once one has been chosen.

LIFECYCLE:
  ┌───────┐ schedule ┌─────────┐  pay   ┌───────────┐ complete ┌───────────┐
  │ draft │ ───────▶ │ pending │ ─────▶ │ confirmed │ ───────▶ │ completed │
  └───────┘          └─────────┘        └───────────┘          └───────────┘
                      │      ▲                                      │
               cancel │      │ reschedule                     review (once)
                      ▼      │
                    ┌───────────┐
                    │ cancelled │
                    └───────────┘

INVARIANTS:
  - State is always one of the five values
  - StartDate and EndDate are both set exactly when the state is dated
    (pending, confirmed, completed)
  - EndDate = StartDate + DurationDays
  - ReviewSubmitted is only true while completed and never reverts

KEY CONCEPTS:
  Plan:     The canonical record held by the plan store
  Draft:    Input for creating a plan
  Changes:  Partial update applied optimistically then persisted
  Expenses: Ordered category -> amount breakdown

SEE ALSO:
  - normalize.go: Coercing server records toward the invariants
  - reservation/machine.go: The only code that moves a plan between states
*/
package plan

import (
	"github.com/shopspring/decimal"

	"github.com/perugo/reservation-engine/calendar"
)

// =============================================================================
// PLAN
// =============================================================================

type ID string

type Plan struct {
	ID              ID
	DestinationID   string
	DestinationName string
	TourName        string
	Price           decimal.Decimal
	DurationLabel   string
	DurationDays    int
	Expenses        Expenses
	State           State

	StartDate *calendar.Date
	EndDate   *calendar.Date

	ReviewSubmitted bool
	Review          *Review

	// Display fields, filled from the catalog when the server omits them
	Image    string
	Location string
}

// Review is the traveller's rating of a completed trip.
type Review struct {
	Stars   int
	Comment string
}

const (
	MinStars = 1
	MaxStars = 5
)

// Clone returns a deep copy so snapshots never alias store state.
func (p Plan) Clone() Plan {
	c := p
	c.Expenses = p.Expenses.Clone()
	if p.StartDate != nil {
		c.StartDate = calendar.Ptr(*p.StartDate)
	}
	if p.EndDate != nil {
		c.EndDate = calendar.Ptr(*p.EndDate)
	}
	if p.Review != nil {
		r := *p.Review
		c.Review = &r
	}
	return c
}

// Key identifies a plan by what it books, used for duplicate suppression.
func (p Plan) Key() string { return p.DestinationID + "\x00" + p.TourName }

// =============================================================================
// EXPENSES - Ordered breakdown
// =============================================================================

type Expense struct {
	Category string
	Amount   decimal.Decimal
}

// Expenses keeps insertion order; the chart legend follows it.
type Expenses []Expense

func (e Expenses) Clone() Expenses {
	if e == nil {
		return nil
	}
	return append(Expenses(nil), e...)
}

// Total sums every amount.
func (e Expenses) Total() decimal.Decimal {
	total := decimal.Zero
	for _, x := range e {
		total = total.Add(x.Amount)
	}
	return total
}

// Get returns the amount for a category.
func (e Expenses) Get(category string) (decimal.Decimal, bool) {
	for _, x := range e {
		if x.Category == category {
			return x.Amount, true
		}
	}
	return decimal.Zero, false
}

// Set replaces the amount of an existing category or appends a new one.
func (e Expenses) Set(category string, amount decimal.Decimal) Expenses {
	for i, x := range e {
		if x.Category == category {
			out := e.Clone()
			out[i].Amount = amount
			return out
		}
	}
	return append(e.Clone(), Expense{Category: category, Amount: amount})
}

// =============================================================================
// DRAFT - Creation input
// =============================================================================

type Draft struct {
	DestinationID   string
	DestinationName string
	TourName        string
	Price           decimal.Decimal
	DurationLabel   string
	DurationDays    int
	Expenses        Expenses
	Image           string
	Location        string
}

// Key matches Plan.Key for the plan this draft would create.
func (d Draft) Key() string { return d.DestinationID + "\x00" + d.TourName }

// Plan builds the draft-state plan; the id is assigned by the server.
func (d Draft) Plan() Plan {
	days := d.DurationDays
	if days <= 0 {
		days = DurationDaysFromLabel(d.DurationLabel)
	}
	return Plan{
		DestinationID:   d.DestinationID,
		DestinationName: d.DestinationName,
		TourName:        d.TourName,
		Price:           d.Price,
		DurationLabel:   d.DurationLabel,
		DurationDays:    days,
		Expenses:        d.Expenses.Clone(),
		State:           StateDraft,
		Image:           d.Image,
		Location:        d.Location,
	}
}

// =============================================================================
// CHANGES - Partial update
// =============================================================================

// Changes is a partial update. Nil fields are left untouched.
// ClearDates removes both dates and wins over StartDate/EndDate.
type Changes struct {
	State           *State
	StartDate       *calendar.Date
	EndDate         *calendar.Date
	ClearDates      bool
	ReviewSubmitted *bool
	Review          *Review
}

func (c Changes) IsEmpty() bool {
	return c.State == nil && c.StartDate == nil && c.EndDate == nil &&
		!c.ClearDates && c.ReviewSubmitted == nil && c.Review == nil
}

// Apply returns p with the changes applied. p itself is not modified.
func (p Plan) Apply(c Changes) Plan {
	out := p.Clone()
	if c.State != nil {
		out.State = *c.State
	}
	if c.ClearDates {
		out.StartDate, out.EndDate = nil, nil
	} else {
		if c.StartDate != nil {
			out.StartDate = calendar.Ptr(*c.StartDate)
		}
		if c.EndDate != nil {
			out.EndDate = calendar.Ptr(*c.EndDate)
		}
	}
	if c.ReviewSubmitted != nil {
		out.ReviewSubmitted = *c.ReviewSubmitted
	}
	if c.Review != nil {
		r := *c.Review
		out.Review = &r
	}
	return out
}

// StatePtr is a convenience for building Changes.
func StatePtr(s State) *State { return &s }

// BoolPtr is a convenience for building Changes.
func BoolPtr(b bool) *bool { return &b }
