/*
Package chart turns an expense breakdown into pie-chart geometry.

PURPOSE:
  A confirmed trip shows how its cost splits across categories
  (lodging, transport, food, tickets). This package computes the slice
  angles and an SVG path per slice; drawing is left to the caller.

GEOMETRY:
  Slices start at 12 o'clock (-π/2 in screen coordinates, y grows down)
  and run clockwise. A slice of amount a takes a/total * 2π radians.
  The circle is centred at (radius, radius) so it fits a 2r x 2r box.

        M c c  L x1 y1  A r r 0 <large> 1 x2 y2  Z
        │      │        │                        └ close back to centre
        │      │        └ arc along the circle, sweep flag 1 = clockwise
        │      └ line to the slice start on the circle
        └ move to centre

DEGENERATE INPUT:
  - total 0: the divisor becomes 1 and the first category owns the whole
    circle, so the decomposition still covers 2π
  - a zero amount: a zero-width slice, still present in order
  - a full-circle slice: drawn as two half arcs, since an SVG arc whose
    endpoints coincide renders nothing

SEE ALSO:
  - plan/plan.go: Expenses keeps category order for the legend
*/
package chart

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/perugo/reservation-engine/plan"
)

// ErrNegativeAmount is returned for an amount below zero.
var ErrNegativeAmount = errors.New("expense amount must not be negative")

// DefaultRadius matches the size the trip detail view draws at.
const DefaultRadius = 70.0

// Palette colours slices and legend entries in order, wrapping around.
var Palette = []string{"#3b82f6", "#ef4444", "#22c55e", "#8b5cf6", "#f97316", "#9ca3af"}

const (
	startAngle = -math.Pi / 2
	fullCircle = 2 * math.Pi
)

// =============================================================================
// TYPES
// =============================================================================

type Entry struct {
	Category string
	Amount   decimal.Decimal
}

type Slice struct {
	Category   string
	Amount     decimal.Decimal
	StartAngle float64
	EndAngle   float64
	Sweep      float64
	LargeArc   bool
	Color      string
	Path       string
}

type LegendItem struct {
	Category string
	Amount   decimal.Decimal
	Share    decimal.Decimal // percent, one decimal place
	Color    string
}

type Pie struct {
	Radius float64
	Total  decimal.Decimal
	Slices []Slice
	Legend []LegendItem
}

// =============================================================================
// BUILD
// =============================================================================

// FromExpenses builds the pie for a plan's expense breakdown.
func FromExpenses(expenses plan.Expenses, radius float64) (Pie, error) {
	entries := make([]Entry, len(expenses))
	for i, e := range expenses {
		entries[i] = Entry{Category: e.Category, Amount: e.Amount}
	}
	return Build(entries, radius)
}

// Build lays out one slice per entry, in input order.
func Build(entries []Entry, radius float64) (Pie, error) {
	if radius <= 0 || math.IsNaN(radius) || math.IsInf(radius, 0) {
		return Pie{}, fmt.Errorf("chart radius must be positive, got %v", radius)
	}
	pie := Pie{Radius: radius, Total: decimal.Zero}
	for _, e := range entries {
		if e.Amount.IsNegative() {
			return Pie{}, fmt.Errorf("%w: %s = %s", ErrNegativeAmount, e.Category, e.Amount)
		}
		pie.Total = pie.Total.Add(e.Amount)
	}
	if len(entries) == 0 {
		return pie, nil
	}

	allZero := pie.Total.IsZero()
	divisor := pie.Total
	if allZero {
		divisor = decimal.NewFromInt(1)
	}

	angle := startAngle
	for i, e := range entries {
		var sweep float64
		switch {
		case allZero && i == 0:
			sweep = fullCircle
		case allZero:
			sweep = 0
		default:
			sweep = e.Amount.Div(divisor).InexactFloat64() * fullCircle
		}

		end := angle + sweep
		if i == len(entries)-1 {
			// Pin the last edge so the sectors close exactly.
			end = startAngle + fullCircle
			sweep = end - angle
		}

		color := Palette[i%len(Palette)]
		pie.Slices = append(pie.Slices, Slice{
			Category:   e.Category,
			Amount:     e.Amount,
			StartAngle: angle,
			EndAngle:   end,
			Sweep:      sweep,
			LargeArc:   sweep > math.Pi,
			Color:      color,
			Path:       slicePath(radius, angle, end),
		})
		pie.Legend = append(pie.Legend, LegendItem{
			Category: e.Category,
			Amount:   e.Amount,
			Share:    share(e.Amount, pie.Total, allZero && i == 0),
			Color:    color,
		})
		angle = end
	}
	return pie, nil
}

// TotalSweep sums slice widths; 2π for any non-empty pie.
func (p Pie) TotalSweep() float64 {
	var sum float64
	for _, s := range p.Slices {
		sum += s.Sweep
	}
	return sum
}

func share(amount, total decimal.Decimal, owner bool) decimal.Decimal {
	if total.IsZero() {
		if owner {
			return decimal.NewFromInt(100)
		}
		return decimal.Zero
	}
	return amount.Mul(decimal.NewFromInt(100)).Div(total).Round(1)
}

// =============================================================================
// PATH
// =============================================================================

func slicePath(r, from, to float64) string {
	c := num(r)
	x1, y1 := point(r, from)
	sweep := to - from

	var b strings.Builder
	fmt.Fprintf(&b, "M %s %s L %s %s ", c, c, x1, y1)

	if sweep >= fullCircle-1e-9 {
		xm, ym := point(r, from+math.Pi)
		fmt.Fprintf(&b, "A %s %s 0 0 1 %s %s ", c, c, xm, ym)
		fmt.Fprintf(&b, "A %s %s 0 0 1 %s %s Z", c, c, x1, y1)
		return b.String()
	}

	large := 0
	if sweep > math.Pi {
		large = 1
	}
	x2, y2 := point(r, to)
	fmt.Fprintf(&b, "A %s %s 0 %d 1 %s %s Z", c, c, large, x2, y2)
	return b.String()
}

func point(r, angle float64) (string, string) {
	return num(r + r*math.Cos(angle)), num(r + r*math.Sin(angle))
}

// num prints coordinates rounded to 1e-4 so float noise stays out of paths.
func num(v float64) string {
	v = math.Round(v*1e4) / 1e4
	if v == 0 {
		v = 0 // normalizes -0
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Visible reports whether the trip detail shows the cost chart:
// only once paid and only when there is a breakdown to show.
func Visible(p plan.Plan) bool {
	return (p.State == plan.StateConfirmed || p.State == plan.StateCompleted) && len(p.Expenses) > 0
}
