package plan

import (
	"regexp"
	"strconv"

	"github.com/perugo/reservation-engine/calendar"
)

var durationPattern = regexp.MustCompile(`(?i)^\s*(\d+)\s*d[ií]as?\b`)

// DurationDaysFromLabel reads "4 días / 3 noches" as 4. Anything else is 1.
func DurationDaysFromLabel(label string) int {
	m := durationPattern.FindStringSubmatch(label)
	if m == nil {
		return 1
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 1
	}
	return n
}

// Normalize coerces a server record toward the plan invariants and
// returns what it had to fix, for logging. The state must already be valid.
func Normalize(p Plan) (Plan, []string) {
	out := p.Clone()
	var fixes []string

	if out.DurationDays <= 0 {
		out.DurationDays = DurationDaysFromLabel(out.DurationLabel)
		fixes = append(fixes, "duration defaulted")
	}

	if out.State.Dated() {
		switch {
		case out.StartDate != nil && out.EndDate == nil:
			out.EndDate = calendar.Ptr(out.StartDate.AddDays(out.DurationDays))
			fixes = append(fixes, "end date derived")
		case out.StartDate == nil && out.EndDate != nil:
			out.EndDate = nil
			fixes = append(fixes, "lone end date dropped")
		case out.StartDate != nil && out.EndDate != nil:
			// Stored dates win over a stale duration; an end on or before the
			// start is re-derived.
			switch span := calendar.DaysBetween(*out.StartDate, *out.EndDate); {
			case span <= 0:
				out.EndDate = calendar.Ptr(out.StartDate.AddDays(out.DurationDays))
				fixes = append(fixes, "end date re-derived")
			case span != out.DurationDays:
				out.DurationDays = span
				fixes = append(fixes, "duration taken from dates")
			}
		}
	} else if out.StartDate != nil || out.EndDate != nil {
		out.StartDate, out.EndDate = nil, nil
		fixes = append(fixes, "dates stripped from "+string(out.State)+" plan")
	}

	if out.ReviewSubmitted && out.State != StateCompleted {
		out.ReviewSubmitted = false
		fixes = append(fixes, "review flag cleared")
	}
	return out, fixes
}

// Validate reports the first broken invariant.
// A dated plan with missing dates is reported but Normalize cannot fix it.
func Validate(p Plan) error {
	if !p.State.Valid() {
		return &InvariantError{ID: p.ID, Rule: "unknown state " + strconv.Quote(string(p.State))}
	}
	hasStart, hasEnd := p.StartDate != nil, p.EndDate != nil
	if p.State.Dated() && (!hasStart || !hasEnd) {
		return &InvariantError{ID: p.ID, Rule: string(p.State) + " plan requires start and end dates"}
	}
	if !p.State.Dated() && (hasStart || hasEnd) {
		return &InvariantError{ID: p.ID, Rule: string(p.State) + " plan must not carry dates"}
	}
	if hasStart && hasEnd && p.DurationDays > 0 && !p.EndDate.Equal(p.StartDate.AddDays(p.DurationDays)) {
		return &InvariantError{ID: p.ID, Rule: "end date does not match duration"}
	}
	if p.ReviewSubmitted && p.State != StateCompleted {
		return &InvariantError{ID: p.ID, Rule: "review submitted on non-completed plan"}
	}
	return nil
}
