/*
Package calendar provides the date handling used by the reservation engine.

PURPOSE:
  Trips are scheduled in whole calendar days. A start date is typed by the
  user in a fixed DD/MM/YYYY mask, validated (real calendar day, not in the
  past) and the end date is derived from the tour duration.

KEY CONCEPTS:
  - Date:       A calendar day (no time of day, no zone), stored at UTC midnight
  - MaskDigits: Display helper that shapes raw keystrokes into DD/MM/YYYY
  - Parse:      Strict validation of a user-entered start date
  - Coerce:     Lenient parsing of dates arriving from the remote service

TIME OF DAY:
  Comparisons are date-only. "Today" is the local calendar day of the
  device, then pinned to UTC midnight so arithmetic never crosses DST.

SEE ALSO:
  - parse.go: Mask, strict and loose parsing
  - reservation/sweep.go: Uses Before() for the completion sweep
*/
package calendar

import (
	"time"
)

// =============================================================================
// DATE - A calendar day
// =============================================================================

type Date struct {
	Time time.Time
}

// Clock returns the current instant. Tests replace it.
var Clock = time.Now

// New builds a Date. Out-of-range values are normalized the way time.Date does.
func New(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// FromTime takes the calendar day of t in t's own location.
func FromTime(t time.Time) Date {
	return New(t.Year(), t.Month(), t.Day())
}

// Today is the local calendar day according to Clock.
func Today() Date {
	return FromTime(Clock().Local())
}

// Comparison
func (d Date) Before(other Date) bool { return d.Time.Before(other.Time) }
func (d Date) After(other Date) bool { return d.Time.After(other.Time) }
func (d Date) Equal(other Date) bool { return d.Time.Equal(other.Time) }
func (d Date) BeforeOrEqual(other Date) bool { return !d.After(other) }
func (d Date) AfterOrEqual(other Date) bool { return !d.Before(other) }

// Arithmetic
func (d Date) AddDays(n int) Date { return Date{Time: d.Time.AddDate(0, 0, n)} }

// Properties
func (d Date) Year() int { return d.Time.Year() }
func (d Date) Month() time.Month { return d.Time.Month() }
func (d Date) Day() int { return d.Time.Day() }
func (d Date) IsZero() bool { return d.Time.IsZero() }

// String renders DD/MM/YYYY.
func (d Date) String() string { return Format(d) }

// ISO renders YYYY-MM-DD, used for storage columns.
func (d Date) ISO() string { return d.Time.Format("2006-01-02") }

// DaysBetween counts whole days from -> to (negative when to is earlier).
func DaysBetween(from, to Date) int {
	return int(to.Time.Sub(from.Time).Hours() / 24)
}

// Ptr returns a pointer to a copy of d.
func Ptr(d Date) *Date { return &d }
