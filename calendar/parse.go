package calendar

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidDate is returned for text that is not a real DD/MM/YYYY day.
	ErrInvalidDate = errors.New("invalid date")

	// ErrPastDate is returned when a start date lies before today.
	ErrPastDate = errors.New("date is in the past")
)

const (
	MinYear = 1900
	MaxYear = 2100

	// Layout is the display and wire layout of a Date.
	Layout = "02/01/2006"
)

var maskPattern = regexp.MustCompile(`^(\d{2})/(\d{2})/(\d{4})$`)

// DateError carries the offending input.
type DateError struct {
	Input  string
	Reason string
	Err    error
}

func (e *DateError) Error() string {
	return fmt.Sprintf("%v %q: %s", e.Err, e.Input, e.Reason)
}

func (e *DateError) Unwrap() error { return e.Err }

// =============================================================================
// INPUT MASK
// =============================================================================

// MaskDigits shapes raw input into the DD/MM/YYYY mask as it is typed.
// Non-digits are discarded and anything past 8 digits is truncated.
// It only formats; Parse is the correctness guard.
func MaskDigits(text string) string {
	var b strings.Builder
	n := 0
	for _, r := range text {
		if r < '0' || r > '9' {
			continue
		}
		if n == 8 {
			break
		}
		if n == 2 || n == 4 {
			b.WriteByte('/')
		}
		b.WriteRune(r)
		n++
	}
	return b.String()
}

// =============================================================================
// STRICT PARSING
// =============================================================================

// Parse validates a user-entered start date against today.
func Parse(text string) (Date, error) {
	return ParseAt(text, Today())
}

// ParseAt is Parse with an explicit reference day.
func ParseAt(text string, today Date) (Date, error) {
	d, err := ParseCalendar(text)
	if err != nil {
		return Date{}, err
	}
	if d.Before(today) {
		return Date{}, &DateError{Input: text, Reason: "before " + today.String(), Err: ErrPastDate}
	}
	return d, nil
}

// ParseCalendar checks format and calendar validity but not the past.
func ParseCalendar(text string) (Date, error) {
	m := maskPattern.FindStringSubmatch(text)
	if m == nil {
		return Date{}, &DateError{Input: text, Reason: "expected DD/MM/YYYY", Err: ErrInvalidDate}
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])

	if year < MinYear || year > MaxYear {
		return Date{}, &DateError{Input: text, Reason: "year out of range", Err: ErrInvalidDate}
	}
	if month < 1 || month > 12 {
		return Date{}, &DateError{Input: text, Reason: "month out of range", Err: ErrInvalidDate}
	}
	if day < 1 || day > 31 {
		return Date{}, &DateError{Input: text, Reason: "day out of range", Err: ErrInvalidDate}
	}

	// time.Date normalizes 30/02 into March; a round trip catches it.
	d := New(year, time.Month(month), day)
	if d.Year() != year || int(d.Month()) != month || d.Day() != day {
		return Date{}, &DateError{Input: text, Reason: "no such day", Err: ErrInvalidDate}
	}
	return d, nil
}

// Format renders DD/MM/YYYY with zero padding.
func Format(d Date) string {
	return fmt.Sprintf("%02d/%02d/%04d", d.Day(), int(d.Month()), d.Year())
}

// =============================================================================
// LOOSE PARSING - dates coming back from the remote service
// =============================================================================

// Coerce accepts DD/MM/YYYY, YYYY-MM-DD or an RFC 3339 timestamp.
// No past check: stored trips legitimately lie in the past.
func Coerce(text string) (Date, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return Date{}, &DateError{Input: text, Reason: "empty", Err: ErrInvalidDate}
	}
	if d, err := ParseCalendar(s); err == nil {
		return d, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return FromTime(t), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return FromTime(t.UTC()), nil
	}
	return Date{}, &DateError{Input: text, Reason: "unrecognized layout", Err: ErrInvalidDate}
}
