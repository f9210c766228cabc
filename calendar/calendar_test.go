package calendar_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perugo/reservation-engine/calendar"
)

// Reference day used throughout so results do not depend on the wall clock.
var today = calendar.New(2026, time.October, 17)

func TestMaskDigits_Progressive(t *testing.T) {
	cases := map[string]string{
		"":             "",
		"1":            "1",
		"15":           "15",
		"150":          "15/0",
		"1503":         "15/03",
		"15032":        "15/03/2",
		"15032030":     "15/03/2030",
		"1503203099":   "15/03/2030",
		"15/03/2030":   "15/03/2030",
		"ab1c5-0 3.20": "15/03/20",
	}
	for in, want := range cases {
		assert.Equal(t, want, calendar.MaskDigits(in), "input %q", in)
	}
}

func TestParseAt_AcceptsValidFutureDates(t *testing.T) {
	d, err := calendar.ParseAt("29/02/2028", today)
	require.NoError(t, err, "leap day must be accepted")
	assert.Equal(t, 2028, d.Year())
	assert.Equal(t, time.February, d.Month())
	assert.Equal(t, 29, d.Day())

	d, err = calendar.ParseAt("17/10/2026", today)
	require.NoError(t, err, "today is not in the past")
	assert.True(t, d.Equal(today))
}

func TestParseAt_RejectsInvalidDates(t *testing.T) {
	for _, in := range []string{
		"31/02/2030", // no such day
		"29/02/2029", // not a leap year
		"00/01/2030",
		"32/01/2030",
		"01/13/2030",
		"01/00/2030",
		"01/01/2101",
		"1/1/2030",
		"01-01-2030",
		"01/01/2030 ",
		"",
	} {
		_, err := calendar.ParseAt(in, today)
		assert.ErrorIs(t, err, calendar.ErrInvalidDate, "input %q", in)
	}
}

func TestParseAt_RejectsPastDates(t *testing.T) {
	for _, in := range []string{"01/01/2000", "16/10/2026", "01/01/1900"} {
		_, err := calendar.ParseAt(in, today)
		assert.ErrorIs(t, err, calendar.ErrPastDate, "input %q", in)

		var dateErr *calendar.DateError
		require.ErrorAs(t, err, &dateErr)
		assert.Equal(t, in, dateErr.Input)
	}
}

func TestParse_UsesClock(t *testing.T) {
	restore := calendar.Clock
	t.Cleanup(func() { calendar.Clock = restore })
	calendar.Clock = func() time.Time { return time.Date(2030, 1, 2, 23, 59, 0, 0, time.Local) }

	_, err := calendar.Parse("01/01/2030")
	assert.ErrorIs(t, err, calendar.ErrPastDate)

	_, err = calendar.Parse("02/01/2030")
	assert.NoError(t, err)
}

func TestAddDays_RollsOverBoundaries(t *testing.T) {
	start, err := calendar.ParseCalendar("01/01/2030")
	require.NoError(t, err)
	assert.Equal(t, "04/01/2030", calendar.Format(start.AddDays(3)))

	assert.Equal(t, "01/02/2030", calendar.New(2030, time.January, 31).AddDays(1).String())
	assert.Equal(t, "01/01/2031", calendar.New(2030, time.December, 31).AddDays(1).String())
	assert.Equal(t, "29/02/2028", calendar.New(2028, time.February, 28).AddDays(1).String())
	assert.Equal(t, "01/03/2029", calendar.New(2029, time.February, 28).AddDays(1).String())
}

func TestFormat_RoundTrips(t *testing.T) {
	d := calendar.New(2031, time.March, 5)
	assert.Equal(t, "05/03/2031", calendar.Format(d))

	back, err := calendar.ParseCalendar(calendar.Format(d))
	require.NoError(t, err)
	assert.True(t, back.Equal(d))
}

func TestCoerce_AcceptsWireLayouts(t *testing.T) {
	want := calendar.New(2030, time.June, 9)
	for _, in := range []string{"09/06/2030", "2030-06-09", "2030-06-09T00:00:00Z", " 09/06/2030 "} {
		d, err := calendar.Coerce(in)
		require.NoError(t, err, "input %q", in)
		assert.True(t, d.Equal(want), "input %q gave %s", in, d)
	}

	past, err := calendar.Coerce("01/01/2000")
	require.NoError(t, err, "stored dates may be in the past")
	assert.Equal(t, 2000, past.Year())

	_, err = calendar.Coerce("June 9th")
	assert.ErrorIs(t, err, calendar.ErrInvalidDate)
}

func TestDaysBetween(t *testing.T) {
	a := calendar.New(2030, time.February, 27)
	assert.Equal(t, 3, calendar.DaysBetween(a, a.AddDays(3)))
	assert.Equal(t, -1, calendar.DaysBetween(a, a.AddDays(-1)))
}
