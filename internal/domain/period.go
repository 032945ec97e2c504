package domain

import (
	"errors"
	"fmt"
	"time"
)

// Period is a reporting window the leaderboard is computed over.
type Period string

const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

// ErrInvalidPeriod is returned by ParsePeriod for unknown values.
var ErrInvalidPeriod = errors.New("invalid leaderboard period")

// ParsePeriod validates untrusted input before it reaches Window.
func ParsePeriod(raw string) (Period, error) {
	switch Period(raw) {
	case PeriodDay, PeriodWeek, PeriodMonth:
		return Period(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPeriod, raw)
}

// Window returns the inclusive calendar-date bounds for the period
// containing now, evaluated in loc. Both bounds are whole days at
// midnight UTC as produced by DateOf.
//
// Week windows start on Monday. Passing an unknown period is a caller
// contract violation and panics.
func Window(period Period, now time.Time, loc *time.Location) (from, to time.Time) {
	today := DateOf(now, loc)

	switch period {
	case PeriodDay:
		return today, today
	case PeriodWeek:
		diffToMonday := (int(now.In(loc).Weekday()) + 6) % 7
		monday := today.AddDate(0, 0, -diffToMonday)
		return monday, monday.AddDate(0, 0, 6)
	case PeriodMonth:
		first := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
		last := first.AddDate(0, 1, -1)
		return first, last
	}
	panic(fmt.Sprintf("domain: unknown period %q", period))
}
