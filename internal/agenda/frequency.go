// Package agenda models calendar events, optionally repeating, and answers
// whether an event occurs on a given calendar day.
//
// All dates and date-times are floating civil values: no time zone is
// attached and no zone conversion is performed. Arithmetic is carried out in
// UTC so that daylight-saving transitions never shift an occurrence.
package agenda

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

var (
	// ErrInvalidFrequency is returned for an unknown repetition unit.
	ErrInvalidFrequency = errors.New("agenda: invalid frequency")
	// ErrInvalidDuration is returned for a negative duration, or for a
	// duration that is not shorter than one repetition unit.
	ErrInvalidDuration = errors.New("agenda: invalid duration")
	// ErrInvalidTermination is returned for an occurrence count below one or
	// a termination date before the series start.
	ErrInvalidTermination = errors.New("agenda: invalid termination")
)

// Frequency is the calendar unit by which successive occurrences of a
// repeating event are displaced from the series start.
type Frequency int

const (
	// Daily repeats every calendar day.
	Daily Frequency = iota + 1
	// Weekly repeats every seven calendar days.
	Weekly
	// Monthly repeats on the same day of every month. Anchors that do not
	// exist in a shorter month are clamped to that month's last day.
	Monthly
)

// ParseFrequency maps "daily", "weekly" or "monthly" (case-insensitive) to a
// Frequency.
func ParseFrequency(s string) (Frequency, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "daily", "day", "days":
		return Daily, nil
	case "weekly", "week", "weeks":
		return Weekly, nil
	case "monthly", "month", "months":
		return Monthly, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidFrequency, s)
}

func (f Frequency) String() string {
	switch f {
	case Daily:
		return "daily"
	case Weekly:
		return "weekly"
	case Monthly:
		return "monthly"
	}
	return fmt.Sprintf("Frequency(%d)", int(f))
}

// Valid reports whether f is one of the supported units.
func (f Frequency) Valid() bool {
	return f == Daily || f == Weekly || f == Monthly
}

// MinSpan is the shortest distance between two consecutive occurrences of
// the unit. For Monthly this is 28 days (e.g. Jan 31 -> Feb 28).
func (f Frequency) MinSpan() time.Duration {
	switch f {
	case Daily:
		return 24 * time.Hour
	case Weekly:
		return 7 * 24 * time.Hour
	case Monthly:
		return 28 * 24 * time.Hour
	}
	return 0
}

// Advance returns d moved forward by n units. Monthly steps are always taken
// from d itself and clamp the day of month, so Jan 31 advanced by 1 is
// Feb 29 (leap year) and advanced by 2 is Mar 31.
func (f Frequency) Advance(d civil.Date, n int) civil.Date {
	switch f {
	case Daily:
		return d.AddDays(n)
	case Weekly:
		return d.AddDays(7 * n)
	case Monthly:
		return addMonthsClamped(d, n)
	}
	return d
}

// Between returns the number of whole units from a to b: the largest n >= 0
// such that Advance(a, n) is not after b. It is the exact inverse of Advance,
// Between(a, Advance(a, n)) == n. If b is before a the result is negative
// and only meaningful as "before the series".
func (f Frequency) Between(a, b civil.Date) int {
	if b.Before(a) {
		return -1
	}
	switch f {
	case Daily:
		return b.DaysSince(a)
	case Weekly:
		return b.DaysSince(a) / 7
	case Monthly:
		n := (b.Year-a.Year)*12 + int(b.Month-a.Month)
		if addMonthsClamped(a, n).After(b) {
			n--
		}
		return n
	}
	return 0
}

// AdvanceDateTime moves dt forward by n units keeping its time of day.
func (f Frequency) AdvanceDateTime(dt civil.DateTime, n int) civil.DateTime {
	return civil.DateTime{Date: f.Advance(dt.Date, n), Time: dt.Time}
}

func addMonthsClamped(d civil.Date, n int) civil.Date {
	// time.Date normalises the month overflow; day 1 keeps it from rolling.
	first := time.Date(d.Year, d.Month+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	day := d.Day
	if last := daysIn(first.Year(), first.Month()); day > last {
		day = last
	}
	return civil.Date{Year: first.Year(), Month: first.Month(), Day: day}
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
