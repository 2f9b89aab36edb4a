package agenda

import (
	"fmt"

	"cloud.google.com/go/civil"
)

// Termination bounds a repeating series. It is built from either a last
// date or an occurrence count; the other representation is derived at
// construction and both stay fixed afterwards.
type Termination struct {
	start     civil.Date
	frequency Frequency
	until     civil.Date
	count     int
}

// NewTerminationUntil ends the series on the last occurrence starting on or
// before until.
func NewTerminationUntil(start civil.Date, frequency Frequency, until civil.Date) (Termination, error) {
	if !frequency.Valid() {
		return Termination{}, fmt.Errorf("%w: %v", ErrInvalidFrequency, frequency)
	}
	if until.Before(start) {
		return Termination{}, fmt.Errorf("%w: %s is before series start %s", ErrInvalidTermination, until, start)
	}
	return Termination{
		start:     start,
		frequency: frequency,
		until:     until,
		count:     frequency.Between(start, until) + 1,
	}, nil
}

// NewTerminationCount ends the series after n occurrences, the first one
// being the series start.
func NewTerminationCount(start civil.Date, frequency Frequency, n int) (Termination, error) {
	if !frequency.Valid() {
		return Termination{}, fmt.Errorf("%w: %v", ErrInvalidFrequency, frequency)
	}
	if n < 1 {
		return Termination{}, fmt.Errorf("%w: occurrence count %d is below 1", ErrInvalidTermination, n)
	}
	return Termination{
		start:     start,
		frequency: frequency,
		until:     frequency.Advance(start, n-1),
		count:     n,
	}, nil
}

// Start is the series start date the termination was computed from.
func (t Termination) Start() civil.Date { return t.start }

// Frequency is the repetition unit the termination was computed with.
func (t Termination) Frequency() Frequency { return t.frequency }

// Until is the last date on which an occurrence may start.
func (t Termination) Until() civil.Date { return t.until }

// Count is the number of occurrences from the series start through Until.
func (t Termination) Count() int { return t.count }

// Contains reports whether an occurrence starting on d lies within the
// bounds, checked against both the last date and the occurrence count.
func (t Termination) Contains(d civil.Date) bool {
	if d.Before(t.start) || d.After(t.until) {
		return false
	}
	return t.frequency.Between(t.start, d) < t.count
}

func (t Termination) String() string {
	return fmt.Sprintf("until %s (%d occurrences)", t.until, t.count)
}
