package agenda

import (
	"fmt"
	"sort"

	"cloud.google.com/go/civil"
)

// Repetition holds how an event repeats: its unit, the dates on which an
// occurrence is suppressed, and an optional termination. A Repetition is
// owned by a single Event and is not safe for concurrent mutation.
type Repetition struct {
	frequency  Frequency
	exceptions map[civil.Date]struct{}

	termination Termination
	bounded     bool
}

// NewRepetition returns an unbounded repetition with no exceptions.
func NewRepetition(frequency Frequency) (*Repetition, error) {
	if !frequency.Valid() {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFrequency, frequency)
	}
	return &Repetition{
		frequency:  frequency,
		exceptions: make(map[civil.Date]struct{}),
	}, nil
}

// Frequency returns the repetition unit. It never changes.
func (r *Repetition) Frequency() Frequency {
	return r.frequency
}

// AddException suppresses occurrences on d. Adding a date twice is a no-op.
func (r *Repetition) AddException(d civil.Date) {
	r.exceptions[d] = struct{}{}
}

// IsException reports whether d has been excepted.
func (r *Repetition) IsException(d civil.Date) bool {
	_, ok := r.exceptions[d]
	return ok
}

// Exceptions returns the excepted dates in chronological order.
func (r *Repetition) Exceptions() []civil.Date {
	out := make([]civil.Date, 0, len(r.exceptions))
	for d := range r.exceptions {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Before(out[j])
	})
	return out
}

// SetTermination replaces any earlier termination.
func (r *Repetition) SetTermination(t Termination) {
	r.termination = t
	r.bounded = true
}

// ClearTermination makes the repetition unbounded again.
func (r *Repetition) ClearTermination() {
	r.termination = Termination{}
	r.bounded = false
}

// Termination returns the current termination, if any.
func (r *Repetition) Termination() (Termination, bool) {
	return r.termination, r.bounded
}

// IsValid reports whether an occurrence starting on d materializes: d is not
// an exception and, when the repetition is bounded, d falls within the
// termination.
func (r *Repetition) IsValid(d civil.Date) bool {
	if r.IsException(d) {
		return false
	}
	if t, ok := r.Termination(); ok {
		return t.Contains(d)
	}
	return true
}
