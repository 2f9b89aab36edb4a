package agenda

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"
)

// Event is a titled span of time starting at a civil date-time. Without a
// repetition it occurs exactly once, over [Start, Start+Duration).
type Event struct {
	title    string
	start    civil.DateTime
	duration time.Duration

	repetition *Repetition
}

// Occurrence is one materialized instance of an event.
type Occurrence struct {
	Title string
	// Index is the number of units between the series start and Start;
	// always 0 for a non-repeating event.
	Index int
	Start civil.DateTime
	End   civil.DateTime
}

// NewEvent creates a non-repeating event.
func NewEvent(title string, start civil.DateTime, duration time.Duration) (*Event, error) {
	if duration < 0 {
		return nil, fmt.Errorf("%w: %s is negative", ErrInvalidDuration, duration)
	}
	return &Event{
		title:    title,
		start:    start,
		duration: duration,
	}, nil
}

// SetRepetition makes the event repeat every unit of frequency. Any earlier
// repetition, with its exceptions and termination, is replaced. The event's
// duration must be shorter than frequency.MinSpan().
func (e *Event) SetRepetition(frequency Frequency) error {
	if frequency.Valid() && e.duration >= frequency.MinSpan() {
		return fmt.Errorf("%w: %s is not shorter than one %s period", ErrInvalidDuration, e.duration, frequency)
	}
	r, err := NewRepetition(frequency)
	if err != nil {
		return err
	}
	e.repetition = r
	return nil
}

// Repetition returns the event's repetition, if any.
func (e *Event) Repetition() (*Repetition, bool) {
	return e.repetition, e.repetition != nil
}

// AddException suppresses the occurrence on d. It does nothing for a
// non-repeating event.
func (e *Event) AddException(d civil.Date) {
	if r, ok := e.Repetition(); ok {
		r.AddException(d)
	}
}

// SetTerminationDate bounds the series to occurrences starting on or before
// until. It does nothing for a non-repeating event.
func (e *Event) SetTerminationDate(until civil.Date) error {
	r, ok := e.Repetition()
	if !ok {
		return nil
	}
	t, err := NewTerminationUntil(e.start.Date, r.Frequency(), until)
	if err != nil {
		return err
	}
	r.SetTermination(t)
	return nil
}

// SetTerminationCount bounds the series to n occurrences. It does nothing
// for a non-repeating event.
func (e *Event) SetTerminationCount(n int) error {
	r, ok := e.Repetition()
	if !ok {
		return nil
	}
	t, err := NewTerminationCount(e.start.Date, r.Frequency(), n)
	if err != nil {
		return err
	}
	r.SetTermination(t)
	return nil
}

// NumberOfOccurrences returns the occurrence count of a terminated series,
// or 0 when the event does not repeat or repeats forever.
func (e *Event) NumberOfOccurrences() int {
	if t, ok := e.termination(); ok {
		return t.Count()
	}
	return 0
}

// TerminationDate returns the last date a terminated series may start an
// occurrence on.
func (e *Event) TerminationDate() (civil.Date, bool) {
	if t, ok := e.termination(); ok {
		return t.Until(), true
	}
	return civil.Date{}, false
}

func (e *Event) termination() (Termination, bool) {
	r, ok := e.Repetition()
	if !ok {
		return Termination{}, false
	}
	return r.Termination()
}

// IsInDay reports whether any occurrence of the event overlaps day.
func (e *Event) IsInDay(day civil.Date) bool {
	_, ok := e.OccurrenceOn(day)
	return ok
}

// OccurrenceOn returns the occurrence overlapping day. When two occurrences
// touch the day, the earlier one is returned.
func (e *Event) OccurrenceOn(day civil.Date) (Occurrence, bool) {
	r, ok := e.Repetition()
	if !ok {
		occ := e.occurrence(0, e.start)
		return occ, overlapsDay(occ, day)
	}

	if r.IsException(day) {
		return Occurrence{}, false
	}
	if day.Before(e.start.Date) {
		return Occurrence{}, false
	}

	// An occurrence from the previous unit may still run into day.
	k := r.Frequency().Between(e.start.Date, day)
	for j := k - 1; j <= k; j++ {
		if j < 0 {
			continue
		}
		occ := e.occurrence(j, r.Frequency().AdvanceDateTime(e.start, j))
		if !r.IsValid(occ.Start.Date) {
			continue
		}
		if overlapsDay(occ, day) {
			return occ, true
		}
	}
	return Occurrence{}, false
}

func (e *Event) occurrence(index int, start civil.DateTime) Occurrence {
	return Occurrence{
		Title: e.title,
		Index: index,
		Start: start,
		End:   civil.DateTimeOf(start.In(time.UTC).Add(e.duration)),
	}
}

// overlapsDay tests [occ.Start, occ.End) against the half-open day.
func overlapsDay(occ Occurrence, day civil.Date) bool {
	dayStart := day.In(time.UTC)
	dayEnd := day.AddDays(1).In(time.UTC)
	return occ.Start.In(time.UTC).Before(dayEnd) && occ.End.In(time.UTC).After(dayStart)
}

// Title returns the event title.
func (e *Event) Title() string { return e.title }

// Start returns the start of the first occurrence.
func (e *Event) Start() civil.DateTime { return e.start }

// Duration returns the length of every occurrence.
func (e *Event) Duration() time.Duration { return e.duration }

// End returns the end of the first occurrence.
func (e *Event) End() civil.DateTime {
	return civil.DateTimeOf(e.start.In(time.UTC).Add(e.duration))
}

func (e *Event) String() string {
	return fmt.Sprintf("Event{title=%q, start=%s, duration=%s}", e.title, e.start, e.duration)
}
