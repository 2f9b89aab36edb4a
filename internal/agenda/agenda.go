package agenda

import "cloud.google.com/go/civil"

// Agenda is an ordered collection of events.
type Agenda struct {
	events []*Event
}

// Add appends e. Nil events are ignored.
func (a *Agenda) Add(e *Event) {
	if e == nil {
		return
	}
	a.events = append(a.events, e)
}

// Events returns the events in insertion order.
func (a *Agenda) Events() []*Event {
	out := make([]*Event, len(a.events))
	copy(out, a.events)
	return out
}

// Len returns the number of events.
func (a *Agenda) Len() int {
	return len(a.events)
}

// EventsInDay returns the events occurring on day, in insertion order.
func (a *Agenda) EventsInDay(day civil.Date) []*Event {
	out := make([]*Event, 0)
	for _, e := range a.events {
		if e.IsInDay(day) {
			out = append(out, e)
		}
	}
	return out
}

// OccurrencesInDay returns the occurrence of each event overlapping day.
func (a *Agenda) OccurrencesInDay(day civil.Date) []Occurrence {
	out := make([]Occurrence, 0)
	for _, e := range a.events {
		if occ, ok := e.OccurrenceOn(day); ok {
			out = append(out, occ)
		}
	}
	return out
}
