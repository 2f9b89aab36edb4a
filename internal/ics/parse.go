// Package ics converts agenda events to and from iCalendar (RFC 5545).
package ics

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"agenda/internal/agenda"
	appLog "agenda/internal/log"
)

// Decode parses a VCALENDAR into agenda events.
//
//   - DTSTART/DTEND are read as floating times; a trailing Z or a TZID
//     parameter is ignored since the agenda has no time zones.
//   - A date-only DTSTART without DTEND lasts one day.
//   - RRULE must be DAILY, WEEKLY or MONTHLY with INTERVAL=1 and COUNT or
//     UNTIL; EXDATEs become exception dates.
//
// VEVENTs that cannot be represented are logged and skipped.
func Decode(r io.Reader) ([]*agenda.Event, error) {
	cal, err := ical.ParseCalendar(r)
	if err != nil {
		appLog.Error("ics parse failed", err)
		return nil, fmt.Errorf("parse ICS: %w", err)
	}

	events := make([]*agenda.Event, 0)
	for _, ve := range cal.Events() {
		ev, perr := parseVEvent(ve)
		if perr != nil {
			appLog.Error("ics vevent skipped", perr, "uid", propValue(ve, ical.ComponentPropertyUniqueId))
			continue
		}
		events = append(events, ev)
	}

	appLog.Info("ics parse completed", "event_count", len(events))
	return events, nil
}

func parseVEvent(ve *ical.VEvent) (*agenda.Event, error) {
	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil || dtStart.Value == "" {
		return nil, errors.New("missing DTSTART")
	}
	start, allDay, err := parseICSTime(dtStart.Value)
	if err != nil {
		return nil, fmt.Errorf("DTSTART: %w", err)
	}

	var duration time.Duration
	if dtEnd := ve.GetProperty(ical.ComponentPropertyDtEnd); dtEnd != nil && dtEnd.Value != "" {
		end, _, err := parseICSTime(dtEnd.Value)
		if err != nil {
			return nil, fmt.Errorf("DTEND: %w", err)
		}
		duration = end.In(time.UTC).Sub(start.In(time.UTC))
	} else if allDay {
		duration = 24 * time.Hour
	}

	ev, err := agenda.NewEvent(textUnescaper.Replace(propValue(ve, ical.ComponentPropertySummary)), start, duration)
	if err != nil {
		return nil, err
	}

	raw := propValue(ve, ical.ComponentPropertyRrule)
	if raw == "" {
		return ev, nil
	}
	opt, err := rrule.StrToROption(raw)
	if err != nil {
		return nil, fmt.Errorf("RRULE %q: %w", raw, err)
	}
	freq, err := frequencyFromRule(opt, start)
	if err != nil {
		return nil, err
	}
	if err := ev.SetRepetition(freq); err != nil {
		return nil, err
	}

	// EXDATE may repeat and may hold a comma-separated list.
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			ex, _, err := parseICSTime(part)
			if err != nil {
				return nil, fmt.Errorf("EXDATE %q: %w", part, err)
			}
			ev.AddException(ex.Date)
		}
	}

	switch {
	case opt.Count > 0:
		err = ev.SetTerminationCount(opt.Count)
	case !opt.Until.IsZero():
		err = ev.SetTerminationDate(untilDate(opt.Until, start))
	}
	if err != nil {
		return nil, err
	}
	return ev, nil
}

// untilDate is the last day an occurrence may start on. An UNTIL earlier in
// the day than DTSTART excludes that day's occurrence.
func untilDate(until time.Time, start civil.DateTime) civil.Date {
	dt := civil.DateTimeOf(until)
	if dt.Before(civil.DateTime{Date: dt.Date, Time: start.Time}) {
		return dt.Date.AddDays(-1)
	}
	return dt.Date
}

// textUnescaper reverses RFC 5545 TEXT escaping.
var textUnescaper = strings.NewReplacer(`\\`, `\`, `\,`, ",", `\;`, ";", `\n`, "\n", `\N`, "\n")

func propValue(ve *ical.VEvent, prop ical.ComponentProperty) string {
	if p := ve.GetProperty(prop); p != nil {
		return p.Value
	}
	return ""
}

// parseICSTime parses a DATE or DATE-TIME value into a floating date-time,
// reporting whether the value was date-only.
func parseICSTime(v string) (civil.DateTime, bool, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return civil.DateTime{}, false, errors.New("empty time value")
	}

	// UTC form, e.g. 20250101T090000Z; kept as wall clock.
	v = strings.TrimSuffix(v, "Z")

	if strings.Contains(v, "T") {
		t, err := time.Parse(floatingLayout, v)
		if err != nil {
			return civil.DateTime{}, false, err
		}
		return civil.DateTimeOf(t), false, nil
	}

	t, err := time.Parse(dateLayout, v)
	if err != nil {
		return civil.DateTime{}, false, err
	}
	return civil.DateTimeOf(t), true, nil
}
