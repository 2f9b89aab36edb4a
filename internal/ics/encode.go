package ics

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/civil"
	ical "github.com/arran4/golang-ical"

	"agenda/internal/agenda"
	appLog "agenda/internal/log"
)

const (
	floatingLayout = "20060102T150405"
	dateLayout     = "20060102"
	defaultProdID  = "-//agenda//agenda//EN"
)

// EncodeOptions controls calendar-level fields of an export.
type EncodeOptions struct {
	// ProductID is written as PRODID; empty uses a default.
	ProductID string
	// Stamp is written as DTSTAMP on every event; zero uses time.Now.
	Stamp time.Time
}

// Encode writes events as a VCALENDAR. Times are written floating (no
// TZID), matching the agenda model.
func Encode(w io.Writer, events []*agenda.Event, opts EncodeOptions) error {
	if opts.ProductID == "" {
		opts.ProductID = defaultProdID
	}
	if opts.Stamp.IsZero() {
		opts.Stamp = time.Now()
	}

	cal := ical.NewCalendar()
	cal.SetProductId(opts.ProductID)

	for i, e := range events {
		ve := cal.AddEvent(eventUID(e, i))
		ve.SetDtStampTime(opts.Stamp)
		ve.SetSummary(e.Title())
		ve.SetProperty(ical.ComponentPropertyDtStart, formatFloating(e.Start()))
		ve.SetProperty(ical.ComponentPropertyDtEnd, formatFloating(e.End()))

		if opt, ok := ruleOption(e); ok {
			ve.SetProperty(ical.ComponentPropertyRrule, opt.RRuleString())
		}
		if r, ok := e.Repetition(); ok {
			for _, ex := range r.Exceptions() {
				ve.AddProperty(ical.ComponentPropertyExdate, formatFloating(civil.DateTime{Date: ex, Time: e.Start().Time}))
			}
		}
	}

	if _, err := io.WriteString(w, cal.Serialize()); err != nil {
		return fmt.Errorf("write ICS: %w", err)
	}
	appLog.Debug("ics encode completed", "event_count", len(events))
	return nil
}

// eventUID derives a stable UID from the event's identity and position.
func eventUID(e *agenda.Event, index int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d|%s|%s", index, e.Title(), e.Start())))
	return hex.EncodeToString(sum[:8]) + "@agenda"
}

func formatFloating(dt civil.DateTime) string {
	return dt.In(time.UTC).Format(floatingLayout)
}
