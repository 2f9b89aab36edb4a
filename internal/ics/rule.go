package ics

import (
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/teambition/rrule-go"

	"agenda/internal/agenda"
)

// ErrUnsupportedRule is returned when an RRULE cannot be expressed as a
// fixed daily, weekly or monthly repetition.
var ErrUnsupportedRule = errors.New("ics: unsupported recurrence rule")

// ruleOption builds the RFC 5545 rule equivalent to e's repetition.
//
// Monthly anchors past the 28th use BYMONTHDAY=28..d with BYSETPOS=-1 so the
// last existing day is picked in short months, which is the clamping done
// by agenda.Monthly.
func ruleOption(e *agenda.Event) (*rrule.ROption, bool) {
	r, ok := e.Repetition()
	if !ok {
		return nil, false
	}

	opt := &rrule.ROption{
		Dtstart:  e.Start().In(time.UTC),
		Interval: 1,
	}
	switch r.Frequency() {
	case agenda.Daily:
		opt.Freq = rrule.DAILY
	case agenda.Weekly:
		opt.Freq = rrule.WEEKLY
	case agenda.Monthly:
		opt.Freq = rrule.MONTHLY
		if anchor := e.Start().Date.Day; anchor > 28 {
			for d := 28; d <= anchor; d++ {
				opt.Bymonthday = append(opt.Bymonthday, d)
			}
			opt.Bysetpos = []int{-1}
		}
	}
	if t, ok := r.Termination(); ok {
		opt.Count = t.Count()
	}
	return opt, true
}

// frequencyFromRule maps a parsed RRULE back onto an agenda frequency. Only
// rules produced by ruleOption, or plain FREQ/INTERVAL=1/COUNT/UNTIL rules,
// are accepted.
func frequencyFromRule(opt *rrule.ROption, start civil.DateTime) (agenda.Frequency, error) {
	if opt.Interval > 1 {
		return 0, fmt.Errorf("%w: INTERVAL=%d", ErrUnsupportedRule, opt.Interval)
	}
	if len(opt.Byweekday) > 0 || len(opt.Bymonth) > 0 || len(opt.Byyearday) > 0 ||
		len(opt.Byweekno) > 0 || len(opt.Byhour) > 0 || len(opt.Byminute) > 0 ||
		len(opt.Bysecond) > 0 || len(opt.Byeaster) > 0 {
		return 0, fmt.Errorf("%w: BY* parts", ErrUnsupportedRule)
	}

	switch opt.Freq {
	case rrule.DAILY, rrule.WEEKLY:
		if len(opt.Bymonthday) > 0 || len(opt.Bysetpos) > 0 {
			return 0, fmt.Errorf("%w: BYMONTHDAY on %v rule", ErrUnsupportedRule, opt.Freq)
		}
		if opt.Freq == rrule.DAILY {
			return agenda.Daily, nil
		}
		return agenda.Weekly, nil
	case rrule.MONTHLY:
		if !isClampPattern(opt, start.Date.Day) {
			return 0, fmt.Errorf("%w: BYMONTHDAY=%v BYSETPOS=%v", ErrUnsupportedRule, opt.Bymonthday, opt.Bysetpos)
		}
		return agenda.Monthly, nil
	}
	return 0, fmt.Errorf("%w: FREQ=%v", ErrUnsupportedRule, opt.Freq)
}

// isClampPattern reports whether a monthly rule lands where agenda.Monthly
// does. Anchors up to the 28th exist in every month, so a plain rule or
// BYMONTHDAY=<anchor> matches. Later anchors only match the BYSETPOS=-1
// form written by ruleOption; a plain rule would skip short months.
func isClampPattern(opt *rrule.ROption, anchor int) bool {
	if anchor <= 28 {
		if len(opt.Bysetpos) > 0 {
			return false
		}
		return len(opt.Bymonthday) == 0 || len(opt.Bymonthday) == 1 && opt.Bymonthday[0] == anchor
	}
	if len(opt.Bysetpos) != 1 || opt.Bysetpos[0] != -1 {
		return false
	}
	if len(opt.Bymonthday) != anchor-27 {
		return false
	}
	for i, d := range opt.Bymonthday {
		if d != 28+i {
			return false
		}
	}
	return true
}
