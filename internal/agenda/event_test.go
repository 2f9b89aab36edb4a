package agenda

import (
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
)

func mustEvent(t *testing.T, title string, start civil.DateTime, d time.Duration) *Event {
	t.Helper()
	e, err := NewEvent(title, start, d)
	if err != nil {
		t.Fatalf("NewEvent(%q): %v", title, err)
	}
	return e
}

func mustRepeat(t *testing.T, e *Event, f Frequency) {
	t.Helper()
	if err := e.SetRepetition(f); err != nil {
		t.Fatalf("SetRepetition(%v): %v", f, err)
	}
}

type dayCase struct {
	day  civil.Date
	want bool
}

func checkDays(t *testing.T, e *Event, cases []dayCase) {
	t.Helper()
	for _, c := range cases {
		if got := e.IsInDay(c.day); got != c.want {
			t.Errorf("%s IsInDay(%s) = %v, want %v", e.Title(), c.day, got, c.want)
		}
	}
}

func TestIsInDaySingleOccurrence(t *testing.T) {
	t.Parallel()

	e := mustEvent(t, "late call", datetime(2024, 1, 10, 23, 0), 2*time.Hour)

	checkDays(t, e, []dayCase{
		{date(2024, 1, 9), false},
		{date(2024, 1, 10), true},
		{date(2024, 1, 11), true},
		{date(2024, 1, 12), false},
	})
}

func TestIsInDaySingleEndsAtMidnight(t *testing.T) {
	t.Parallel()

	e := mustEvent(t, "evening", datetime(2024, 1, 10, 22, 0), 2*time.Hour)

	checkDays(t, e, []dayCase{
		{date(2024, 1, 10), true},
		{date(2024, 1, 11), false},
	})
}

func TestIsInDayWeeklyException(t *testing.T) {
	t.Parallel()

	e := mustEvent(t, "weekly sync", datetime(2024, 1, 1, 10, 0), time.Hour)
	mustRepeat(t, e, Weekly)
	e.AddException(date(2024, 1, 15))

	checkDays(t, e, []dayCase{
		{date(2024, 1, 1), true},
		{date(2024, 1, 2), false},
		{date(2024, 1, 8), true},
		{date(2024, 1, 15), false},
		{date(2024, 1, 22), true},
	})
}

func TestIsInDayDailyTerminatedByCount(t *testing.T) {
	t.Parallel()

	e := mustEvent(t, "daily", datetime(2024, 1, 1, 0, 0), time.Hour)
	mustRepeat(t, e, Daily)
	if err := e.SetTerminationCount(3); err != nil {
		t.Fatal(err)
	}

	checkDays(t, e, []dayCase{
		{date(2024, 1, 1), true},
		{date(2024, 1, 3), true},
		{date(2024, 1, 4), false},
	})
	if got := e.NumberOfOccurrences(); got != 3 {
		t.Errorf("NumberOfOccurrences() = %d, want 3", got)
	}
	if got, ok := e.TerminationDate(); !ok || got != date(2024, 1, 3) {
		t.Errorf("TerminationDate() = %s, %v; want 2024-01-03", got, ok)
	}
}

func TestIsInDayWeeklyTerminatedByDate(t *testing.T) {
	t.Parallel()

	e := mustEvent(t, "weekly", datetime(2024, 1, 1, 9, 0), 30*time.Minute)
	mustRepeat(t, e, Weekly)
	if err := e.SetTerminationDate(date(2024, 1, 20)); err != nil {
		t.Fatal(err)
	}

	checkDays(t, e, []dayCase{
		{date(2024, 1, 15), true},
		{date(2024, 1, 22), false},
	})
	if got := e.NumberOfOccurrences(); got != 3 {
		t.Errorf("NumberOfOccurrences() = %d, want 3", got)
	}
}

func TestIsInDayMonthlyClamp(t *testing.T) {
	t.Parallel()

	e := mustEvent(t, "month end", datetime(2024, 1, 31, 10, 0), time.Hour)
	mustRepeat(t, e, Monthly)

	checkDays(t, e, []dayCase{
		{date(2024, 1, 31), true},
		{date(2024, 2, 28), false},
		{date(2024, 2, 29), true},
		{date(2024, 3, 1), false},
		{date(2024, 3, 30), false},
		{date(2024, 3, 31), true},
		{date(2024, 4, 30), true},
		{date(2024, 5, 1), false},
		{date(2024, 5, 31), true},
		{date(2025, 2, 28), true},
	})

	// Exactly one landing per month over two years.
	for m := 0; m < 24; m++ {
		first := civil.DateOf(time.Date(2024, time.Month(1+m), 1, 0, 0, 0, 0, time.UTC))
		hits := 0
		for d := first; d.Month == first.Month; d = d.AddDays(1) {
			if e.IsInDay(d) {
				hits++
			}
		}
		if hits != 1 {
			t.Errorf("%d-%02d: %d occurrences, want 1", first.Year, first.Month, hits)
		}
	}
}

func TestIsInDayOvernightRepetition(t *testing.T) {
	t.Parallel()

	e := mustEvent(t, "night shift", datetime(2024, 1, 1, 23, 0), 2*time.Hour)
	mustRepeat(t, e, Daily)
	if err := e.SetTerminationCount(2); err != nil {
		t.Fatal(err)
	}

	checkDays(t, e, []dayCase{
		{date(2024, 1, 1), true},
		{date(2024, 1, 2), true},
		{date(2024, 1, 3), true},
		{date(2024, 1, 4), false},
	})

	occ, ok := e.OccurrenceOn(date(2024, 1, 3))
	if !ok {
		t.Fatal("expected an occurrence on 2024-01-03")
	}
	if occ.Index != 1 || occ.Start != datetime(2024, 1, 2, 23, 0) || occ.End != datetime(2024, 1, 3, 1, 0) {
		t.Errorf("OccurrenceOn(2024-01-03) = %+v", occ)
	}
}

func TestIsInDayExceptionSuppressesDay(t *testing.T) {
	t.Parallel()

	e := mustEvent(t, "night shift", datetime(2024, 1, 1, 23, 0), 2*time.Hour)
	mustRepeat(t, e, Daily)
	if err := e.SetTerminationCount(2); err != nil {
		t.Fatal(err)
	}
	e.AddException(date(2024, 1, 2))

	checkDays(t, e, []dayCase{
		// The spill-over of the first occurrence is hidden by the exception.
		{date(2024, 1, 2), false},
		// The excepted occurrence does not spill into the next day.
		{date(2024, 1, 3), false},
		{date(2024, 1, 1), true},
	})
}

func TestIsInDayBeforeSeriesStart(t *testing.T) {
	t.Parallel()

	for _, f := range []Frequency{Daily, Weekly, Monthly} {
		t.Run(f.String(), func(t *testing.T) {
			e := mustEvent(t, "series", datetime(2024, 3, 15, 8, 0), time.Hour)
			mustRepeat(t, e, f)
			if err := e.SetTerminationCount(5); err != nil {
				t.Fatal(err)
			}
			for d := date(2024, 1, 1); d.Before(date(2024, 3, 15)); d = d.AddDays(1) {
				if e.IsInDay(d) {
					t.Fatalf("IsInDay(%s) = true before series start", d)
				}
			}
		})
	}
}

func TestAccessorsWithoutTermination(t *testing.T) {
	t.Parallel()

	e := mustEvent(t, "plain", datetime(2024, 5, 1, 12, 0), 90*time.Minute)

	if e.NumberOfOccurrences() != 0 {
		t.Errorf("NumberOfOccurrences() = %d, want 0", e.NumberOfOccurrences())
	}
	if _, ok := e.TerminationDate(); ok {
		t.Error("TerminationDate() reported a date without repetition")
	}

	// Exceptions and terminations are ignored without a repetition.
	e.AddException(date(2024, 5, 1))
	if err := e.SetTerminationCount(4); err != nil {
		t.Fatal(err)
	}
	if !e.IsInDay(date(2024, 5, 1)) {
		t.Error("exception must not apply to a non-repeating event")
	}
	if e.NumberOfOccurrences() != 0 {
		t.Error("termination must not apply to a non-repeating event")
	}

	mustRepeat(t, e, Daily)
	if e.NumberOfOccurrences() != 0 {
		t.Errorf("NumberOfOccurrences() = %d, want 0 for unbounded repetition", e.NumberOfOccurrences())
	}
	if _, ok := e.TerminationDate(); ok {
		t.Error("TerminationDate() reported a date for unbounded repetition")
	}

	if e.Title() != "plain" || e.Duration() != 90*time.Minute || e.Start() != datetime(2024, 5, 1, 12, 0) {
		t.Errorf("unexpected accessors: %s", e)
	}
	if e.End() != datetime(2024, 5, 1, 13, 30) {
		t.Errorf("End() = %s", e.End())
	}
}

func TestSetRepetitionReplaces(t *testing.T) {
	t.Parallel()

	e := mustEvent(t, "standup", datetime(2024, 1, 1, 9, 0), 15*time.Minute)
	mustRepeat(t, e, Daily)
	e.AddException(date(2024, 1, 2))
	if err := e.SetTerminationCount(2); err != nil {
		t.Fatal(err)
	}

	mustRepeat(t, e, Daily)

	r, ok := e.Repetition()
	if !ok {
		t.Fatal("expected a repetition")
	}
	if len(r.Exceptions()) != 0 {
		t.Errorf("exceptions survived SetRepetition: %v", r.Exceptions())
	}
	if _, ok := r.Termination(); ok {
		t.Error("termination survived SetRepetition")
	}
	if !e.IsInDay(date(2024, 1, 2)) || !e.IsInDay(date(2024, 1, 10)) {
		t.Error("replaced repetition should be unbounded without exceptions")
	}
}

func TestEventValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewEvent("negative", datetime(2024, 1, 1, 0, 0), -time.Minute); !errors.Is(err, ErrInvalidDuration) {
		t.Errorf("negative duration: err = %v, want ErrInvalidDuration", err)
	}

	long := mustEvent(t, "long", datetime(2024, 1, 1, 0, 0), 25*time.Hour)
	if err := long.SetRepetition(Daily); !errors.Is(err, ErrInvalidDuration) {
		t.Errorf("daily 25h: err = %v, want ErrInvalidDuration", err)
	}
	if _, ok := long.Repetition(); ok {
		t.Error("failed SetRepetition must not attach a repetition")
	}
	if err := long.SetRepetition(Weekly); err != nil {
		t.Errorf("weekly 25h: %v", err)
	}

	day := mustEvent(t, "full day", datetime(2024, 1, 1, 0, 0), 24*time.Hour)
	if err := day.SetRepetition(Daily); !errors.Is(err, ErrInvalidDuration) {
		t.Errorf("daily 24h: err = %v, want ErrInvalidDuration", err)
	}

	e := mustEvent(t, "e", datetime(2024, 1, 10, 0, 0), time.Hour)
	if err := e.SetRepetition(Frequency(0)); !errors.Is(err, ErrInvalidFrequency) {
		t.Errorf("zero frequency: err = %v, want ErrInvalidFrequency", err)
	}
	mustRepeat(t, e, Weekly)
	if err := e.SetTerminationDate(date(2024, 1, 9)); !errors.Is(err, ErrInvalidTermination) {
		t.Errorf("until before start: err = %v, want ErrInvalidTermination", err)
	}
	if err := e.SetTerminationCount(0); !errors.Is(err, ErrInvalidTermination) {
		t.Errorf("count 0: err = %v, want ErrInvalidTermination", err)
	}
}
