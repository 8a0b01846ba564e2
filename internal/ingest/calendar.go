package ingest

import (
	"time"

	"github.com/scmhub/calendar"
)

// TradingCalendar answers whether an exchange trades on a given date.
type TradingCalendar struct {
	cal *calendar.Calendar
	loc *time.Location
}

// NewTradingCalendar loads the calendar for an exchange MIC ("xnse", "xnys", ...).
// Unknown MICs fall back to a Monday-to-Friday week.
func NewTradingCalendar(mic string) *TradingCalendar {
	cal := calendar.GetCalendar(mic)
	if cal == nil {
		return &TradingCalendar{loc: time.UTC}
	}
	return &TradingCalendar{cal: cal, loc: cal.Loc}
}

// IsTradingDay reports whether the UTC calendar date of day is a session day.
func (tc *TradingCalendar) IsTradingDay(day time.Time) bool {
	// midday keeps the date stable for exchanges a few hours off UTC
	noon := time.Date(day.Year(), day.Month(), day.Day(), 12, 0, 0, 0, time.UTC)
	if tc.loc != nil {
		noon = noon.In(tc.loc)
	}
	if tc.cal == nil {
		wd := noon.Weekday()
		return wd != time.Saturday && wd != time.Sunday
	}
	return tc.cal.IsBusinessDay(noon)
}

// Window is a half-open [From, To) fetch range.
type Window struct {
	From time.Time
	To   time.Time
}

// Windows splits [from, to) into chunks of at most chunkDays days. Each chunk
// is trimmed to its first and last trading day; chunks without one are dropped.
func Windows(from, to time.Time, chunkDays int, tc *TradingCalendar) []Window {
	if chunkDays <= 0 {
		chunkDays = 1
	}
	from = truncateDay(from)

	var out []Window
	for start := from; start.Before(to); start = start.AddDate(0, 0, chunkDays) {
		end := start.AddDate(0, 0, chunkDays)
		if end.After(to) {
			end = to
		}

		var first, last time.Time
		for day := start; day.Before(end); day = day.AddDate(0, 0, 1) {
			if tc != nil && !tc.IsTradingDay(day) {
				continue
			}
			if first.IsZero() {
				first = day
			}
			last = day
		}
		if first.IsZero() {
			continue
		}

		windowEnd := last.AddDate(0, 0, 1)
		if windowEnd.After(to) {
			windowEnd = to
		}
		out = append(out, Window{From: first, To: windowEnd})
	}
	return out
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
