// Package period partitions time into settled months, whose data can no
// longer change and is safe to cache indefinitely, and the open current
// month, which is re-fetched on every run.
package period

import "time"

// KeyLayout is the YYYY-MM month key form. Lexicographic order of keys
// equals chronological order.
const KeyLayout = "2006-01"

// Month is one enumerated calendar month. End is the last second of the
// month, so [Start, End] closes over the whole month.
type Month struct {
	Key   string
	Start time.Time
	End   time.Time
}

// Calendar computes month boundaries in one fixed reference timezone.
// Every timestamp comparison in the pipeline must go through the same
// Calendar, or month boundaries shift by up to a day between components.
type Calendar struct {
	Loc *time.Location
}

// Default returns a Calendar in the reference timezone (UTC).
func Default() Calendar {
	return Calendar{Loc: time.UTC}
}

func (c Calendar) location() *time.Location {
	if c.Loc == nil {
		return time.UTC
	}
	return c.Loc
}

// SettledCutoff returns the first instant of the current calendar month:
// the boundary between settled and open data.
func (c Calendar) SettledCutoff(now time.Time) time.Time {
	t := now.In(c.location())
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, c.location())
}

// IsSettled reports whether t falls strictly before the cutoff.
func (c Calendar) IsSettled(t, cutoff time.Time) bool {
	return t.Before(cutoff)
}

// MonthKey formats t as YYYY-MM in the reference timezone.
func (c Calendar) MonthKey(t time.Time) string {
	return t.In(c.location()).Format(KeyLayout)
}

// MonthRange returns the first instant of the month and the last second
// before the next month begins. time.Date normalizes month+1, so the
// December to January rollover needs no special case.
func (c Calendar) MonthRange(year int, month time.Month) (time.Time, time.Time) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, c.location())
	end := time.Date(year, month+1, 1, 0, 0, 0, 0, c.location()).Add(-time.Second)
	return start, end
}

// EnumerateMonths returns every calendar month from start's month through
// now's month, inclusive, in chronological order. It is a pure function
// of its inputs.
func (c Calendar) EnumerateMonths(start, now time.Time) []Month {
	if now.Before(start) {
		return nil
	}
	s := start.In(c.location())
	n := now.In(c.location())

	var months []Month
	year, month := s.Year(), s.Month()
	for {
		mStart, mEnd := c.MonthRange(year, month)
		months = append(months, Month{Key: mStart.Format(KeyLayout), Start: mStart, End: mEnd})
		if year == n.Year() && month == n.Month() {
			return months
		}
		month++
		if month > time.December {
			month = time.January
			year++
		}
	}
}
