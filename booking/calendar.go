package booking

import (
	"fmt"
	"time"
)

// =============================================================================
// DATE - A calendar day with no time component
// =============================================================================

// Date identifies a calendar day (UTC). It is the second half of the
// DayCounter key, so it must be a comparable value type.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar day containing t, interpreted in UTC.
func DateOf(t time.Time) Date {
	u := t.UTC()
	return Date{Year: u.Year(), Month: u.Month(), Day: u.Day()}
}

// ParseDate parses "2006-01-02".
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// Time returns midnight UTC of the day.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// Next returns the following calendar day.
func (d Date) Next() Date {
	return DateOf(d.Time().AddDate(0, 0, 1))
}

func (d Date) Before(other Date) bool { return d.Time().Before(other.Time()) }
func (d Date) After(other Date) bool  { return d.Time().After(other.Time()) }

func (d Date) String() string {
	return d.Time().Format("2006-01-02")
}

// =============================================================================
// DAY ENUMERATION
// =============================================================================

// DaysCovered enumerates every calendar day from start's day through end's
// day inclusive. This is the canonical enumeration used by the orchestrator
// (counter increments), cancellation (decrements) and reconciliation, so the
// three always agree on which rows a reservation touches.
func DaysCovered(start, end time.Time) []Date {
	first := DateOf(start)
	last := DateOf(end)

	var days []Date
	for d := first; !d.After(last); d = d.Next() {
		days = append(days, d)
	}
	return days
}

// OverlapsInterval reports whether the half-open intervals [aStart, aEnd) and
// [bStart, bEnd) overlap. This is the precise test conflicts are anchored to;
// day boundaries never enter into it.
func OverlapsInterval(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}
