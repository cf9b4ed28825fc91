package booking

import (
	"testing"
	"time"
)

func TestDaysCovered_SingleDay(t *testing.T) {
	// An interval contained in one calendar day covers exactly that day.
	start := time.Date(2026, time.March, 11, 10, 0, 0, 0, time.UTC)
	days := DaysCovered(start, start.Add(2*time.Hour))
	if len(days) != 1 {
		t.Fatalf("expected 1 day, got %d", len(days))
	}
	if days[0] != (Date{Year: 2026, Month: time.March, Day: 11}) {
		t.Errorf("unexpected day %s", days[0])
	}
}

func TestDaysCovered_SpansMidnightAndMonthBoundary(t *testing.T) {
	// March 30 18:00 through April 2 09:00 covers four calendar days.
	start := time.Date(2026, time.March, 30, 18, 0, 0, 0, time.UTC)
	end := time.Date(2026, time.April, 2, 9, 0, 0, 0, time.UTC)

	days := DaysCovered(start, end)
	want := []string{"2026-03-30", "2026-03-31", "2026-04-01", "2026-04-02"}
	if len(days) != len(want) {
		t.Fatalf("expected %d days, got %d", len(want), len(days))
	}
	for i, d := range days {
		if d.String() != want[i] {
			t.Errorf("day %d: expected %s, got %s", i, want[i], d)
		}
	}
}

func TestDaysCovered_EndExactlyAtMidnight(t *testing.T) {
	// An interval ending at 00:00 still counts the midnight day, because
	// the end instant falls on it.
	start := time.Date(2026, time.March, 11, 22, 0, 0, 0, time.UTC)
	end := time.Date(2026, time.March, 12, 0, 0, 0, 0, time.UTC)

	days := DaysCovered(start, end)
	if len(days) != 2 {
		t.Fatalf("expected 2 days, got %d", len(days))
	}
}

func TestDateOf_NormalizesToUTC(t *testing.T) {
	// 23:30 in UTC+2 is 21:30 UTC of the same day; 01:30 in UTC+2 is
	// 23:30 UTC of the previous day.
	zone := time.FixedZone("CEST", 2*60*60)

	d := DateOf(time.Date(2026, time.March, 11, 23, 30, 0, 0, zone))
	if d.Day != 11 {
		t.Errorf("expected day 11, got %d", d.Day)
	}

	d = DateOf(time.Date(2026, time.March, 11, 1, 30, 0, 0, zone))
	if d.Day != 10 {
		t.Errorf("expected day 10, got %d", d.Day)
	}
}

func TestParseDate_RoundTrip(t *testing.T) {
	d, err := ParseDate("2026-03-11")
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if d.String() != "2026-03-11" {
		t.Errorf("round trip mismatch: %s", d)
	}

	if _, err := ParseDate("11/03/2026"); err == nil {
		t.Errorf("expected error for non ISO input")
	}
}

func TestOverlapsInterval_HalfOpenSemantics(t *testing.T) {
	base := time.Date(2026, time.March, 11, 10, 0, 0, 0, time.UTC)
	h := func(n int) time.Time { return base.Add(time.Duration(n) * time.Hour) }

	cases := []struct {
		name         string
		aStart, aEnd time.Time
		bStart, bEnd time.Time
		want         bool
	}{
		{"disjoint", h(0), h(2), h(3), h(5), false},
		{"back to back", h(0), h(2), h(2), h(4), false},
		{"partial overlap", h(0), h(3), h(2), h(5), true},
		{"containment", h(0), h(6), h(2), h(3), true},
		{"identical", h(0), h(2), h(0), h(2), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := OverlapsInterval(tc.aStart, tc.aEnd, tc.bStart, tc.bEnd); got != tc.want {
				t.Errorf("expected %v, got %v", tc.want, got)
			}
			// Overlap is symmetric.
			if got := OverlapsInterval(tc.bStart, tc.bEnd, tc.aStart, tc.aEnd); got != tc.want {
				t.Errorf("symmetry broken: expected %v, got %v", tc.want, got)
			}
		})
	}
}
