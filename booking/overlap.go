/*
overlap.go - Conflict detection for candidate reservations

PURPOSE:
  Decides whether a candidate interval conflicts with existing ACTIVE
  reservations for a vehicle. Two-tier design:

  1. PRE-FILTER: For each calendar day the candidate touches, read the
     DayCounter. Count == 0 means no active reservation touches that day,
     so no conflict is possible there and the day is skipped without ever
     querying reservations. This keeps popular vehicles from degenerating
     into full table scans.

  2. PRECISE CHECK: For days with Count > 0, load the active reservations
     touching that day and test TRUE half-open interval overlap between the
     candidate and each existing reservation. The day loop only scopes the
     query; overlap itself is decided on real timestamps, never on
     day-clipped surrogates.

SEE ALSO:
  - engine.go: Runs the same day walk to apply counter increments
*/
package booking

import (
	"context"
	"time"
)

// OverlapDetector answers "does this candidate interval conflict?" against a
// read view of the store.
type OverlapDetector struct {
	Store Store
}

// Conflicts reports whether [start, end) overlaps any ACTIVE reservation for
// the vehicle.
func (d *OverlapDetector) Conflicts(ctx context.Context, vehicleID VehicleID, start, end time.Time) (bool, error) {
	for _, day := range DaysCovered(start, end) {
		counter, ok, err := d.Store.GetCounter(ctx, vehicleID, day)
		if err != nil {
			return false, err
		}
		if !ok || counter.Count == 0 {
			continue
		}

		conflict, err := d.ConflictsOnDay(ctx, vehicleID, day, start, end)
		if err != nil {
			return false, err
		}
		if conflict {
			return true, nil
		}
	}
	return false, nil
}

// ConflictsOnDay runs the precise interval check restricted to the active
// reservations touching one day. The candidate interval is NOT clipped to the
// day: an existing multi-day reservation surfaced via this day must still be
// compared against the full candidate range.
func (d *OverlapDetector) ConflictsOnDay(ctx context.Context, vehicleID VehicleID, day Date, start, end time.Time) (bool, error) {
	existing, err := d.Store.ActiveOnDay(ctx, vehicleID, day)
	if err != nil {
		return false, err
	}
	for _, r := range existing {
		if r.Overlaps(start, end) {
			return true, nil
		}
	}
	return false, nil
}
