/*
reconcile.go - Day-counter reconciliation

PURPOSE:
  Counters are maintained incrementally by Reserve and Cancel, which makes
  them vulnerable to drift from bugs, crashes mid-operation, or manual data
  edits. RecomputeAllCounters rebuilds every counter from the ground truth:
  the set of currently ACTIVE reservations. It is an idempotent repair tool,
  safe to run while normal traffic is flowing because it writes under the
  same revision discipline as everyone else: a concurrent reserve attempt
  may legitimately lose to it and retry.
*/
package booking

import "context"

type counterKey struct {
	VehicleID VehicleID
	Date      Date
}

// RecomputeAllCounters rebuilds every DayCounter from the ACTIVE reservation
// set: rows no active reservation touches go to 0, everything else gets the
// count of active reservations covering that day. All writes commit in a
// single transaction.
//
// Rows already holding their correct count are left untouched, so running
// the job twice in a row writes nothing the second time.
func (e *Engine) RecomputeAllCounters(ctx context.Context) error {
	return e.Store.WithTx(ctx, func(tx Store) error {
		existing, err := tx.ListCounters(ctx)
		if err != nil {
			return err
		}
		active, err := tx.ListActive(ctx)
		if err != nil {
			return err
		}

		// Ground truth: re-apply the per-day increment for every active
		// reservation, without overlap checking.
		truth := make(map[counterKey]int)
		for _, res := range active {
			for _, day := range res.CoveredDays() {
				truth[counterKey{VehicleID: res.VehicleID, Date: day}]++
			}
		}

		seen := make(map[counterKey]bool, len(existing))
		for _, counter := range existing {
			k := counterKey{VehicleID: counter.VehicleID, Date: counter.Date}
			seen[k] = true

			target := truth[k]
			if counter.Count == target {
				continue
			}
			counter.Count = target
			if err := tx.UpsertCounter(ctx, counter); err != nil {
				return err
			}
		}

		// Active reservations touching days that never got a counter row.
		for k, target := range truth {
			if seen[k] {
				continue
			}
			counter := DayCounter{VehicleID: k.VehicleID, Date: k.Date, Count: target}
			if err := tx.UpsertCounter(ctx, counter); err != nil {
				return err
			}
		}
		return nil
	})
}
