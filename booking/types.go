/*
Package booking provides the reservation engine for the vehicle rental platform.

PURPOSE:
  This package contains the domain types and algorithms for admitting vehicle
  reservations under concurrency. Given a vehicle, a requester, and a half-open
  time interval, the engine admits the reservation only if no other ACTIVE
  reservation for that vehicle overlaps the interval, and it stays correct when
  many requests race for the same vehicle.

KEY CONCEPTS IN THIS FILE (types.go):
  - Reservation: A time-bounded claim on a vehicle, with a state machine
  - DayCounter: Per-(vehicle, day) occupancy counter used as a lock surrogate
  - Vehicle: The rentable asset, priced per hour
  - Typed IDs: Strong typing prevents mixing vehicle/requester/reservation IDs

DESIGN PRINCIPLES:
  1. No locks: Mutual exclusion is emergent from DayCounter revision clashes
  2. Precision: Uses decimal.Decimal for money to avoid floating-point errors
  3. Unidirectional ownership: Records hold IDs, never object back-references
  4. Half-open intervals: [Start, End) everywhere, so back-to-back bookings
     on the same vehicle never collide

SEE ALSO:
  - store.go: Persistence contracts (revision-checked writes)
  - overlap.go: Conflict detection against existing active reservations
  - engine.go: The transactional reserve/cancel/expire workflows
*/
package booking

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type VehicleID string
type RequesterID string
type ReservationID string

// =============================================================================
// RESERVATION - A claim on a vehicle for a half-open time interval
// =============================================================================

type ReservationState string

const (
	StateActive    ReservationState = "active"
	StateCancelled ReservationState = "cancelled"
	StateCompleted ReservationState = "completed"
)

// Terminal reports whether no further transitions are allowed from the state.
func (s ReservationState) Terminal() bool {
	return s == StateCancelled || s == StateCompleted
}

// Reservation is a time-bounded claim on a vehicle.
//
// INVARIANT: for any vehicle, the set of ACTIVE reservations is pairwise
// non-overlapping in [Start, End).
//
// Start/End/CreatedAt are stored in UTC. VehicleID, RequesterID, Start, End,
// Cost and CreatedAt are immutable after creation; only State changes, guarded
// by Revision.
type Reservation struct {
	ID          ReservationID
	VehicleID   VehicleID
	RequesterID RequesterID

	// Half-open interval [Start, End). Start < End, duration >= MinDuration.
	Start time.Time
	End   time.Time

	State ReservationState

	// Cost is computed once at creation: hours(End-Start) x the vehicle's
	// hourly rate, rounded to 2 decimals.
	Cost decimal.Decimal

	// Note is an optional free-text annotation from the requester.
	Note string

	CreatedAt time.Time

	// Revision guards state transitions (cancel, complete) against lost
	// updates. It starts at 1 and increments on every successful update.
	Revision int64
}

// Duration returns the length of the reserved interval.
func (r Reservation) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// Overlaps reports whether the reservation's interval overlaps [start, end).
// Two half-open intervals [a,b) and [c,d) overlap iff a < d AND c < b.
func (r Reservation) Overlaps(start, end time.Time) bool {
	return r.Start.Before(end) && start.Before(r.End)
}

// CoveredDays returns every calendar day the reservation touches, from
// Start's day through End's day inclusive. This is the set of DayCounter
// rows the reservation contributes to.
func (r Reservation) CoveredDays() []Date {
	return DaysCovered(r.Start, r.End)
}

// =============================================================================
// DAY COUNTER - Per-(vehicle, day) occupancy, the sole concurrency primitive
// =============================================================================

// DayCounter tracks how many ACTIVE reservations for a vehicle touch a
// calendar day. It is NOT the source of truth for conflicts (the precise
// interval check is, see overlap.go); it serves two purposes:
//
//  1. Cheap pre-filter: Count == 0 means no conflict is possible on that day.
//  2. Lock surrogate: any two concurrent writers touching the same
//     (vehicle, day) must observe each other via a revision clash.
//
// Rows are created lazily on first touch and never deleted; Count may
// legitimately return to zero.
type DayCounter struct {
	VehicleID VehicleID
	Date      Date
	Count     int

	// Revision is the row version observed at read time. A write succeeds
	// only if the stored revision still matches; an absent row reads as
	// revision 0. See CounterStore.
	Revision int64
}

// =============================================================================
// VEHICLE - The rentable asset
// =============================================================================

// Vehicle is the priced, rentable asset. The engine only consults ID,
// HourlyRate and Active; the remaining fields exist for fleet management.
type Vehicle struct {
	ID         VehicleID
	Make       string
	Model      string
	Plate      string
	Seats      int
	HourlyRate decimal.Decimal
	Active     bool
}

// =============================================================================
// BUSINESS CONSTANTS
// =============================================================================

const (
	// MinDuration is the shortest admissible reservation.
	MinDuration = 60 * time.Minute

	// CancelCutoff is how close to Start a reservation may still be
	// cancelled. A reservation starting in less than this cannot be
	// cancelled anymore.
	CancelCutoff = 2 * time.Hour
)

// CostFor computes the reservation cost: fractional hours times the hourly
// rate, rounded to 2 decimals.
func CostFor(start, end time.Time, hourlyRate decimal.Decimal) decimal.Decimal {
	minutes := decimal.NewFromInt(int64(end.Sub(start) / time.Minute))
	hours := minutes.Div(decimal.NewFromInt(60))
	return hours.Mul(hourlyRate).Round(2)
}
