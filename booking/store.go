/*
store.go - Persistence contracts for the reservation engine

PURPOSE:
  Defines the interface between the engine and the database. Different
  implementations can use SQLite, PostgreSQL, or in-memory storage.

KEY INTERFACES:
  CounterStore:     Versioned day-counter rows (the lock surrogate)
  ReservationStore: Reservation records, queryable by vehicle/requester/state
  VehicleDirectory: Vehicle lookup and fleet management
  TxStore:          Atomic multi-row writes (all-or-nothing)

OPTIMISTIC CONCURRENCY CONTRACT:
  UpsertCounter and UpdateReservation are compare-and-swap writes keyed by
  row revision. The caller passes the record carrying the revision it READ;
  the store persists revision+1 only if the stored revision still matches,
  and returns ErrRevisionConflict otherwise. It never silently overwrites.
  An absent counter row reads as revision 0, so lazy creation and update
  race under the same discipline: two concurrent first-writers for the same
  (vehicle, day) cannot both succeed.

ATOMICITY:
  WithTx executes a function against a transactional view of the store.
  If the function returns an error, none of its writes are visible. Every
  reserve/cancel/recompute commits all of its counter and reservation
  mutations through a single WithTx, so a conflict discovered on day k
  never leaves counters incremented for days 1..k-1.

IMPLEMENTATIONS:
  - store/sqlite: Production SQLite (sql.Tx-backed WithTx)
  - booking/store: In-memory (snapshot + rollback), for tests and dev

SEE ALSO:
  - engine.go: The only writer of counters and reservations
  - reconcile.go: Rebuilds counters from the active reservation set
*/
package booking

import (
	"context"
	"time"
)

// =============================================================================
// COUNTER STORE - The mutual-exclusion surrogate
// =============================================================================

type CounterStore interface {
	// GetCounter returns the counter for (vehicleID, date) and whether the
	// row exists. A missing row is not an error: callers treat it as
	// {Count: 0, Revision: 0}.
	GetCounter(ctx context.Context, vehicleID VehicleID, date Date) (DayCounter, bool, error)

	// UpsertCounter persists the counter if the stored revision still equals
	// counter.Revision (0 means "row must not exist yet"). On mismatch it
	// returns ErrRevisionConflict and writes nothing.
	UpsertCounter(ctx context.Context, counter DayCounter) error

	// ListCounters returns every counter row. Used by reconciliation.
	ListCounters(ctx context.Context) ([]DayCounter, error)
}

// =============================================================================
// RESERVATION STORE
// =============================================================================

type ReservationStore interface {
	// PutReservation creates a new reservation record. The ID must be fresh;
	// reservations are never created twice.
	PutReservation(ctx context.Context, r Reservation) error

	// GetReservation returns the reservation and whether it exists.
	GetReservation(ctx context.Context, id ReservationID) (Reservation, bool, error)

	// UpdateReservation persists a state transition if the stored revision
	// still equals r.Revision, bumping it by one. On mismatch it returns
	// ErrRevisionConflict. Only State changes; all other fields are
	// immutable after creation.
	UpdateReservation(ctx context.Context, r Reservation) error

	// ActiveOnDay returns the ACTIVE reservations for a vehicle whose
	// covered days include date. Used by the overlap detector to scope the
	// precise interval check.
	ActiveOnDay(ctx context.Context, vehicleID VehicleID, date Date) ([]Reservation, error)

	// ListActive returns every ACTIVE reservation. Ground truth for
	// reconciliation.
	ListActive(ctx context.Context) ([]Reservation, error)

	// ActiveEndedBefore returns ACTIVE reservations with End < t, i.e. the
	// ones due for expiration.
	ActiveEndedBefore(ctx context.Context, t time.Time) ([]Reservation, error)

	// ListByRequester returns all reservations (any state) for a requester,
	// most recent start first.
	ListByRequester(ctx context.Context, requesterID RequesterID) ([]Reservation, error)

	// ListAll returns every reservation. Administrative.
	ListAll(ctx context.Context) ([]Reservation, error)
}

// =============================================================================
// VEHICLE DIRECTORY
// =============================================================================

type VehicleDirectory interface {
	// GetVehicle returns the vehicle and whether it exists.
	GetVehicle(ctx context.Context, id VehicleID) (Vehicle, bool, error)

	// SaveVehicle creates or replaces a vehicle record. Fleet management.
	SaveVehicle(ctx context.Context, v Vehicle) error

	// ListVehicles returns all vehicles.
	ListVehicles(ctx context.Context) ([]Vehicle, error)

	// DeleteVehicle removes a vehicle record.
	DeleteVehicle(ctx context.Context, id VehicleID) error
}

// =============================================================================
// COMBINED STORE + TRANSACTIONS
// =============================================================================

// Store is the full persistence surface the engine operates on.
type Store interface {
	CounterStore
	ReservationStore
	VehicleDirectory
}

// TxStore adds atomic multi-write support.
type TxStore interface {
	Store

	// WithTx executes fn against a transactional view. If fn returns an
	// error the transaction is rolled back and none of its writes are
	// visible; otherwise it is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// CLOCK
// =============================================================================

// Clock supplies the current time. Injected so cutoff and expiry rules are
// testable.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
