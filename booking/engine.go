/*
engine.go - The reservation orchestrator and lifecycle manager

PURPOSE:
  Implements the transactional workflows of the engine:
  - Reserve: validate, counter-lock, conflict-check, price, persist
  - Cancel:  ownership + cutoff checks, state transition, counter release
  - Modify:  cancel followed by a fresh reserve
  - ExpireDue: sweep ACTIVE reservations past their end time to COMPLETED

CONCURRENCY MODEL:
  There is no lock anywhere. Each attempt runs in two phases:

  READ PHASE (no transaction): walk the calendar days the candidate touches,
  read each DayCounter at its current revision, and run the precise overlap
  check for days with Count > 0. A true overlap aborts the whole operation
  with a booking conflict; nothing has been written yet.

  WRITE PHASE (one store transaction): re-apply every counter at read
  revision + 1 via revision-checked upserts, then write the reservation row.
  If any row moved since the read phase, the store reports a revision
  conflict, the transaction rolls back as a unit (no partial counters), and
  the attempt is retried from scratch with fresh reads.

  The revision clash is the signal that another writer is touching the same
  (vehicle, day). On retry the new reader observes the winner's counter and
  falls through to the precise overlap check, which decides whether the
  intervals genuinely collide or merely share a calendar day.

RETRY POLICY:
  Up to MaxAttempts attempts. Only revision conflicts are retried; booking
  conflicts and validation failures are terminal. Between attempts the engine
  sleeps attempt x BaseDelay (linear backoff); the sleep is context-aware and
  a cancelled context aborts with ErrInterrupted. Exhausting the attempts
  yields ErrHighContention, which tells the caller to retry later and is
  deliberately distinct from a booking conflict.

SEE ALSO:
  - overlap.go: The two-tier conflict check
  - reconcile.go: Counter repair from the active reservation set
*/
package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ENGINE
// =============================================================================

// Engine is the reservation orchestrator. All operations are safe for
// concurrent use by any number of callers.
type Engine struct {
	Store TxStore
	Clock Clock

	// MaxAttempts bounds the optimistic-conflict retry loop.
	MaxAttempts int

	// BaseDelay is the linear backoff unit: attempt n sleeps n x BaseDelay.
	BaseDelay time.Duration

	detector *OverlapDetector
}

// NewEngine creates an engine with the default retry policy (3 attempts,
// 75ms backoff base) and the system clock.
func NewEngine(store TxStore) *Engine {
	return &Engine{
		Store:       store,
		Clock:       SystemClock{},
		MaxAttempts: 3,
		BaseDelay:   75 * time.Millisecond,
		detector:    &OverlapDetector{Store: store},
	}
}

// =============================================================================
// RESERVE
// =============================================================================

// ReserveInput carries a validated request from the transport layer.
type ReserveInput struct {
	VehicleID   VehicleID
	RequesterID RequesterID
	Start       time.Time
	End         time.Time
	Note        string
}

// Reserve admits a new reservation if the vehicle is free over [Start, End).
//
// Errors: ValidationError (bad interval), ErrNotFound (missing or inactive
// vehicle), BookingConflictError (genuine overlap), ErrHighContention
// (retries exhausted), ErrInterrupted (context cancelled during backoff).
func (e *Engine) Reserve(ctx context.Context, in ReserveInput) (Reservation, error) {
	start := in.Start.UTC()
	end := in.End.UTC()

	if err := validateInterval(start, end); err != nil {
		return Reservation{}, err
	}

	vehicle, ok, err := e.Store.GetVehicle(ctx, in.VehicleID)
	if err != nil {
		return Reservation{}, err
	}
	if !ok || !vehicle.Active {
		return Reservation{}, fmt.Errorf("vehicle %s: %w", in.VehicleID, ErrNotFound)
	}

	for attempt := 1; attempt <= e.MaxAttempts; attempt++ {
		res, err := e.reserveOnce(ctx, vehicle, in.RequesterID, start, end, in.Note)
		if err == nil {
			return res, nil
		}
		if !IsRetryable(err) {
			return Reservation{}, err
		}
		if attempt < e.MaxAttempts {
			if err := e.backoff(ctx, attempt); err != nil {
				return Reservation{}, err
			}
		}
	}

	return Reservation{}, fmt.Errorf("vehicle %s: %w", in.VehicleID, ErrHighContention)
}

// reserveOnce is a single transactional attempt. Revision conflicts bubble
// up as ErrRevisionConflict for the retry loop; everything else is terminal.
func (e *Engine) reserveOnce(ctx context.Context, vehicle Vehicle, requesterID RequesterID, start, end time.Time, note string) (Reservation, error) {
	// Read phase: capture each day's counter at its current revision and
	// run the precise overlap check where the counter says it matters.
	var counters []DayCounter
	for _, day := range DaysCovered(start, end) {
		counter, ok, err := e.Store.GetCounter(ctx, vehicle.ID, day)
		if err != nil {
			return Reservation{}, err
		}
		if !ok {
			counter = DayCounter{VehicleID: vehicle.ID, Date: day}
		}

		if counter.Count > 0 {
			conflict, err := e.detector.ConflictsOnDay(ctx, vehicle.ID, day, start, end)
			if err != nil {
				return Reservation{}, err
			}
			if conflict {
				return Reservation{}, &BookingConflictError{VehicleID: vehicle.ID, Start: start, End: end}
			}
		}

		counter.Count++
		counters = append(counters, counter)
	}

	res := Reservation{
		ID:          ReservationID(uuid.NewString()),
		VehicleID:   vehicle.ID,
		RequesterID: requesterID,
		Start:       start,
		End:         end,
		State:       StateActive,
		Cost:        CostFor(start, end, vehicle.HourlyRate),
		Note:        note,
		CreatedAt:   e.Clock.Now(),
		Revision:    1,
	}

	// Write phase: all counter increments plus the reservation row commit
	// atomically, or none of them do.
	err := e.Store.WithTx(ctx, func(tx Store) error {
		for _, counter := range counters {
			if err := tx.UpsertCounter(ctx, counter); err != nil {
				return err
			}
		}
		return tx.PutReservation(ctx, res)
	})
	if err != nil {
		return Reservation{}, err
	}
	return res, nil
}

func validateInterval(start, end time.Time) error {
	if !start.Before(end) {
		return &ValidationError{Field: "start", Reason: "must be before end"}
	}
	if end.Sub(start) < MinDuration {
		return &ValidationError{Field: "duration", Reason: fmt.Sprintf("must be at least %v", MinDuration)}
	}
	return nil
}

// =============================================================================
// CANCEL
// =============================================================================

// Cancel transitions an ACTIVE reservation to CANCELLED and releases its
// day-counter contributions. Only the owning requester may cancel, unless
// adminOverride is set. Cancellation is refused once the reservation starts
// in less than CancelCutoff.
func (e *Engine) Cancel(ctx context.Context, id ReservationID, requesterID RequesterID, adminOverride bool) error {
	res, ok, err := e.Store.GetReservation(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("reservation %s: %w", id, ErrNotFound)
	}
	if res.RequesterID != requesterID && !adminOverride {
		return fmt.Errorf("reservation %s belongs to another requester: %w", id, ErrForbidden)
	}
	if res.State != StateActive {
		return &InvalidStateError{ReservationID: id, State: res.State}
	}
	if res.Start.Before(e.Clock.Now().Add(CancelCutoff)) {
		return &ValidationError{Field: "start", Reason: "reservation starts in less than 2 hours, too late to cancel"}
	}

	for attempt := 1; attempt <= e.MaxAttempts; attempt++ {
		err := e.cancelOnce(ctx, id)
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return err
		}
		if attempt < e.MaxAttempts {
			if err := e.backoff(ctx, attempt); err != nil {
				return err
			}
		}
	}

	return fmt.Errorf("reservation %s: %w", id, ErrHighContention)
}

// cancelOnce re-reads the reservation and its counters and commits the state
// transition plus the decrements atomically. A decrement that loses its
// revision race is retried by the caller, never skipped.
func (e *Engine) cancelOnce(ctx context.Context, id ReservationID) error {
	res, ok, err := e.Store.GetReservation(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("reservation %s: %w", id, ErrNotFound)
	}
	if res.State != StateActive {
		// Lost a race against a concurrent cancel or expiry.
		return &InvalidStateError{ReservationID: id, State: res.State}
	}

	var counters []DayCounter
	for _, day := range res.CoveredDays() {
		counter, ok, err := e.Store.GetCounter(ctx, res.VehicleID, day)
		if err != nil {
			return err
		}
		if !ok {
			// Counter drift (should not happen); nothing to release.
			continue
		}
		if counter.Count > 0 {
			counter.Count--
		}
		counters = append(counters, counter)
	}

	res.State = StateCancelled

	return e.Store.WithTx(ctx, func(tx Store) error {
		if err := tx.UpdateReservation(ctx, res); err != nil {
			return err
		}
		for _, counter := range counters {
			if err := tx.UpsertCounter(ctx, counter); err != nil {
				return err
			}
		}
		return nil
	})
}

// =============================================================================
// MODIFY
// =============================================================================

// Modify reschedules a reservation by cancelling it and reserving the new
// interval, inheriting every conflict and retry guarantee of Reserve.
//
// The two steps are NOT one transaction: there is a brief window in which
// the old reservation is cancelled and the new one does not exist yet. If
// the re-reserve fails the cancellation stands, and the error tells the
// caller which step failed.
func (e *Engine) Modify(ctx context.Context, id ReservationID, requesterID RequesterID, adminOverride bool, newStart, newEnd time.Time) (Reservation, error) {
	res, ok, err := e.Store.GetReservation(ctx, id)
	if err != nil {
		return Reservation{}, err
	}
	if !ok {
		return Reservation{}, fmt.Errorf("reservation %s: %w", id, ErrNotFound)
	}

	if err := validateInterval(newStart.UTC(), newEnd.UTC()); err != nil {
		return Reservation{}, err
	}

	if err := e.Cancel(ctx, id, requesterID, adminOverride); err != nil {
		return Reservation{}, err
	}

	replacement, err := e.Reserve(ctx, ReserveInput{
		VehicleID:   res.VehicleID,
		RequesterID: res.RequesterID,
		Start:       newStart,
		End:         newEnd,
		Note:        res.Note,
	})
	if err != nil {
		return Reservation{}, fmt.Errorf("reservation %s cancelled but rebooking failed: %w", id, err)
	}
	return replacement, nil
}

// =============================================================================
// EXPIRATION SWEEP
// =============================================================================

// ExpireDue transitions every ACTIVE reservation whose end time has passed
// to COMPLETED and returns how many it transitioned.
//
// Counters are deliberately left untouched: an ended reservation's days are
// in the past, so its counter contribution is no longer load-relevant.
// Counters track occupancy for scheduling, not history.
func (e *Engine) ExpireDue(ctx context.Context) (int, error) {
	due, err := e.Store.ActiveEndedBefore(ctx, e.Clock.Now())
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, res := range due {
		res.State = StateCompleted
		err := e.Store.UpdateReservation(ctx, res)
		if IsRetryable(err) {
			// The row moved under us: a concurrent cancel won, and the
			// reservation is no longer active. Nothing to expire.
			continue
		}
		if err != nil {
			return expired, err
		}
		expired++
	}
	return expired, nil
}

// =============================================================================
// QUERIES
// =============================================================================

// Get returns a reservation by ID.
func (e *Engine) Get(ctx context.Context, id ReservationID) (Reservation, error) {
	res, ok, err := e.Store.GetReservation(ctx, id)
	if err != nil {
		return Reservation{}, err
	}
	if !ok {
		return Reservation{}, fmt.Errorf("reservation %s: %w", id, ErrNotFound)
	}
	return res, nil
}

// ListByRequester returns all reservations for a requester.
func (e *Engine) ListByRequester(ctx context.Context, requesterID RequesterID) ([]Reservation, error) {
	return e.Store.ListByRequester(ctx, requesterID)
}

// ListAll returns every reservation. Administrative.
func (e *Engine) ListAll(ctx context.Context) ([]Reservation, error) {
	return e.Store.ListAll(ctx)
}

// =============================================================================
// BACKOFF
// =============================================================================

// backoff sleeps attempt x BaseDelay, or returns ErrInterrupted if the
// caller's context is cancelled first.
func (e *Engine) backoff(ctx context.Context, attempt int) error {
	timer := time.NewTimer(time.Duration(attempt) * e.BaseDelay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrInterrupted, ctx.Err())
	}
}
