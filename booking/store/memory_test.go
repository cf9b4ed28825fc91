package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/unicalrent/booking-engine/booking"
)

func mar(day, hour int) time.Time {
	return time.Date(2026, time.March, day, hour, 0, 0, 0, time.UTC)
}

func mustParseDate(t *testing.T, s string) booking.Date {
	t.Helper()
	d, err := booking.ParseDate(s)
	if err != nil {
		t.Fatalf("bad date %q: %v", s, err)
	}
	return d
}

func TestUpsertCounter_RevisionContract(t *testing.T) {
	// The stored revision must equal the read one; the persisted row
	// carries revision + 1, same contract as the SQLite store.
	m := NewMemory()
	ctx := context.Background()
	date := mustParseDate(t, "2026-03-11")

	c := booking.DayCounter{VehicleID: "veh-1", Date: date, Count: 1}
	if err := m.UpsertCounter(ctx, c); err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}

	// Re-submitting the stale revision 0 loses.
	if err := m.UpsertCounter(ctx, c); !errors.Is(err, booking.ErrRevisionConflict) {
		t.Fatalf("expected revision conflict, got %v", err)
	}

	// Creating a missing row with a non-zero revision also loses.
	err := m.UpsertCounter(ctx, booking.DayCounter{
		VehicleID: "veh-1", Date: mustParseDate(t, "2026-03-12"), Count: 1, Revision: 5,
	})
	if !errors.Is(err, booking.ErrRevisionConflict) {
		t.Fatalf("expected revision conflict for phantom row, got %v", err)
	}

	got, ok, err := m.GetCounter(ctx, "veh-1", date)
	if err != nil || !ok {
		t.Fatalf("expected counter to exist: %v", err)
	}
	if got.Revision != 1 {
		t.Errorf("expected revision 1 after create, got %d", got.Revision)
	}
}

func TestUpdateReservation_NotFoundVsConflict(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	r := booking.Reservation{
		ID: "res-1", VehicleID: "veh-1", RequesterID: "user-1",
		Start: mar(11, 10), End: mar(11, 12),
		State: booking.StateActive, Revision: 1,
	}
	if err := m.PutReservation(ctx, r); err != nil {
		t.Fatalf("unexpected put error: %v", err)
	}

	ghost := r
	ghost.ID = "res-ghost"
	if err := m.UpdateReservation(ctx, ghost); !errors.Is(err, booking.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	r.State = booking.StateCancelled
	if err := m.UpdateReservation(ctx, r); err != nil {
		t.Fatalf("unexpected update error: %v", err)
	}
	if err := m.UpdateReservation(ctx, r); !errors.Is(err, booking.ErrRevisionConflict) {
		t.Fatalf("expected revision conflict on stale update, got %v", err)
	}
}

func TestWithTx_RestoresSnapshotOnError(t *testing.T) {
	// All writes inside a failed transaction vanish, including ones that
	// individually succeeded before the failure.
	m := NewMemory()
	ctx := context.Background()
	date := mustParseDate(t, "2026-03-11")

	boom := errors.New("boom")
	err := m.WithTx(ctx, func(tx booking.Store) error {
		if err := tx.UpsertCounter(ctx, booking.DayCounter{
			VehicleID: "veh-1", Date: date, Count: 1,
		}); err != nil {
			return err
		}
		if err := tx.PutReservation(ctx, booking.Reservation{
			ID: "res-1", VehicleID: "veh-1", RequesterID: "user-1",
			Start: mar(11, 10), End: mar(11, 12),
			State: booking.StateActive, Revision: 1,
		}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected the inner error back, got %v", err)
	}

	if _, ok, _ := m.GetCounter(ctx, "veh-1", date); ok {
		t.Errorf("counter survived the rollback")
	}
	if _, ok, _ := m.GetReservation(ctx, "res-1"); ok {
		t.Errorf("reservation survived the rollback")
	}
}

func TestActiveOnDay_FiltersVehicleStateAndDay(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	put := func(id string, vehicle booking.VehicleID, state booking.ReservationState, start, end time.Time) {
		t.Helper()
		err := m.PutReservation(ctx, booking.Reservation{
			ID: booking.ReservationID(id), VehicleID: vehicle, RequesterID: "user-1",
			Start: start, End: end, State: state, Revision: 1,
		})
		if err != nil {
			t.Fatalf("failed to put %s: %v", id, err)
		}
	}
	put("res-hit", "veh-1", booking.StateActive, mar(11, 18), mar(13, 9))
	put("res-other-vehicle", "veh-2", booking.StateActive, mar(12, 10), mar(12, 12))
	put("res-cancelled", "veh-1", booking.StateCancelled, mar(12, 10), mar(12, 12))
	put("res-other-day", "veh-1", booking.StateActive, mar(20, 10), mar(20, 12))

	got, err := m.ActiveOnDay(ctx, "veh-1", mustParseDate(t, "2026-03-12"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ID != "res-hit" {
		t.Fatalf("expected only res-hit, got %+v", got)
	}
}
