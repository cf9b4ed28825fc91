/*
sqlite_test.go - Behavior tests for the SQLite store

Exercises the revision discipline (compare-and-swap updates, lazy counter
creation races), transaction rollback, the day-scoped reservation query,
and full round trips of every persisted type. Runs against ":memory:"
databases, one per test.
*/
package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unicalrent/booking-engine/booking"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func day(s string) booking.Date {
	d, err := booking.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func sampleReservation(id string) booking.Reservation {
	return booking.Reservation{
		ID:          booking.ReservationID(id),
		VehicleID:   "veh-1",
		RequesterID: "user-1",
		Start:       time.Date(2026, time.March, 11, 10, 0, 0, 0, time.UTC),
		End:         time.Date(2026, time.March, 11, 14, 0, 0, 0, time.UTC),
		State:       booking.StateActive,
		Cost:        decimal.RequireFromString("40.00"),
		Note:        "airport run",
		CreatedAt:   time.Date(2026, time.March, 10, 9, 30, 0, 0, time.UTC),
		Revision:    1,
	}
}

// =============================================================================
// COUNTERS
// =============================================================================

func TestCounter_LazyCreateAndRead(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, ok, err := st.GetCounter(ctx, "veh-1", day("2026-03-11"))
	require.NoError(t, err)
	assert.False(t, ok, "counter should not exist yet")

	err = st.UpsertCounter(ctx, booking.DayCounter{
		VehicleID: "veh-1", Date: day("2026-03-11"), Count: 1, Revision: 0,
	})
	require.NoError(t, err)

	c, ok, err := st.GetCounter(ctx, "veh-1", day("2026-03-11"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, c.Count)
	assert.Equal(t, int64(1), c.Revision, "stored revision bumps past the read one")
}

func TestCounter_StaleRevisionIsRejected(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.UpsertCounter(ctx, booking.DayCounter{
		VehicleID: "veh-1", Date: day("2026-03-11"), Count: 1, Revision: 0,
	}))

	// A writer that read the row before the create commits w/ revision 0.
	err := st.UpsertCounter(ctx, booking.DayCounter{
		VehicleID: "veh-1", Date: day("2026-03-11"), Count: 1, Revision: 0,
	})
	assert.ErrorIs(t, err, booking.ErrRevisionConflict)

	// A writer holding the current revision wins.
	c, _, err := st.GetCounter(ctx, "veh-1", day("2026-03-11"))
	require.NoError(t, err)
	c.Count = 2
	require.NoError(t, st.UpsertCounter(ctx, c))

	c, _, err = st.GetCounter(ctx, "veh-1", day("2026-03-11"))
	require.NoError(t, err)
	assert.Equal(t, 2, c.Count)
	assert.Equal(t, int64(2), c.Revision)
}

func TestListCounters_OrderedByVehicleAndDate(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	for _, c := range []booking.DayCounter{
		{VehicleID: "veh-2", Date: day("2026-03-11"), Count: 1},
		{VehicleID: "veh-1", Date: day("2026-03-12"), Count: 3},
		{VehicleID: "veh-1", Date: day("2026-03-11"), Count: 2},
	} {
		require.NoError(t, st.UpsertCounter(ctx, c))
	}

	got, err := st.ListCounters(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, booking.VehicleID("veh-1"), got[0].VehicleID)
	assert.Equal(t, "2026-03-11", got[0].Date.String())
	assert.Equal(t, "2026-03-12", got[1].Date.String())
	assert.Equal(t, booking.VehicleID("veh-2"), got[2].VehicleID)
}

// =============================================================================
// RESERVATIONS
// =============================================================================

func TestReservation_RoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	want := sampleReservation("res-1")
	require.NoError(t, st.PutReservation(ctx, want))

	got, ok, err := st.GetReservation(ctx, "res-1")
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.VehicleID, got.VehicleID)
	assert.Equal(t, want.RequesterID, got.RequesterID)
	assert.True(t, want.Start.Equal(got.Start))
	assert.True(t, want.End.Equal(got.End))
	assert.Equal(t, want.State, got.State)
	assert.True(t, want.Cost.Equal(got.Cost), "cost %s vs %s", want.Cost, got.Cost)
	assert.Equal(t, want.Note, got.Note)
	assert.Equal(t, want.Revision, got.Revision)
}

func TestUpdateReservation_RevisionDiscipline(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	r := sampleReservation("res-1")
	require.NoError(t, st.PutReservation(ctx, r))

	// Correct revision transitions the state and bumps the revision.
	r.State = booking.StateCancelled
	require.NoError(t, st.UpdateReservation(ctx, r))

	got, _, err := st.GetReservation(ctx, "res-1")
	require.NoError(t, err)
	assert.Equal(t, booking.StateCancelled, got.State)
	assert.Equal(t, int64(2), got.Revision)

	// A writer still holding the old revision loses.
	err = st.UpdateReservation(ctx, r)
	assert.ErrorIs(t, err, booking.ErrRevisionConflict)

	// A missing row is not found, never a conflict.
	ghost := sampleReservation("res-ghost")
	err = st.UpdateReservation(ctx, ghost)
	assert.ErrorIs(t, err, booking.ErrNotFound)
	assert.False(t, errors.Is(err, booking.ErrRevisionConflict))
}

func TestActiveOnDay_MatchesSpannedDaysOnly(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	spanning := sampleReservation("res-span")
	spanning.Start = time.Date(2026, time.March, 11, 18, 0, 0, 0, time.UTC)
	spanning.End = time.Date(2026, time.March, 13, 9, 0, 0, 0, time.UTC)
	require.NoError(t, st.PutReservation(ctx, spanning))

	cancelled := sampleReservation("res-gone")
	cancelled.State = booking.StateCancelled
	require.NoError(t, st.PutReservation(ctx, cancelled))

	for _, d := range []string{"2026-03-11", "2026-03-12", "2026-03-13"} {
		got, err := st.ActiveOnDay(ctx, "veh-1", day(d))
		require.NoError(t, err)
		require.Len(t, got, 1, "day %s", d)
		assert.Equal(t, booking.ReservationID("res-span"), got[0].ID)
	}

	got, err := st.ActiveOnDay(ctx, "veh-1", day("2026-03-14"))
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = st.ActiveOnDay(ctx, "veh-2", day("2026-03-12"))
	require.NoError(t, err)
	assert.Empty(t, got, "other vehicles are invisible")
}

func TestActiveEndedBefore_UsesLexicographicTimestamps(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	ended := sampleReservation("res-ended")
	ended.End = time.Date(2026, time.March, 11, 14, 0, 0, 0, time.UTC)
	require.NoError(t, st.PutReservation(ctx, ended))

	ongoing := sampleReservation("res-ongoing")
	ongoing.End = time.Date(2026, time.March, 11, 18, 0, 0, 0, time.UTC)
	require.NoError(t, st.PutReservation(ctx, ongoing))

	got, err := st.ActiveEndedBefore(ctx, time.Date(2026, time.March, 11, 15, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, booking.ReservationID("res-ended"), got[0].ID)
}

func TestListByRequester_NewestFirst(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	older := sampleReservation("res-old")
	require.NoError(t, st.PutReservation(ctx, older))

	newer := sampleReservation("res-new")
	newer.Start = older.Start.Add(24 * time.Hour)
	newer.End = older.End.Add(24 * time.Hour)
	require.NoError(t, st.PutReservation(ctx, newer))

	other := sampleReservation("res-other")
	other.RequesterID = "user-2"
	other.Start = older.Start.Add(48 * time.Hour)
	other.End = older.End.Add(48 * time.Hour)
	require.NoError(t, st.PutReservation(ctx, other))

	got, err := st.ListByRequester(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, booking.ReservationID("res-new"), got[0].ID)
	assert.Equal(t, booking.ReservationID("res-old"), got[1].ID)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestWithTx_RollsBackEverythingOnError(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := st.WithTx(ctx, func(tx booking.Store) error {
		if err := tx.PutReservation(ctx, sampleReservation("res-1")); err != nil {
			return err
		}
		if err := tx.UpsertCounter(ctx, booking.DayCounter{
			VehicleID: "veh-1", Date: day("2026-03-11"), Count: 1,
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, ok, err := st.GetReservation(ctx, "res-1")
	require.NoError(t, err)
	assert.False(t, ok, "reservation must not survive the rollback")

	_, ok, err = st.GetCounter(ctx, "veh-1", day("2026-03-11"))
	require.NoError(t, err)
	assert.False(t, ok, "counter must not survive the rollback")
}

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	err := st.WithTx(ctx, func(tx booking.Store) error {
		return tx.PutReservation(ctx, sampleReservation("res-1"))
	})
	require.NoError(t, err)

	_, ok, err := st.GetReservation(ctx, "res-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

// =============================================================================
// VEHICLES
// =============================================================================

func TestVehicle_SaveIsUpsert(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	v := booking.Vehicle{
		ID: "veh-1", Make: "Fiat", Model: "Panda", Plate: "AB123CD",
		Seats: 4, HourlyRate: decimal.RequireFromString("9.50"), Active: true,
	}
	require.NoError(t, st.SaveVehicle(ctx, v))

	v.HourlyRate = decimal.RequireFromString("11.00")
	v.Active = false
	require.NoError(t, st.SaveVehicle(ctx, v))

	got, ok, err := st.GetVehicle(ctx, "veh-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.HourlyRate.Equal(decimal.RequireFromString("11.00")))
	assert.False(t, got.Active)

	all, err := st.ListVehicles(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1, "upsert must not duplicate rows")

	require.NoError(t, st.DeleteVehicle(ctx, "veh-1"))
	_, ok, err = st.GetVehicle(ctx, "veh-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

// =============================================================================
// ENGINE INTEGRATION
// =============================================================================

func TestEngine_OverSQLite(t *testing.T) {
	// The orchestrator running end to end on the real store: reserve,
	// conflicting reserve, cancel, rebook the freed slot.
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.SaveVehicle(ctx, booking.Vehicle{
		ID: "veh-1", Make: "Fiat", Model: "Panda",
		HourlyRate: decimal.RequireFromString("10.00"), Active: true,
	}))

	engine := booking.NewEngine(st)
	engine.BaseDelay = time.Millisecond

	start := time.Now().UTC().Add(24 * time.Hour).Truncate(time.Second)
	end := start.Add(4 * time.Hour)

	res, err := engine.Reserve(ctx, booking.ReserveInput{
		VehicleID: "veh-1", RequesterID: "user-1", Start: start, End: end,
	})
	require.NoError(t, err)
	assert.Equal(t, "40.00", res.Cost.StringFixed(2))

	_, err = engine.Reserve(ctx, booking.ReserveInput{
		VehicleID: "veh-1", RequesterID: "user-2", Start: start.Add(time.Hour), End: end.Add(time.Hour),
	})
	assert.ErrorIs(t, err, booking.ErrBookingConflict)

	require.NoError(t, engine.Cancel(ctx, res.ID, "user-1", false))

	_, err = engine.Reserve(ctx, booking.ReserveInput{
		VehicleID: "veh-1", RequesterID: "user-2", Start: start, End: end,
	})
	require.NoError(t, err)
}
