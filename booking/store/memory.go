// Package store provides an in-memory booking.TxStore (for testing/dev).
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/unicalrent/booking-engine/booking"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu           sync.RWMutex
	counters     map[counterKey]booking.DayCounter
	reservations map[booking.ReservationID]booking.Reservation
	vehicles     map[booking.VehicleID]booking.Vehicle
}

type counterKey struct {
	VehicleID booking.VehicleID
	Date      booking.Date
}

func NewMemory() *Memory {
	return &Memory{
		counters:     make(map[counterKey]booking.DayCounter),
		reservations: make(map[booking.ReservationID]booking.Reservation),
		vehicles:     make(map[booking.VehicleID]booking.Vehicle),
	}
}

// =============================================================================
// COUNTER STORE
// =============================================================================

func (m *Memory) GetCounter(_ context.Context, vehicleID booking.VehicleID, date booking.Date) (booking.DayCounter, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getCounterLocked(vehicleID, date)
}

func (m *Memory) getCounterLocked(vehicleID booking.VehicleID, date booking.Date) (booking.DayCounter, bool, error) {
	c, ok := m.counters[counterKey{VehicleID: vehicleID, Date: date}]
	return c, ok, nil
}

// UpsertCounter applies the compare-and-swap contract: the stored revision
// must equal counter.Revision (0 for a row that does not exist yet), and the
// persisted row carries revision + 1.
func (m *Memory) UpsertCounter(_ context.Context, counter booking.DayCounter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.upsertCounterLocked(counter)
}

func (m *Memory) upsertCounterLocked(counter booking.DayCounter) error {
	k := counterKey{VehicleID: counter.VehicleID, Date: counter.Date}
	existing, ok := m.counters[k]
	if ok {
		if existing.Revision != counter.Revision {
			return booking.ErrRevisionConflict
		}
	} else if counter.Revision != 0 {
		return booking.ErrRevisionConflict
	}

	counter.Revision++
	m.counters[k] = counter
	return nil
}

func (m *Memory) ListCounters(_ context.Context) ([]booking.DayCounter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listCountersLocked()
}

func (m *Memory) listCountersLocked() ([]booking.DayCounter, error) {
	out := make([]booking.DayCounter, 0, len(m.counters))
	for _, c := range m.counters {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].VehicleID != out[j].VehicleID {
			return out[i].VehicleID < out[j].VehicleID
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out, nil
}

// =============================================================================
// RESERVATION STORE
// =============================================================================

func (m *Memory) PutReservation(_ context.Context, r booking.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.putReservationLocked(r)
}

func (m *Memory) putReservationLocked(r booking.Reservation) error {
	if _, ok := m.reservations[r.ID]; ok {
		return fmt.Errorf("reservation %s already exists", r.ID)
	}
	m.reservations[r.ID] = r
	return nil
}

func (m *Memory) GetReservation(_ context.Context, id booking.ReservationID) (booking.Reservation, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getReservationLocked(id)
}

func (m *Memory) getReservationLocked(id booking.ReservationID) (booking.Reservation, bool, error) {
	r, ok := m.reservations[id]
	return r, ok, nil
}

func (m *Memory) UpdateReservation(_ context.Context, r booking.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateReservationLocked(r)
}

func (m *Memory) updateReservationLocked(r booking.Reservation) error {
	existing, ok := m.reservations[r.ID]
	if !ok {
		return fmt.Errorf("reservation %s: %w", r.ID, booking.ErrNotFound)
	}
	if existing.Revision != r.Revision {
		return booking.ErrRevisionConflict
	}
	r.Revision++
	m.reservations[r.ID] = r
	return nil
}

func (m *Memory) ActiveOnDay(_ context.Context, vehicleID booking.VehicleID, date booking.Date) ([]booking.Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeOnDayLocked(vehicleID, date)
}

func (m *Memory) activeOnDayLocked(vehicleID booking.VehicleID, date booking.Date) ([]booking.Reservation, error) {
	var out []booking.Reservation
	for _, r := range m.reservations {
		if r.VehicleID != vehicleID || r.State != booking.StateActive {
			continue
		}
		if covers(r, date) {
			out = append(out, r)
		}
	}
	sortByStart(out)
	return out, nil
}

func (m *Memory) ListActive(_ context.Context) ([]booking.Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listActiveLocked()
}

func (m *Memory) listActiveLocked() ([]booking.Reservation, error) {
	var out []booking.Reservation
	for _, r := range m.reservations {
		if r.State == booking.StateActive {
			out = append(out, r)
		}
	}
	sortByStart(out)
	return out, nil
}

func (m *Memory) ActiveEndedBefore(_ context.Context, t time.Time) ([]booking.Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []booking.Reservation
	for _, r := range m.reservations {
		if r.State == booking.StateActive && r.End.Before(t) {
			out = append(out, r)
		}
	}
	sortByStart(out)
	return out, nil
}

func (m *Memory) ListByRequester(_ context.Context, requesterID booking.RequesterID) ([]booking.Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []booking.Reservation
	for _, r := range m.reservations {
		if r.RequesterID == requesterID {
			out = append(out, r)
		}
	}
	sortByStartDesc(out)
	return out, nil
}

func (m *Memory) ListAll(_ context.Context) ([]booking.Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]booking.Reservation, 0, len(m.reservations))
	for _, r := range m.reservations {
		out = append(out, r)
	}
	sortByStartDesc(out)
	return out, nil
}

// =============================================================================
// VEHICLE DIRECTORY
// =============================================================================

func (m *Memory) GetVehicle(_ context.Context, id booking.VehicleID) (booking.Vehicle, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.vehicles[id]
	return v, ok, nil
}

func (m *Memory) SaveVehicle(_ context.Context, v booking.Vehicle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vehicles[v.ID] = v
	return nil
}

func (m *Memory) ListVehicles(_ context.Context) ([]booking.Vehicle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]booking.Vehicle, 0, len(m.vehicles))
	for _, v := range m.vehicles {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) DeleteVehicle(_ context.Context, id booking.VehicleID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.vehicles, id)
	return nil
}

// =============================================================================
// TRANSACTIONS - snapshot + rollback
// =============================================================================

// WithTx executes fn while holding the write lock, against a view that
// bypasses locking. On error the pre-transaction state is restored, so the
// writes inside fn are all-or-nothing, exactly like a database transaction.
func (m *Memory) WithTx(_ context.Context, fn func(booking.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.snapshot()

	if err := fn(&txView{parent: m}); err != nil {
		m.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	counters     map[counterKey]booking.DayCounter
	reservations map[booking.ReservationID]booking.Reservation
	vehicles     map[booking.VehicleID]booking.Vehicle
}

func (m *Memory) snapshot() memorySnapshot {
	s := memorySnapshot{
		counters:     make(map[counterKey]booking.DayCounter, len(m.counters)),
		reservations: make(map[booking.ReservationID]booking.Reservation, len(m.reservations)),
		vehicles:     make(map[booking.VehicleID]booking.Vehicle, len(m.vehicles)),
	}
	for k, v := range m.counters {
		s.counters[k] = v
	}
	for k, v := range m.reservations {
		s.reservations[k] = v
	}
	for k, v := range m.vehicles {
		s.vehicles[k] = v
	}
	return s
}

func (m *Memory) restore(s memorySnapshot) {
	m.counters = s.counters
	m.reservations = s.reservations
	m.vehicles = s.vehicles
}

// txView runs store operations against the locked parent.
type txView struct {
	parent *Memory
}

func (v *txView) GetCounter(_ context.Context, vehicleID booking.VehicleID, date booking.Date) (booking.DayCounter, bool, error) {
	return v.parent.getCounterLocked(vehicleID, date)
}

func (v *txView) UpsertCounter(_ context.Context, counter booking.DayCounter) error {
	return v.parent.upsertCounterLocked(counter)
}

func (v *txView) ListCounters(_ context.Context) ([]booking.DayCounter, error) {
	return v.parent.listCountersLocked()
}

func (v *txView) PutReservation(_ context.Context, r booking.Reservation) error {
	return v.parent.putReservationLocked(r)
}

func (v *txView) GetReservation(_ context.Context, id booking.ReservationID) (booking.Reservation, bool, error) {
	return v.parent.getReservationLocked(id)
}

func (v *txView) UpdateReservation(_ context.Context, r booking.Reservation) error {
	return v.parent.updateReservationLocked(r)
}

func (v *txView) ActiveOnDay(_ context.Context, vehicleID booking.VehicleID, date booking.Date) ([]booking.Reservation, error) {
	return v.parent.activeOnDayLocked(vehicleID, date)
}

func (v *txView) ListActive(_ context.Context) ([]booking.Reservation, error) {
	return v.parent.listActiveLocked()
}

func (v *txView) ActiveEndedBefore(_ context.Context, t time.Time) ([]booking.Reservation, error) {
	var out []booking.Reservation
	for _, r := range v.parent.reservations {
		if r.State == booking.StateActive && r.End.Before(t) {
			out = append(out, r)
		}
	}
	sortByStart(out)
	return out, nil
}

func (v *txView) ListByRequester(_ context.Context, requesterID booking.RequesterID) ([]booking.Reservation, error) {
	var out []booking.Reservation
	for _, r := range v.parent.reservations {
		if r.RequesterID == requesterID {
			out = append(out, r)
		}
	}
	sortByStartDesc(out)
	return out, nil
}

func (v *txView) ListAll(_ context.Context) ([]booking.Reservation, error) {
	out := make([]booking.Reservation, 0, len(v.parent.reservations))
	for _, r := range v.parent.reservations {
		out = append(out, r)
	}
	sortByStartDesc(out)
	return out, nil
}

func (v *txView) GetVehicle(_ context.Context, id booking.VehicleID) (booking.Vehicle, bool, error) {
	vehicle, ok := v.parent.vehicles[id]
	return vehicle, ok, nil
}

func (v *txView) SaveVehicle(_ context.Context, vehicle booking.Vehicle) error {
	v.parent.vehicles[vehicle.ID] = vehicle
	return nil
}

func (v *txView) ListVehicles(_ context.Context) ([]booking.Vehicle, error) {
	out := make([]booking.Vehicle, 0, len(v.parent.vehicles))
	for _, vehicle := range v.parent.vehicles {
		out = append(out, vehicle)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (v *txView) DeleteVehicle(_ context.Context, id booking.VehicleID) error {
	delete(v.parent.vehicles, id)
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func covers(r booking.Reservation, date booking.Date) bool {
	first := booking.DateOf(r.Start)
	last := booking.DateOf(r.End)
	return !date.Before(first) && !date.After(last)
}

func sortByStart(rs []booking.Reservation) {
	sort.Slice(rs, func(i, j int) bool { return rs[i].Start.Before(rs[j].Start) })
}

func sortByStartDesc(rs []booking.Reservation) {
	sort.Slice(rs, func(i, j int) bool { return rs[i].Start.After(rs[j].Start) })
}
