/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements the full booking.TxStore contract using SQLite. In production,
  the same patterns apply to PostgreSQL - only minor SQL dialect differences.

OPTIMISTIC WRITES:
  Revision-checked writes are plain compare-and-swap UPDATEs:

    UPDATE day_counters SET count = ?, revision = revision + 1
     WHERE vehicle_id = ? AND date = ? AND revision = ?

  Zero rows affected means another writer got there first and the caller
  receives booking.ErrRevisionConflict. Lazy counter creation races through
  the (vehicle_id, date) primary key: the loser's INSERT violates the key
  and is reported as the same conflict.

KEY TABLES:
  reservations:  One row per reservation, state + revision guarded
  day_counters:  (vehicle_id, date) -> count, revision
  vehicles:      Fleet records (id, rates, active flag)

TIMESTAMPS:
  Stored as UTC text in "2006-01-02 15:04:05" (second precision). The fixed
  width keeps lexicographic order equal to chronological order, so range
  predicates work without date functions.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  multiple readers don't block, a single writer at a time, better crash
  recovery. A busy timeout plus a single writer connection keeps concurrent
  transactions from failing with SQLITE_BUSY.

USAGE:
  st, err := sqlite.New("./data/booking.db")
  if err != nil {
      log.Fatal(err)
  }
  defer st.Close()
  engine := booking.NewEngine(st)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper migration
  tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - booking/store.go: Interface definitions
  - booking/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/unicalrent/booking-engine/booking"
)

const timeLayout = "2006-01-02 15:04:05"

// Store implements booking.TxStore using SQLite.
type Store struct {
	queries
	db *sql.DB
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// mattn/go-sqlite3 supports one writer; a single connection avoids
	// SQLITE_BUSY churn between our own transactions.
	db.SetMaxOpenConns(1)

	store := &Store{queries: queries{db: db}, db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS reservations (
		id TEXT PRIMARY KEY,
		vehicle_id TEXT NOT NULL,
		requester_id TEXT NOT NULL,
		start_at TEXT NOT NULL,
		end_at TEXT NOT NULL,
		state TEXT NOT NULL,
		cost TEXT NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		revision INTEGER NOT NULL
	);

	-- Overlap-detector query: active reservations of one vehicle
	CREATE INDEX IF NOT EXISTS idx_reservations_vehicle_state
		ON reservations(vehicle_id, state);

	-- Expiry sweep: active reservations ordered by end time
	CREATE INDEX IF NOT EXISTS idx_reservations_state_end
		ON reservations(state, end_at);

	CREATE INDEX IF NOT EXISTS idx_reservations_requester
		ON reservations(requester_id);

	-- The lock surrogate. The composite primary key makes concurrent lazy
	-- creation of the same row a constraint violation for the loser.
	CREATE TABLE IF NOT EXISTS day_counters (
		vehicle_id TEXT NOT NULL,
		date TEXT NOT NULL,
		count INTEGER NOT NULL,
		revision INTEGER NOT NULL,
		PRIMARY KEY (vehicle_id, date)
	);

	CREATE TABLE IF NOT EXISTS vehicles (
		id TEXT PRIMARY KEY,
		make TEXT NOT NULL,
		model TEXT NOT NULL,
		plate TEXT NOT NULL DEFAULT '',
		seats INTEGER NOT NULL DEFAULT 0,
		hourly_rate TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// WithTx executes fn inside a SQL transaction. Rolled back on error,
// committed otherwise.
func (s *Store) WithTx(ctx context.Context, fn func(booking.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(&queries{db: tx}); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// =============================================================================
// QUERIES - Shared between the root store and transactional views
// =============================================================================

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type queries struct {
	db dbtx
}

// -----------------------------------------------------------------------------
// Counter store
// -----------------------------------------------------------------------------

func (q *queries) GetCounter(ctx context.Context, vehicleID booking.VehicleID, date booking.Date) (booking.DayCounter, bool, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT count, revision FROM day_counters WHERE vehicle_id = ? AND date = ?`,
		string(vehicleID), date.String())

	counter := booking.DayCounter{VehicleID: vehicleID, Date: date}
	err := row.Scan(&counter.Count, &counter.Revision)
	if errors.Is(err, sql.ErrNoRows) {
		return booking.DayCounter{}, false, nil
	}
	if err != nil {
		return booking.DayCounter{}, false, err
	}
	return counter, true, nil
}

func (q *queries) UpsertCounter(ctx context.Context, counter booking.DayCounter) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE day_counters SET count = ?, revision = revision + 1
		  WHERE vehicle_id = ? AND date = ? AND revision = ?`,
		counter.Count, string(counter.VehicleID), counter.Date.String(), counter.Revision)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	if counter.Revision == 0 {
		// Lazy creation: the primary key decides the race.
		_, err := q.db.ExecContext(ctx,
			`INSERT INTO day_counters (vehicle_id, date, count, revision) VALUES (?, ?, ?, 1)`,
			string(counter.VehicleID), counter.Date.String(), counter.Count)
		if isConstraintViolation(err) {
			return booking.ErrRevisionConflict
		}
		return err
	}

	// The row moved since it was read.
	return booking.ErrRevisionConflict
}

func (q *queries) ListCounters(ctx context.Context) ([]booking.DayCounter, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT vehicle_id, date, count, revision FROM day_counters ORDER BY vehicle_id, date`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []booking.DayCounter
	for rows.Next() {
		var c booking.DayCounter
		var vehicleID, dateStr string
		if err := rows.Scan(&vehicleID, &dateStr, &c.Count, &c.Revision); err != nil {
			return nil, err
		}
		date, err := booking.ParseDate(dateStr)
		if err != nil {
			return nil, err
		}
		c.VehicleID = booking.VehicleID(vehicleID)
		c.Date = date
		out = append(out, c)
	}
	return out, rows.Err()
}

// -----------------------------------------------------------------------------
// Reservation store
// -----------------------------------------------------------------------------

const reservationColumns = `id, vehicle_id, requester_id, start_at, end_at, state, cost, note, created_at, revision`

func (q *queries) PutReservation(ctx context.Context, r booking.Reservation) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO reservations (`+reservationColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(r.ID), string(r.VehicleID), string(r.RequesterID),
		formatTime(r.Start), formatTime(r.End), string(r.State),
		r.Cost.String(), r.Note, formatTime(r.CreatedAt), r.Revision)
	return err
}

func (q *queries) GetReservation(ctx context.Context, id booking.ReservationID) (booking.Reservation, bool, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, string(id))
	r, err := scanReservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return booking.Reservation{}, false, nil
	}
	if err != nil {
		return booking.Reservation{}, false, err
	}
	return r, true, nil
}

func (q *queries) UpdateReservation(ctx context.Context, r booking.Reservation) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE reservations SET state = ?, revision = revision + 1
		  WHERE id = ? AND revision = ?`,
		string(r.State), string(r.ID), r.Revision)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	var exists int
	if err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reservations WHERE id = ?`, string(r.ID)).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return fmt.Errorf("reservation %s: %w", r.ID, booking.ErrNotFound)
	}
	return booking.ErrRevisionConflict
}

func (q *queries) ActiveOnDay(ctx context.Context, vehicleID booking.VehicleID, date booking.Date) ([]booking.Reservation, error) {
	day := date.String()
	return q.queryReservations(ctx,
		`SELECT `+reservationColumns+` FROM reservations
		  WHERE vehicle_id = ? AND state = ?
		    AND date(start_at) <= ? AND date(end_at) >= ?
		  ORDER BY start_at`,
		string(vehicleID), string(booking.StateActive), day, day)
}

func (q *queries) ListActive(ctx context.Context) ([]booking.Reservation, error) {
	return q.queryReservations(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE state = ? ORDER BY start_at`,
		string(booking.StateActive))
}

func (q *queries) ActiveEndedBefore(ctx context.Context, t time.Time) ([]booking.Reservation, error) {
	return q.queryReservations(ctx,
		`SELECT `+reservationColumns+` FROM reservations
		  WHERE state = ? AND end_at < ? ORDER BY end_at`,
		string(booking.StateActive), formatTime(t))
}

func (q *queries) ListByRequester(ctx context.Context, requesterID booking.RequesterID) ([]booking.Reservation, error) {
	return q.queryReservations(ctx,
		`SELECT `+reservationColumns+` FROM reservations
		  WHERE requester_id = ? ORDER BY start_at DESC`,
		string(requesterID))
}

func (q *queries) ListAll(ctx context.Context) ([]booking.Reservation, error) {
	return q.queryReservations(ctx,
		`SELECT `+reservationColumns+` FROM reservations ORDER BY start_at DESC`)
}

func (q *queries) queryReservations(ctx context.Context, query string, args ...any) ([]booking.Reservation, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []booking.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// -----------------------------------------------------------------------------
// Vehicle directory
// -----------------------------------------------------------------------------

func (q *queries) GetVehicle(ctx context.Context, id booking.VehicleID) (booking.Vehicle, bool, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT id, make, model, plate, seats, hourly_rate, active FROM vehicles WHERE id = ?`,
		string(id))
	v, err := scanVehicle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return booking.Vehicle{}, false, nil
	}
	if err != nil {
		return booking.Vehicle{}, false, err
	}
	return v, true, nil
}

func (q *queries) SaveVehicle(ctx context.Context, v booking.Vehicle) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO vehicles (id, make, model, plate, seats, hourly_rate, active)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   make = excluded.make, model = excluded.model, plate = excluded.plate,
		   seats = excluded.seats, hourly_rate = excluded.hourly_rate, active = excluded.active`,
		string(v.ID), v.Make, v.Model, v.Plate, v.Seats, v.HourlyRate.String(), boolToInt(v.Active))
	return err
}

func (q *queries) ListVehicles(ctx context.Context) ([]booking.Vehicle, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, make, model, plate, seats, hourly_rate, active FROM vehicles ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []booking.Vehicle
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (q *queries) DeleteVehicle(ctx context.Context, id booking.VehicleID) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM vehicles WHERE id = ?`, string(id))
	return err
}

// =============================================================================
// SCANNING HELPERS
// =============================================================================

type scannable interface {
	Scan(dest ...any) error
}

func scanReservation(row scannable) (booking.Reservation, error) {
	var r booking.Reservation
	var id, vehicleID, requesterID, startAt, endAt, state, cost, createdAt string
	if err := row.Scan(&id, &vehicleID, &requesterID, &startAt, &endAt, &state, &cost, &r.Note, &createdAt, &r.Revision); err != nil {
		return booking.Reservation{}, err
	}

	r.ID = booking.ReservationID(id)
	r.VehicleID = booking.VehicleID(vehicleID)
	r.RequesterID = booking.RequesterID(requesterID)
	r.State = booking.ReservationState(state)

	var err error
	if r.Start, err = parseTime(startAt); err != nil {
		return booking.Reservation{}, err
	}
	if r.End, err = parseTime(endAt); err != nil {
		return booking.Reservation{}, err
	}
	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return booking.Reservation{}, err
	}
	if r.Cost, err = decimal.NewFromString(cost); err != nil {
		return booking.Reservation{}, fmt.Errorf("invalid cost %q: %w", cost, err)
	}
	return r, nil
}

func scanVehicle(row scannable) (booking.Vehicle, error) {
	var v booking.Vehicle
	var id, rate string
	var active int
	if err := row.Scan(&id, &v.Make, &v.Model, &v.Plate, &v.Seats, &rate, &active); err != nil {
		return booking.Vehicle{}, err
	}
	v.ID = booking.VehicleID(id)
	v.Active = active != 0

	var err error
	if v.HourlyRate, err = decimal.NewFromString(rate); err != nil {
		return booking.Vehicle{}, fmt.Errorf("invalid hourly rate %q: %w", rate, err)
	}
	return v, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isConstraintViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint
}
