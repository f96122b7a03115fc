/*
Package sqlite provides a SQLite-backed implementation of booking.TxStore.

PURPOSE:
  Persists venues, holidays, user profiles, live bookings and per-slot
  occupancy counters. Also serves as an append-only EventLog sink.

KEY TABLES:
  venues:    Sequential INTEGER ids, never deleted
  holidays:  One row per blacked-out day
  users:     Profiles, overwritten on re-registration
  bookings:  Live bookings, PRIMARY KEY (venue_id, day, hour, user_identity)
  slots:     Occupancy counter per (venue_id, day, hour)
  events:    Append-only event log

OCCUPANCY:
  Every booking insert/delete adjusts the slots row in the same SQL
  transaction. Rows that drop to zero are removed, so a missing row
  means zero occupancy.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety and a single pooled connection, so
  ":memory:" databases behave as one database and a transaction never
  competes with a second connection.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/slots.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := booking.NewEngine(store, cfg, booking.WithEventLog(store))

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - booking/store.go: Interface definitions
  - booking/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/slot-engine/booking"
)

// Store implements booking.TxStore and booking.EventLog using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var (
	_ booking.TxStore  = (*Store)(nil)
	_ booking.EventLog = (*Store)(nil)
)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// NewFromDB wraps an already-migrated database handle.
func NewFromDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS venues (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		capacity INTEGER NOT NULL CHECK (capacity > 0),
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS holidays (
		day TEXT PRIMARY KEY,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS users (
		identity TEXT PRIMARY KEY,
		display_name TEXT NOT NULL,
		registration_number TEXT NOT NULL DEFAULT '',
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS bookings (
		venue_id INTEGER NOT NULL REFERENCES venues(id),
		day TEXT NOT NULL,
		hour INTEGER NOT NULL CHECK (hour BETWEEN 8 AND 23),
		user_identity TEXT NOT NULL,
		stake TEXT NOT NULL,
		checked_in BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL,
		PRIMARY KEY (venue_id, day, hour, user_identity)
	);

	CREATE INDEX IF NOT EXISTS idx_bookings_user
		ON bookings(user_identity);

	CREATE TABLE IF NOT EXISTS slots (
		venue_id INTEGER NOT NULL,
		day TEXT NOT NULL,
		hour INTEGER NOT NULL,
		occupancy INTEGER NOT NULL CHECK (occupancy >= 0),
		PRIMARY KEY (venue_id, day, hour)
	);

	-- Append-only event log for external indexers
	CREATE TABLE IF NOT EXISTS events (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		kind TEXT NOT NULL,
		at TEXT NOT NULL,
		fields_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_kind
		ON events(kind);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// QUERIES - Shared by Store and the transactional view
// =============================================================================

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries implements booking.Store over a querier. Multi-statement writes
// are only atomic when q is a *sql.Tx.
type queries struct {
	q querier
}

func (qs queries) CreateVenue(ctx context.Context, v booking.Venue) (booking.Venue, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := qs.q.ExecContext(ctx,
		"INSERT INTO venues (name, capacity, active, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
		v.Name, v.Capacity, v.Active, now, now,
	)
	if err != nil {
		return booking.Venue{}, fmt.Errorf("failed to insert venue: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return booking.Venue{}, fmt.Errorf("failed to read venue id: %w", err)
	}
	v.ID = booking.VenueID(id)
	return v, nil
}

func (qs queries) SaveVenue(ctx context.Context, v booking.Venue) error {
	res, err := qs.q.ExecContext(ctx,
		"UPDATE venues SET name = ?, capacity = ?, active = ?, updated_at = ? WHERE id = ?",
		v.Name, v.Capacity, v.Active, time.Now().UTC().Format(time.RFC3339), int64(v.ID),
	)
	if err != nil {
		return fmt.Errorf("failed to update venue: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return fmt.Errorf("venue %d: %w", v.ID, booking.ErrNotFound)
	}
	return nil
}

func (qs queries) GetVenue(ctx context.Context, id booking.VenueID) (booking.Venue, error) {
	var v booking.Venue
	err := qs.q.QueryRowContext(ctx,
		"SELECT id, name, capacity, active FROM venues WHERE id = ?", int64(id),
	).Scan(&v.ID, &v.Name, &v.Capacity, &v.Active)
	if err == sql.ErrNoRows {
		return booking.Venue{}, fmt.Errorf("venue %d: %w", id, booking.ErrNotFound)
	}
	if err != nil {
		return booking.Venue{}, fmt.Errorf("failed to get venue: %w", err)
	}
	return v, nil
}

func (qs queries) ListVenues(ctx context.Context) ([]booking.Venue, error) {
	rows, err := qs.q.QueryContext(ctx, "SELECT id, name, capacity, active FROM venues ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list venues: %w", err)
	}
	defer rows.Close()

	venues := []booking.Venue{}
	for rows.Next() {
		var v booking.Venue
		if err := rows.Scan(&v.ID, &v.Name, &v.Capacity, &v.Active); err != nil {
			return nil, err
		}
		venues = append(venues, v)
	}
	return venues, rows.Err()
}

func (qs queries) InsertHoliday(ctx context.Context, day booking.Day) error {
	_, err := qs.q.ExecContext(ctx,
		"INSERT INTO holidays (day, created_at) VALUES (?, ?)",
		day.String(), time.Now().UTC().Format(time.RFC3339),
	)
	if isUniqueConstraintError(err) {
		return fmt.Errorf("holiday %s: %w", day, booking.ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("failed to insert holiday: %w", err)
	}
	return nil
}

func (qs queries) DeleteHoliday(ctx context.Context, day booking.Day) error {
	res, err := qs.q.ExecContext(ctx, "DELETE FROM holidays WHERE day = ?", day.String())
	if err != nil {
		return fmt.Errorf("failed to delete holiday: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return fmt.Errorf("holiday %s: %w", day, booking.ErrNotFound)
	}
	return nil
}

func (qs queries) IsHoliday(ctx context.Context, day booking.Day) (bool, error) {
	var count int
	err := qs.q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM holidays WHERE day = ?", day.String(),
	).Scan(&count)
	return count > 0, err
}

func (qs queries) ListHolidays(ctx context.Context) ([]booking.Day, error) {
	rows, err := qs.q.QueryContext(ctx, "SELECT day FROM holidays ORDER BY day ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to list holidays: %w", err)
	}
	defer rows.Close()

	days := []booking.Day{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		day, err := booking.ParseDay(s)
		if err != nil {
			return nil, err
		}
		days = append(days, day)
	}
	return days, rows.Err()
}

func (qs queries) SaveProfile(ctx context.Context, p booking.UserProfile) error {
	query := `
		INSERT INTO users (identity, display_name, registration_number, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(identity) DO UPDATE SET
			display_name = excluded.display_name,
			registration_number = excluded.registration_number,
			updated_at = excluded.updated_at
	`
	_, err := qs.q.ExecContext(ctx, query,
		string(p.Identity), p.DisplayName, p.RegistrationNumber,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

func (qs queries) GetProfile(ctx context.Context, id booking.Identity) (booking.UserProfile, error) {
	p := booking.UserProfile{Identity: id}
	err := qs.q.QueryRowContext(ctx,
		"SELECT display_name, registration_number FROM users WHERE identity = ? AND display_name <> ''",
		string(id),
	).Scan(&p.DisplayName, &p.RegistrationNumber)
	if err == sql.ErrNoRows {
		return booking.UserProfile{}, fmt.Errorf("user %s: %w", id, booking.ErrNotFound)
	}
	if err != nil {
		return booking.UserProfile{}, fmt.Errorf("failed to get profile: %w", err)
	}
	return p, nil
}

func (qs queries) GetBooking(ctx context.Context, key booking.BookingKey) (booking.Booking, error) {
	var (
		stake     string
		createdAt string
		b         = booking.Booking{Key: key}
	)
	err := qs.q.QueryRowContext(ctx, `
		SELECT stake, checked_in, created_at FROM bookings
		WHERE venue_id = ? AND day = ? AND hour = ? AND user_identity = ?`,
		int64(key.VenueID), key.Day.String(), key.Hour, string(key.User),
	).Scan(&stake, &b.CheckedIn, &createdAt)
	if err == sql.ErrNoRows {
		return booking.Booking{}, fmt.Errorf("booking %s for %s: %w", key.SlotKey, key.User, booking.ErrNotFound)
	}
	if err != nil {
		return booking.Booking{}, fmt.Errorf("failed to get booking: %w", err)
	}

	b.Stake, err = decimal.NewFromString(stake)
	if err != nil {
		return booking.Booking{}, fmt.Errorf("corrupt stake %q: %w", stake, err)
	}
	b.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return b, nil
}

func (qs queries) InsertBooking(ctx context.Context, b booking.Booking) (int, error) {
	_, err := qs.q.ExecContext(ctx, `
		INSERT INTO bookings (venue_id, day, hour, user_identity, stake, checked_in, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		int64(b.Key.VenueID), b.Key.Day.String(), b.Key.Hour, string(b.Key.User),
		b.Stake.String(), b.CheckedIn, b.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if isUniqueConstraintError(err) {
		return 0, fmt.Errorf("booking %s for %s: %w", b.Key.SlotKey, b.Key.User, booking.ErrDuplicateBooking)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to insert booking: %w", err)
	}

	_, err = qs.q.ExecContext(ctx, `
		INSERT INTO slots (venue_id, day, hour, occupancy) VALUES (?, ?, ?, 1)
		ON CONFLICT(venue_id, day, hour) DO UPDATE SET occupancy = occupancy + 1`,
		int64(b.Key.VenueID), b.Key.Day.String(), b.Key.Hour,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to increment occupancy: %w", err)
	}
	return qs.Occupancy(ctx, b.Key.SlotKey)
}

func (qs queries) DeleteBooking(ctx context.Context, key booking.BookingKey) (int, error) {
	res, err := qs.q.ExecContext(ctx, `
		DELETE FROM bookings
		WHERE venue_id = ? AND day = ? AND hour = ? AND user_identity = ?`,
		int64(key.VenueID), key.Day.String(), key.Hour, string(key.User),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete booking: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return 0, err
	} else if n == 0 {
		return 0, fmt.Errorf("booking %s for %s: %w", key.SlotKey, key.User, booking.ErrNotFound)
	}

	slotArgs := []any{int64(key.VenueID), key.Day.String(), key.Hour}
	if _, err := qs.q.ExecContext(ctx,
		"UPDATE slots SET occupancy = occupancy - 1 WHERE venue_id = ? AND day = ? AND hour = ?",
		slotArgs...,
	); err != nil {
		return 0, fmt.Errorf("failed to decrement occupancy: %w", err)
	}
	if _, err := qs.q.ExecContext(ctx,
		"DELETE FROM slots WHERE venue_id = ? AND day = ? AND hour = ? AND occupancy <= 0",
		slotArgs...,
	); err != nil {
		return 0, fmt.Errorf("failed to prune slot: %w", err)
	}
	return qs.Occupancy(ctx, key.SlotKey)
}

func (qs queries) MarkCheckedIn(ctx context.Context, key booking.BookingKey) error {
	res, err := qs.q.ExecContext(ctx, `
		UPDATE bookings SET checked_in = TRUE
		WHERE venue_id = ? AND day = ? AND hour = ? AND user_identity = ?`,
		int64(key.VenueID), key.Day.String(), key.Hour, string(key.User),
	)
	if err != nil {
		return fmt.Errorf("failed to check in: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return fmt.Errorf("booking %s for %s: %w", key.SlotKey, key.User, booking.ErrNotFound)
	}
	return nil
}

func (qs queries) Occupancy(ctx context.Context, slot booking.SlotKey) (int, error) {
	var n int
	err := qs.q.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(occupancy), 0) FROM slots WHERE venue_id = ? AND day = ? AND hour = ?",
		int64(slot.VenueID), slot.Day.String(), slot.Hour,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to read occupancy: %w", err)
	}
	return n, nil
}

func (qs queries) DailyOccupancy(ctx context.Context, venueID booking.VenueID, day booking.Day) (map[int]int, error) {
	rows, err := qs.q.QueryContext(ctx,
		"SELECT hour, occupancy FROM slots WHERE venue_id = ? AND day = ? AND occupancy > 0",
		int64(venueID), day.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to read daily occupancy: %w", err)
	}
	defer rows.Close()

	counts := make(map[int]int)
	for rows.Next() {
		var hour, n int
		if err := rows.Scan(&hour, &n); err != nil {
			return nil, err
		}
		counts[hour] = n
	}
	return counts, rows.Err()
}

// =============================================================================
// STORE (booking.Store interface)
// =============================================================================

func (s *Store) CreateVenue(ctx context.Context, v booking.Venue) (booking.Venue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return queries{s.db}.CreateVenue(ctx, v)
}

func (s *Store) SaveVenue(ctx context.Context, v booking.Venue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return queries{s.db}.SaveVenue(ctx, v)
}

func (s *Store) GetVenue(ctx context.Context, id booking.VenueID) (booking.Venue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queries{s.db}.GetVenue(ctx, id)
}

func (s *Store) ListVenues(ctx context.Context) ([]booking.Venue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queries{s.db}.ListVenues(ctx)
}

func (s *Store) InsertHoliday(ctx context.Context, day booking.Day) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return queries{s.db}.InsertHoliday(ctx, day)
}

func (s *Store) DeleteHoliday(ctx context.Context, day booking.Day) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return queries{s.db}.DeleteHoliday(ctx, day)
}

func (s *Store) IsHoliday(ctx context.Context, day booking.Day) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queries{s.db}.IsHoliday(ctx, day)
}

func (s *Store) ListHolidays(ctx context.Context) ([]booking.Day, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queries{s.db}.ListHolidays(ctx)
}

func (s *Store) SaveProfile(ctx context.Context, p booking.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return queries{s.db}.SaveProfile(ctx, p)
}

func (s *Store) GetProfile(ctx context.Context, id booking.Identity) (booking.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queries{s.db}.GetProfile(ctx, id)
}

func (s *Store) GetBooking(ctx context.Context, key booking.BookingKey) (booking.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queries{s.db}.GetBooking(ctx, key)
}

// InsertBooking runs in its own transaction so the counter stays in step.
func (s *Store) InsertBooking(ctx context.Context, b booking.Booking) (int, error) {
	var n int
	err := s.WithTx(ctx, func(st booking.Store) error {
		var err error
		n, err = st.InsertBooking(ctx, b)
		return err
	})
	return n, err
}

// DeleteBooking runs in its own transaction so the counter stays in step.
func (s *Store) DeleteBooking(ctx context.Context, key booking.BookingKey) (int, error) {
	var n int
	err := s.WithTx(ctx, func(st booking.Store) error {
		var err error
		n, err = st.DeleteBooking(ctx, key)
		return err
	})
	return n, err
}

func (s *Store) MarkCheckedIn(ctx context.Context, key booking.BookingKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return queries{s.db}.MarkCheckedIn(ctx, key)
}

func (s *Store) Occupancy(ctx context.Context, slot booking.SlotKey) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queries{s.db}.Occupancy(ctx, slot)
}

func (s *Store) DailyOccupancy(ctx context.Context, venueID booking.VenueID, day booking.Day) (map[int]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queries{s.db}.DailyOccupancy(ctx, venueID, day)
}

// =============================================================================
// TRANSACTIONAL STORE (booking.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store booking.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(queries{sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// =============================================================================
// EVENT LOG (booking.EventLog interface)
// =============================================================================

// Append records an event. Events are never updated or deleted.
func (s *Store) Append(ctx context.Context, e booking.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fields, err := json.Marshal(e.Fields)
	if err != nil {
		return fmt.Errorf("failed to encode event fields: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO events (id, kind, at, fields_json) VALUES (?, ?, ?, ?)",
		e.ID, string(e.Kind), e.At.UTC().Format(time.RFC3339Nano), string(fields),
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

// ListEvents returns up to limit events recorded after sequence number
// after, oldest first, with the sequence number of the last one returned.
func (s *Store) ListEvents(ctx context.Context, after int64, limit int) ([]booking.Event, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT seq, id, kind, at, fields_json FROM events WHERE seq > ? ORDER BY seq ASC LIMIT ?",
		after, limit,
	)
	if err != nil {
		return nil, after, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	events := []booking.Event{}
	last := after
	for rows.Next() {
		var (
			e      booking.Event
			kind   string
			at     string
			fields string
		)
		if err := rows.Scan(&last, &e.ID, &kind, &at, &fields); err != nil {
			return nil, after, err
		}
		e.Kind = booking.EventKind(kind)
		e.At, _ = time.Parse(time.RFC3339Nano, at)
		if err := json.Unmarshal([]byte(fields), &e.Fields); err != nil {
			return nil, after, fmt.Errorf("corrupt event %s: %w", e.ID, err)
		}
		events = append(events, e)
	}
	return events, last, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo). Venue ids restart at 1.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"bookings", "slots", "holidays", "users", "venues", "events"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	_, err := s.db.ExecContext(ctx, "DELETE FROM sqlite_sequence WHERE name IN ('venues', 'events')")
	return err
}

func isUniqueConstraintError(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintUnique ||
		se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}
