/*
store.go - Persistence interface for venues, holidays, users and bookings

PURPOSE:
  Defines the interface between the engine and the database. The engine
  never touches storage directly except through Store, and every state
  change it commits goes through TxStore.WithTx.

KEY INTERFACES:
  Store:   Keyed reads and writes over the four record kinds
  TxStore: Store plus all-or-nothing transactions

COMPOSITE KEYS:
  Bookings are addressed by one flat key (venue, day, hour, user) and
  occupancy by (venue, day, hour). Reads of missing keys return
  ErrNotFound or a zero count; they never create records.

OCCUPANCY:
  InsertBooking and DeleteBooking adjust the slot's occupancy counter in
  the same write, so the counter always equals the live booking count.

IMPLEMENTATIONS:
  - booking/store/memory.go: In-memory, snapshot + rollback
  - store/sqlite/sqlite.go: SQLite

SEE ALSO:
  - engine.go: The only caller of WithTx
*/
package booking

import "context"

// =============================================================================
// STORE
// =============================================================================

type Store interface {
	// CreateVenue assigns the next sequential ID (starting at 1) and persists v.
	CreateVenue(ctx context.Context, v Venue) (Venue, error)

	// SaveVenue overwrites an existing venue. ErrNotFound if v.ID was never created.
	SaveVenue(ctx context.Context, v Venue) error

	GetVenue(ctx context.Context, id VenueID) (Venue, error)

	// ListVenues returns every venue ordered by ID.
	ListVenues(ctx context.Context) ([]Venue, error)

	// InsertHoliday fails with ErrAlreadyExists if the day is already marked.
	InsertHoliday(ctx context.Context, day Day) error

	// DeleteHoliday fails with ErrNotFound if the day is not marked.
	DeleteHoliday(ctx context.Context, day Day) error

	IsHoliday(ctx context.Context, day Day) (bool, error)
	ListHolidays(ctx context.Context) ([]Day, error)

	SaveProfile(ctx context.Context, p UserProfile) error
	GetProfile(ctx context.Context, id Identity) (UserProfile, error)

	GetBooking(ctx context.Context, key BookingKey) (Booking, error)

	// InsertBooking stores b and increments its slot's occupancy.
	// Returns the new occupancy, or ErrDuplicateBooking if the key is live.
	InsertBooking(ctx context.Context, b Booking) (int, error)

	// DeleteBooking removes the booking and decrements occupancy.
	// Returns the new occupancy, or ErrNotFound.
	DeleteBooking(ctx context.Context, key BookingKey) (int, error)

	// MarkCheckedIn sets the checked-in flag on a live booking.
	MarkCheckedIn(ctx context.Context, key BookingKey) error

	Occupancy(ctx context.Context, slot SlotKey) (int, error)

	// DailyOccupancy returns occupancy by hour for one venue and day.
	// Hours with no bookings are absent from the map.
	DailyOccupancy(ctx context.Context, venueID VenueID, day Day) (map[int]int, error)
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, every write made through the passed Store is rolled back.
	WithTx(ctx context.Context, fn func(Store) error) error
}
