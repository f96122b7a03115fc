/*
Package booking provides the slot booking engine.

PURPOSE:
  This package allocates bounded-capacity hourly slots (venue × day × hour)
  to users who pledge a stake when booking. Late cancellations forfeit part
  of the stake. Admins control the venue lifecycle and holiday blackouts.

KEY CONCEPTS IN THIS FILE (types.go):
  - Identity: Opaque authenticated caller identity
  - Venue: A bookable place with a fixed per-hour capacity
  - SlotKey: (venue, day, hour) address of one unit of capacity
  - BookingKey: SlotKey plus the user holding the booking
  - Booking: A live reservation with its stake

INVARIANTS:
  1. At most one live Booking per BookingKey
  2. Occupancy of a slot equals the number of live bookings at that slot
  3. Occupancy never exceeds capacity at the moment a booking is admitted

USAGE:
  engine := booking.NewEngine(store, booking.Config{Admin: "admin"})
  slot := booking.SlotKey{VenueID: venueID, Day: day, Hour: 9}
  b, err := engine.CreateBooking(ctx, "alice", slot, decimal.NewFromInt(1000))

SEE ALSO:
  - engine.go: Admission checks and the create/cancel transitions
  - ledger.go: Occupancy and booking records
  - policy.go: Cancellation refund tiers
*/
package booking

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

// Identity is an authenticated caller. The engine treats it as opaque.
type Identity string

type VenueID int64

// =============================================================================
// VENUE
// =============================================================================

// Venue is a bookable place. Venues are never deleted, only deactivated.
type Venue struct {
	ID       VenueID
	Name     string
	Capacity int
	Active   bool
}

// =============================================================================
// SLOTS
// =============================================================================

// Bookable hours, inclusive on both ends.
const (
	FirstHour = 8
	LastHour  = 23

	// HoursPerDay is the number of bookable slots per venue per day.
	HoursPerDay = LastHour - FirstHour + 1
)

// ValidHour reports whether hour is a bookable hour.
func ValidHour(hour int) bool { return hour >= FirstHour && hour <= LastHour }

// SlotKey addresses one hour of capacity at a venue.
// Slots are not stored objects; only their occupancy counters are.
type SlotKey struct {
	VenueID VenueID
	Day     Day
	Hour    int
}

// Start returns the wall-clock instant the slot begins.
func (k SlotKey) Start() time.Time { return k.Day.At(k.Hour) }

func (k SlotKey) String() string {
	return fmt.Sprintf("venue %d %s %02d:00", k.VenueID, k.Day, k.Hour)
}

// BookingKey addresses a single user's booking of a slot.
type BookingKey struct {
	SlotKey
	User Identity
}

// =============================================================================
// BOOKING
// =============================================================================

// Booking is a live reservation. Cancelling removes it entirely.
type Booking struct {
	Key       BookingKey
	Stake     decimal.Decimal
	CheckedIn bool
	CreatedAt time.Time
}

// ScheduledTime is the slot start, derived from the day and hour.
func (b Booking) ScheduledTime() time.Time { return b.Key.Start() }

// HourAvailability is one row of a venue's daily schedule.
type HourAvailability struct {
	Hour      int
	Booked    int
	Available int
}

// =============================================================================
// USERS
// =============================================================================

// UserProfile is replaced wholesale on re-registration.
type UserProfile struct {
	Identity           Identity
	DisplayName        string
	RegistrationNumber string
}
