/*
ledger.go - Slot occupancy and per-user booking records

PURPOSE:
  The SlotLedger answers "how full is this slot" and "does this user hold
  it", and applies the two mutations the engine commits: Reserve and
  Release. Capacity comes from the VenueRegistry.

INVARIANTS:
  1. occupancy[v,d,h] == number of live bookings at (v,d,h)
  2. At most one live booking per (v,d,h,user)

  The ledger does NOT enforce capacity on Reserve. Capacity is an
  admission rule checked by the engine against the same snapshot, and a
  later capacity decrease must not invalidate live bookings.

SEE ALSO:
  - store.go: InsertBooking/DeleteBooking keep the counter in step
  - engine.go: Calls Reserve/Release inside Store.WithTx
*/
package booking

import (
	"context"
	"errors"
)

type SlotLedger struct {
	store  Store
	venues *VenueRegistry
}

func NewSlotLedger(store Store) *SlotLedger {
	return &SlotLedger{store: store, venues: NewVenueRegistry(store)}
}

func (l *SlotLedger) Occupancy(ctx context.Context, slot SlotKey) (int, error) {
	return l.store.Occupancy(ctx, slot)
}

func (l *SlotLedger) Booking(ctx context.Context, key BookingKey) (Booking, error) {
	return l.store.GetBooking(ctx, key)
}

// HasBooked reports whether a live booking exists for key.
func (l *SlotLedger) HasBooked(ctx context.Context, key BookingKey) (bool, error) {
	_, err := l.store.GetBooking(ctx, key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// Remaining returns free places in slot given the venue's current capacity.
// Never negative, even after a capacity decrease.
func (l *SlotLedger) Remaining(ctx context.Context, venue Venue, slot SlotKey) (int, error) {
	occupied, err := l.store.Occupancy(ctx, slot)
	if err != nil {
		return 0, err
	}
	return free(venue.Capacity, occupied), nil
}

// Reserve records b and returns the slot's new occupancy.
func (l *SlotLedger) Reserve(ctx context.Context, b Booking) (int, error) {
	return l.store.InsertBooking(ctx, b)
}

// Release removes the booking at key and returns the slot's new occupancy.
func (l *SlotLedger) Release(ctx context.Context, key BookingKey) (int, error) {
	return l.store.DeleteBooking(ctx, key)
}

func (l *SlotLedger) CheckIn(ctx context.Context, key BookingKey) error {
	return l.store.MarkCheckedIn(ctx, key)
}

// Daily returns one row per bookable hour, FirstHour through LastHour.
func (l *SlotLedger) Daily(ctx context.Context, venueID VenueID, day Day) ([]HourAvailability, error) {
	venue, err := l.venues.Get(ctx, venueID)
	if err != nil {
		return nil, err
	}
	counts, err := l.store.DailyOccupancy(ctx, venueID, day)
	if err != nil {
		return nil, err
	}

	rows := make([]HourAvailability, 0, HoursPerDay)
	for hour := FirstHour; hour <= LastHour; hour++ {
		booked := counts[hour]
		rows = append(rows, HourAvailability{
			Hour:      hour,
			Booked:    booked,
			Available: free(venue.Capacity, booked),
		})
	}
	return rows, nil
}

func free(capacity, occupied int) int {
	if occupied >= capacity {
		return 0
	}
	return capacity - occupied
}
