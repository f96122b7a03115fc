package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/slot-engine/booking"
	"github.com/warp/slot-engine/booking/store"
)

var day = booking.NewDay(2025, time.March, 11)

func newBooking(venue booking.VenueID, hour int, user booking.Identity) booking.Booking {
	return booking.Booking{
		Key: booking.BookingKey{
			SlotKey: booking.SlotKey{VenueID: venue, Day: day, Hour: hour},
			User:    user,
		},
		Stake: decimal.NewFromInt(100),
	}
}

func TestMemory_BookingCountersStayInStep(t *testing.T) {
	// GIVEN: Two bookings in one slot
	// WHEN: One is deleted
	// THEN: Occupancy follows and unrelated slots stay at zero

	s := store.NewMemory()
	ctx := context.Background()

	n, err := s.InsertBooking(ctx, newBooking(1, 10, "alice"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = s.InsertBooking(ctx, newBooking(1, 10, "bob"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = s.InsertBooking(ctx, newBooking(1, 10, "bob"))
	assert.ErrorIs(t, err, booking.ErrDuplicateBooking)

	n, err = s.DeleteBooking(ctx, newBooking(1, 10, "alice").Key)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = s.DeleteBooking(ctx, newBooking(1, 10, "alice").Key)
	assert.ErrorIs(t, err, booking.ErrNotFound)

	occ, err := s.Occupancy(ctx, booking.SlotKey{VenueID: 1, Day: day, Hour: 11})
	require.NoError(t, err)
	assert.Equal(t, 0, occ)

	daily, err := s.DailyOccupancy(ctx, 1, day)
	require.NoError(t, err)
	assert.Equal(t, map[int]int{10: 1}, daily)
}

func TestMemory_WithTx_RollsBackOnError(t *testing.T) {
	// GIVEN: A venue and a booking
	// WHEN: A transaction writes and then fails
	// THEN: None of its writes survive

	s := store.NewMemory()
	ctx := context.Background()
	v, err := s.CreateVenue(ctx, booking.Venue{Name: "Court", Capacity: 2, Active: true})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = s.WithTx(ctx, func(tx booking.Store) error {
		if _, err := tx.InsertBooking(ctx, newBooking(v.ID, 10, "alice")); err != nil {
			return err
		}
		if err := tx.InsertHoliday(ctx, day); err != nil {
			return err
		}
		if _, err := tx.CreateVenue(ctx, booking.Venue{Name: "Hall", Capacity: 5, Active: true}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.GetBooking(ctx, newBooking(v.ID, 10, "alice").Key)
	assert.ErrorIs(t, err, booking.ErrNotFound)
	holiday, err := s.IsHoliday(ctx, day)
	require.NoError(t, err)
	assert.False(t, holiday)
	venues, err := s.ListVenues(ctx)
	require.NoError(t, err)
	assert.Len(t, venues, 1)

	// The rolled-back venue ID is reused.
	next, err := s.CreateVenue(ctx, booking.Venue{Name: "Hall", Capacity: 5, Active: true})
	require.NoError(t, err)
	assert.Equal(t, booking.VenueID(2), next.ID)
}

func TestMemory_WithTx_CommitsOnSuccess(t *testing.T) {
	s := store.NewMemory()
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx booking.Store) error {
		_, err := tx.InsertBooking(ctx, newBooking(1, 9, "alice"))
		return err
	})
	require.NoError(t, err)

	b, err := s.GetBooking(ctx, newBooking(1, 9, "alice").Key)
	require.NoError(t, err)
	assert.True(t, b.Stake.Equal(decimal.NewFromInt(100)))
}

func TestMemory_VenuesHolidaysProfiles(t *testing.T) {
	s := store.NewMemory()
	ctx := context.Background()

	_, err := s.GetVenue(ctx, 1)
	assert.ErrorIs(t, err, booking.ErrNotFound)
	assert.ErrorIs(t, s.SaveVenue(ctx, booking.Venue{ID: 1, Name: "X", Capacity: 1}), booking.ErrNotFound)

	require.NoError(t, s.InsertHoliday(ctx, day.AddDays(1)))
	require.NoError(t, s.InsertHoliday(ctx, day))
	assert.ErrorIs(t, s.InsertHoliday(ctx, day), booking.ErrAlreadyExists)
	days, err := s.ListHolidays(ctx)
	require.NoError(t, err)
	assert.Equal(t, []booking.Day{day, day.AddDays(1)}, days)
	assert.ErrorIs(t, s.DeleteHoliday(ctx, day.AddDays(5)), booking.ErrNotFound)

	_, err = s.GetProfile(ctx, "alice")
	assert.ErrorIs(t, err, booking.ErrNotFound)
	require.NoError(t, s.SaveProfile(ctx, booking.UserProfile{Identity: "alice", DisplayName: "Alice"}))
	p, err := s.GetProfile(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice", p.DisplayName)
}

func TestMemory_MarkCheckedIn(t *testing.T) {
	s := store.NewMemory()
	ctx := context.Background()
	b := newBooking(1, 10, "alice")

	assert.ErrorIs(t, s.MarkCheckedIn(ctx, b.Key), booking.ErrNotFound)

	_, err := s.InsertBooking(ctx, b)
	require.NoError(t, err)
	require.NoError(t, s.MarkCheckedIn(ctx, b.Key))

	got, err := s.GetBooking(ctx, b.Key)
	require.NoError(t, err)
	assert.True(t, got.CheckedIn)
}

func TestMemory_Reset(t *testing.T) {
	s := store.NewMemory()
	ctx := context.Background()
	_, err := s.CreateVenue(ctx, booking.Venue{Name: "Court", Capacity: 2, Active: true})
	require.NoError(t, err)
	_, err = s.InsertBooking(ctx, newBooking(1, 10, "alice"))
	require.NoError(t, err)

	require.NoError(t, s.Reset(ctx))

	venues, err := s.ListVenues(ctx)
	require.NoError(t, err)
	assert.Empty(t, venues)
	occ, err := s.Occupancy(ctx, newBooking(1, 10, "alice").Key.SlotKey)
	require.NoError(t, err)
	assert.Equal(t, 0, occ)
	v, err := s.CreateVenue(ctx, booking.Venue{Name: "Court", Capacity: 2, Active: true})
	require.NoError(t, err)
	assert.Equal(t, booking.VenueID(1), v.ID)
}
