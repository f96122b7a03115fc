// Package store provides Store implementations.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/warp/slot-engine/booking"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements booking.TxStore. All maps use flat composite keys;
// lookups of missing keys never create entries.
type Memory struct {
	mu sync.RWMutex
	state
}

type state struct {
	nextVenueID booking.VenueID
	venues      map[booking.VenueID]booking.Venue
	holidays    map[booking.Day]bool
	profiles    map[booking.Identity]booking.UserProfile
	bookings    map[booking.BookingKey]booking.Booking
	occupancy   map[booking.SlotKey]int
}

var _ booking.TxStore = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{state: newState()}
}

func newState() state {
	return state{
		nextVenueID: 1,
		venues:      make(map[booking.VenueID]booking.Venue),
		holidays:    make(map[booking.Day]bool),
		profiles:    make(map[booking.Identity]booking.UserProfile),
		bookings:    make(map[booking.BookingKey]booking.Booking),
		occupancy:   make(map[booking.SlotKey]int),
	}
}

func (m *Memory) CreateVenue(ctx context.Context, v booking.Venue) (booking.Venue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createVenue(v), nil
}

func (m *Memory) SaveVenue(ctx context.Context, v booking.Venue) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveVenue(v)
}

func (m *Memory) GetVenue(ctx context.Context, id booking.VenueID) (booking.Venue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getVenue(id)
}

func (m *Memory) ListVenues(ctx context.Context) ([]booking.Venue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listVenues(), nil
}

func (m *Memory) InsertHoliday(ctx context.Context, day booking.Day) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertHoliday(day)
}

func (m *Memory) DeleteHoliday(ctx context.Context, day booking.Day) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteHoliday(day)
}

func (m *Memory) IsHoliday(ctx context.Context, day booking.Day) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.holidays[day], nil
}

func (m *Memory) ListHolidays(ctx context.Context) ([]booking.Day, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listHolidays(), nil
}

func (m *Memory) SaveProfile(ctx context.Context, p booking.UserProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.Identity] = p
	return nil
}

func (m *Memory) GetProfile(ctx context.Context, id booking.Identity) (booking.UserProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getProfile(id)
}

func (m *Memory) GetBooking(ctx context.Context, key booking.BookingKey) (booking.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getBooking(key)
}

func (m *Memory) InsertBooking(ctx context.Context, b booking.Booking) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertBooking(b)
}

func (m *Memory) DeleteBooking(ctx context.Context, key booking.BookingKey) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteBooking(key)
}

func (m *Memory) MarkCheckedIn(ctx context.Context, key booking.BookingKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.markCheckedIn(key)
}

func (m *Memory) Occupancy(ctx context.Context, slot booking.SlotKey) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.occupancy[slot], nil
}

func (m *Memory) DailyOccupancy(ctx context.Context, venueID booking.VenueID, day booking.Day) (map[int]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dailyOccupancy(venueID, day), nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(ctx context.Context, fn func(booking.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.state.clone()

	if err := fn(&txView{s: &m.state}); err != nil {
		m.state = snapshot
		return err
	}
	return nil
}

// Reset drops every record.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = newState()
	return nil
}

func (s *state) clone() state {
	c := newState()
	c.nextVenueID = s.nextVenueID
	for k, v := range s.venues {
		c.venues[k] = v
	}
	for k, v := range s.holidays {
		c.holidays[k] = v
	}
	for k, v := range s.profiles {
		c.profiles[k] = v
	}
	for k, v := range s.bookings {
		c.bookings[k] = v
	}
	for k, v := range s.occupancy {
		c.occupancy[k] = v
	}
	return c
}

// txView is the Store handed to WithTx callbacks. The parent lock is
// already held, so it reads and writes state directly.
type txView struct {
	s *state
}

func (tv *txView) CreateVenue(_ context.Context, v booking.Venue) (booking.Venue, error) {
	return tv.s.createVenue(v), nil
}

func (tv *txView) SaveVenue(_ context.Context, v booking.Venue) error { return tv.s.saveVenue(v) }

func (tv *txView) GetVenue(_ context.Context, id booking.VenueID) (booking.Venue, error) {
	return tv.s.getVenue(id)
}

func (tv *txView) ListVenues(context.Context) ([]booking.Venue, error) { return tv.s.listVenues(), nil }

func (tv *txView) InsertHoliday(_ context.Context, day booking.Day) error {
	return tv.s.insertHoliday(day)
}

func (tv *txView) DeleteHoliday(_ context.Context, day booking.Day) error {
	return tv.s.deleteHoliday(day)
}

func (tv *txView) IsHoliday(_ context.Context, day booking.Day) (bool, error) {
	return tv.s.holidays[day], nil
}

func (tv *txView) ListHolidays(context.Context) ([]booking.Day, error) {
	return tv.s.listHolidays(), nil
}

func (tv *txView) SaveProfile(_ context.Context, p booking.UserProfile) error {
	tv.s.profiles[p.Identity] = p
	return nil
}

func (tv *txView) GetProfile(_ context.Context, id booking.Identity) (booking.UserProfile, error) {
	return tv.s.getProfile(id)
}

func (tv *txView) GetBooking(_ context.Context, key booking.BookingKey) (booking.Booking, error) {
	return tv.s.getBooking(key)
}

func (tv *txView) InsertBooking(_ context.Context, b booking.Booking) (int, error) {
	return tv.s.insertBooking(b)
}

func (tv *txView) DeleteBooking(_ context.Context, key booking.BookingKey) (int, error) {
	return tv.s.deleteBooking(key)
}

func (tv *txView) MarkCheckedIn(_ context.Context, key booking.BookingKey) error {
	return tv.s.markCheckedIn(key)
}

func (tv *txView) Occupancy(_ context.Context, slot booking.SlotKey) (int, error) {
	return tv.s.occupancy[slot], nil
}

func (tv *txView) DailyOccupancy(_ context.Context, venueID booking.VenueID, day booking.Day) (map[int]int, error) {
	return tv.s.dailyOccupancy(venueID, day), nil
}

// =============================================================================
// STATE OPERATIONS (caller holds the lock)
// =============================================================================

func (s *state) createVenue(v booking.Venue) booking.Venue {
	v.ID = s.nextVenueID
	s.nextVenueID++
	s.venues[v.ID] = v
	return v
}

func (s *state) saveVenue(v booking.Venue) error {
	if _, ok := s.venues[v.ID]; !ok {
		return fmt.Errorf("venue %d: %w", v.ID, booking.ErrNotFound)
	}
	s.venues[v.ID] = v
	return nil
}

func (s *state) getVenue(id booking.VenueID) (booking.Venue, error) {
	v, ok := s.venues[id]
	if !ok {
		return booking.Venue{}, fmt.Errorf("venue %d: %w", id, booking.ErrNotFound)
	}
	return v, nil
}

func (s *state) listVenues() []booking.Venue {
	venues := make([]booking.Venue, 0, len(s.venues))
	for _, v := range s.venues {
		venues = append(venues, v)
	}
	sort.Slice(venues, func(i, j int) bool { return venues[i].ID < venues[j].ID })
	return venues
}

func (s *state) insertHoliday(day booking.Day) error {
	if s.holidays[day] {
		return fmt.Errorf("holiday %s: %w", day, booking.ErrAlreadyExists)
	}
	s.holidays[day] = true
	return nil
}

func (s *state) deleteHoliday(day booking.Day) error {
	if !s.holidays[day] {
		return fmt.Errorf("holiday %s: %w", day, booking.ErrNotFound)
	}
	delete(s.holidays, day)
	return nil
}

func (s *state) listHolidays() []booking.Day {
	days := make([]booking.Day, 0, len(s.holidays))
	for d := range s.holidays {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days
}

func (s *state) getProfile(id booking.Identity) (booking.UserProfile, error) {
	p, ok := s.profiles[id]
	if !ok || p.DisplayName == "" {
		return booking.UserProfile{}, fmt.Errorf("user %s: %w", id, booking.ErrNotFound)
	}
	return p, nil
}

func (s *state) getBooking(key booking.BookingKey) (booking.Booking, error) {
	b, ok := s.bookings[key]
	if !ok {
		return booking.Booking{}, fmt.Errorf("booking %s for %s: %w", key.SlotKey, key.User, booking.ErrNotFound)
	}
	return b, nil
}

func (s *state) insertBooking(b booking.Booking) (int, error) {
	if _, ok := s.bookings[b.Key]; ok {
		return 0, fmt.Errorf("booking %s for %s: %w", b.Key.SlotKey, b.Key.User, booking.ErrDuplicateBooking)
	}
	s.bookings[b.Key] = b
	s.occupancy[b.Key.SlotKey]++
	return s.occupancy[b.Key.SlotKey], nil
}

func (s *state) deleteBooking(key booking.BookingKey) (int, error) {
	if _, ok := s.bookings[key]; !ok {
		return 0, fmt.Errorf("booking %s for %s: %w", key.SlotKey, key.User, booking.ErrNotFound)
	}
	delete(s.bookings, key)
	n := s.occupancy[key.SlotKey] - 1
	if n <= 0 {
		delete(s.occupancy, key.SlotKey)
		return 0, nil
	}
	s.occupancy[key.SlotKey] = n
	return n, nil
}

func (s *state) markCheckedIn(key booking.BookingKey) error {
	b, ok := s.bookings[key]
	if !ok {
		return fmt.Errorf("booking %s for %s: %w", key.SlotKey, key.User, booking.ErrNotFound)
	}
	b.CheckedIn = true
	s.bookings[key] = b
	return nil
}

func (s *state) dailyOccupancy(venueID booking.VenueID, day booking.Day) map[int]int {
	counts := make(map[int]int)
	for hour := booking.FirstHour; hour <= booking.LastHour; hour++ {
		if n := s.occupancy[booking.SlotKey{VenueID: venueID, Day: day, Hour: hour}]; n > 0 {
			counts[hour] = n
		}
	}
	return counts
}
