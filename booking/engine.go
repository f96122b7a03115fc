/*
engine.go - The booking state machine

PURPOSE:
  Engine is the single entry point for every operation. It authorizes the
  caller, runs admission checks against one consistent view of the store,
  and commits each accepted change in one Store.WithTx call.

STATES PER (venue, day, hour, user):
  Absent --CreateBooking--> Booked --CancelBooking--> Absent
                            Booked --CheckIn------->  CheckedIn

CREATE BOOKING CHECKS (in this order, first failure wins):
  1. hour in [8,23]                      ErrInvalidInput
  2. day is not a holiday                ErrBlackoutViolation
  3. slot start is after now             ErrInvalidInput
  4. slot start <= now + window (48h)    ErrAdmissionWindowExceeded
  5. venue exists and is active          ErrNotFound / ErrVenueInactive
  6. occupancy < capacity                ErrSlotFull
  7. caller holds no booking here        ErrDuplicateBooking
  8. stake is a positive whole amount    ErrInvalidInput
  9. caller registered (if required)     ErrUnauthorized

  Capacity is checked before duplicates: a repeat attempt on a full slot
  reports ErrSlotFull.

CANCELLATION:
  Refund = policy(stake, max(0, start - now)). A positive refund is
  transferred inside the transaction; if the transfer fails the whole
  cancellation rolls back and the booking stays live.

CONCURRENCY:
  One RWMutex serializes every mutating call end to end, transfer
  included. Reads share the read lock, so they never observe a
  half-applied call.

EVENTS:
  Appended after commit, best effort. See events.go.
*/
package booking

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/slot-engine/clock"
)

// DefaultAdmissionWindow is how far ahead bookings may be made.
const DefaultAdmissionWindow = 48 * time.Hour

// Config is fixed for the lifetime of an Engine.
type Config struct {
	// Admin is the only identity allowed to manage venues and holidays.
	Admin Identity

	// RequireRegistration rejects bookings from callers without a profile.
	RequireRegistration bool

	// AdmissionWindow defaults to DefaultAdmissionWindow when zero.
	AdmissionWindow time.Duration
}

type Engine struct {
	mu sync.RWMutex

	store    TxStore
	clock    clock.Clock
	transfer Transferrer
	events   EventLog
	policy   CancellationPolicy

	admin               Identity
	requireRegistration bool
	window              time.Duration
}

type Option func(*Engine)

func WithClock(c clock.Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithTransferrer sets where refunds are sent. The default accepts every transfer.
func WithTransferrer(t Transferrer) Option {
	return func(e *Engine) {
		if t != nil {
			e.transfer = t
		}
	}
}

func WithEventLog(l EventLog) Option {
	return func(e *Engine) {
		if l != nil {
			e.events = l
		}
	}
}

func WithCancellationPolicy(p CancellationPolicy) Option {
	return func(e *Engine) { e.policy = p }
}

func NewEngine(store TxStore, cfg Config, opts ...Option) *Engine {
	e := &Engine{
		store:               store,
		clock:               clock.NewSystem(),
		transfer:            acceptAll{},
		events:              discardLog{},
		policy:              DefaultCancellationPolicy(),
		admin:               cfg.Admin,
		requireRegistration: cfg.RequireRegistration,
		window:              cfg.AdmissionWindow,
	}
	if e.window <= 0 {
		e.window = DefaultAdmissionWindow
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Admin returns the configured admin identity.
func (e *Engine) Admin() Identity { return e.admin }

// Now is the engine's current time.
func (e *Engine) Now() time.Time { return e.clock.Now() }

// =============================================================================
// VENUES (admin)
// =============================================================================

func (e *Engine) AddVenue(ctx context.Context, caller Identity, name string, capacity int) (Venue, error) {
	if err := e.authorizeAdmin(caller); err != nil {
		return Venue{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	var venue Venue
	err := e.store.WithTx(ctx, func(s Store) error {
		var err error
		venue, err = NewVenueRegistry(s).Add(ctx, name, capacity)
		return err
	})
	if err != nil {
		return Venue{}, err
	}

	e.publish(ctx, venueAdded(now, venue))
	return venue, nil
}

// UpdateVenue overwrites name, capacity and active flag of an existing venue.
func (e *Engine) UpdateVenue(ctx context.Context, caller Identity, v Venue) (Venue, error) {
	if err := e.authorizeAdmin(caller); err != nil {
		return Venue{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	var venue Venue
	err := e.store.WithTx(ctx, func(s Store) error {
		var err error
		venue, err = NewVenueRegistry(s).Update(ctx, v)
		return err
	})
	if err != nil {
		return Venue{}, err
	}

	e.publish(ctx, venueUpdated(now, venue))
	return venue, nil
}

func (e *Engine) GetVenue(ctx context.Context, id VenueID) (Venue, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return NewVenueRegistry(e.store).Get(ctx, id)
}

func (e *Engine) ListVenues(ctx context.Context) ([]Venue, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return NewVenueRegistry(e.store).List(ctx)
}

// =============================================================================
// HOLIDAYS (admin)
// =============================================================================

func (e *Engine) AddHoliday(ctx context.Context, caller Identity, day Day) error {
	if err := e.authorizeAdmin(caller); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	err := e.store.WithTx(ctx, func(s Store) error {
		return NewHolidayCalendar(s).Add(ctx, day, now)
	})
	if err != nil {
		return err
	}

	e.publish(ctx, holidayEvent(EventPublicHolidayAdded, now, day))
	return nil
}

func (e *Engine) RemoveHoliday(ctx context.Context, caller Identity, day Day) error {
	if err := e.authorizeAdmin(caller); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	err := e.store.WithTx(ctx, func(s Store) error {
		return NewHolidayCalendar(s).Remove(ctx, day)
	})
	if err != nil {
		return err
	}

	e.publish(ctx, holidayEvent(EventPublicHolidayRemoved, now, day))
	return nil
}

func (e *Engine) IsHoliday(ctx context.Context, day Day) (bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return NewHolidayCalendar(e.store).IsHoliday(ctx, day)
}

func (e *Engine) ListHolidays(ctx context.Context) ([]Day, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return NewHolidayCalendar(e.store).List(ctx)
}

// =============================================================================
// USERS
// =============================================================================

// Register creates or replaces the caller's own profile.
func (e *Engine) Register(ctx context.Context, caller Identity, name, regNo string) (UserProfile, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	var profile UserProfile
	err := e.store.WithTx(ctx, func(s Store) error {
		var err error
		profile, err = NewUserDirectory(s).Register(ctx, UserProfile{
			Identity:           caller,
			DisplayName:        name,
			RegistrationNumber: regNo,
		})
		return err
	})
	if err != nil {
		return UserProfile{}, err
	}

	e.publish(ctx, userRegistered(now, profile))
	return profile, nil
}

func (e *Engine) IsRegistered(ctx context.Context, id Identity) (bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return NewUserDirectory(e.store).IsRegistered(ctx, id)
}

func (e *Engine) GetProfile(ctx context.Context, id Identity) (UserProfile, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return NewUserDirectory(e.store).Profile(ctx, id)
}

// =============================================================================
// BOOKINGS
// =============================================================================

// CreateBooking admits caller to slot with the given stake.
func (e *Engine) CreateBooking(ctx context.Context, caller Identity, slot SlotKey, stake decimal.Decimal) (Booking, error) {
	if caller == "" {
		return Booking{}, fmt.Errorf("%w: caller identity is required", ErrUnauthorized)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	var (
		created   Booking
		occupancy int
		capacity  int
	)
	err := e.store.WithTx(ctx, func(s Store) error {
		if !ValidHour(slot.Hour) {
			return invalidf("hour %d is outside %d..%d", slot.Hour, FirstHour, LastHour)
		}
		if slot.Day.IsZero() {
			return invalidf("day is required")
		}

		holiday, err := NewHolidayCalendar(s).IsHoliday(ctx, slot.Day)
		if err != nil {
			return err
		}
		if holiday {
			return fmt.Errorf("%w: %s", ErrBlackoutViolation, slot.Day)
		}

		start := slot.Start()
		if !start.After(now) {
			return invalidf("%s is not in the future", slot)
		}
		if horizon := now.Add(e.window); start.After(horizon) {
			return &WindowError{Scheduled: start, Horizon: horizon}
		}

		venue, err := NewVenueRegistry(s).Get(ctx, slot.VenueID)
		if err != nil {
			return err
		}
		if !venue.Active {
			return fmt.Errorf("%w: venue %d", ErrVenueInactive, venue.ID)
		}

		ledger := NewSlotLedger(s)
		occupied, err := ledger.Occupancy(ctx, slot)
		if err != nil {
			return err
		}
		if occupied >= venue.Capacity {
			return &SlotFullError{Slot: slot, Occupancy: occupied, Capacity: venue.Capacity}
		}

		key := BookingKey{SlotKey: slot, User: caller}
		booked, err := ledger.HasBooked(ctx, key)
		if err != nil {
			return err
		}
		if booked {
			return fmt.Errorf("%w: %s already holds %s", ErrDuplicateBooking, caller, slot)
		}

		if !stake.IsPositive() {
			return invalidf("stake must be positive, got %s", stake)
		}
		if !stake.IsInteger() {
			return invalidf("stake must be a whole amount, got %s", stake)
		}

		if e.requireRegistration {
			registered, err := NewUserDirectory(s).IsRegistered(ctx, caller)
			if err != nil {
				return err
			}
			if !registered {
				return fmt.Errorf("%w: %s is not registered", ErrUnauthorized, caller)
			}
		}

		created = Booking{Key: key, Stake: stake, CreatedAt: now}
		occupancy, err = ledger.Reserve(ctx, created)
		capacity = venue.Capacity
		return err
	})
	if err != nil {
		return Booking{}, err
	}

	e.publish(ctx,
		bookingCreated(now, created, occupancy),
		slotAvailabilityChanged(now, slot, free(capacity, occupancy)),
	)
	return created, nil
}

// Cancellation is the outcome of a successful CancelBooking.
type Cancellation struct {
	Booking Booking
	Refund  decimal.Decimal
}

// CancelBooking removes caller's booking of slot and refunds part of the stake.
func (e *Engine) CancelBooking(ctx context.Context, caller Identity, slot SlotKey) (Cancellation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	var (
		result    Cancellation
		occupancy int
		capacity  int
	)
	err := e.store.WithTx(ctx, func(s Store) error {
		ledger := NewSlotLedger(s)
		key := BookingKey{SlotKey: slot, User: caller}

		existing, err := ledger.Booking(ctx, key)
		if err != nil {
			return err
		}
		if existing.Key.User != caller {
			return fmt.Errorf("%w: booking belongs to %s", ErrUnauthorized, existing.Key.User)
		}
		if existing.CheckedIn {
			return fmt.Errorf("%w: %s", ErrAlreadyCheckedIn, slot)
		}

		venue, err := NewVenueRegistry(s).Get(ctx, slot.VenueID)
		if err != nil {
			return err
		}

		refund := e.policy.Refund(existing.Stake, existing.ScheduledTime().Sub(now))

		occupancy, err = ledger.Release(ctx, key)
		if err != nil {
			return err
		}

		if refund.IsPositive() {
			if err := e.transfer.Transfer(ctx, caller, refund); err != nil {
				return &TransferError{To: caller, Amount: refund, Err: err}
			}
		}

		result = Cancellation{Booking: existing, Refund: refund}
		capacity = venue.Capacity
		return nil
	})
	if err != nil {
		return Cancellation{}, err
	}

	e.publish(ctx,
		refundIssued(now, result.Booking.Key, result.Refund),
		slotAvailabilityChanged(now, slot, free(capacity, occupancy)),
	)
	return result, nil
}

// CheckIn marks caller's booking as used. Allowed until the slot hour ends.
func (e *Engine) CheckIn(ctx context.Context, caller Identity, slot SlotKey) (Booking, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	var updated Booking
	err := e.store.WithTx(ctx, func(s Store) error {
		ledger := NewSlotLedger(s)
		key := BookingKey{SlotKey: slot, User: caller}

		existing, err := ledger.Booking(ctx, key)
		if err != nil {
			return err
		}
		if existing.CheckedIn {
			return fmt.Errorf("%w: %s", ErrAlreadyCheckedIn, slot)
		}
		if !now.Before(existing.ScheduledTime().Add(time.Hour)) {
			return invalidf("%s has already ended", slot)
		}
		if err := ledger.CheckIn(ctx, key); err != nil {
			return err
		}
		existing.CheckedIn = true
		updated = existing
		return nil
	})
	if err != nil {
		return Booking{}, err
	}

	e.publish(ctx, checkedIn(now, updated.Key))
	return updated, nil
}

// =============================================================================
// READS
// =============================================================================

func (e *Engine) GetBooking(ctx context.Context, key BookingKey) (Booking, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return NewSlotLedger(e.store).Booking(ctx, key)
}

func (e *Engine) HasBooked(ctx context.Context, key BookingKey) (bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return NewSlotLedger(e.store).HasBooked(ctx, key)
}

func (e *Engine) Occupancy(ctx context.Context, slot SlotKey) (int, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return NewSlotLedger(e.store).Occupancy(ctx, slot)
}

// IsSlotAvailable reports whether slot is a bookable hour at an active
// venue with at least one free place.
func (e *Engine) IsSlotAvailable(ctx context.Context, slot SlotKey) (bool, error) {
	if !ValidHour(slot.Hour) {
		return false, nil
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	venue, err := NewVenueRegistry(e.store).Get(ctx, slot.VenueID)
	if err != nil {
		return false, err
	}
	if !venue.Active {
		return false, nil
	}
	remaining, err := NewSlotLedger(e.store).Remaining(ctx, venue, slot)
	if err != nil {
		return false, err
	}
	return remaining > 0, nil
}

// DailyBookings returns booked and available counts for every bookable hour.
func (e *Engine) DailyBookings(ctx context.Context, venueID VenueID, day Day) ([]HourAvailability, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return NewSlotLedger(e.store).Daily(ctx, venueID, day)
}

// =============================================================================
// HELPERS
// =============================================================================

func (e *Engine) authorizeAdmin(caller Identity) error {
	if e.admin == "" || caller != e.admin {
		return fmt.Errorf("%w: %q is not the admin", ErrUnauthorized, caller)
	}
	return nil
}

func (e *Engine) publish(ctx context.Context, events ...Event) {
	for _, ev := range events {
		if err := e.events.Append(ctx, ev); err != nil {
			log.Printf("event append failed: kind=%s id=%s: %v", ev.Kind, ev.ID, err)
		}
	}
}
