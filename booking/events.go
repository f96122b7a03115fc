/*
events.go - Observable record of accepted state transitions

PURPOSE:
  Every committed change emits one or more Events to an EventLog so that
  external indexers can follow the engine without reading its storage.

DELIVERY:
  Best effort. Events are appended after the commit; a failed append is
  logged and never rolls the change back.

EVENT KINDS AND FIELDS:
  VenueAdded               venueId, name, capacity
  VenueUpdated             venueId, name, capacity, active
  BookingCreated           venueId, day, hour, user, stake, newOccupancy
  SlotAvailabilityChanged  venueId, day, hour, available
  RefundIssued             venueId, day, hour, user, refundAmount
  CheckedIn                venueId, day, hour, user
  PublicHolidayAdded       day
  PublicHolidayRemoved     day
  UserRegistered           identity, name

SEE ALSO:
  - eventlog/: Sinks (memory, log, AMQP, fan-out)
  - store/sqlite: Events table sink
*/
package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type EventKind string

const (
	EventVenueAdded              EventKind = "VenueAdded"
	EventVenueUpdated            EventKind = "VenueUpdated"
	EventBookingCreated          EventKind = "BookingCreated"
	EventSlotAvailabilityChanged EventKind = "SlotAvailabilityChanged"
	EventRefundIssued            EventKind = "RefundIssued"
	EventCheckedIn               EventKind = "CheckedIn"
	EventPublicHolidayAdded      EventKind = "PublicHolidayAdded"
	EventPublicHolidayRemoved    EventKind = "PublicHolidayRemoved"
	EventUserRegistered          EventKind = "UserRegistered"
)

// Event is one accepted transition. Field values are JSON-friendly:
// strings, ints, bools. Amounts are decimal strings.
type Event struct {
	ID     string         `json:"id"`
	Kind   EventKind      `json:"kind"`
	At     time.Time      `json:"at"`
	Fields map[string]any `json:"fields"`
}

// EventLog is an append-only sink.
type EventLog interface {
	Append(ctx context.Context, e Event) error
}

type discardLog struct{}

func (discardLog) Append(context.Context, Event) error { return nil }

// =============================================================================
// CONSTRUCTORS
// =============================================================================

func newEvent(kind EventKind, at time.Time, fields map[string]any) Event {
	return Event{ID: uuid.NewString(), Kind: kind, At: at.UTC(), Fields: fields}
}

func venueAdded(at time.Time, v Venue) Event {
	return newEvent(EventVenueAdded, at, map[string]any{
		"venueId":  int64(v.ID),
		"name":     v.Name,
		"capacity": v.Capacity,
	})
}

func venueUpdated(at time.Time, v Venue) Event {
	return newEvent(EventVenueUpdated, at, map[string]any{
		"venueId":  int64(v.ID),
		"name":     v.Name,
		"capacity": v.Capacity,
		"active":   v.Active,
	})
}

func bookingCreated(at time.Time, b Booking, occupancy int) Event {
	return newEvent(EventBookingCreated, at, map[string]any{
		"venueId":      int64(b.Key.VenueID),
		"day":          b.Key.Day.String(),
		"hour":         b.Key.Hour,
		"user":         string(b.Key.User),
		"stake":        b.Stake.String(),
		"newOccupancy": occupancy,
	})
}

func slotAvailabilityChanged(at time.Time, slot SlotKey, available int) Event {
	return newEvent(EventSlotAvailabilityChanged, at, map[string]any{
		"venueId":   int64(slot.VenueID),
		"day":       slot.Day.String(),
		"hour":      slot.Hour,
		"available": available,
	})
}

func refundIssued(at time.Time, key BookingKey, refund decimal.Decimal) Event {
	return newEvent(EventRefundIssued, at, map[string]any{
		"venueId":      int64(key.VenueID),
		"day":          key.Day.String(),
		"hour":         key.Hour,
		"user":         string(key.User),
		"refundAmount": refund.String(),
	})
}

func checkedIn(at time.Time, key BookingKey) Event {
	return newEvent(EventCheckedIn, at, map[string]any{
		"venueId": int64(key.VenueID),
		"day":     key.Day.String(),
		"hour":    key.Hour,
		"user":    string(key.User),
	})
}

func holidayEvent(kind EventKind, at time.Time, day Day) Event {
	return newEvent(kind, at, map[string]any{"day": day.String()})
}

func userRegistered(at time.Time, p UserProfile) Event {
	return newEvent(EventUserRegistered, at, map[string]any{
		"identity": string(p.Identity),
		"name":     p.DisplayName,
	})
}
