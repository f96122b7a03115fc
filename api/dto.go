/*
dto.go - Data Transfer Objects for API requests and responses

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Venues:    VenueDTO, CreateVenueRequest, UpdateVenueRequest
  Holidays:  HolidayRequest
  Users:     RegisterRequest, ProfileDTO
  Bookings:  CreateBookingRequest, BookingDTO, CancellationDTO
  Schedule:  DailyBookingsDTO, HourAvailabilityDTO, SlotAvailabilityDTO
  Events:    EventsDTO
  Scenarios: ScenarioDTO

Days are "YYYY-MM-DD" strings. Amounts are decimal strings in responses
and accept either strings or numbers in requests.

VALIDATION:
  Validation is done by the engine, not in DTOs. DTOs are pure data carriers.
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/slot-engine/booking"
)

// =============================================================================
// VENUES
// =============================================================================

type VenueDTO struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Capacity int    `json:"capacity"`
	Active   bool   `json:"active"`
}

type CreateVenueRequest struct {
	Name     string `json:"name"`
	Capacity int    `json:"capacity"`
}

// UpdateVenueRequest is a full overwrite; omitted fields are zeroed.
type UpdateVenueRequest struct {
	Name     string `json:"name"`
	Capacity int    `json:"capacity"`
	Active   bool   `json:"active"`
}

func toVenueDTO(v booking.Venue) VenueDTO {
	return VenueDTO{ID: int64(v.ID), Name: v.Name, Capacity: v.Capacity, Active: v.Active}
}

// =============================================================================
// HOLIDAYS
// =============================================================================

type HolidayRequest struct {
	Day booking.Day `json:"day"`
}

// =============================================================================
// USERS
// =============================================================================

type RegisterRequest struct {
	Name               string `json:"name"`
	RegistrationNumber string `json:"registration_number"`
}

type ProfileDTO struct {
	Identity           string `json:"identity"`
	Name               string `json:"name"`
	RegistrationNumber string `json:"registration_number"`
}

func toProfileDTO(p booking.UserProfile) ProfileDTO {
	return ProfileDTO{
		Identity:           string(p.Identity),
		Name:               p.DisplayName,
		RegistrationNumber: p.RegistrationNumber,
	}
}

// =============================================================================
// BOOKINGS
// =============================================================================

type CreateBookingRequest struct {
	VenueID int64           `json:"venue_id"`
	Day     booking.Day     `json:"day"`
	Hour    int             `json:"hour"`
	Stake   decimal.Decimal `json:"stake"`
}

type BookingDTO struct {
	VenueID       int64  `json:"venue_id"`
	Day           string `json:"day"`
	Hour          int    `json:"hour"`
	User          string `json:"user"`
	Stake         string `json:"stake"`
	CheckedIn     bool   `json:"checked_in"`
	ScheduledTime string `json:"scheduled_time"`
	CreatedAt     string `json:"created_at,omitempty"`
}

func toBookingDTO(b booking.Booking) BookingDTO {
	dto := BookingDTO{
		VenueID:       int64(b.Key.VenueID),
		Day:           b.Key.Day.String(),
		Hour:          b.Key.Hour,
		User:          string(b.Key.User),
		Stake:         b.Stake.String(),
		CheckedIn:     b.CheckedIn,
		ScheduledTime: b.ScheduledTime().Format(time.RFC3339),
	}
	if !b.CreatedAt.IsZero() {
		dto.CreatedAt = b.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

type CancellationDTO struct {
	Booking BookingDTO `json:"booking"`
	Refund  string     `json:"refund"`
}

// =============================================================================
// SCHEDULE
// =============================================================================

type HourAvailabilityDTO struct {
	Hour      int `json:"hour"`
	Booked    int `json:"booked"`
	Available int `json:"available"`
}

type DailyBookingsDTO struct {
	VenueID int64                 `json:"venue_id"`
	Day     string                `json:"day"`
	Hours   []HourAvailabilityDTO `json:"hours"`
}

type SlotAvailabilityDTO struct {
	VenueID   int64  `json:"venue_id"`
	Day       string `json:"day"`
	Hour      int    `json:"hour"`
	Available bool   `json:"available"`
}

// =============================================================================
// EVENTS
// =============================================================================

type EventsDTO struct {
	Events []booking.Event `json:"events"`
	Last   int64           `json:"last"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}
