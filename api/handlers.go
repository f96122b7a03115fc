/*
handlers.go - HTTP API handlers for the slot booking engine

PURPOSE:
  Exposes the booking engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates every decision to booking.Engine.

ENDPOINTS:
  Venues:
    GET    /api/venues                          List venues
    POST   /api/venues                          Add venue (admin)
    GET    /api/venues/{id}                     Get venue
    PUT    /api/venues/{id}                     Update venue (admin)
    GET    /api/venues/{id}/availability?day=   Daily schedule (16 hours)
    GET    /api/venues/{id}/slots/{day}/{hour}  Is the slot bookable

  Holidays:
    GET    /api/holidays                        List holidays
    POST   /api/holidays                        Add holiday (admin)
    DELETE /api/holidays/{day}                  Remove holiday (admin)

  Users:
    POST   /api/users/me                        Register caller
    GET    /api/users/{identity}                Get profile

  Bookings (caller identity required):
    POST   /api/bookings                               Create booking
    GET    /api/bookings/{venueID}/{day}/{hour}        Caller's booking
    DELETE /api/bookings/{venueID}/{day}/{hour}        Cancel with refund
    POST   /api/bookings/{venueID}/{day}/{hour}/checkin Check in

  Events:
    GET    /api/events?after=&limit=            Persisted event history

ERROR HANDLING:
  Errors are returned as ErrorResponse with a status derived from the
  engine sentinel:
  - 400: InvalidInput
  - 401: Missing or bad credentials
  - 403: Unauthorized (admin-only, owner mismatch, unregistered)
  - 404: NotFound
  - 409: AlreadyExists, SlotFull, DuplicateBooking, AlreadyCheckedIn, VenueInactive
  - 422: BlackoutViolation, AdmissionWindowExceeded
  - 502: TransferFailed
  - 500: Anything else

SEE ALSO:
  - dto.go: Request/response data structures
  - auth.go: Caller identity
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/warp/slot-engine/booking"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// EventSource reads persisted events in append order.
type EventSource interface {
	ListEvents(ctx context.Context, after int64, limit int) ([]booking.Event, int64, error)
}

// Resetter drops all stored data. Used by scenario loading.
type Resetter interface {
	Reset(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	engine   *booking.Engine
	events   EventSource
	resetter Resetter

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a handler. events and resetter may be nil, which
// disables the event history and scenario endpoints.
func NewHandler(engine *booking.Engine, events EventSource, resetter Resetter) *Handler {
	return &Handler{engine: engine, events: events, resetter: resetter}
}

const defaultEventLimit = 100

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// VENUE HANDLERS
// =============================================================================

func (h *Handler) ListVenues(w http.ResponseWriter, r *http.Request) {
	venues, err := h.engine.ListVenues(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}

	dtos := make([]VenueDTO, len(venues))
	for i, v := range venues {
		dtos[i] = toVenueDTO(v)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateVenue(w http.ResponseWriter, r *http.Request) {
	var req CreateVenueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	caller, _ := IdentityFrom(r.Context())
	venue, err := h.engine.AddVenue(r.Context(), caller, req.Name, req.Capacity)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toVenueDTO(venue))
}

func (h *Handler) GetVenue(w http.ResponseWriter, r *http.Request) {
	id, err := venueIDParam(r, "id")
	if err != nil {
		writeEngineError(w, err)
		return
	}

	venue, err := h.engine.GetVenue(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toVenueDTO(venue))
}

func (h *Handler) UpdateVenue(w http.ResponseWriter, r *http.Request) {
	id, err := venueIDParam(r, "id")
	if err != nil {
		writeEngineError(w, err)
		return
	}

	var req UpdateVenueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	caller, _ := IdentityFrom(r.Context())
	venue, err := h.engine.UpdateVenue(r.Context(), caller, booking.Venue{
		ID:       id,
		Name:     req.Name,
		Capacity: req.Capacity,
		Active:   req.Active,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toVenueDTO(venue))
}

// GetAvailability returns booked and free places for every bookable hour.
func (h *Handler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	id, err := venueIDParam(r, "id")
	if err != nil {
		writeEngineError(w, err)
		return
	}
	day, err := booking.ParseDay(r.URL.Query().Get("day"))
	if err != nil {
		writeEngineError(w, err)
		return
	}

	rows, err := h.engine.DailyBookings(r.Context(), id, day)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	resp := DailyBookingsDTO{
		VenueID: int64(id),
		Day:     day.String(),
		Hours:   make([]HourAvailabilityDTO, len(rows)),
	}
	for i, row := range rows {
		resp.Hours[i] = HourAvailabilityDTO{Hour: row.Hour, Booked: row.Booked, Available: row.Available}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) GetSlotAvailability(w http.ResponseWriter, r *http.Request) {
	slot, err := slotParams(r, "id")
	if err != nil {
		writeEngineError(w, err)
		return
	}

	available, err := h.engine.IsSlotAvailable(r.Context(), slot)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SlotAvailabilityDTO{
		VenueID:   int64(slot.VenueID),
		Day:       slot.Day.String(),
		Hour:      slot.Hour,
		Available: available,
	})
}

// =============================================================================
// HOLIDAY HANDLERS
// =============================================================================

func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	days, err := h.engine.ListHolidays(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}

	out := make([]string, len(days))
	for i, d := range days {
		out[i] = d.String()
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) CreateHoliday(w http.ResponseWriter, r *http.Request) {
	var req HolidayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	caller, _ := IdentityFrom(r.Context())
	if err := h.engine.AddHoliday(r.Context(), caller, req.Day); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"day": req.Day.String()})
}

func (h *Handler) DeleteHoliday(w http.ResponseWriter, r *http.Request) {
	day, err := booking.ParseDay(chi.URLParam(r, "day"))
	if err != nil {
		writeEngineError(w, err)
		return
	}

	caller, _ := IdentityFrom(r.Context())
	if err := h.engine.RemoveHoliday(r.Context(), caller, day); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// USER HANDLERS
// =============================================================================

// Register creates or replaces the caller's profile.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	caller, _ := IdentityFrom(r.Context())
	profile, err := h.engine.Register(r.Context(), caller, req.Name, req.RegistrationNumber)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileDTO(profile))
}

func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	id := booking.Identity(chi.URLParam(r, "identity"))
	profile, err := h.engine.GetProfile(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileDTO(profile))
}

// =============================================================================
// BOOKING HANDLERS
// =============================================================================

func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req CreateBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	caller, _ := IdentityFrom(r.Context())
	slot := booking.SlotKey{VenueID: booking.VenueID(req.VenueID), Day: req.Day, Hour: req.Hour}
	b, err := h.engine.CreateBooking(r.Context(), caller, slot, req.Stake)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBookingDTO(b))
}

// GetBooking returns the caller's booking of the addressed slot.
func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	slot, err := slotParams(r, "venueID")
	if err != nil {
		writeEngineError(w, err)
		return
	}

	caller, _ := IdentityFrom(r.Context())
	b, err := h.engine.GetBooking(r.Context(), booking.BookingKey{SlotKey: slot, User: caller})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingDTO(b))
}

func (h *Handler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	slot, err := slotParams(r, "venueID")
	if err != nil {
		writeEngineError(w, err)
		return
	}

	caller, _ := IdentityFrom(r.Context())
	c, err := h.engine.CancelBooking(r.Context(), caller, slot)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CancellationDTO{
		Booking: toBookingDTO(c.Booking),
		Refund:  c.Refund.String(),
	})
}

func (h *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	slot, err := slotParams(r, "venueID")
	if err != nil {
		writeEngineError(w, err)
		return
	}

	caller, _ := IdentityFrom(r.Context())
	b, err := h.engine.CheckIn(r.Context(), caller, slot)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingDTO(b))
}

// =============================================================================
// EVENT HANDLERS
// =============================================================================

func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	if h.events == nil {
		writeError(w, http.StatusNotFound, "Event history not available", nil)
		return
	}

	var (
		after int64
		limit = defaultEventLimit
		err   error
	)
	if s := r.URL.Query().Get("after"); s != "" {
		if after, err = strconv.ParseInt(s, 10, 64); err != nil || after < 0 {
			writeError(w, http.StatusBadRequest, "Invalid after cursor", err)
			return
		}
	}
	if s := r.URL.Query().Get("limit"); s != "" {
		if limit, err = strconv.Atoi(s); err != nil || limit <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
	}

	events, last, err := h.events.ListEvents(r.Context(), after, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list events", err)
		return
	}
	if events == nil {
		events = []booking.Event{}
	}
	writeJSON(w, http.StatusOK, EventsDTO{Events: events, Last: last})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeEngineError maps an engine rejection to its HTTP status and code.
func writeEngineError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	writeJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Code:    code,
		Details: err.Error(),
	})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, booking.ErrUnauthorized):
		return http.StatusForbidden, "UNAUTHORIZED"
	case booking.IsNotFound(err):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, booking.ErrTransferFailed):
		return http.StatusBadGateway, "TRANSFER_FAILED"
	case errors.Is(err, booking.ErrSlotFull):
		return http.StatusConflict, "SLOT_FULL"
	case errors.Is(err, booking.ErrDuplicateBooking):
		return http.StatusConflict, "DUPLICATE_BOOKING"
	case errors.Is(err, booking.ErrVenueInactive):
		return http.StatusConflict, "VENUE_INACTIVE"
	case errors.Is(err, booking.ErrAlreadyCheckedIn):
		return http.StatusConflict, "ALREADY_CHECKED_IN"
	case booking.IsConflict(err):
		return http.StatusConflict, "ALREADY_EXISTS"
	case errors.Is(err, booking.ErrBlackoutViolation):
		return http.StatusUnprocessableEntity, "BLACKOUT_VIOLATION"
	case errors.Is(err, booking.ErrAdmissionWindowExceeded):
		return http.StatusUnprocessableEntity, "ADMISSION_WINDOW_EXCEEDED"
	case errors.Is(err, booking.ErrInvalidInput):
		return http.StatusBadRequest, "INVALID_INPUT"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}

func venueIDParam(r *http.Request, name string) (booking.VenueID, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid venue id %q", booking.ErrInvalidInput, raw)
	}
	return booking.VenueID(id), nil
}

// slotParams reads {venueParam}/{day}/{hour} from the route.
func slotParams(r *http.Request, venueParam string) (booking.SlotKey, error) {
	id, err := venueIDParam(r, venueParam)
	if err != nil {
		return booking.SlotKey{}, err
	}
	day, err := booking.ParseDay(chi.URLParam(r, "day"))
	if err != nil {
		return booking.SlotKey{}, err
	}
	raw := chi.URLParam(r, "hour")
	hour, err := strconv.Atoi(raw)
	if err != nil {
		return booking.SlotKey{}, fmt.Errorf("%w: invalid hour %q", booking.ErrInvalidInput, raw)
	}
	return booking.SlotKey{VenueID: id, Day: day, Hour: hour}, nil
}
