/*
handlers_test.go - HTTP tests for the booking API

Runs the full chi router over a SQLite ":memory:" store with a manual
clock. Covers status mapping, the booking lifecycle and scenarios.
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/slot-engine/booking"
	"github.com/warp/slot-engine/clock"
	"github.com/warp/slot-engine/payout"
	"github.com/warp/slot-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const testAdmin = "admin"

// Monday 2025-03-10, 09:00 UTC.
var testNow = time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)

type testServer struct {
	router http.Handler
	engine *booking.Engine
	clock  *clock.Manual
	store  *sqlite.Store
	book   *payout.Book
}

func newTestServer(t *testing.T, opts ...booking.Option) *testServer {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ts := &testServer{
		clock: clock.NewManual(testNow),
		store: store,
		book:  payout.NewBook(),
	}
	base := []booking.Option{
		booking.WithClock(ts.clock),
		booking.WithEventLog(store),
		booking.WithTransferrer(ts.book),
	}
	ts.engine = booking.NewEngine(store, booking.Config{Admin: testAdmin}, append(base, opts...)...)
	ts.router = NewRouter(NewHandler(ts.engine, store, store), NewAuthenticator(""), nil)
	return ts
}

// do sends a request as identity (anonymous when empty).
func (ts *testServer) do(t *testing.T, method, path string, body any, identity string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if identity != "" {
		req.Header.Set(IdentityHeader, identity)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) addVenue(t *testing.T, name string, capacity int) VenueDTO {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/venues", CreateVenueRequest{Name: name, Capacity: capacity}, testAdmin)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[VenueDTO](t, rec)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), rec.Body.String())
	return v
}

func bookingBody(venue int64, day string, hour int, stake string) string {
	return fmt.Sprintf(`{"venue_id":%d,"day":%q,"hour":%d,"stake":%s}`, venue, day, hour, stake)
}

// =============================================================================
// HEALTH AND VENUES
// =============================================================================

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/health", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestVenues_CRUD(t *testing.T) {
	ts := newTestServer(t)

	venue := ts.addVenue(t, "Court", 2)
	assert.Equal(t, VenueDTO{ID: 1, Name: "Court", Capacity: 2, Active: true}, venue)

	rec := ts.do(t, http.MethodPut, "/api/venues/1", UpdateVenueRequest{Name: "Main Court", Capacity: 4, Active: false}, testAdmin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/api/venues/1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, VenueDTO{ID: 1, Name: "Main Court", Capacity: 4, Active: false}, decode[VenueDTO](t, rec))

	rec = ts.do(t, http.MethodGet, "/api/venues", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]VenueDTO](t, rec), 1)
}

func TestVenues_Errors(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name     string
		method   string
		path     string
		body     any
		identity string
		status   int
		code     string
	}{
		{"non-admin create", http.MethodPost, "/api/venues", CreateVenueRequest{Name: "Court", Capacity: 2}, "alice", http.StatusForbidden, "UNAUTHORIZED"},
		{"anonymous create", http.MethodPost, "/api/venues", CreateVenueRequest{Name: "Court", Capacity: 2}, "", http.StatusForbidden, "UNAUTHORIZED"},
		{"zero capacity", http.MethodPost, "/api/venues", CreateVenueRequest{Name: "Court"}, testAdmin, http.StatusBadRequest, "INVALID_INPUT"},
		{"unknown venue", http.MethodGet, "/api/venues/99", nil, "", http.StatusNotFound, "NOT_FOUND"},
		{"bad venue id", http.MethodGet, "/api/venues/abc", nil, "", http.StatusBadRequest, "INVALID_INPUT"},
		{"update unknown", http.MethodPut, "/api/venues/99", UpdateVenueRequest{Name: "X", Capacity: 1}, testAdmin, http.StatusNotFound, "NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, tt.method, tt.path, tt.body, tt.identity)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, decode[ErrorResponse](t, rec).Code)
		})
	}
}

func TestVenues_MalformedBody(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/venues", "{not json", testAdmin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid request body", decode[ErrorResponse](t, rec).Error)
}

// =============================================================================
// BOOKINGS
// =============================================================================

func TestBookings_Lifecycle(t *testing.T) {
	// GIVEN: A capacity-1 court
	// WHEN: Alice books, Bob is turned away, Alice cancels
	// THEN: Statuses, availability, refund and the event history line up

	ts := newTestServer(t)
	ts.addVenue(t, "Court", 1)

	rec := ts.do(t, http.MethodPost, "/api/bookings", bookingBody(1, "2025-03-11", 10, "1000"), "alice")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[BookingDTO](t, rec)
	assert.Equal(t, "alice", created.User)
	assert.Equal(t, "1000", created.Stake)
	assert.Equal(t, "2025-03-11T10:00:00Z", created.ScheduledTime)

	rec = ts.do(t, http.MethodPost, "/api/bookings", bookingBody(1, "2025-03-11", 10, `"1000"`), "bob")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "SLOT_FULL", decode[ErrorResponse](t, rec).Code)

	rec = ts.do(t, http.MethodGet, "/api/venues/1/slots/2025-03-11/10", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[SlotAvailabilityDTO](t, rec).Available)

	rec = ts.do(t, http.MethodGet, "/api/venues/1/availability?day=2025-03-11", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	daily := decode[DailyBookingsDTO](t, rec)
	require.Len(t, daily.Hours, 16)
	assert.Equal(t, HourAvailabilityDTO{Hour: 10, Booked: 1, Available: 0}, daily.Hours[2])

	rec = ts.do(t, http.MethodGet, "/api/bookings/1/2025-03-11/10", nil, "alice")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = ts.do(t, http.MethodGet, "/api/bookings/1/2025-03-11/10", nil, "bob")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodDelete, "/api/bookings/1/2025-03-11/10", nil, "alice")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "500", decode[CancellationDTO](t, rec).Refund)
	assert.True(t, ts.book.Balance("alice").Equal(decimal.NewFromInt(500)))

	rec = ts.do(t, http.MethodGet, "/api/events?limit=50", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	events := decode[EventsDTO](t, rec)
	require.Len(t, events.Events, 5)
	assert.Equal(t, booking.EventRefundIssued, events.Events[3].Kind)
	assert.Equal(t, int64(5), events.Last)

	rec = ts.do(t, http.MethodGet, "/api/events?after=5", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[EventsDTO](t, rec).Events)
}

func TestBookings_RequireIdentity(t *testing.T) {
	ts := newTestServer(t)
	ts.addVenue(t, "Court", 1)

	rec := ts.do(t, http.MethodPost, "/api/bookings", bookingBody(1, "2025-03-11", 10, "10"), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = ts.do(t, http.MethodDelete, "/api/bookings/1/2025-03-11/10", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBookings_RejectionStatuses(t *testing.T) {
	ts := newTestServer(t)
	ts.addVenue(t, "Court", 2)
	require.NoError(t, ts.engine.AddHoliday(context.Background(), testAdmin, booking.NewDay(2025, time.March, 11)))

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"hour out of range", bookingBody(1, "2025-03-12", 7, "10"), http.StatusBadRequest, "INVALID_INPUT"},
		{"holiday", bookingBody(1, "2025-03-11", 10, "10"), http.StatusUnprocessableEntity, "BLACKOUT_VIOLATION"},
		{"beyond window", bookingBody(1, "2025-03-12", 10, "10"), http.StatusUnprocessableEntity, "ADMISSION_WINDOW_EXCEEDED"},
		{"past", bookingBody(1, "2025-03-10", 8, "10"), http.StatusBadRequest, "INVALID_INPUT"},
		{"unknown venue", bookingBody(9, "2025-03-10", 12, "10"), http.StatusNotFound, "NOT_FOUND"},
		{"zero stake", bookingBody(1, "2025-03-10", 12, "0"), http.StatusBadRequest, "INVALID_INPUT"},
		{"fractional stake", bookingBody(1, "2025-03-10", 12, `"2.5"`), http.StatusBadRequest, "INVALID_INPUT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/api/bookings", tt.body, "alice")
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, decode[ErrorResponse](t, rec).Code)
		})
	}
}

func TestBookings_Duplicate(t *testing.T) {
	ts := newTestServer(t)
	ts.addVenue(t, "Court", 3)

	rec := ts.do(t, http.MethodPost, "/api/bookings", bookingBody(1, "2025-03-11", 10, "10"), "alice")
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/bookings", bookingBody(1, "2025-03-11", 10, "10"), "alice")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "DUPLICATE_BOOKING", decode[ErrorResponse](t, rec).Code)
}

func TestBookings_CheckIn(t *testing.T) {
	ts := newTestServer(t)
	ts.addVenue(t, "Court", 2)

	rec := ts.do(t, http.MethodPost, "/api/bookings", bookingBody(1, "2025-03-10", 11, "10"), "alice")
	require.Equal(t, http.StatusCreated, rec.Code)

	ts.clock.Set(time.Date(2025, time.March, 10, 11, 5, 0, 0, time.UTC))
	rec = ts.do(t, http.MethodPost, "/api/bookings/1/2025-03-10/11/checkin", nil, "alice")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[BookingDTO](t, rec).CheckedIn)

	rec = ts.do(t, http.MethodDelete, "/api/bookings/1/2025-03-10/11", nil, "alice")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "ALREADY_CHECKED_IN", decode[ErrorResponse](t, rec).Code)
}

func TestBookings_TransferFailure_BadGateway(t *testing.T) {
	failing := booking.TransferFunc(func(context.Context, booking.Identity, decimal.Decimal) error {
		return errors.New("settlement offline")
	})
	ts := newTestServer(t, booking.WithTransferrer(failing))
	ts.addVenue(t, "Court", 1)

	rec := ts.do(t, http.MethodPost, "/api/bookings", bookingBody(1, "2025-03-11", 10, "1000"), "alice")
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.do(t, http.MethodDelete, "/api/bookings/1/2025-03-11/10", nil, "alice")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "TRANSFER_FAILED", decode[ErrorResponse](t, rec).Code)

	rec = ts.do(t, http.MethodGet, "/api/bookings/1/2025-03-11/10", nil, "alice")
	assert.Equal(t, http.StatusOK, rec.Code, "booking survives the failed cancellation")
}

func TestBookings_BadPathParams(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{
		"/api/bookings/x/2025-03-11/10",
		"/api/bookings/1/11-03-2025/10",
		"/api/bookings/1/2025-03-11/ten",
	} {
		rec := ts.do(t, http.MethodGet, path, nil, "alice")
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}
}

// =============================================================================
// HOLIDAYS AND USERS
// =============================================================================

func TestHolidays(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/holidays", HolidayRequest{Day: booking.NewDay(2025, time.March, 12)}, "alice")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/holidays", `{"day":"2025-03-12"}`, testAdmin)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodPost, "/api/holidays", `{"day":"2025-03-12"}`, testAdmin)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "ALREADY_EXISTS", decode[ErrorResponse](t, rec).Code)

	rec = ts.do(t, http.MethodPost, "/api/holidays", `{"day":"2025-03-10"}`, testAdmin)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "today's midnight has passed")

	rec = ts.do(t, http.MethodGet, "/api/holidays", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"2025-03-12"}, decode[[]string](t, rec))

	rec = ts.do(t, http.MethodDelete, "/api/holidays/2025-03-12", nil, testAdmin)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = ts.do(t, http.MethodDelete, "/api/holidays/2025-03-12", nil, testAdmin)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUsers_RegisterAndLookup(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/users/alice", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/users/me", RegisterRequest{Name: "Alice"}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/users/me", RegisterRequest{Name: ""}, "alice")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/users/me", RegisterRequest{Name: "Alice", RegistrationNumber: "R-1"}, "alice")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/api/users/alice", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ProfileDTO{Identity: "alice", Name: "Alice", RegistrationNumber: "R-1"}, decode[ProfileDTO](t, rec))
}

// =============================================================================
// EVENTS
// =============================================================================

func TestEvents_BadQuery(t *testing.T) {
	ts := newTestServer(t)

	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/api/events?after=-1", nil, "").Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/api/events?limit=0", nil, "").Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/api/events?limit=many", nil, "").Code)
}

func TestEvents_NotConfigured(t *testing.T) {
	ts := newTestServer(t)
	router := NewRouter(NewHandler(ts.engine, nil, nil), NewAuthenticator(""), nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// ERROR MAPPING
// =============================================================================

func TestClassify(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{booking.ErrInvalidInput, http.StatusBadRequest, "INVALID_INPUT"},
		{booking.ErrUnauthorized, http.StatusForbidden, "UNAUTHORIZED"},
		{booking.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{booking.ErrAlreadyExists, http.StatusConflict, "ALREADY_EXISTS"},
		{booking.ErrVenueInactive, http.StatusConflict, "VENUE_INACTIVE"},
		{&booking.SlotFullError{Capacity: 1, Occupancy: 1}, http.StatusConflict, "SLOT_FULL"},
		{booking.ErrDuplicateBooking, http.StatusConflict, "DUPLICATE_BOOKING"},
		{booking.ErrAlreadyCheckedIn, http.StatusConflict, "ALREADY_CHECKED_IN"},
		{booking.ErrBlackoutViolation, http.StatusUnprocessableEntity, "BLACKOUT_VIOLATION"},
		{&booking.WindowError{}, http.StatusUnprocessableEntity, "ADMISSION_WINDOW_EXCEEDED"},
		{&booking.TransferError{Err: errors.New("x")}, http.StatusBadGateway, "TRANSFER_FAILED"},
		{errors.New("disk full"), http.StatusInternalServerError, "INTERNAL"},
	}

	for _, tt := range tests {
		status, code := classify(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
		assert.Equal(t, tt.code, code, tt.err.Error())
	}
}
