/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:
	Provides pre-built scenarios that populate the store with venues,
	holidays, users and bookings through the engine, so every seeded
	record passed the same checks a live request would.

AVAILABLE SCENARIOS:
	demo-venues:      Three venues, one deactivated
	full-court:       A capacity-2 court with tomorrow's 10:00 slot sold out
	holiday-blackout: A venue with the day after tomorrow blacked out

HOW SCENARIOS WORK:
 1. Reset the store (clear all data)
 2. Add venues and holidays as the admin
 3. Register users and book slots relative to the engine clock

USAGE VIA API:
	POST /api/scenarios/load
	{"scenario_id": "full-court"}

NOTE:
	Loading and resetting are admin-only and wipe all data.
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/warp/slot-engine/booking"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "demo-venues",
		Name:        "Demo Venues",
		Description: "Three venues with different capacities, one of them inactive",
	},
	{
		ID:          "full-court",
		Name:        "Full Court",
		Description: "Capacity-2 court with tomorrow 10:00 booked by alice and bob",
	},
	{
		ID:          "holiday-blackout",
		Name:        "Holiday Blackout",
		Description: "One venue, the day after tomorrow is a public holiday",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the store and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var load func(context.Context) error
	switch req.ScenarioID {
	case "demo-venues":
		load = h.loadDemoVenuesScenario
	case "full-court":
		load = h.loadFullCourtScenario
	case "holiday-blackout":
		load = h.loadHolidayBlackoutScenario
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	if !h.authorizeReset(w, r) {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ctx := r.Context()
	if err := h.resetter.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""

	if err := load(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}
	h.currentScenario = req.ScenarioID

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if !h.authorizeReset(w, r) {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.resetter.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) authorizeReset(w http.ResponseWriter, r *http.Request) bool {
	if h.resetter == nil {
		writeError(w, http.StatusNotFound, "Scenarios not available", nil)
		return false
	}
	caller, _ := IdentityFrom(r.Context())
	if admin := h.engine.Admin(); admin == "" || caller != admin {
		writeEngineError(w, fmt.Errorf("%w: only the admin may reset data", booking.ErrUnauthorized))
		return false
	}
	return true
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadDemoVenuesScenario(ctx context.Context) error {
	admin := h.engine.Admin()

	if _, err := h.engine.AddVenue(ctx, admin, "Centre Court", 4); err != nil {
		return err
	}
	if _, err := h.engine.AddVenue(ctx, admin, "Practice Hall", 12); err != nil {
		return err
	}
	gym, err := h.engine.AddVenue(ctx, admin, "Old Gym", 6)
	if err != nil {
		return err
	}

	// Closed for renovation.
	gym.Active = false
	_, err = h.engine.UpdateVenue(ctx, admin, gym)
	return err
}

func (h *Handler) loadFullCourtScenario(ctx context.Context) error {
	admin := h.engine.Admin()

	court, err := h.engine.AddVenue(ctx, admin, "Court 1", 2)
	if err != nil {
		return err
	}

	slot := booking.SlotKey{
		VenueID: court.ID,
		Day:     booking.DayOf(h.engine.Now()).AddDays(1),
		Hour:    10,
	}
	for _, u := range []struct {
		id    booking.Identity
		name  string
		regNo string
		stake int64
	}{
		{"alice", "Alice", "R-1001", 1000},
		{"bob", "Bob", "R-1002", 400},
	} {
		if _, err := h.engine.Register(ctx, u.id, u.name, u.regNo); err != nil {
			return err
		}
		if _, err := h.engine.CreateBooking(ctx, u.id, slot, decimal.NewFromInt(u.stake)); err != nil {
			return fmt.Errorf("book %s for %s: %w", slot, u.id, err)
		}
	}
	return nil
}

func (h *Handler) loadHolidayBlackoutScenario(ctx context.Context) error {
	admin := h.engine.Admin()

	if _, err := h.engine.AddVenue(ctx, admin, "Community Hall", 8); err != nil {
		return err
	}
	return h.engine.AddHoliday(ctx, admin, booking.DayOf(h.engine.Now()).AddDays(2))
}
