/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend
  5. Auth:       Caller identity from bearer token or X-Identity

ROUTE GROUPS:
  /api/health        Liveness
  /api/venues/*      Venue registry and schedules
  /api/holidays/*    Holiday calendar
  /api/users/*       User directory
  /api/bookings/*    Booking lifecycle (identity required)
  /api/events        Event history
  /api/scenarios/*   Demo scenarios

SEE ALSO:
  - handlers.go: Handler implementations
  - auth.go: Authenticator
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// DefaultCORSOrigins are used when none are configured.
var DefaultCORSOrigins = []string{"http://localhost:5173", "http://localhost:8080"}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, auth *Authenticator, corsOrigins []string) *chi.Mux {
	if len(corsOrigins) == 0 {
		corsOrigins = DefaultCORSOrigins
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", IdentityHeader},
		AllowCredentials: true,
	}))
	r.Use(auth.Middleware)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		// Venue routes
		r.Route("/venues", func(r chi.Router) {
			r.Get("/", h.ListVenues)
			r.Post("/", h.CreateVenue)
			r.Get("/{id}", h.GetVenue)
			r.Put("/{id}", h.UpdateVenue)
			r.Get("/{id}/availability", h.GetAvailability)
			r.Get("/{id}/slots/{day}/{hour}", h.GetSlotAvailability)
		})

		// Holiday routes
		r.Route("/holidays", func(r chi.Router) {
			r.Get("/", h.ListHolidays)
			r.Post("/", h.CreateHoliday)
			r.Delete("/{day}", h.DeleteHoliday)
		})

		// User routes
		r.Route("/users", func(r chi.Router) {
			r.With(requireIdentity).Post("/me", h.Register)
			r.Get("/{identity}", h.GetProfile)
		})

		// Booking routes
		r.Route("/bookings", func(r chi.Router) {
			r.Use(requireIdentity)
			r.Post("/", h.CreateBooking)
			r.Get("/{venueID}/{day}/{hour}", h.GetBooking)
			r.Delete("/{venueID}/{day}/{hour}", h.CancelBooking)
			r.Post("/{venueID}/{day}/{hour}/checkin", h.CheckIn)
		})

		r.Get("/events", h.ListEvents)

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	return r
}
