/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the slot booking server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load SLOTS_* environment configuration, then parse flags
  2. Initialize SQLite store
  3. Build event sinks (store, log, optional AMQP) and the payout book
  4. Create the booking engine and API handler
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides SLOTS_HTTP_ADDR)
  -db      SQLite database path (default: SLOTS_DB_PATH or slots.db)
           Use ":memory:" for in-memory database

ENVIRONMENT:
  SLOTS_ADMIN (required), SLOTS_HTTP_ADDR, SLOTS_DB_PATH,
  SLOTS_REQUIRE_REGISTRATION, SLOTS_ADMISSION_WINDOW, SLOTS_REFUND_RESERVE,
  SLOTS_JWT_SECRET, SLOTS_AMQP_URL, SLOTS_AMQP_EXCHANGE, SLOTS_CORS_ORIGINS.
  See config/config.go.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close AMQP and database connections
  4. Exit

SEE ALSO:
  - api/server.go: Router configuration
  - booking/engine.go: Booking engine
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/slot-engine/api"
	"github.com/warp/slot-engine/booking"
	"github.com/warp/slot-engine/config"
	"github.com/warp/slot-engine/eventlog"
	"github.com/warp/slot-engine/payout"
	"github.com/warp/slot-engine/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Flags
	port := flag.Int("port", 0, "HTTP server port (overrides SLOTS_HTTP_ADDR)")
	dbPath := flag.String("db", cfg.DBPath, "SQLite database path")
	flag.Parse()

	addr := cfg.HTTPAddr
	if *port != 0 {
		addr = fmt.Sprintf(":%d", *port)
	}

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Event sinks
	sinks := eventlog.Multi{store, eventlog.NewLogger(nil)}
	if cfg.AMQPURL != "" {
		bus, err := eventlog.NewAMQP(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			log.Fatalf("Failed to connect to event bus: %v", err)
		}
		defer bus.Close()
		sinks = append(sinks, bus)
		log.Printf("Publishing events to exchange %q", cfg.AMQPExchange)
	}

	// Refunds
	var bookOpts []payout.Option
	if cfg.RefundReserve > 0 {
		bookOpts = append(bookOpts, payout.WithReserve(decimal.NewFromInt(cfg.RefundReserve)))
	}
	book := payout.NewBook(bookOpts...)

	engine := booking.NewEngine(store, booking.Config{
		Admin:               booking.Identity(cfg.Admin),
		RequireRegistration: cfg.RequireRegistration,
		AdmissionWindow:     cfg.AdmissionWindow,
	},
		booking.WithTransferrer(book),
		booking.WithEventLog(sinks),
	)

	if cfg.JWTSecret == "" {
		log.Printf("Warning: SLOTS_JWT_SECRET is empty, trusting the %s header", api.IdentityHeader)
	}
	auth := api.NewAuthenticator(cfg.JWTSecret)

	handler := api.NewHandler(engine, store, store)
	router := api.NewRouter(handler, auth, cfg.CORSOrigins)

	// Create server
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on %s (admin %q)", addr, cfg.Admin)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
