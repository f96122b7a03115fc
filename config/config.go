// Package config loads server settings from SLOTS_* environment variables.
package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type App struct {
	// Network
	HTTPAddr    string   `envconfig:"HTTP_ADDR" default:":8080"`
	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"http://localhost:5173,http://localhost:8080"`

	// Storage
	DBPath string `envconfig:"DB_PATH" default:"slots.db"`

	// Engine
	Admin               string        `envconfig:"ADMIN" required:"true"`
	RequireRegistration bool          `envconfig:"REQUIRE_REGISTRATION" default:"false"`
	AdmissionWindow     time.Duration `envconfig:"ADMISSION_WINDOW" default:"48h"`

	// Refund reserve in whole units. Zero means unlimited.
	RefundReserve int64 `envconfig:"REFUND_RESERVE" default:"0"`

	// Auth. Empty secret trusts the X-Identity header (dev only).
	JWTSecret string `envconfig:"JWT_SECRET"`

	// Events. Empty URL disables AMQP publishing.
	AMQPURL      string `envconfig:"AMQP_URL"`
	AMQPExchange string `envconfig:"AMQP_EXCHANGE" default:"slots.events"`
}

// Prefix is prepended to every variable name, e.g. SLOTS_ADMIN.
const Prefix = "SLOTS"

func Load() (App, error) {
	var c App
	err := envconfig.Process(Prefix, &c)
	return c, err
}
