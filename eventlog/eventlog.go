// Package eventlog provides booking.EventLog sinks.
package eventlog

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/warp/slot-engine/booking"
)

// =============================================================================
// MEMORY - Append-only in-process log
// =============================================================================

type Memory struct {
	mu     sync.RWMutex
	events []booking.Event
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Append(_ context.Context, e booking.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

// Events returns a copy of everything appended so far, oldest first.
func (m *Memory) Events() []booking.Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]booking.Event(nil), m.events...)
}

// OfKind filters Events by kind.
func (m *Memory) OfKind(kind booking.EventKind) []booking.Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []booking.Event
	for _, e := range m.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// =============================================================================
// LOGGER - Writes one line per event
// =============================================================================

type Logger struct {
	l *log.Logger
}

// NewLogger writes to l, or the standard logger when l is nil.
func NewLogger(l *log.Logger) *Logger {
	if l == nil {
		l = log.Default()
	}
	return &Logger{l: l}
}

func (lg *Logger) Append(_ context.Context, e booking.Event) error {
	lg.l.Printf("[EVENT] kind=%s id=%s fields=%v", e.Kind, e.ID, e.Fields)
	return nil
}

// =============================================================================
// MULTI - Fan-out
// =============================================================================

// Multi appends to every sink and joins their errors. One failing sink
// does not stop delivery to the others.
type Multi []booking.EventLog

func (m Multi) Append(ctx context.Context, e booking.Event) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Append(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
