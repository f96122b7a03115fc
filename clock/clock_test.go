package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFixed(t *testing.T) {
	at := time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)
	c := NewFixed(at)

	assert.Equal(t, at, c.Now())
	assert.Equal(t, at, c.Now())
}

func TestManual(t *testing.T) {
	at := time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)
	c := NewManual(at)

	c.Advance(90 * time.Minute)
	assert.Equal(t, at.Add(90*time.Minute), c.Now())

	c.Set(at.Add(-time.Hour))
	assert.Equal(t, at.Add(-time.Hour), c.Now())
}

func TestManual_StoresUTC(t *testing.T) {
	tz := time.FixedZone("UTC+2", 2*3600)
	c := NewManual(time.Date(2025, time.March, 10, 11, 0, 0, 0, tz))

	assert.Equal(t, time.UTC, c.Now().Location())
	assert.Equal(t, 9, c.Now().Hour())
}

func TestSystem(t *testing.T) {
	before := time.Now()
	got := NewSystem().Now()

	assert.False(t, got.Before(before))
}
