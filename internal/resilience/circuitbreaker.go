// Package resilience provides the circuit breaker guarding the transcription
// upload path.
//
// Transcription failures are individually harmless — a failed upload is
// treated as "no speech" and the turn resets — but a dead transcription
// service would otherwise be hammered once per listening phase. The breaker
// converts a run of consecutive failures into a cooldown during which calls
// fail fast, then lets a single probe through to test recovery.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrOpen is returned by [Breaker.Do] while the breaker is cooling down.
var ErrOpen = errors.New("resilience: breaker open")

// Default breaker tuning.
const (
	defaultTripAfter = 3
	defaultCooldown  = 20 * time.Second
)

// BreakerConfig tunes a [Breaker]. Zero values take the package defaults.
type BreakerConfig struct {
	// Name labels the breaker in log output.
	Name string

	// TripAfter is the number of consecutive failures that opens the
	// breaker. Default: 3.
	TripAfter int

	// Cooldown is how long the breaker stays open before allowing a
	// probe call. Default: 20s.
	Cooldown time.Duration
}

// Breaker is a consecutive-failure circuit breaker with a single-probe
// recovery mode.
type Breaker struct {
	name      string
	tripAfter int
	cooldown  time.Duration

	mu       sync.Mutex
	failures int
	openedAt time.Time
	open     bool
	probing  bool
}

// NewBreaker creates a [Breaker] from cfg.
func NewBreaker(cfg BreakerConfig) *Breaker {
	tripAfter := cfg.TripAfter
	if tripAfter <= 0 {
		tripAfter = defaultTripAfter
	}
	cooldown := cfg.Cooldown
	if cooldown <= 0 {
		cooldown = defaultCooldown
	}
	return &Breaker{
		name:      cfg.Name,
		tripAfter: tripAfter,
		cooldown:  cooldown,
	}
}

// Do runs fn unless the breaker is open. During the cooldown it returns
// [ErrOpen] without calling fn; after the cooldown one probe call is let
// through, and its outcome decides whether the breaker closes or re-opens.
func (b *Breaker) Do(fn func() error) error {
	b.mu.Lock()
	if b.open {
		if time.Since(b.openedAt) < b.cooldown || b.probing {
			b.mu.Unlock()
			return ErrOpen
		}
		b.probing = true
		slog.Info("breaker probing", "name", b.name)
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.failures++
		if b.probing {
			// Probe failed: restart the cooldown.
			b.openedAt = time.Now()
			b.probing = false
			slog.Warn("breaker re-opened", "name", b.name, "error", err)
		} else if !b.open && b.failures >= b.tripAfter {
			b.open = true
			b.openedAt = time.Now()
			slog.Warn("breaker opened",
				"name", b.name,
				"consecutive_failures", b.failures,
				"cooldown", b.cooldown,
			)
		}
		return err
	}

	if b.open {
		slog.Info("breaker closed", "name", b.name)
	}
	b.open = false
	b.probing = false
	b.failures = 0
	return nil
}

// Open reports whether the breaker is currently rejecting calls.
func (b *Breaker) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open && time.Since(b.openedAt) < b.cooldown
}
