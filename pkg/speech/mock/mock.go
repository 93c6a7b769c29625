// Package mock provides a scriptable [speech.Synthesizer] for tests.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/prepwell/intervox/pkg/speech"
)

// Compile-time assertion that Synthesizer implements speech.Synthesizer.
var _ speech.Synthesizer = (*Synthesizer)(nil)

// Synthesizer records every Speak call. Set Delay to simulate rendering
// time and Err to simulate synthesis failure.
type Synthesizer struct {
	// Delay is how long each Speak call blocks before returning.
	Delay time.Duration

	// Err, when non-nil, is returned by every Speak call after Delay.
	Err error

	mu    sync.Mutex
	calls []string
}

// Speak records text, waits Delay, and returns Err.
func (s *Synthesizer) Speak(ctx context.Context, text string) error {
	s.mu.Lock()
	s.calls = append(s.calls, text)
	s.mu.Unlock()

	if s.Delay > 0 {
		select {
		case <-time.After(s.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return s.Err
}

// Calls returns a copy of all spoken texts in order.
func (s *Synthesizer) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.calls))
	copy(out, s.calls)
	return out
}
