// Package voice implements the speech output controller: it serializes
// interviewer utterances through a [speech.Synthesizer], enforces the
// non-interruption rule, and hands control back to the listening phase
// after every utterance — including failed or impossible ones.
//
// The controller is the reason the session never stalls on speech: a
// missing synthesizer, an empty text, or a synthesis error all still
// schedule the downstream idle callback, just on a shorter delay.
package voice

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/prepwell/intervox/pkg/speech"
)

// Cooldown defaults. The post-speech cooldown gives the room's echo time to
// die down before the microphone opens; the error and fallback delays are
// shorter to avoid dead air when nothing was actually spoken.
const (
	defaultCooldown      = 1200 * time.Millisecond
	defaultErrorCooldown = 400 * time.Millisecond
	defaultFallbackDelay = 800 * time.Millisecond
)

// interruptMinLen is the character length above which new text is treated
// as a fresh question rather than a filler continuation.
const interruptMinLen = 100

// Option configures a [Controller].
type Option func(*Controller)

// WithCooldown overrides the delay between a clean utterance end and the
// idle callback. Default: 1.2s.
func WithCooldown(d time.Duration) Option {
	return func(c *Controller) { c.cooldown = d }
}

// WithErrorCooldown overrides the delay used after a synthesis error.
// Default: 400ms.
func WithErrorCooldown(d time.Duration) Option {
	return func(c *Controller) { c.errorCooldown = d }
}

// WithFallbackDelay overrides the delay used when speech is impossible
// (no synthesizer, blank text). Default: 800ms.
func WithFallbackDelay(d time.Duration) Option {
	return func(c *Controller) { c.fallbackDelay = d }
}

// Controller owns the single speaking slot. All methods are safe for
// concurrent use.
type Controller struct {
	synth         speech.Synthesizer // nil means degraded mode
	onIdle        func()
	cooldown      time.Duration
	errorCooldown time.Duration
	fallbackDelay time.Duration

	mu        sync.Mutex
	speaking  bool
	lastEnd   time.Time
	cancel    context.CancelFunc
	idleTimer *time.Timer
	gen       int // increments per utterance; superseded goroutines stand down
}

// New creates a Controller. synth may be nil, in which case every Speak
// call takes the degraded path. onIdle is invoked (from a timer goroutine)
// once per utterance after the applicable cooldown; it must not block.
func New(synth speech.Synthesizer, onIdle func(), opts ...Option) *Controller {
	c := &Controller{
		synth:         synth,
		onIdle:        onIdle,
		cooldown:      defaultCooldown,
		errorCooldown: defaultErrorCooldown,
		fallbackDelay: defaultFallbackDelay,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Speak voices text. Empty text and a missing synthesizer are non-fatal:
// they log and still schedule the idle callback after the fallback delay.
//
// Non-interruption rule: while an utterance is in flight, a new Speak call
// is suppressed unless the new text contains a question mark or exceeds
// 100 characters — the heuristic for "this is a new question, not filler".
// An interrupting call cancels the in-flight utterance before starting.
func (c *Controller) Speak(ctx context.Context, text string) {
	text = strings.TrimSpace(text)

	if text == "" || c.synth == nil {
		if text == "" {
			slog.Debug("voice: skipping empty utterance")
		} else {
			slog.Warn("voice: no synthesizer available, skipping utterance")
		}
		c.scheduleIdle(c.fallbackDelay)
		return
	}

	c.mu.Lock()
	if c.speaking {
		if !interrupting(text) {
			c.mu.Unlock()
			slog.Debug("voice: suppressing utterance while speaking", "len", len(text))
			return
		}
		if c.cancel != nil {
			c.cancel()
		}
	}
	speakCtx, cancel := context.WithCancel(ctx)
	c.speaking = true
	c.cancel = cancel
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	go func() {
		err := c.synth.Speak(speakCtx, text)
		cancel()

		c.mu.Lock()
		if c.gen == gen {
			c.speaking = false
			c.lastEnd = time.Now()
		}
		c.mu.Unlock()

		delay := c.cooldown
		if err != nil {
			if speakCtx.Err() != nil {
				// Cancelled deliberately; the canceller owns the next step.
				return
			}
			slog.Warn("voice: synthesis failed", "error", err)
			delay = c.errorCooldown
		}
		c.scheduleIdle(delay)
	}()
}

// Cancel aborts any in-flight utterance and any pending idle callback.
// First step of the ending sequence.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.gen++
	c.speaking = false
	if c.idleTimer != nil {
		c.idleTimer.Stop()
		c.idleTimer = nil
	}
}

// Speaking reports whether an utterance is in flight.
func (c *Controller) Speaking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speaking
}

// LastSpeechEnd returns when the most recent utterance finished. Zero if
// nothing has been spoken yet.
func (c *Controller) LastSpeechEnd() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastEnd
}

// scheduleIdle arms the idle callback, replacing any pending one so at
// most a single transition is ever outstanding.
func (c *Controller) scheduleIdle(delay time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.idleTimer != nil {
		c.idleTimer.Stop()
	}
	c.idleTimer = time.AfterFunc(delay, c.onIdle)
}

// interrupting reports whether text may cut off an in-flight utterance.
func interrupting(text string) bool {
	return strings.Contains(text, "?") || len(text) > interruptMinLen
}
