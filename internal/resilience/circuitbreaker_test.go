package resilience

import (
	"errors"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

func failing() error { return errBoom }
func succeeding() error { return nil }

func TestBreaker_TripsAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()
	b := NewBreaker(BreakerConfig{Name: "t", TripAfter: 3, Cooldown: time.Hour})

	for i := 0; i < 3; i++ {
		if err := b.Do(failing); !errors.Is(err, errBoom) {
			t.Fatalf("call %d: err = %v", i, err)
		}
	}
	if !b.Open() {
		t.Fatal("breaker should be open after 3 consecutive failures")
	}
	if err := b.Do(succeeding); !errors.Is(err, ErrOpen) {
		t.Errorf("open breaker ran the call: err = %v", err)
	}
}

func TestBreaker_SuccessResetsCount(t *testing.T) {
	t.Parallel()
	b := NewBreaker(BreakerConfig{TripAfter: 3, Cooldown: time.Hour})

	_ = b.Do(failing)
	_ = b.Do(failing)
	_ = b.Do(succeeding)
	_ = b.Do(failing)
	_ = b.Do(failing)

	if b.Open() {
		t.Error("breaker opened despite interleaved success")
	}
}

func TestBreaker_ProbeAfterCooldown(t *testing.T) {
	t.Parallel()
	b := NewBreaker(BreakerConfig{TripAfter: 1, Cooldown: 5 * time.Millisecond})

	_ = b.Do(failing)
	if !b.Open() {
		t.Fatal("breaker should be open")
	}

	time.Sleep(10 * time.Millisecond)

	if err := b.Do(succeeding); err != nil {
		t.Fatalf("probe call failed: %v", err)
	}
	if b.Open() {
		t.Error("breaker should close after successful probe")
	}
}

func TestBreaker_FailedProbeReopens(t *testing.T) {
	t.Parallel()
	b := NewBreaker(BreakerConfig{TripAfter: 1, Cooldown: 5 * time.Millisecond})

	_ = b.Do(failing)
	time.Sleep(10 * time.Millisecond)

	if err := b.Do(failing); !errors.Is(err, errBoom) {
		t.Fatalf("probe err = %v", err)
	}
	if !b.Open() {
		t.Error("breaker should re-open after failed probe")
	}
	if err := b.Do(succeeding); !errors.Is(err, ErrOpen) {
		t.Errorf("re-opened breaker ran the call: err = %v", err)
	}
}
