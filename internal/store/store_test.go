package store_test

import (
	"errors"
	"testing"
	"time"

	"github.com/prepwell/intervox/internal/session"
	"github.com/prepwell/intervox/internal/store"
)

func sampleSummary(id string, endedAt time.Time) session.Summary {
	return session.Summary{
		SessionID:  id,
		Mode:       session.ModeTechnical,
		StartedAt:  endedAt.Add(-30 * time.Minute),
		EndedAt:    endedAt,
		Questions:  4,
		HintsUsed:  1,
		FinalScore: 7.5,
	}
}

func TestStore_SaveAndLoadLastSession(t *testing.T) {
	t.Parallel()
	s, err := store.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	want := sampleSummary("sess-1", time.Date(2026, 3, 14, 11, 0, 0, 0, time.UTC))
	if err := s.SaveSummary(want); err != nil {
		t.Fatal(err)
	}

	got, err := s.LastSession()
	if err != nil {
		t.Fatal(err)
	}
	if got.SessionID != want.SessionID || got.Questions != want.Questions || !got.EndedAt.Equal(want.EndedAt) {
		t.Errorf("roundtrip mismatch: got %+v", got)
	}
}

func TestStore_LastSessionMissing(t *testing.T) {
	t.Parallel()
	s, err := store.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.LastSession(); !errors.Is(err, store.ErrNoLastSession) {
		t.Errorf("err = %v, want ErrNoLastSession", err)
	}
}

func TestStore_ResultsNewestFirst(t *testing.T) {
	t.Parallel()
	s, err := store.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"sess-a", "sess-b", "sess-c"} {
		if err := s.SaveSummary(sampleSummary(id, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatal(err)
		}
	}

	results, err := s.Results()
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}
	if results[0].SessionID != "sess-c" || results[2].SessionID != "sess-a" {
		t.Errorf("order = %s, %s, %s", results[0].SessionID, results[1].SessionID, results[2].SessionID)
	}
}

func TestStore_SummaryWithoutIDGetsOne(t *testing.T) {
	t.Parallel()
	s, err := store.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SaveSummary(sampleSummary("", time.Now())); err != nil {
		t.Fatal(err)
	}
	results, err := s.Results()
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
}

func TestStore_Clear(t *testing.T) {
	t.Parallel()
	s, err := store.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SaveSummary(sampleSummary("sess-1", time.Now())); err != nil {
		t.Fatal(err)
	}
	if err := s.Clear(); err != nil {
		t.Fatal(err)
	}

	if _, err := s.LastSession(); !errors.Is(err, store.ErrNoLastSession) {
		t.Errorf("last session survived Clear: %v", err)
	}
	results, err := s.Results()
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("results after Clear = %d, want 0", len(results))
	}
}
