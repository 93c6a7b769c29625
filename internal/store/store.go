// Package store persists session records on the local filesystem. The
// data is deliberately ephemeral in spirit: one "last session" record that
// is overwritten per run, plus an accumulating results directory that
// [Store.Clear] wipes when the user returns to interview selection.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/prepwell/intervox/internal/session"
)

// ErrNoLastSession is returned by [Store.LastSession] when no session has
// been recorded yet.
var ErrNoLastSession = errors.New("store: no last session recorded")

const (
	lastSessionFile = "last_session.json"
	resultsDir      = "results"
)

// Store writes JSON records under a base directory. The zero value is not
// usable; construct with [New].
type Store struct {
	dir string
}

// New creates the base and results directories if needed.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("store: dir must not be empty")
	}
	if err := os.MkdirAll(filepath.Join(dir, resultsDir), 0o755); err != nil {
		return nil, fmt.Errorf("store: create %q: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// SaveSummary records s both as the last-session record (overwritten each
// run) and as a new entry in the results directory.
func (s *Store) SaveSummary(sum session.Summary) error {
	data, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode summary: %w", err)
	}

	last := filepath.Join(s.dir, lastSessionFile)
	if err := writeAtomic(last, data); err != nil {
		return err
	}

	id := sum.SessionID
	if id == "" {
		id = uuid.NewString()
	}
	result := filepath.Join(s.dir, resultsDir, id+".json")
	return writeAtomic(result, data)
}

// LastSession returns the most recently persisted summary.
func (s *Store) LastSession() (session.Summary, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, lastSessionFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return session.Summary{}, ErrNoLastSession
		}
		return session.Summary{}, fmt.Errorf("store: read last session: %w", err)
	}
	var sum session.Summary
	if err := json.Unmarshal(data, &sum); err != nil {
		return session.Summary{}, fmt.Errorf("store: decode last session: %w", err)
	}
	return sum, nil
}

// Results returns all persisted summaries, newest first.
func (s *Store) Results() ([]session.Summary, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, resultsDir))
	if err != nil {
		return nil, fmt.Errorf("store: list results: %w", err)
	}

	var out []session.Summary
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, resultsDir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("store: read result %q: %w", e.Name(), err)
		}
		var sum session.Summary
		if err := json.Unmarshal(data, &sum); err != nil {
			return nil, fmt.Errorf("store: decode result %q: %w", e.Name(), err)
		}
		out = append(out, sum)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].EndedAt.After(out[j].EndedAt)
	})
	return out, nil
}

// Clear removes the last-session record and every stored result. Called on
// the return-to-selection path.
func (s *Store) Clear() error {
	if err := os.Remove(filepath.Join(s.dir, lastSessionFile)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("store: clear last session: %w", err)
	}
	entries, err := os.ReadDir(filepath.Join(s.dir, resultsDir))
	if err != nil {
		return fmt.Errorf("store: clear results: %w", err)
	}
	for _, e := range entries {
		if err := os.Remove(filepath.Join(s.dir, resultsDir, e.Name())); err != nil {
			return fmt.Errorf("store: clear result %q: %w", e.Name(), err)
		}
	}
	return nil
}

// writeAtomic writes via a temp file and rename so readers never see a
// partially written record.
func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("store: write %q: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("store: commit %q: %w", path, err)
	}
	return nil
}
