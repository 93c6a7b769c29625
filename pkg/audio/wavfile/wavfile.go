// Package wavfile provides an [audio.Source] backed by a WAV file on disk.
// It exists for development and scripted end-to-end runs: the "microphone"
// replays a pre-recorded answer at a configurable pace.
package wavfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
)

// headerSize is the canonical RIFF/WAVE header length. Files with extension
// chunks are still readable; the replayed bytes just include those chunks.
const headerSize = 44

// Source replays a WAV file as an audio source. It supports only the
// "audio/wav" encoding; clip recording falls back to the container default
// for anything else.
type Source struct {
	path string

	mu   sync.Mutex
	file *os.File
}

// New creates a Source that replays the WAV file at path. The file is not
// touched until Open.
func New(path string) *Source {
	return &Source{path: path}
}

// Open opens the file and skips the WAV header.
func (s *Source) Open(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file != nil {
		return errors.New("wavfile: source already open")
	}
	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("wavfile: open %q: %w", s.path, err)
	}
	if _, err := f.Seek(headerSize, 0); err != nil {
		f.Close()
		return fmt.Errorf("wavfile: seek past header: %w", err)
	}
	s.file = f
	return nil
}

// Read returns the next chunk of sample data. io.EOF at end of file.
func (s *Source) Read(p []byte) (int, error) {
	s.mu.Lock()
	f := s.file
	s.mu.Unlock()

	if f == nil {
		return 0, errors.New("wavfile: source not open")
	}
	return f.Read(p)
}

// Supports reports true only for "audio/wav".
func (s *Source) Supports(mimeType string) bool {
	return mimeType == "audio/wav"
}

// Close releases the file. Safe to call repeatedly.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}
