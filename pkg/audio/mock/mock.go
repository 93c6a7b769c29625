// Package mock provides a scriptable [audio.Source] for tests.
package mock

import (
	"context"
	"io"
	"sync"

	"github.com/prepwell/intervox/pkg/audio"
)

// Compile-time assertion that Source implements audio.Source.
var _ audio.Source = (*Source)(nil)

// Source is a test double. Configure Data and Encodings before use; inspect
// OpenCalls and IsClosed afterwards.
type Source struct {
	// Data is the audio returned by Read, in order. Read returns io.EOF
	// once Data is exhausted.
	Data []byte

	// Encodings is the set of MIME types Supports reports true for.
	Encodings map[string]bool

	// OpenErr, when non-nil, is returned by Open. Models permission denial.
	OpenErr error

	mu        sync.Mutex
	offset    int
	open      bool
	closed    bool
	OpenCalls int
}

// Open acquires the fake device.
func (s *Source) Open(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.OpenCalls++
	if s.OpenErr != nil {
		return s.OpenErr
	}
	s.open = true
	s.closed = false
	return nil
}

// Read copies the next slice of Data into p.
func (s *Source) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open || s.offset >= len(s.Data) {
		return 0, io.EOF
	}
	n := copy(p, s.Data[s.offset:])
	s.offset += n
	return n, nil
}

// Supports consults the Encodings map.
func (s *Source) Supports(mimeType string) bool {
	return s.Encodings[mimeType]
}

// Close releases the fake device.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = false
	s.closed = true
	return nil
}

// IsClosed reports whether Close has been called since the last Open.
func (s *Source) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
