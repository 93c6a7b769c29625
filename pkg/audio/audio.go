// Package audio defines the capture-side audio abstraction used by the
// interview session: a [Source] is the microphone analog, a device that can
// be acquired once, read for raw audio, and released.
//
// Implementations must be safe for use from a single reader goroutine;
// Open and Close may be called from a different goroutine than Read.
package audio

import (
	"context"
	"errors"
	"io"
	"sync"
)

// Source is an acquirable audio input device.
type Source interface {
	// Open acquires the device. Acquiring an already-open source is an
	// error; the session holds at most one open handle at a time.
	Open(ctx context.Context) error

	// Read fills p with raw audio and returns the byte count. It blocks
	// until data is available, the source is closed, or the stream ends
	// (io.EOF).
	Read(p []byte) (int, error)

	// Supports reports whether the device can record in the given MIME
	// encoding (e.g. "audio/webm;codecs=opus"). Used for encoding
	// negotiation before a clip is recorded.
	Supports(mimeType string) bool

	// Close releases the device and ends any in-flight Read. Closing a
	// closed source is a no-op.
	Close() error
}

// Silence returns a Source that yields no audio. Read blocks until Close,
// so a timer-bounded recording waits out its full window and hears
// nothing, rather than draining instantly and spinning the capture loop.
// It keeps a session runnable when no real input device is configured.
func Silence() Source { return &silentSource{} }

type silentSource struct {
	mu   sync.Mutex
	done chan struct{}
}

func (s *silentSource) Open(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return errors.New("audio: silent source already open")
	}
	s.done = make(chan struct{})
	return nil
}

func (s *silentSource) Read([]byte) (int, error) {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return 0, io.EOF
	}
	<-done
	return 0, io.EOF
}

func (s *silentSource) Supports(string) bool { return false }

func (s *silentSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		close(s.done)
		s.done = nil
	}
	return nil
}
