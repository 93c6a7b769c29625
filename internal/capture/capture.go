// Package capture records bounded-duration audio clips from an [audio.Source]
// and uploads them for transcription.
//
// Recording is deterministic: a clip is exactly the audio read during a fixed
// window (default six seconds), stopped by timer rather than voice-activity
// detection. The encoding is negotiated once per client from an ordered
// candidate list, first match wins, falling back to plain webm.
//
// Transcription failures are never fatal to a session. CaptureAndTranscribe
// collapses every failure mode — device loss, upload error, non-OK response,
// empty transcript — into the empty string, which the session treats as
// "no speech heard". A circuit breaker keeps a dead transcription service
// from being re-probed on every turn.
package capture

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prepwell/intervox/internal/resilience"
	"github.com/prepwell/intervox/pkg/audio"
)

// DefaultClipDuration is the fixed recording window.
const DefaultClipDuration = 6 * time.Second

// uploadTimeout bounds the transcription round-trip.
const uploadTimeout = 15 * time.Second

// encodingCandidates is the preference-ordered list of clip encodings.
// The first one the source supports wins.
var encodingCandidates = []string{
	"audio/webm;codecs=opus",
	"audio/ogg;codecs=opus",
	"audio/mp4",
	"audio/webm",
}

// fallbackEncoding is used when the source supports none of the candidates.
const fallbackEncoding = "audio/webm"

// Clip is one recorded, encoded audio segment.
type Clip struct {
	MIME string
	Data []byte
}

// Option configures a [Client].
type Option func(*Client)

// WithClipDuration overrides the recording window. Default: 6s.
func WithClipDuration(d time.Duration) Option {
	return func(c *Client) { c.clipDuration = d }
}

// WithHTTPClient substitutes the HTTP client used for uploads.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// Client owns the media source handle and the transcription endpoint.
// All exported methods are safe for concurrent use, though the session
// model only ever records one clip at a time.
type Client struct {
	source       audio.Source
	endpoint     string
	clipDuration time.Duration
	httpClient   *http.Client
	breaker      *resilience.Breaker

	mu          sync.Mutex
	acquired    bool
	encoding    string
	frames      chan []byte
	quit        chan struct{}
	readFailure error
}

// New creates a capture client reading from source and uploading clips to
// endpoint (the /transcribe_audio route).
func New(source audio.Source, endpoint string, opts ...Option) *Client {
	c := &Client{
		source:       source,
		endpoint:     endpoint,
		clipDuration: DefaultClipDuration,
		httpClient:   &http.Client{Timeout: uploadTimeout},
		breaker:      resilience.NewBreaker(resilience.BreakerConfig{Name: "transcribe"}),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// CaptureAndTranscribe records one clip and returns its trimmed transcript,
// or "" when nothing usable was heard for any reason.
func (c *Client) CaptureAndTranscribe(ctx context.Context) string {
	clip, err := c.Record(ctx)
	if err != nil {
		slog.Warn("capture: recording failed", "error", err)
		return ""
	}
	if len(clip.Data) == 0 {
		return ""
	}

	var text string
	err = c.breaker.Do(func() error {
		var uploadErr error
		text, uploadErr = c.transcribe(ctx, clip)
		return uploadErr
	})
	if err != nil {
		slog.Warn("capture: transcription failed", "error", err)
		return ""
	}
	return strings.TrimSpace(text)
}

// Record acquires the source if not already held, negotiates the encoding on
// first use, and reads audio for the configured window. The stop is purely
// timer-driven.
func (c *Client) Record(ctx context.Context) (*Clip, error) {
	c.mu.Lock()
	fresh := !c.acquired
	if fresh {
		if err := c.source.Open(ctx); err != nil {
			c.mu.Unlock()
			return nil, fmt.Errorf("capture: acquire source: %w", err)
		}
		c.acquired = true
		c.encoding = negotiateEncoding(c.source)
		c.frames = make(chan []byte)
		c.quit = make(chan struct{})
		c.readFailure = nil
		go c.readLoop(c.frames, c.quit)
		slog.Debug("capture: source acquired", "encoding", c.encoding)
	}
	encoding := c.encoding
	frames := c.frames
	c.mu.Unlock()

	if !fresh {
		// The reader holds at most one frame from outside any window; it is
		// stale audio and must not open the new clip.
		select {
		case <-frames:
		default:
		}
	}

	var buf bytes.Buffer
	window := time.NewTimer(c.clipDuration)
	defer window.Stop()

	for {
		select {
		case <-ctx.Done():
			return &Clip{MIME: encoding, Data: buf.Bytes()}, nil
		case <-window.C:
			return &Clip{MIME: encoding, Data: buf.Bytes()}, nil
		case chunk, ok := <-frames:
			if !ok {
				c.mu.Lock()
				err := c.readFailure
				c.mu.Unlock()
				if err != nil {
					return nil, fmt.Errorf("capture: read: %w", err)
				}
				// Source drained before the window closed; the clip is
				// whatever was read.
				return &Clip{MIME: encoding, Data: buf.Bytes()}, nil
			}
			buf.Write(chunk)
		}
	}
}

// readLoop is the single long-lived reader over the acquired source. Between
// clips it parks on the unbuffered frames channel, so a blocking or silent
// source costs one goroutine for the life of the handle rather than one per
// recording window. It exits on EOF, on a read error, or when quit closes.
func (c *Client) readLoop(frames chan<- []byte, quit <-chan struct{}) {
	defer close(frames)
	for {
		p := make([]byte, 4096)
		n, err := c.source.Read(p)
		if n > 0 {
			select {
			case frames <- p[:n]:
			case <-quit:
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				c.mu.Lock()
				c.readFailure = err
				c.mu.Unlock()
			}
			return
		}
	}
}

// StopTracks releases the media source. Part of the ending sequence; safe to
// call when nothing was ever acquired.
func (c *Client) StopTracks() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.acquired {
		return nil
	}
	c.acquired = false
	close(c.quit)
	c.quit = nil
	c.frames = nil
	return c.source.Close()
}

// transcribe uploads clip as multipart form data and returns the transcript
// text from the response.
func (c *Client) transcribe(ctx context.Context, clip *Clip) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("audio", "clip"+extensionFor(clip.MIME))
	if err != nil {
		return "", fmt.Errorf("capture: build form: %w", err)
	}
	if _, err := part.Write(clip.Data); err != nil {
		return "", fmt.Errorf("capture: write clip: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("capture: finish form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("capture: build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("capture: upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("capture: transcription endpoint returned %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("capture: read response: %w", err)
	}
	return parseTranscript(data)
}

// parseTranscript extracts the transcript from the endpoint response body.
// Both {"transcript": ...} and {"text": ...} shapes are accepted.
func parseTranscript(data []byte) (string, error) {
	var payload struct {
		Transcript string `json:"transcript"`
		Text       string `json:"text"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", fmt.Errorf("capture: parse response: %w", err)
	}
	if payload.Transcript != "" {
		return payload.Transcript, nil
	}
	return payload.Text, nil
}

// negotiateEncoding returns the first candidate the source supports.
func negotiateEncoding(source audio.Source) string {
	for _, mime := range encodingCandidates {
		if source.Supports(mime) {
			return mime
		}
	}
	return fallbackEncoding
}

// extensionFor maps a MIME type to the upload filename extension.
func extensionFor(mime string) string {
	switch {
	case strings.HasPrefix(mime, "audio/ogg"):
		return ".ogg"
	case strings.HasPrefix(mime, "audio/mp4"):
		return ".m4a"
	case strings.HasPrefix(mime, "audio/wav"):
		return ".wav"
	default:
		return ".webm"
	}
}
