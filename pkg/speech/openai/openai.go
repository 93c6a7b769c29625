// Package openai provides a [speech.Synthesizer] backed by the OpenAI
// speech endpoint. Rendered audio is streamed into the configured sink,
// typically a pipe into a local playback process.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/prepwell/intervox/pkg/speech"
)

// Compile-time assertion that Synthesizer implements speech.Synthesizer.
var _ speech.Synthesizer = (*Synthesizer)(nil)

const (
	defaultModel = oai.SpeechModelTTS1
	defaultVoice = "alloy"
)

// Option is a functional option for configuring a Synthesizer.
type Option func(*Synthesizer)

// WithModel sets the speech model (e.g. "tts-1", "tts-1-hd").
func WithModel(model string) Option {
	return func(s *Synthesizer) { s.model = oai.SpeechModel(model) }
}

// WithVoice sets the voice name (e.g. "alloy", "nova").
func WithVoice(voice string) Option {
	return func(s *Synthesizer) { s.voice = voice }
}

// WithBaseURL overrides the API endpoint. Primarily used in tests to point
// at a local mock server.
func WithBaseURL(url string) Option {
	return func(s *Synthesizer) { s.baseURL = url }
}

// WithSink sets the writer that receives rendered audio. Default: io.Discard
// (useful for driving the session without an audio device).
func WithSink(w io.Writer) Option {
	return func(s *Synthesizer) { s.sink = w }
}

// Synthesizer renders utterances via the OpenAI speech API.
type Synthesizer struct {
	client  oai.Client
	model   oai.SpeechModel
	voice   string
	baseURL string
	sink    io.Writer
}

// New creates a Synthesizer. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Synthesizer, error) {
	if apiKey == "" {
		return nil, errors.New("openai: apiKey must not be empty")
	}
	s := &Synthesizer{
		model: defaultModel,
		voice: defaultVoice,
		sink:  io.Discard,
	}
	for _, o := range opts {
		o(s)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if s.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(s.baseURL))
	}
	s.client = oai.NewClient(reqOpts...)
	return s, nil
}

// Speak renders text and streams the audio into the sink, returning once
// the full utterance has been written.
func (s *Synthesizer) Speak(ctx context.Context, text string) error {
	resp, err := s.client.Audio.Speech.New(ctx, oai.AudioSpeechNewParams{
		Model:          s.model,
		Input:          text,
		Voice:          oai.AudioSpeechNewParamsVoice(s.voice),
		ResponseFormat: oai.AudioSpeechNewParamsResponseFormatWAV,
	})
	if err != nil {
		return fmt.Errorf("openai: synthesize: %w", err)
	}
	defer resp.Body.Close()

	if _, err := io.Copy(s.sink, resp.Body); err != nil {
		return fmt.Errorf("openai: stream audio: %w", err)
	}
	return nil
}
