package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// validSpeechProviders and validCaptureSources list the known provider
// names. Unknown names only warn, so out-of-tree builds can add their own.
var (
	validSpeechProviders = []string{"openai", "none"}
	validCaptureSources  = []string{"wavfile", "none"}
)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	// LoadFromReader's errors already carry the package prefix; the caller
	// knows the path it asked for.
	return LoadFromReader(f)
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Client.LogLevel != "" && !cfg.Client.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("client.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Client.LogLevel))
	}

	if cfg.Backend.WebSocketURL == "" {
		errs = append(errs, errors.New("backend.websocket_url is required"))
	}
	if cfg.Backend.SettleDelay < 0 {
		errs = append(errs, fmt.Errorf("backend.settle_delay %v must not be negative", cfg.Backend.SettleDelay))
	}
	if cfg.Backend.ReconnectBackoff < 0 {
		errs = append(errs, fmt.Errorf("backend.reconnect_backoff %v must not be negative", cfg.Backend.ReconnectBackoff))
	}
	if cfg.Backend.ReconnectMaxAttempts < 0 {
		errs = append(errs, fmt.Errorf("backend.reconnect_max_attempts %d must not be negative", cfg.Backend.ReconnectMaxAttempts))
	}

	switch cfg.Interview.Mode {
	case "":
		errs = append(errs, errors.New("interview.mode is required; valid values: resume, technical"))
	case ModeResume:
		if cfg.Interview.ResumeFile == "" {
			errs = append(errs, errors.New("interview.resume_file is required when interview.mode is resume"))
		}
	case ModeTechnical:
		if len(cfg.Interview.Topics) == 0 {
			errs = append(errs, errors.New("interview.topics must not be empty when interview.mode is technical"))
		}
	default:
		errs = append(errs, fmt.Errorf("interview.mode %q is invalid; valid values: resume, technical", cfg.Interview.Mode))
	}

	if cfg.Speech.Provider != "" && !slices.Contains(validSpeechProviders, cfg.Speech.Provider) {
		slog.Warn("unknown speech provider — may be a typo or third-party provider",
			"name", cfg.Speech.Provider,
			"known", validSpeechProviders,
		)
	}
	if cfg.Speech.Provider == "openai" && cfg.Speech.APIKey == "" {
		errs = append(errs, errors.New("speech.api_key is required when speech.provider is openai"))
	}
	if cfg.Speech.Provider == "" || cfg.Speech.Provider == "none" {
		slog.Warn("no speech provider configured; interviewer questions will not be voiced")
	}

	if cfg.Capture.Source != "" && !slices.Contains(validCaptureSources, cfg.Capture.Source) {
		slog.Warn("unknown capture source — may be a typo or third-party source",
			"name", cfg.Capture.Source,
			"known", validCaptureSources,
		)
	}
	if cfg.Capture.Source == "wavfile" && cfg.Capture.WavFile == "" {
		errs = append(errs, errors.New("capture.wav_file is required when capture.source is wavfile"))
	}
	if cfg.Capture.ClipDuration < 0 {
		errs = append(errs, fmt.Errorf("capture.clip_duration %v must not be negative", cfg.Capture.ClipDuration))
	}

	if cfg.Filter.EchoThreshold < 0 || cfg.Filter.EchoThreshold > 1 {
		errs = append(errs, fmt.Errorf("filter.echo_threshold %.2f is out of range [0, 1]", cfg.Filter.EchoThreshold))
	}
	if cfg.Filter.OverlapThreshold < 0 || cfg.Filter.OverlapThreshold > 1 {
		errs = append(errs, fmt.Errorf("filter.overlap_threshold %.2f is out of range [0, 1]", cfg.Filter.OverlapThreshold))
	}

	if cfg.Store.Dir == "" {
		slog.Warn("store.dir is empty; session summaries will not be persisted")
	}

	return errors.Join(errs...)
}
