package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prepwell/intervox/internal/config"
)

const validTechnicalYAML = `
client:
  listen_addr: "127.0.0.1:9615"
  log_level: info
backend:
  websocket_url: "wss://backend.example/ws/interview"
  base_url: "https://backend.example"
  reconnect_backoff: 1s
  reconnect_max_backoff: 10s
  reconnect_max_attempts: 5
interview:
  mode: technical
  topics: [algorithms, concurrency]
  language: go
  hint_interval: 90s
speech:
  provider: openai
  api_key: test-key
  voice: alloy
capture:
  source: wavfile
  wav_file: testdata/answer.wav
  clip_duration: 6s
filter:
  echo_threshold: 0.10
  overlap_threshold: 0.50
store:
  dir: /tmp/intervox
`

func TestLoadFromReader_ValidTechnicalConfig(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(validTechnicalYAML))
	if err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
	if cfg.Interview.Mode != config.ModeTechnical {
		t.Errorf("mode = %q", cfg.Interview.Mode)
	}
	if cfg.Interview.HintInterval != 90*time.Second {
		t.Errorf("hint_interval = %v", cfg.Interview.HintInterval)
	}
	if cfg.Backend.ReconnectMaxAttempts != 5 {
		t.Errorf("reconnect_max_attempts = %d", cfg.Backend.ReconnectMaxAttempts)
	}
	if cfg.Filter.EchoThreshold != 0.10 {
		t.Errorf("echo_threshold = %v", cfg.Filter.EchoThreshold)
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	t.Parallel()
	yaml := `
backend:
  websocket_url: "wss://backend.example/ws"
  websocket_retries: 3
interview:
  mode: technical
  topics: [algorithms]
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
}

func TestLoad_DecodeErrorCarriesSinglePrefix(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("backend: [not, a, mapping]"), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := config.Load(path)
	if err == nil {
		t.Fatal("expected decode error, got nil")
	}
	if got := strings.Count(err.Error(), "config:"); got != 1 {
		t.Errorf("error carries %d package prefixes, want 1: %v", got, err)
	}
}

func TestValidate_MissingWebSocketURL(t *testing.T) {
	t.Parallel()
	yaml := `
interview:
  mode: technical
  topics: [algorithms]
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for missing websocket_url, got nil")
	}
	if !strings.Contains(err.Error(), "websocket_url") {
		t.Errorf("error should mention websocket_url, got: %v", err)
	}
}

func TestValidate_ResumeModeRequiresResumeFile(t *testing.T) {
	t.Parallel()
	yaml := `
backend:
  websocket_url: "wss://backend.example/ws"
interview:
  mode: resume
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for resume mode without resume_file, got nil")
	}
	if !strings.Contains(err.Error(), "resume_file") {
		t.Errorf("error should mention resume_file, got: %v", err)
	}
}

func TestValidate_TechnicalModeRequiresTopics(t *testing.T) {
	t.Parallel()
	yaml := `
backend:
  websocket_url: "wss://backend.example/ws"
interview:
  mode: technical
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for technical mode without topics, got nil")
	}
	if !strings.Contains(err.Error(), "topics") {
		t.Errorf("error should mention topics, got: %v", err)
	}
}

func TestValidate_InvalidMode(t *testing.T) {
	t.Parallel()
	yaml := `
backend:
  websocket_url: "wss://backend.example/ws"
interview:
  mode: behavioral
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid mode, got nil")
	}
	if !strings.Contains(err.Error(), "behavioral") {
		t.Errorf("error should quote the invalid mode, got: %v", err)
	}
}

func TestValidate_OpenAISpeechRequiresAPIKey(t *testing.T) {
	t.Parallel()
	yaml := `
backend:
  websocket_url: "wss://backend.example/ws"
interview:
  mode: technical
  topics: [algorithms]
speech:
  provider: openai
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for openai speech without api_key, got nil")
	}
	if !strings.Contains(err.Error(), "api_key") {
		t.Errorf("error should mention api_key, got: %v", err)
	}
}

func TestValidate_ThresholdRanges(t *testing.T) {
	t.Parallel()
	yaml := `
backend:
  websocket_url: "wss://backend.example/ws"
interview:
  mode: technical
  topics: [algorithms]
filter:
  echo_threshold: 1.5
  overlap_threshold: -0.1
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for out-of-range thresholds, got nil")
	}
	if !strings.Contains(err.Error(), "echo_threshold") || !strings.Contains(err.Error(), "overlap_threshold") {
		t.Errorf("error should list both threshold failures, got: %v", err)
	}
}

func TestValidate_JoinsMultipleErrors(t *testing.T) {
	t.Parallel()
	yaml := `
client:
  log_level: loud
interview:
  mode: resume
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected joined errors, got nil")
	}
	for _, want := range []string{"log_level", "websocket_url", "resume_file"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error missing %q: %v", want, err)
		}
	}
}
