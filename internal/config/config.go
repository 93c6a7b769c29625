// Package config provides the configuration schema and loader for the
// Intervox interview client.
package config

import "time"

// LogLevel controls log verbosity for the client.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Mode selects the interview flavor.
type Mode string

const (
	// ModeResume conducts a resume-based interview; requires a resume upload.
	ModeResume Mode = "resume"

	// ModeTechnical conducts a topic-driven coding interview.
	ModeTechnical Mode = "technical"
)

// IsValid reports whether m is a recognised interview mode.
func (m Mode) IsValid() bool {
	return m == ModeResume || m == ModeTechnical
}

// Config is the root configuration structure for Intervox.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Client    ClientConfig    `yaml:"client"`
	Backend   BackendConfig   `yaml:"backend"`
	Interview InterviewConfig `yaml:"interview"`
	Speech    SpeechConfig    `yaml:"speech"`
	Capture   CaptureConfig   `yaml:"capture"`
	Filter    FilterConfig    `yaml:"filter"`
	Store     StoreConfig     `yaml:"store"`
}

// ClientConfig holds local process settings: logging plus the address of
// the metrics/health listener.
type ClientConfig struct {
	// ListenAddr is the TCP address the local metrics/health endpoint
	// listens on (e.g., "127.0.0.1:9615"). Empty disables the listener.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// BackendConfig describes how to reach the interview backend.
type BackendConfig struct {
	// WebSocketURL is the interview session endpoint
	// (e.g., "wss://backend.example/ws/interview").
	WebSocketURL string `yaml:"websocket_url"`

	// BaseURL is the REST API root used for analytics, resume upload, and
	// result downloads (e.g., "https://backend.example").
	BaseURL string `yaml:"base_url"`

	// TranscribeURL is the audio transcription endpoint. Defaults to
	// BaseURL + "/transcribe_audio" when empty.
	TranscribeURL string `yaml:"transcribe_url"`

	// SettleDelay is how long to wait before (re)dialing the WebSocket.
	// Zero means the built-in default of 300ms.
	SettleDelay time.Duration `yaml:"settle_delay"`

	// ReconnectBackoff is the first retry delay after an abnormal socket
	// drop; it doubles per attempt. Zero means 1s.
	ReconnectBackoff time.Duration `yaml:"reconnect_backoff"`

	// ReconnectMaxBackoff caps the retry delay. Zero means 10s.
	ReconnectMaxBackoff time.Duration `yaml:"reconnect_max_backoff"`

	// ReconnectMaxAttempts is the attempt budget per outage. Zero means 5.
	ReconnectMaxAttempts int `yaml:"reconnect_max_attempts"`
}

// InterviewConfig selects what kind of interview to run.
type InterviewConfig struct {
	// Mode is "resume" or "technical".
	Mode Mode `yaml:"mode"`

	// ResumeFile is the local resume path uploaded before a resume-mode
	// interview. Required when Mode is "resume".
	ResumeFile string `yaml:"resume_file"`

	// Topics lists the subject areas for a technical-mode interview.
	Topics []string `yaml:"topics"`

	// Language is reported with technical-mode code submissions.
	Language string `yaml:"language"`

	// HintInterval is the idle time before an unprompted hint request in
	// technical mode. Zero means 90s.
	HintInterval time.Duration `yaml:"hint_interval"`
}

// SpeechConfig configures the interviewer voice output.
type SpeechConfig struct {
	// Provider selects the synthesizer: "openai" or "none" (degraded mode,
	// text only). Empty means "none".
	Provider string `yaml:"provider"`

	// APIKey authenticates against the speech provider.
	APIKey string `yaml:"api_key"`

	// Model selects the speech model (e.g., "tts-1").
	Model string `yaml:"model"`

	// Voice selects the voice profile (e.g., "alloy").
	Voice string `yaml:"voice"`

	// BaseURL overrides the provider's default endpoint.
	BaseURL string `yaml:"base_url"`
}

// CaptureConfig configures the microphone side of the session.
type CaptureConfig struct {
	// Source selects the audio source: "wavfile" replays a recorded file,
	// "none" disables capture. Empty means "none".
	Source string `yaml:"source"`

	// WavFile is the file replayed when Source is "wavfile".
	WavFile string `yaml:"wav_file"`

	// ClipDuration bounds each recording window. Zero means 6s.
	ClipDuration time.Duration `yaml:"clip_duration"`
}

// FilterConfig tunes the transcript filter thresholds. The defaults are
// deliberately aggressive against echo; raise them only with care.
type FilterConfig struct {
	// EchoThreshold is the Jaccard similarity above which a transcript is
	// rejected as an echo of the interviewer's question. Zero means 0.10.
	EchoThreshold float64 `yaml:"echo_threshold"`

	// OverlapThreshold is the content-word overlap ratio above which a
	// transcript is rejected. Zero means 0.50.
	OverlapThreshold float64 `yaml:"overlap_threshold"`
}

// StoreConfig configures local session-record persistence.
type StoreConfig struct {
	// Dir is the directory holding session summaries and interview results.
	// Empty disables persistence.
	Dir string `yaml:"dir"`
}
