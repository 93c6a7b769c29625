package config_test

import (
	"testing"

	"github.com/prepwell/intervox/internal/config"
)

func TestLogLevel_IsValid(t *testing.T) {
	t.Parallel()
	for _, l := range []config.LogLevel{config.LogDebug, config.LogInfo, config.LogWarn, config.LogError} {
		if !l.IsValid() {
			t.Errorf("%q should be valid", l)
		}
	}
	for _, l := range []config.LogLevel{"", "loud", "trace"} {
		if l.IsValid() {
			t.Errorf("%q should be invalid", l)
		}
	}
}

func TestMode_IsValid(t *testing.T) {
	t.Parallel()
	if !config.ModeResume.IsValid() || !config.ModeTechnical.IsValid() {
		t.Error("built-in modes should be valid")
	}
	if config.Mode("behavioral").IsValid() {
		t.Error("unknown mode should be invalid")
	}
}
