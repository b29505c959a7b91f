package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

// resetGlobalLevel undoes the global level change made by Setup.
func resetGlobalLevel(t *testing.T) {
	t.Helper()
	prev := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })
}

func TestConfigFromEnv(t *testing.T) {
	tests := []struct {
		name       string
		level      string
		pretty     string
		wantLevel  zerolog.Level
		wantPretty bool
	}{
		{name: "unset", wantLevel: zerolog.InfoLevel},
		{name: "debug", level: "debug", wantLevel: zerolog.DebugLevel},
		{name: "upper case", level: "WARN", wantLevel: zerolog.WarnLevel},
		{name: "warning alias", level: "warning", wantLevel: zerolog.WarnLevel},
		{name: "error", level: "error", wantLevel: zerolog.ErrorLevel},
		{name: "unknown level", level: "verbose", wantLevel: zerolog.InfoLevel},
		{name: "pretty true", pretty: "true", wantLevel: zerolog.InfoLevel, wantPretty: true},
		{name: "pretty numeric", pretty: "1", wantLevel: zerolog.InfoLevel, wantPretty: true},
		{name: "pretty false", pretty: "false", wantLevel: zerolog.InfoLevel},
		{name: "pretty garbage", pretty: "maybe", wantLevel: zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("LOG_LEVEL", tt.level)
			t.Setenv("LOG_PRETTY", tt.pretty)

			cfg := ConfigFromEnv()
			if got := parseLevel(cfg.Level); got != tt.wantLevel {
				t.Errorf("level = %v, want %v", got, tt.wantLevel)
			}
			if cfg.Pretty != tt.wantPretty {
				t.Errorf("pretty = %v, want %v", cfg.Pretty, tt.wantPretty)
			}
		})
	}
}

func TestConfigFromEnv_FiltersOutput(t *testing.T) {
	resetGlobalLevel(t)
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("LOG_PRETTY", "")

	buf := &bytes.Buffer{}
	cfg := ConfigFromEnv()
	cfg.Output = buf
	Setup(cfg)

	logger := NewLogger("pagination")
	logger.Warn().Msg("page skipped")
	logger.Error().Str("path", "/pms/units").Msg("fetch failed")

	output := buf.String()
	if strings.Contains(output, "page skipped") {
		t.Errorf("Expected warn to be filtered at LOG_LEVEL=error, got %q", output)
	}
	if !strings.Contains(output, `"component":"pagination"`) || !strings.Contains(output, `"path":"/pms/units"`) {
		t.Errorf("Expected JSON error line with fields, got %q", output)
	}
}

func TestConfigFromEnv_PrettyOutput(t *testing.T) {
	resetGlobalLevel(t)
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("LOG_PRETTY", "true")

	buf := &bytes.Buffer{}
	cfg := ConfigFromEnv()
	cfg.Output = buf
	Setup(cfg)

	NewLogger("pms-proxy").Info().Str("collection", "units").Msg("collected")

	output := buf.String()
	if strings.HasPrefix(strings.TrimSpace(output), "{") {
		t.Errorf("Expected console output, got JSON %q", output)
	}
	if !strings.Contains(output, "collection=") || !strings.Contains(output, "units") {
		t.Errorf("Expected console field, got %q", output)
	}
}

func TestSetup_NilOutputFallsBack(t *testing.T) {
	resetGlobalLevel(t)

	// Must not panic on a zero Config.
	logger := Setup(Config{})
	if logger.GetLevel() != zerolog.TraceLevel {
		t.Errorf("Expected logger to defer to the global level, got %v", logger.GetLevel())
	}
	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Errorf("global level = %v, want info", zerolog.GlobalLevel())
	}
}
