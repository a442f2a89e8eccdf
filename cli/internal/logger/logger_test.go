package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"loud", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNew_levelFilter(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := New(&buf, "warn")
	log.Info("quiet")
	log.Warn("loud")
	out := buf.String()
	if strings.Contains(out, "quiet") {
		t.Error("info record should be filtered at warn level")
	}
	if !strings.Contains(out, "loud") {
		t.Error("warn record should pass at warn level")
	}
}

func TestWithSession(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := WithSession(New(&buf, "info"), "abc-123")
	log.Info("hello")
	if !strings.Contains(buf.String(), "session=abc-123") {
		t.Errorf("record should carry the session attribute: %q", buf.String())
	}
}

func TestNop(t *testing.T) {
	t.Parallel()
	// Must not panic and must stay silent.
	Nop().Error("dropped")
}
