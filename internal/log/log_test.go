package log

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"warning", LevelWarn},
		{"ERROR", LevelError},
		{"bogus", LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelWarn, Output: &buf, Prefix: "test"})

	l.Debug("not shown")
	l.Info("not shown")
	l.Warn("shown %d", 1)
	l.Error("shown too")

	out := buf.String()
	if strings.Contains(out, "not shown") {
		t.Errorf("low-level messages leaked: %q", out)
	}
	if !strings.Contains(out, "[WARN] test: shown 1") {
		t.Errorf("warn line missing: %q", out)
	}
	if !strings.Contains(out, "[ERROR] test: shown too") {
		t.Errorf("error line missing: %q", out)
	}
}

func TestLogger_WithPrefix(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelDebug, Output: &buf})

	l.WithPrefix("presets").Info("loaded")

	if !strings.Contains(buf.String(), "presets: loaded") {
		t.Errorf("prefix missing: %q", buf.String())
	}
}

func TestNullLogger(t *testing.T) {
	// Must not panic and must write nothing.
	Null.Error("dropped")
}
