package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestInitWriterLevels(t *testing.T) {
	tests := []struct {
		level     string
		debugSeen bool
		infoSeen  bool
		warnSeen  bool
	}{
		{"debug", true, true, true},
		{"info", false, true, true},
		{"warn", false, false, true},
		{"error", false, false, false},
		{"bogus", false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			InitWriter(&buf, tt.level, "json")

			Debug("debug %d", 1)
			Info("info %d", 2)
			Warn("warn %d", 3)

			out := buf.String()
			if got := strings.Contains(out, "debug 1"); got != tt.debugSeen {
				t.Errorf("debug visible = %v, want %v", got, tt.debugSeen)
			}
			if got := strings.Contains(out, "info 2"); got != tt.infoSeen {
				t.Errorf("info visible = %v, want %v", got, tt.infoSeen)
			}
			if got := strings.Contains(out, "warn 3"); got != tt.warnSeen {
				t.Errorf("warn visible = %v, want %v", got, tt.warnSeen)
			}
		})
	}
}

func TestInitWriterJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, "info", "json")

	Error("poll failed: %s", "timeout")

	out := buf.String()
	if !strings.Contains(out, `"level":"error"`) {
		t.Errorf("expected JSON level field, got %q", out)
	}
	if !strings.Contains(out, `"message":"poll failed: timeout"`) {
		t.Errorf("expected formatted message, got %q", out)
	}
}

func TestInitWriterTextFormat(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, "info", "text")

	Info("listener started")

	out := buf.String()
	if strings.Contains(out, `"level"`) {
		t.Errorf("text format should not emit JSON, got %q", out)
	}
	if !strings.Contains(out, "listener started") {
		t.Errorf("expected message in output, got %q", out)
	}
}
