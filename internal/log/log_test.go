package log

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := Logger
	Logger = log.NewWithOptions(&buf, log.Options{Level: log.InfoLevel})
	t.Cleanup(func() {
		Logger = prev
	})
	return &buf
}

func TestSetLevelFromString(t *testing.T) {
	captureOutput(t)

	tests := []struct {
		input string
		ok    bool
		want  log.Level
	}{
		{"debug", true, log.DebugLevel},
		{"WARN", true, log.WarnLevel},
		{"", false, log.WarnLevel},
		{"loud", false, log.WarnLevel},
	}

	for _, tt := range tests {
		if got := SetLevelFromString(tt.input); got != tt.ok {
			t.Errorf("SetLevelFromString(%q) = %v, want %v", tt.input, got, tt.ok)
		}
		if Logger.GetLevel() != tt.want {
			t.Errorf("after %q level = %v, want %v", tt.input, Logger.GetLevel(), tt.want)
		}
	}
}

func TestCloseError(t *testing.T) {
	buf := captureOutput(t)
	SetLevel(log.InfoLevel)

	CloseError("db", nil)
	if buf.Len() != 0 {
		t.Errorf("expected no output for nil error, got %q", buf.String())
	}

	CloseError("db", errors.New("boom"))
	out := buf.String()
	if !strings.Contains(out, "failed to close resource") || !strings.Contains(out, "boom") {
		t.Errorf("unexpected close error output: %q", out)
	}
}
