package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want log.Level
	}{
		{"debug", log.DebugLevel},
		{"WARN", log.WarnLevel},
		{" error ", log.ErrorLevel},
		{"", log.InfoLevel},
		{"chatty", log.InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestComponentTagsOutput(t *testing.T) {
	var buf bytes.Buffer
	l := Component(New(&buf, "info"), "scheduler")
	l.Info("tick")

	out := buf.String()
	if !strings.Contains(out, "component=scheduler") {
		t.Errorf("output %q missing component tag", out)
	}
}

func TestLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "warn")
	l.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("info written at warn level: %q", buf.String())
	}
	l.Warn("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("warn not written: %q", buf.String())
	}
}
