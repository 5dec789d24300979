package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"bogus", zapcore.InfoLevel},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewEmptyLevelIsSilent(t *testing.T) {
	l, err := New("")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if l.Core().Enabled(zapcore.ErrorLevel) {
		t.Error("empty level should produce a no-op logger")
	}
}

func TestHexDump(t *testing.T) {
	if got := hexDump([]byte{0xFE, 0x09, 0x02}); got != "fe 09 02" {
		t.Errorf("hexDump() = %q, want %q", got, "fe 09 02")
	}
	if got := hexDump(nil); got != "" {
		t.Errorf("hexDump(nil) = %q, want empty", got)
	}
}

func TestGetLoggerDefault(t *testing.T) {
	SetLogger(nil)
	if GetLogger() == nil {
		t.Fatal("GetLogger() should never return nil")
	}
}

func TestInitializeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "qiyicube.log")
	if err := InitializeFile("info", path); err != nil {
		t.Fatalf("InitializeFile() error = %v", err)
	}
	defer SetLogger(nil)

	Info("cube connected")
	GetLogger().Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "cube connected") {
		t.Errorf("log file = %q", data)
	}
}
