package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNew_Levels(t *testing.T) {
	tests := []struct {
		level string
		want  logrus.Level
	}{
		{"", logrus.InfoLevel},
		{"debug", logrus.DebugLevel},
		{"warn", logrus.WarnLevel},
		{"ERROR", logrus.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger, err := New(Options{Level: tt.level, Output: &bytes.Buffer{}})
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			if logger.GetLevel() != tt.want {
				t.Errorf("Level = %v, want %v", logger.GetLevel(), tt.want)
			}
		})
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	if _, err := New(Options{Level: "loud"}); err == nil {
		t.Error("Expected error for invalid level")
	}
}

func TestNew_WritesFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Output: &buf, NoColors: true})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	logger.WithFields(Fields{"tile_id": 7}).Warn("detector failed on tile")
	logger.Debug("hidden at info level")

	out := buf.String()
	if !strings.Contains(out, "detector failed on tile") || !strings.Contains(out, "tile_id:7") {
		t.Errorf("Unexpected output: %q", out)
	}
	if strings.Contains(out, "hidden") {
		t.Error("Debug entry should be filtered at info level")
	}
	if strings.Contains(out, "\x1b[") {
		t.Error("NoColors output should not contain ANSI escapes")
	}
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "takeoff.log")
	logger, err := New(Options{File: path, Output: &bytes.Buffer{}, NoColors: true})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	logger.Info("page processed")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Log file not written: %v", err)
	}
	if !strings.Contains(string(data), "page processed") {
		t.Errorf("Log file missing entry: %q", data)
	}
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	logger.Error("nothing should happen")
}
