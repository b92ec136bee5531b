package util

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

// saveLoggerState saves the current logger state for restoration
func saveLoggerState() (io.Writer, logrus.Level, logrus.Formatter) {
	return Logger.Out, Logger.Level, Logger.Formatter
}

// restoreLoggerState restores the logger to its previous state
func restoreLoggerState(out io.Writer, level logrus.Level, formatter logrus.Formatter) {
	Logger.SetOutput(out)
	Logger.SetLevel(level)
	Logger.SetFormatter(formatter)
}

func TestSetLogLevel(t *testing.T) {
	out, level, formatter := saveLoggerState()
	defer restoreLoggerState(out, level, formatter)

	tests := []struct {
		level   string
		wantErr bool
	}{
		{"debug", false},
		{"info", false},
		{"warn", false},
		{"warning", false},
		{"error", false},
		{"invalid", true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			err := SetLogLevel(tt.level)
			if (err != nil) != tt.wantErr {
				t.Errorf("SetLogLevel(%q) error = %v, wantErr %v", tt.level, err, tt.wantErr)
			}
		})
	}
}

func TestSetJSONFormat(t *testing.T) {
	out, level, formatter := saveLoggerState()
	defer restoreLoggerState(out, level, formatter)

	var buf bytes.Buffer
	SetLogOutput(&buf)
	SetLogLevel("info")
	SetJSONFormat()

	WithRun("run-1").Info("test json")

	output := buf.String()
	if len(output) == 0 || output[0] != '{' {
		t.Fatalf("Expected JSON output starting with '{', got: %s", output)
	}
	if !strings.Contains(output, `"run":"run-1"`) {
		t.Errorf("Expected run field in output: %s", output)
	}
}

func TestSetLogFile(t *testing.T) {
	out, level, formatter := saveLoggerState()
	defer restoreLoggerState(out, level, formatter)

	path := filepath.Join(t.TempDir(), "newtcc.log")
	if err := os.WriteFile(path, []byte("stale\n"), 0644); err != nil {
		t.Fatal(err)
	}

	closer, err := SetLogFile(path, false)
	if err != nil {
		t.Fatalf("SetLogFile: %v", err)
	}
	SetLogLevel("info")
	Infof("written to %s", "file")
	closer.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "stale") {
		t.Error("file should have been truncated")
	}
	if !strings.Contains(string(data), "written to file") {
		t.Errorf("expected log line in file, got: %s", data)
	}
}

func TestScopedEntries(t *testing.T) {
	tests := []struct {
		entry *logrus.Entry
		key   string
		value string
	}{
		{WithDevice("10.0.0.1"), "device", "10.0.0.1"},
		{WithSite("Global/USA/SAN-JOSE"), "site", "Global/USA/SAN-JOSE"},
		{WithRun("abc"), "run", "abc"},
		{WithOperation("add_fabric_devices"), "operation", "add_fabric_devices"},
		{WithField("k", "v"), "k", "v"},
	}
	for _, tt := range tests {
		if got := tt.entry.Data[tt.key]; got != tt.value {
			t.Errorf("entry field %s = %v, want %s", tt.key, got, tt.value)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	out, level, formatter := saveLoggerState()
	defer restoreLoggerState(out, level, formatter)

	var buf bytes.Buffer
	SetLogOutput(&buf)
	SetLogLevel("warn")

	Debugf("debug %d", 1)
	Infof("info %d", 2)
	if buf.Len() != 0 {
		t.Errorf("debug/info should be filtered at warn level, got: %s", buf.String())
	}

	Warnf("warn %d", 3)
	Errorf("error %d", 4)
	if !strings.Contains(buf.String(), "warn 3") || !strings.Contains(buf.String(), "error 4") {
		t.Errorf("expected warn and error output, got: %s", buf.String())
	}
}
