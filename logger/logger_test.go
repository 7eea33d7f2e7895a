package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"superengulfing/config"
)

// go test -v --run TestNewWritesRotatedFile
func TestNewWritesRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "app.log")

	log, err := New(config.LogConfig{Level: "info", Format: "json", OutputFile: path, Environment: "prod"}, "scanner")
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	log.Info("scan finished")
	log.Debug("filtered out")
	_ = log.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 log line, got %d: %q", len(lines), data)
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["msg"] != "scan finished" || entry["service"] != "scanner" {
		t.Errorf("unexpected entry: %v", entry)
	}
}

// go test -v --run TestNewInvalidLevel
func TestNewInvalidLevel(t *testing.T) {
	if _, err := New(config.LogConfig{Level: "loud"}, ""); err == nil {
		t.Fatal("expected error for invalid level")
	}
}
