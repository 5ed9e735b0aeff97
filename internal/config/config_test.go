package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return configPath
}

func TestLoadValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
strix:
  log:
    level: "debug"
    format: "json"
  metrics:
    enabled: true
    listen: "0.0.0.0:9091"
  parser:
    buffer_capacity: 32768
    max_body_bytes: 16384
  source:
    type: "tcp"
    options:
      listen: ":7400"
      read_chunk: 4096
  sink:
    type: "console"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("Expected log level debug, got %s", cfg.Log.Level)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("Expected log format json, got %s", cfg.Log.Format)
	}
	if cfg.Parser.BufferCapacity != 32768 {
		t.Errorf("Expected buffer capacity 32768, got %d", cfg.Parser.BufferCapacity)
	}
	if cfg.Parser.MaxBodyBytes != 16384 {
		t.Errorf("Expected max body bytes 16384, got %d", cfg.Parser.MaxBodyBytes)
	}
	if cfg.Source.Type != "tcp" {
		t.Errorf("Expected source type tcp, got %s", cfg.Source.Type)
	}
	if got, ok := cfg.Source.Options["listen"].(string); !ok || got != ":7400" {
		t.Errorf("Expected source option listen :7400, got %v", cfg.Source.Options["listen"])
	}
	if cfg.Sink.Type != "console" {
		t.Errorf("Expected sink type console, got %s", cfg.Sink.Type)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	configPath := writeConfig(t, `
strix:
  source:
    type: "file"
    options:
      path: "/tmp/stream.bin"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Log.Level != "info" {
		t.Errorf("Expected default log level info, got %s", cfg.Log.Level)
	}
	if cfg.Log.Format != "text" {
		t.Errorf("Expected default log format text, got %s", cfg.Log.Format)
	}
	if cfg.Parser.BufferCapacity != 64*1024 {
		t.Errorf("Expected default buffer capacity 65536, got %d", cfg.Parser.BufferCapacity)
	}
	if !cfg.Metrics.Enabled {
		t.Error("Expected metrics enabled by default")
	}
	if cfg.Sink.Type != "console" {
		t.Errorf("Expected default sink console, got %s", cfg.Sink.Type)
	}
}

func TestLoadInvalidLogLevel(t *testing.T) {
	configPath := writeConfig(t, `
strix:
  log:
    level: "loud"
`)

	if _, err := Load(configPath); err == nil {
		t.Error("Expected error for invalid log level, got nil")
	}
}

func TestLoadInvalidLogFormat(t *testing.T) {
	configPath := writeConfig(t, `
strix:
  log:
    format: "xml"
`)

	if _, err := Load(configPath); err == nil {
		t.Error("Expected error for invalid log format, got nil")
	}
}

func TestLoadRejectsNonPowerOfTwoCapacity(t *testing.T) {
	for _, capacity := range []string{"0", "-8", "1000", "65537"} {
		configPath := writeConfig(t, `
strix:
  parser:
    buffer_capacity: `+capacity+`
`)
		if _, err := Load(configPath); err == nil {
			t.Errorf("Expected error for buffer_capacity %s, got nil", capacity)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("Expected error for missing config file, got nil")
	}
}
