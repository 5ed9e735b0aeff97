package log

import (
	"testing"

	"firestige.xyz/strix/internal/config"
)

func TestInitValidConfig(t *testing.T) {
	err := Init(config.LogConfig{Level: "debug", Format: "json"})
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if !GetLogger().IsDebugEnabled() {
		t.Error("Expected debug level to be enabled")
	}
}

func TestInitInvalidLevel(t *testing.T) {
	if err := Init(config.LogConfig{Level: "shout", Format: "text"}); err == nil {
		t.Error("Expected error for unknown level, got nil")
	}
}

func TestInitInvalidFormat(t *testing.T) {
	if err := Init(config.LogConfig{Level: "info", Format: "xml"}); err == nil {
		t.Error("Expected error for unknown format, got nil")
	}
}

func TestWithFieldReturnsChildLogger(t *testing.T) {
	if err := Init(config.LogConfig{Level: "info", Format: "text"}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	child := GetLogger().WithField("stream", "test")
	if child == nil {
		t.Fatal("WithField returned nil")
	}
	// Must not mutate the parent.
	if GetLogger() == child {
		t.Error("WithField must return a derived logger")
	}
}
