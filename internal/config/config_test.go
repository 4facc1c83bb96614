package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.LogLevel != "info" {
		t.Fatalf("expected info log level, got %q", cfg.LogLevel)
	}
	if cfg.ChannelCapacity != 8 {
		t.Fatalf("expected default capacity 8, got %d", cfg.ChannelCapacity)
	}
	if cfg.Encoder != "raw" {
		t.Fatalf("expected raw encoder, got %q", cfg.Encoder)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte("log_level: debug\nchannel_capacity: 4\nencoder: h264\npreview:\n  enabled: true\n  port: 9000\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.LogLevel != "debug" || cfg.ChannelCapacity != 4 || cfg.Encoder != "h264" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if !cfg.Preview.Enabled || cfg.Preview.Port != 9000 {
		t.Fatalf("preview values not applied: %+v", cfg.Preview)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]Config{
		"zero capacity":   {ChannelCapacity: 0, Encoder: "raw"},
		"unknown encoder": {ChannelCapacity: 4, Encoder: "vp9"},
		"bad preview port": {
			ChannelCapacity: 4, Encoder: "raw",
			Preview: PreviewConfig{Enabled: true, Port: -1},
		},
	}
	for name, cfg := range cases {
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestWriteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Defaults()
	cfg.LogLevel = "warn"

	if err := cfg.Write(path); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.LogLevel != "warn" {
		t.Fatalf("expected warn, got %q", loaded.LogLevel)
	}
}
