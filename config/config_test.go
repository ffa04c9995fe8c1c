package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("HOME", dir)

	cfg := Default()
	cfg.DefaultFilter = "Lanczos3"
	cfg.DefaultStep = 3
	cfg.DefaultPeriodMs = 33
	cfg.SocketPath = "/tmp/custom.sock"

	if err := cfg.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if *got != *cfg {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, cfg)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("HOME", dir)

	got, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if *got != *Default() {
		t.Fatalf("expected defaults, got %+v", got)
	}
}

func TestSocketPathOr(t *testing.T) {
	cfg := Default()
	if got := cfg.SocketPathOr("/fallback"); got != "/fallback" {
		t.Fatalf("expected fallback, got %q", got)
	}
	cfg.SocketPath = "/explicit"
	if got := cfg.SocketPathOr("/fallback"); got != "/explicit" {
		t.Fatalf("expected explicit override, got %q", got)
	}
}

func TestLoadPropagatesParseError(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("HOME", dir)

	confDir := filepath.Join(dir, "wallpaperd")
	if err := os.MkdirAll(confDir, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(confDir, "config.json"), []byte("not json"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := Load(); err == nil {
		t.Fatalf("expected a parse error")
	}
}
