// Package config loads and saves the daemon's JSON configuration from
// ~/.config/wallpaperd/config.json.
package config

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
)

// Config holds daemon-wide defaults applied when a request doesn't
// override them.
type Config struct {
	// DefaultFilter names the resampling filter used when a client
	// request omits one. Must be one of resize.Filter's names.
	DefaultFilter string `json:"defaultFilter"`
	// DefaultStep is the transition step size in [1,255].
	DefaultStep uint8 `json:"defaultStep"`
	// DefaultPeriodMs is the transition frame period in milliseconds.
	DefaultPeriodMs int `json:"defaultPeriodMs"`
	// SocketPath overrides the default Unix socket location when non-empty.
	SocketPath string `json:"socketPath"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DefaultFilter:   "Triangle",
		DefaultStep:     8,
		DefaultPeriodMs: 16,
	}
}

// Load loads configuration from ~/.config/wallpaperd/config.json. If the
// file doesn't exist, it returns the default config. Other read or parse
// errors are returned to the caller.
func Load() (*Config, error) {
	cfg := Default()

	configDir, err := os.UserConfigDir()
	if err != nil {
		log.Printf("config: failed to get user config dir: %v", err)
		return cfg, nil
	}

	configPath := filepath.Join(configDir, "wallpaperd", "config.json")

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("config: no config file at %s, using defaults", configPath)
			return cfg, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	log.Printf("config: loaded from %s", configPath)
	return cfg, nil
}

// Save writes the configuration to ~/.config/wallpaperd/config.json,
// creating the directory if necessary.
func (c *Config) Save() error {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return err
	}

	dir := filepath.Join(configDir, "wallpaperd")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	configPath := filepath.Join(dir, "config.json")

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return err
	}

	log.Printf("config: saved to %s", configPath)
	return nil
}

// SocketPathOr returns c.SocketPath if set, otherwise fallback.
func (c *Config) SocketPathOr(fallback string) string {
	if c.SocketPath != "" {
		return c.SocketPath
	}
	return fallback
}
