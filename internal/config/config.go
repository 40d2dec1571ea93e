package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.msgr/config.toml.
type Config struct {
	APIBaseURL     string  `toml:"api_base_url"`
	RealtimeURL    string  `toml:"realtime_url"`
	DefaultProfile string  `toml:"default_profile"`
	Display        Display `toml:"display"`
}

// Display holds cosmetic preferences cached for convenience. They are not
// authoritative and never leave the local machine.
type Display struct {
	Theme          string  `toml:"theme"`
	ChatBackground string  `toml:"chat_background"`
	BackgroundBlur float64 `toml:"background_blur"`
}

// Default returns a config pointed at the public MessenjrAli deployment.
func Default() *Config {
	return &Config{
		APIBaseURL:  "https://api.messenjrali.com",
		RealtimeURL: "wss://rt.messenjrali.com/ws",
		Display: Display{
			Theme: "dark",
		},
	}
}

// Load reads config from the given path. Returns nil and an error if the
// file is missing or malformed.
func Load(path string) (*Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, err
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = Default().APIBaseURL
	}
	if cfg.RealtimeURL == "" {
		cfg.RealtimeURL = Default().RealtimeURL
	}
	return &cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
