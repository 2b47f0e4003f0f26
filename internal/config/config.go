package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the gateway configuration, read from <data-dir>/config.toml.
// Zero values fall back to defaults.
type Config struct {
	DataDir string `toml:"data_dir"`

	// ReconnectDelayMs is the backoff after a transient close.
	ReconnectDelayMs int `toml:"reconnect_delay_ms"`
	// LoggedOutDelayMs is the longer delay before re-entering pairing after
	// a forced logout wiped the credentials.
	LoggedOutDelayMs int `toml:"logged_out_delay_ms"`

	// RawRetention bounds the raw-event side table used for media download.
	RawRetention int `toml:"raw_retention"`

	// BulkDelayMs is the default inter-message pacing for bulk sends when
	// the caller passes none.
	BulkDelayMs int `toml:"bulk_delay_ms"`
}

// Default returns the built-in configuration.
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		DataDir:          filepath.Join(home, ".wagate"),
		ReconnectDelayMs: 3000,
		LoggedOutDelayMs: 1000,
		RawRetention:     4096,
		BulkDelayMs:      2000,
	}
}

// Load reads config from path, applying defaults for absent fields. A
// missing file yields the defaults without error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// Save writes config to path, creating parent dirs as needed.
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

func (c *Config) applyDefaults() {
	d := Default()
	if c.DataDir == "" {
		c.DataDir = d.DataDir
	}
	if c.ReconnectDelayMs <= 0 {
		c.ReconnectDelayMs = d.ReconnectDelayMs
	}
	if c.LoggedOutDelayMs <= 0 {
		c.LoggedOutDelayMs = d.LoggedOutDelayMs
	}
	if c.RawRetention <= 0 {
		c.RawRetention = d.RawRetention
	}
	if c.BulkDelayMs <= 0 {
		c.BulkDelayMs = d.BulkDelayMs
	}
}

// ReconnectDelay returns the transient-close backoff as a duration.
func (c *Config) ReconnectDelay() time.Duration {
	return time.Duration(c.ReconnectDelayMs) * time.Millisecond
}

// LoggedOutDelay returns the post-logout delay as a duration.
func (c *Config) LoggedOutDelay() time.Duration {
	return time.Duration(c.LoggedOutDelayMs) * time.Millisecond
}

// BulkDelay returns the inter-message bulk pacing as a duration.
func (c *Config) BulkDelay() time.Duration {
	return time.Duration(c.BulkDelayMs) * time.Millisecond
}
