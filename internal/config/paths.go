package config

import (
	"os"
	"path/filepath"
)

// CredentialsDir returns the credential directory inside the data dir.
func (c *Config) CredentialsDir() string {
	return filepath.Join(c.DataDir, "credentials")
}

// MediaDir returns the directory downloaded media is written to.
func (c *Config) MediaDir() string {
	return filepath.Join(c.DataDir, "media")
}

// LogDir returns the log directory.
func (c *Config) LogDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// LogPath returns the daemon log file path.
func (c *Config) LogPath() string {
	return filepath.Join(c.LogDir(), "wagated.log")
}

// Path returns the config file path inside the data dir.
func (c *Config) Path() string {
	return filepath.Join(c.DataDir, "config.toml")
}

// EnsureDirs creates the data directory tree with owner-only permissions.
func (c *Config) EnsureDirs() error {
	dirs := []string{
		c.DataDir,
		c.CredentialsDir(),
		c.MediaDir(),
		c.LogDir(),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
