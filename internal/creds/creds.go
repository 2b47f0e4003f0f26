// Package creds manages the on-disk credential directory as an opaque
// unit: created on demand before a connection attempt, destroyed as a whole
// when the network forces a logout.
package creds

import (
	"fmt"
	"os"
	"path/filepath"
)

const containerFile = "session.db"

// Store scopes the credential directory.
type Store struct {
	dir string
}

// NewStore creates a store over the given directory.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Ensure creates the credential directory if it does not exist yet.
func (s *Store) Ensure() error {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("create credential dir: %w", err)
	}
	return nil
}

// ContainerPath returns the path of the sqlite credential container the
// transport library owns.
func (s *Store) ContainerPath() string {
	return filepath.Join(s.dir, containerFile)
}

// Exists reports whether any credentials have been persisted.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.ContainerPath())
	return err == nil
}

// Wipe destroys the credential directory and recreates it empty, forcing
// the next connection attempt into pairing.
func (s *Store) Wipe() error {
	if err := os.RemoveAll(s.dir); err != nil {
		return fmt.Errorf("wipe credential dir: %w", err)
	}
	return s.Ensure()
}
