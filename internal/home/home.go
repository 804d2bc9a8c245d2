// Package home resolves the kitab home directory layout.
package home

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default name for the kitab home directory.
	DefaultDirName = ".kitab"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"

	// DatabaseFileName is the SQLite page store.
	DatabaseFileName = "kitab.db"
)

// Dir represents the kitab home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.kitab).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// DatabasePath returns the SQLite page store path.
func (d *Dir) DatabasePath() string {
	return filepath.Join(d.path, DatabaseFileName)
}

// DefraDataPath returns the DefraDB data directory mounted into the container.
func (d *Dir) DefraDataPath() string {
	return filepath.Join(d.path, "defradb")
}

// ScratchDir holds per-call page images and audio segments. Nothing in it
// outlives the call that created it.
func (d *Dir) ScratchDir() string {
	return filepath.Join(d.path, "scratch")
}

// ExportsDir returns the directory for exported documents.
func (d *Dir) ExportsDir() string {
	return filepath.Join(d.path, "exports")
}

// AudioDir returns the directory for narrated audio.
func (d *Dir) AudioDir() string {
	return filepath.Join(d.path, "audio")
}

// EnsureExists creates the home directory and its subdirectories.
func (d *Dir) EnsureExists() error {
	for _, dir := range []string{d.ScratchDir(), d.ExportsDir(), d.AudioDir(), d.DefraDataPath()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}
