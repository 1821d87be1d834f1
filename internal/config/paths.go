package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths contains the local storage locations for persisted loader state.
// This is the single source of truth for file paths in the application.
type Paths struct {
	DataDir   string
	PrefsFile string
	KeyFile   string
	LogsDir   string
}

// GetPaths resolves the application paths. When dataDir is empty the
// per-user config directory is used (e.g. ~/.config/bearloader on Linux).
func GetPaths(dataDir string) (*Paths, error) {
	if dataDir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve user config dir: %w", err)
		}
		dataDir = filepath.Join(base, "bearloader")
	}

	return &Paths{
		DataDir:   dataDir,
		PrefsFile: filepath.Join(dataDir, "prefs.json"),
		KeyFile:   filepath.Join(dataDir, "session.key"),
		LogsDir:   filepath.Join(dataDir, "logs"),
	}, nil
}

// EnsureDirectories creates the required directories with owner-only access
func (p *Paths) EnsureDirectories() error {
	for _, dir := range []string{p.DataDir, p.LogsDir} {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// FileExists reports whether the given path exists and is a regular file
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
