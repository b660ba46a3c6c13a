package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// DataDirEnv overrides the data directory.
const DataDirEnv = "AIPM_DATA_DIR"

// ErrNoDataDir is returned when no data directory can be determined.
var ErrNoDataDir = errors.New("no data directory: set AIPM_DATA_DIR or HOME")

// ResolveDataDir picks the data directory in priority order: AIPM_DATA_DIR,
// $XDG_DATA_HOME/aipm, ~/Library/Application Support/aipm when that
// directory already exists, then ~/.local/share/aipm.
func ResolveDataDir() (string, error) {
	if dir := os.Getenv(DataDirEnv); dir != "" {
		return dir, nil
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "aipm"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "", ErrNoDataDir
	}
	mac := filepath.Join(home, "Library", "Application Support", "aipm")
	if info, err := os.Stat(mac); err == nil && info.IsDir() {
		return mac, nil
	}
	return filepath.Join(home, ".local", "share", "aipm"), nil
}

// EnsureDataDir resolves the data directory and creates it if needed.
func EnsureDataDir() (string, error) {
	dir, err := ResolveDataDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating data directory %s: %w", dir, err)
	}
	return dir, nil
}
