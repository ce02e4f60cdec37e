package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths are the per-user locations songbook reads and writes by default.
type Paths struct {
	BaseDir    string
	DBPath     string
	ConfigFile string
}

func userPaths(appSlug string) (Paths, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return Paths{}, fmt.Errorf("resolve user config dir: %w", err)
	}

	baseDir := filepath.Join(configDir, appSlug)
	return Paths{
		BaseDir:    baseDir,
		DBPath:     filepath.Join(baseDir, "catalog.db"),
		ConfigFile: filepath.Join(baseDir, "config.yaml"),
	}, nil
}

// ResolvePaths is userPaths plus creating the base directory, for callers
// that are about to write the default catalog.
func ResolvePaths(appSlug string) (Paths, error) {
	paths, err := userPaths(appSlug)
	if err != nil {
		return Paths{}, err
	}

	if err := os.MkdirAll(paths.BaseDir, 0o755); err != nil {
		return Paths{}, fmt.Errorf("create app data dir: %w", err)
	}

	return paths, nil
}
