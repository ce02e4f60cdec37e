package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const AppSlug = "songbook"

// Config holds everything a catalog run needs besides the scan root.
type Config struct {
	DBPath          string        `yaml:"db"`
	StripComponents int           `yaml:"strip_components"`
	Extension       string        `yaml:"extension"`
	KeepFailed      bool          `yaml:"keep_failed"`
	Watch           bool          `yaml:"watch"`
	Debounce        time.Duration `yaml:"debounce"`
	LogLevel        string        `yaml:"log_level"`
	NoColor         bool          `yaml:"no_color"`
}

func DefaultConfig() Config {
	return Config{
		Extension: ".txt",
		Debounce:  2 * time.Second,
		LogLevel:  "info",
	}
}

// LoadFile reads a YAML config on top of the defaults. An empty path
// searches the standard locations and yields the defaults when none exists;
// an explicit path must exist.
func LoadFile(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = FindConfigFile()
		if path == "" {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(ExpandHome(path))
	if err != nil {
		return cfg, fmt.Errorf("read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config file %s: %w", path, err)
	}

	cfg.DBPath = ExpandHome(cfg.DBPath)

	return cfg, nil
}

// FindConfigFile returns the first existing config file in the search
// order, or "" if there is none.
func FindConfigFile() string {
	locations := []string{"./songbook.yaml", "./songbook.yml"}
	if paths, err := userPaths(AppSlug); err == nil {
		locations = append(locations, paths.ConfigFile)
	}
	locations = append(locations, filepath.Join(homeDir(), ".songbook.yaml"))

	for _, path := range locations {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

func ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir(), path[2:])
	}
	return path
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.Getenv("HOME")
	}
	return home
}

func (c *Config) Validate() error {
	if c.StripComponents < 0 {
		return fmt.Errorf("strip_components must not be negative, got %d", c.StripComponents)
	}
	if strings.TrimSpace(c.Extension) == "" {
		return errors.New("extension cannot be empty")
	}
	if !strings.HasPrefix(c.Extension, ".") {
		c.Extension = "." + c.Extension
	}
	if strings.ContainsRune(c.Extension, filepath.Separator) {
		return fmt.Errorf("extension %q must not contain a path separator", c.Extension)
	}
	if c.Watch && c.Debounce <= 0 {
		return fmt.Errorf("debounce must be positive in watch mode, got %s", c.Debounce)
	}

	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown log_level %q, valid levels: debug, info, warn, error", c.LogLevel)
	}

	return nil
}
