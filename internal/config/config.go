// Package config loads the optional asar CLI configuration file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/meigma/asar"
)

// Config represents the optional asar configuration file.
type Config struct {
	Defaults DefaultsConfig `toml:"defaults"`
	Pack     PackConfig     `toml:"pack"`
}

// DefaultsConfig holds persistent flag defaults.
type DefaultsConfig struct {
	NoArchive   *bool   `toml:"no_archive"`
	Verify      *bool   `toml:"verify"`
	LogLevel    *string `toml:"log_level"`
	MaxSymlinks *int    `toml:"max_symlinks"`
	Workers     *int    `toml:"workers"`
}

// PackConfig holds defaults for the pack command.
type PackConfig struct {
	Unpack    []string `toml:"unpack"`
	UnpackDir []string `toml:"unpack_dir"`
}

// Path returns the resolved path to the config file.
func Path() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "asar", "config.toml")
}

// Load reads the config file from the XDG path. Returns a zero Config
// (no error) if the file does not exist.
func Load() (Config, error) {
	path := Path()
	if path == "" {
		return Config{}, nil
	}
	return LoadFile(path)
}

// LoadFile reads the config file at path. A missing file yields a zero
// Config.
func LoadFile(path string) (Config, error) {
	var cfg Config
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return cfg, nil
}

// NoArchive reports whether archive support should be disabled.
// A non-empty ASAR_NO_ARCHIVE environment variable wins over the file.
func (c Config) NoArchive() bool {
	if os.Getenv(asar.NoArchiveEnv) != "" {
		return asar.NoArchiveFromEnv()
	}
	if c.Defaults.NoArchive != nil {
		return *c.Defaults.NoArchive
	}
	return false
}

// Verify reports whether reads should be checked against integrity
// records. Defaults to false.
func (c Config) Verify() bool {
	return c.Defaults.Verify != nil && *c.Defaults.Verify
}

// MaxSymlinks returns the configured symlink budget, or 0 for the library
// default.
func (c Config) MaxSymlinks() int {
	if c.Defaults.MaxSymlinks == nil {
		return 0
	}
	return *c.Defaults.MaxSymlinks
}

// Workers returns the configured extraction concurrency, or 0 for the
// library default.
func (c Config) Workers() int {
	if c.Defaults.Workers == nil {
		return 0
	}
	return *c.Defaults.Workers
}

// LogLevel returns the configured log level, defaulting to warn.
func (c Config) LogLevel() (slog.Level, error) {
	if c.Defaults.LogLevel == nil {
		return slog.LevelWarn, nil
	}
	return ParseLevel(*c.Defaults.LogLevel)
}

// ParseLevel parses a level name such as "debug" or "warn".
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}
