package asar

import "log/slog"

// createConfig holds configuration for archive creation.
type createConfig struct {
	unpack    []string
	unpackDir []string
	progress  ProgressFunc
	logger    *slog.Logger
	blockSize int
}

// CreateOption configures archive creation.
type CreateOption func(*createConfig)

// CreateWithUnpack stores files matching any of the globs in the unpacked
// sibling directory instead of the archive. A glob without a slash is
// matched against the file's base name, otherwise against its path
// relative to the source directory. "**" matches any number of
// directories, so "**/*.node" selects .node files at any depth.
func CreateWithUnpack(globs ...string) CreateOption {
	return func(cfg *createConfig) {
		cfg.unpack = append(cfg.unpack, globs...)
	}
}

// CreateWithUnpackDir stores every file below directories matching any of
// the globs in the unpacked sibling directory. Matching follows the rules
// of CreateWithUnpack.
func CreateWithUnpackDir(globs ...string) CreateOption {
	return func(cfg *createConfig) {
		cfg.unpackDir = append(cfg.unpackDir, globs...)
	}
}

// CreateWithProgress sets a callback for progress updates during creation.
// The callback is invoked synchronously; keep it fast.
func CreateWithProgress(fn ProgressFunc) CreateOption {
	return func(cfg *createConfig) {
		cfg.progress = fn
	}
}

// CreateWithLogger sets the logger for archive creation.
// If not set, logging is disabled.
func CreateWithLogger(logger *slog.Logger) CreateOption {
	return func(cfg *createConfig) {
		cfg.logger = logger
	}
}

// CreateWithBlockSize sets the block size of the integrity records.
// Values < 1 use the default of 4 MiB.
func CreateWithBlockSize(n int) CreateOption {
	return func(cfg *createConfig) {
		cfg.blockSize = n
	}
}
