package asar

import (
	"log/slog"

	"github.com/meigma/asar/loop"
)

// Option configures an FS.
type Option func(*FS)

// WithLogger sets the logger for archive loads, cache hits and handle events.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(f *FS) {
		f.logger = logger
	}
}

// WithNoArchive sets the initial state of no-archive mode. While it is on,
// every path is handled by the real filesystem.
//
// Pair it with NoArchiveFromEnv to honor ASAR_NO_ARCHIVE.
func WithNoArchive(enabled bool) Option {
	return func(f *FS) {
		f.noArchive.Store(enabled)
	}
}

// WithLoop sets the event loop that delivers async completions.
// If not set, New creates one; retrieve it with FS.Loop.
func WithLoop(l *loop.Loop) Option {
	return func(f *FS) {
		f.loop = l
	}
}

// WithVerifyIntegrity controls whether ReadFile checks packed content
// against the integrity record in the archive header. Entries without a
// record are returned unchecked. Default: false.
func WithVerifyIntegrity(enabled bool) Option {
	return func(f *FS) {
		f.verify = enabled
	}
}

// WithMaxSymlinks bounds how many symlinks one resolution may expand.
// Values < 1 use the default of 40.
func WithMaxSymlinks(n int) Option {
	return func(f *FS) {
		f.maxSymlinks = n
	}
}

// WithSuffix sets the file name suffix that marks an archive. Default: ".asar".
func WithSuffix(suffix string) Option {
	return func(f *FS) {
		f.suffix = suffix
	}
}
