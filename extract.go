package asar

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/meigma/asar/internal/index"
)

// extractConfig holds configuration for Extract.
type extractConfig struct {
	overwrite bool
	workers   int
	progress  ProgressFunc
	logger    *slog.Logger
}

// ExtractOption configures Extract.
type ExtractOption func(*extractConfig)

// ExtractWithOverwrite replaces files and links that already exist.
// By default, existing paths are left untouched.
func ExtractWithOverwrite(overwrite bool) ExtractOption {
	return func(cfg *extractConfig) {
		cfg.overwrite = overwrite
	}
}

// ExtractWithWorkers sets how many files are written concurrently.
// Values < 1 use GOMAXPROCS.
func ExtractWithWorkers(n int) ExtractOption {
	return func(cfg *extractConfig) {
		cfg.workers = n
	}
}

// ExtractWithProgress sets a callback for progress updates.
// The callback may be invoked from multiple goroutines.
func ExtractWithProgress(fn ProgressFunc) ExtractOption {
	return func(cfg *extractConfig) {
		cfg.progress = fn
	}
}

// ExtractWithLogger sets the logger for extraction.
// If not set, logging is disabled.
func ExtractWithLogger(logger *slog.Logger) ExtractOption {
	return func(cfg *extractConfig) {
		cfg.logger = logger
	}
}

type extractFile struct {
	inner string
	res   index.Resolved
}

// Extract writes the whole archive tree below destDir.
//
// Directories and symlinks are recreated, executable files get mode 0755
// and other files 0644. Unpacked files are copied from the sibling
// directory. Content is verified against its integrity record before it
// is written.
func (a *Archive) Extract(ctx context.Context, destDir string, opts ...ExtractOption) error {
	cfg := extractConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.workers < 1 {
		cfg.workers = runtime.GOMAXPROCS(0)
	}
	logger := cfg.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("create destination: %w", err)
	}
	root, err := os.OpenRoot(destDir)
	if err != nil {
		return err
	}
	defer root.Close()

	var files []extractFile
	err = a.arc.Index().Walk(func(inner string, n *index.Node) error {
		rel := filepath.FromSlash(inner)
		switch n.Kind {
		case index.KindDir:
			return root.MkdirAll(rel, 0o755)
		case index.KindLink:
			return extractLink(root, rel, n.Link, cfg.overwrite)
		default:
			files = append(files, extractFile{inner: inner, res: index.Resolved{Node: n, Path: inner}})
			return nil
		}
	})
	if err != nil {
		return err
	}

	logger.Info("extracting archive", "archive", a.Path(), "dest", destDir, "files", len(files))

	var done atomic.Int64
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(cfg.workers)
	for _, f := range files {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			written, err := a.extractFile(root, f, cfg.overwrite)
			if err != nil {
				return err
			}
			if !written {
				logger.Debug("skipped existing file", "path", f.inner)
			}
			n := int(done.Add(1))
			if cfg.progress != nil {
				cfg.progress(ProgressEvent{
					Stage:      StageExtracting,
					Path:       f.inner,
					BytesDone:  f.res.Node.Size,
					BytesTotal: f.res.Node.Size,
					FilesDone:  n,
					FilesTotal: len(files),
				})
			}
			return nil
		})
	}
	return eg.Wait()
}

func (a *Archive) extractFile(root *os.Root, f extractFile, overwrite bool) (bool, error) {
	rel := filepath.FromSlash(f.inner)
	if !overwrite {
		if _, err := root.Lstat(rel); err == nil {
			return false, nil
		}
	}
	content, err := a.readNode(f.inner, f.res)
	if err != nil {
		return false, err
	}
	mode := fs.FileMode(0o644)
	if f.res.Node.Executable {
		mode = 0o755
	}
	if err := root.WriteFile(rel, content, mode); err != nil {
		return false, err
	}
	return true, root.Chmod(rel, mode)
}

func extractLink(root *os.Root, rel, target string, overwrite bool) error {
	if _, err := root.Lstat(rel); err == nil {
		if !overwrite {
			return nil
		}
		if err := root.Remove(rel); err != nil {
			return err
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return root.Symlink(filepath.FromSlash(target), rel)
}
