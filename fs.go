package asar

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sync/atomic"

	"github.com/meigma/asar/internal/archive"
	"github.com/meigma/asar/internal/asartype"
	"github.com/meigma/asar/internal/classify"
	"github.com/meigma/asar/internal/handle"
	"github.com/meigma/asar/internal/index"
	"github.com/meigma/asar/internal/integrity"
	"github.com/meigma/asar/loop"
)

// FS overlays archives on the real filesystem.
//
// Paths that fall inside an archive are served from the archive; every
// other path, and every path while no-archive mode is on, goes to the os
// package unchanged. FS is safe for concurrent use.
type FS struct {
	logger      *slog.Logger
	loop        *loop.Loop
	verify      bool
	maxSymlinks int
	suffix      string
	noArchive   atomic.Bool

	classifier *classify.Classifier
	cache      *archive.Cache
	files      *handle.Table[*File]
}

// New creates an FS.
func New(opts ...Option) *FS {
	f := &FS{}
	for _, opt := range opts {
		opt(f)
	}
	if f.maxSymlinks < 1 {
		f.maxSymlinks = index.DefaultMaxSymlinks
	}
	if f.loop == nil {
		f.loop = loop.New(loop.WithLogger(f.logger))
	}
	f.cache = archive.NewCache(f.maxSymlinks, f.logger)
	f.classifier = classify.New(f.suffix, f.isArchiveFile)
	f.files = handle.NewTable[*File]()
	return f
}

// log returns the logger, falling back to a discard logger if nil.
func (f *FS) log() *slog.Logger {
	if f.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return f.logger
}

// isArchiveFile consults the archive cache before the filesystem.
func (f *FS) isArchiveFile(p string) bool {
	return f.cache.Cached(p) || classify.RegularFile(p)
}

// Loop returns the event loop that delivers async completions.
func (f *FS) Loop() *loop.Loop {
	return f.loop
}

// SetNoArchive turns no-archive mode on or off. It takes effect on the
// next call.
func (f *FS) SetNoArchive(enabled bool) {
	f.noArchive.Store(enabled)
}

// NoArchive reports whether no-archive mode is on.
func (f *FS) NoArchive() bool {
	return f.noArchive.Load()
}

// Close closes every open file and every cached archive.
func (f *FS) Close() error {
	var errs []error
	for _, file := range f.files.Drain() {
		if err := file.release(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := f.cache.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// target is a path that classified into an archive.
type target struct {
	arc   *archive.Archive
	inner string
	root  bool
}

// unpackedPath maps a canonical inner path into the unpacked sibling.
func (t *target) unpackedPath(canonical string) string {
	return t.arc.UnpackedPath(canonical)
}

func (t *target) info(res index.Resolved) *entryInfo {
	return newEntryInfo(t.arc.Path(), res.Path, res.Node, t.arc.Info().ModTime())
}

// locate classifies name. ok is false when the real filesystem should
// handle it.
func (f *FS) locate(op, name string) (t *target, ok bool, err error) {
	if f.noArchive.Load() {
		return nil, false, nil
	}
	abs, err := filepath.Abs(name)
	if err != nil {
		return nil, false, &fs.PathError{Op: op, Path: name, Err: err}
	}
	res := f.classifier.Classify(abs)
	if !res.IsArchive() {
		return nil, false, nil
	}
	arc, err := f.cache.Get(res.Archive)
	if err != nil {
		return nil, false, &fs.PathError{Op: op, Path: name, Err: err}
	}
	return &target{arc: arc, inner: res.Inner, root: res.Kind == classify.ArchiveRoot}, true, nil
}

// resolve locates and resolves name. ok is false when the real
// filesystem should handle it.
func (f *FS) resolve(op, name string, follow bool) (*target, index.Resolved, bool, error) {
	t, ok, err := f.locate(op, name)
	if err != nil || !ok {
		return nil, index.Resolved{}, ok, err
	}
	res, err := t.arc.Index().Resolve(t.inner, follow)
	if err != nil {
		return nil, index.Resolved{}, true, &fs.PathError{Op: op, Path: name, Err: err}
	}
	return t, res, true, nil
}

func pathErr(op, name string, err error) error {
	return &fs.PathError{Op: op, Path: name, Err: err}
}

// IsArchive reports whether name is an archive file or a path inside one.
// It is always false while no-archive mode is on.
func (f *FS) IsArchive(name string) bool {
	if f.noArchive.Load() {
		return false
	}
	abs, err := filepath.Abs(name)
	if err != nil {
		return false
	}
	return f.classifier.Classify(abs).IsArchive()
}

// Stat returns file info for name, following symlinks.
//
// Packed entries get synthetic info whose Sys method returns *EntryInfo.
// Unpacked files report the stat of their real file.
func (f *FS) Stat(name string) (fs.FileInfo, error) {
	t, res, ok, err := f.resolve("stat", name, true)
	if err != nil {
		return nil, err
	}
	if !ok {
		return os.Stat(name)
	}
	if res.Node.IsFile() && res.Node.Unpacked {
		return os.Stat(t.unpackedPath(res.Path))
	}
	return t.info(res), nil
}

// Lstat is like Stat but does not follow a symlink in the final position.
func (f *FS) Lstat(name string) (fs.FileInfo, error) {
	t, ok, err := f.locate("lstat", name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return os.Lstat(name)
	}
	if t.root {
		// The archive file may itself be a real symlink.
		if info, err := os.Lstat(name); err == nil && info.Mode()&fs.ModeSymlink != 0 {
			return info, nil
		}
	}
	res, err := t.arc.Index().Resolve(t.inner, false)
	if err != nil {
		return nil, pathErr("lstat", name, err)
	}
	if res.Node.IsFile() && res.Node.Unpacked {
		return os.Lstat(t.unpackedPath(res.Path))
	}
	return t.info(res), nil
}

// ReadDir lists a directory. Archive directories are listed in header order.
func (f *FS) ReadDir(name string) ([]fs.DirEntry, error) {
	t, res, ok, err := f.resolve("readdir", name, true)
	if err != nil {
		return nil, err
	}
	if !ok {
		return os.ReadDir(name)
	}
	if !res.Node.IsDir() {
		return nil, pathErr("readdir", name, ErrNotDir)
	}
	modTime := t.arc.Info().ModTime()
	entries := make([]fs.DirEntry, 0, res.Node.Len())
	for child, n := range res.Node.Children() {
		info := newEntryInfo(t.arc.Path(), path.Join(res.Path, child), n, modTime)
		entries = append(entries, &dirEntry{info: info})
	}
	return entries, nil
}

// ReadFile reads the whole file.
//
// With WithVerifyIntegrity, packed content is checked against the header's
// integrity record and a mismatch fails with ErrIntegrity.
func (f *FS) ReadFile(name string) ([]byte, error) {
	t, res, ok, err := f.resolve("read", name, true)
	if err != nil {
		return nil, err
	}
	if !ok {
		return os.ReadFile(name)
	}
	n := res.Node
	if n.IsDir() {
		return nil, pathErr("read", name, ErrIsDir)
	}
	if n.Unpacked {
		return os.ReadFile(t.unpackedPath(res.Path))
	}
	content, err := t.arc.ReadEntry(n)
	if err != nil {
		return nil, pathErr("read", name, err)
	}
	if f.verify && n.Integrity != nil {
		if err := n.Integrity.Verify(content); err != nil {
			f.log().Warn("integrity check failed", "path", name, "error", err)
			return nil, pathErr("read", name, integrityErr(err))
		}
	}
	return content, nil
}

func integrityErr(err error) error {
	if errors.Is(err, integrity.ErrMismatch) {
		return fmt.Errorf("%w: %w", ErrIntegrity, err)
	}
	return fmt.Errorf("%w: %w", ErrArchiveCorrupt, err)
}

// WriteFile writes data to name.
//
// Inside an archive only unpacked files are writable. Packed files fail
// with ErrPermission and missing entries with ErrNotDir, since nothing can
// be created inside an archive.
func (f *FS) WriteFile(name string, data []byte, perm fs.FileMode) error {
	t, ok, err := f.locate("write", name)
	if err != nil {
		return err
	}
	if !ok || t.root {
		return os.WriteFile(name, data, perm)
	}
	res, err := t.arc.Index().Resolve(t.inner, true)
	switch {
	case errors.Is(err, asartype.ErrNotFound):
		return pathErr("write", name, ErrNotDir)
	case err != nil:
		return pathErr("write", name, err)
	}
	switch {
	case res.Node.IsDir():
		return pathErr("write", name, ErrIsDir)
	case !res.Node.Unpacked:
		return pathErr("write", name, ErrPermission)
	}
	return os.WriteFile(t.unpackedPath(res.Path), data, perm)
}

// Readlink returns the target of a symlink. Archive links return their
// target as stored; other archive entries fail with ErrInvalid.
func (f *FS) Readlink(name string) (string, error) {
	t, ok, err := f.locate("readlink", name)
	if err != nil {
		return "", err
	}
	if !ok || t.root {
		return os.Readlink(name)
	}
	res, err := t.arc.Index().Resolve(t.inner, false)
	if err != nil {
		return "", pathErr("readlink", name, err)
	}
	if !res.Node.IsLink() {
		return "", pathErr("readlink", name, ErrInvalid)
	}
	return res.Node.Link, nil
}

// Mkdir creates a directory. Any path inside an archive fails with
// ErrNotDir whether or not the entry exists; the archive path itself goes
// to the real filesystem.
func (f *FS) Mkdir(name string, perm fs.FileMode) error {
	t, ok, err := f.locate("mkdir", name)
	if err != nil {
		return err
	}
	if !ok || t.root {
		return os.Mkdir(name, perm)
	}
	return pathErr("mkdir", name, ErrNotDir)
}

// MkdirAll is like os.MkdirAll with the archive rules of Mkdir.
func (f *FS) MkdirAll(name string, perm fs.FileMode) error {
	t, ok, err := f.locate("mkdir", name)
	if err != nil {
		return err
	}
	if !ok || t.root {
		return os.MkdirAll(name, perm)
	}
	return pathErr("mkdir", name, ErrNotDir)
}

// Remove removes a file or empty directory. Entries inside an archive
// cannot be removed and fail with ErrNotDir.
func (f *FS) Remove(name string) error {
	t, ok, err := f.locate("remove", name)
	if err != nil {
		return err
	}
	if !ok || t.root {
		return os.Remove(name)
	}
	return pathErr("remove", name, ErrNotDir)
}

// Exists reports whether name resolves to anything.
func (f *FS) Exists(name string) bool {
	_, err := f.Stat(name)
	return err == nil
}
