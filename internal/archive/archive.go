// Package archive opens archive files and keeps their decoded headers.
package archive

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/meigma/asar/internal/asartype"
	"github.com/meigma/asar/internal/handle"
	"github.com/meigma/asar/internal/header"
	"github.com/meigma/asar/internal/index"
	"github.com/meigma/asar/internal/sizing"
)

// UnpackedSuffix is appended to an archive path to name the directory that
// holds its unpacked files.
const UnpackedSuffix = ".unpacked"

// Archive is an open archive file with its decoded header.
//
// The header is decoded once and never changes afterwards, even if the
// file on disk is rewritten. Archive is safe for concurrent use.
type Archive struct {
	path   string
	file   *os.File
	info   fs.FileInfo
	header *header.Header
	index  *index.Index

	handles   atomic.Int64
	closeOnce sync.Once
	closeErr  error
}

// Open opens the archive at path and decodes its header.
//
// maxSymlinks bounds symlink resolution inside the archive; zero means
// index.DefaultMaxSymlinks.
func Open(path string, maxSymlinks int) (*Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if !info.Mode().IsRegular() {
		f.Close()
		return nil, fmt.Errorf("%s: %w: not a regular file", path, asartype.ErrArchiveCorrupt)
	}
	h, err := header.Decode(f, info.Size())
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &Archive{
		path:   path,
		file:   f,
		info:   info,
		header: h,
		index:  index.New(h.Root, maxSymlinks),
	}, nil
}

// Path returns the path the archive was opened with.
func (a *Archive) Path() string {
	return a.path
}

// Info returns the stat of the archive file taken when it was opened.
func (a *Archive) Info() fs.FileInfo {
	return a.info
}

// Header returns the decoded header.
func (a *Archive) Header() *header.Header {
	return a.header
}

// Index returns the entry index.
func (a *Archive) Index() *index.Index {
	return a.index
}

// UnpackedDir returns the sibling directory holding unpacked files.
func (a *Archive) UnpackedDir() string {
	return a.path + UnpackedSuffix
}

// UnpackedPath maps an inner path to its location in the unpacked sibling.
func (a *Archive) UnpackedPath(inner string) string {
	return filepath.Join(a.UnpackedDir(), filepath.FromSlash(inner))
}

// OpenEntry returns a bounded reader over a packed file's bytes.
func (a *Archive) OpenEntry(n *index.Node) (*handle.Virtual, error) {
	base, size, err := a.window(n)
	if err != nil {
		return nil, err
	}
	a.handles.Add(1)
	return handle.NewVirtual(a.file, base, size, func() { a.handles.Add(-1) }), nil
}

// ReadEntry returns the full content of a packed file.
func (a *Archive) ReadEntry(n *index.Node) ([]byte, error) {
	base, size, err := a.window(n)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, size)
	read, err := a.file.ReadAt(buf, base)
	if errors.Is(err, io.EOF) && int64(read) == size {
		err = nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", a.path, err)
	}
	return buf, nil
}

// window returns the absolute byte range of a packed file.
func (a *Archive) window(n *index.Node) (base, size int64, err error) {
	if n == nil || !n.IsFile() {
		return 0, 0, asartype.ErrIsDir
	}
	if n.Unpacked {
		return 0, 0, asartype.ErrInvalid
	}
	off, err := sizing.ToInt64(n.Offset, asartype.ErrSizeOverflow)
	if err != nil {
		return 0, 0, err
	}
	size, err = sizing.ToInt64(n.Size, asartype.ErrSizeOverflow)
	if err != nil {
		return 0, 0, err
	}
	return a.header.DataOffset + off, size, nil
}

// Handles returns the number of entry readers not yet closed.
func (a *Archive) Handles() int64 {
	return a.handles.Load()
}

// Close closes the archive file. Entry readers still open fail afterwards.
func (a *Archive) Close() error {
	a.closeOnce.Do(func() {
		a.closeErr = a.file.Close()
	})
	return a.closeErr
}
