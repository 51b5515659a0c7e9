package asar

import (
	"io"
	"io/fs"
	"os"
	"path"

	"github.com/meigma/asar/internal/archive"
	"github.com/meigma/asar/internal/handle"
	"github.com/meigma/asar/internal/index"
)

// Archive gives direct read access to one archive file, without the
// path overlay. Inner paths are slash-separated and relative to the
// archive root; "" and "." name the root.
//
// Content read through Archive is always checked against the integrity
// records in the header.
type Archive struct {
	arc *archive.Archive
}

// OpenArchive opens and decodes the archive at path.
func OpenArchive(path string) (*Archive, error) {
	arc, err := archive.Open(path, 0)
	if err != nil {
		return nil, err
	}
	return &Archive{arc: arc}, nil
}

// Path returns the archive file path.
func (a *Archive) Path() string {
	return a.arc.Path()
}

// Header returns the raw JSON header document.
func (a *Archive) Header() []byte {
	return a.arc.Header().JSON
}

// DataOffset returns the file offset at which packed content starts.
func (a *Archive) DataOffset() int64 {
	return a.arc.Header().DataOffset
}

// UnpackedDir returns the sibling directory that holds unpacked files.
func (a *Archive) UnpackedDir() string {
	return a.arc.UnpackedDir()
}

// Close closes the archive file.
func (a *Archive) Close() error {
	return a.arc.Close()
}

func (a *Archive) resolve(op, inner string, follow bool) (index.Resolved, error) {
	if inner == "." {
		inner = ""
	}
	res, err := a.arc.Index().Resolve(inner, follow)
	if err != nil {
		return index.Resolved{}, pathErr(op, inner, err)
	}
	return res, nil
}

func (a *Archive) info(res index.Resolved) fs.FileInfo {
	return newEntryInfo(a.arc.Path(), res.Path, res.Node, a.arc.Info().ModTime())
}

// Stat returns info for inner, following symlinks.
func (a *Archive) Stat(inner string) (fs.FileInfo, error) {
	res, err := a.resolve("stat", inner, true)
	if err != nil {
		return nil, err
	}
	return a.info(res), nil
}

// Lstat returns info for inner without following a final symlink.
func (a *Archive) Lstat(inner string) (fs.FileInfo, error) {
	res, err := a.resolve("lstat", inner, false)
	if err != nil {
		return nil, err
	}
	return a.info(res), nil
}

// Realpath returns the canonical inner path of inner.
func (a *Archive) Realpath(inner string) (string, error) {
	res, err := a.resolve("realpath", inner, true)
	if err != nil {
		return "", err
	}
	return res.Path, nil
}

// ReadDir lists a directory in header order.
func (a *Archive) ReadDir(inner string) ([]fs.DirEntry, error) {
	res, err := a.resolve("readdir", inner, true)
	if err != nil {
		return nil, err
	}
	if !res.Node.IsDir() {
		return nil, pathErr("readdir", inner, ErrNotDir)
	}
	modTime := a.arc.Info().ModTime()
	out := make([]fs.DirEntry, 0, res.Node.Len())
	for name, n := range res.Node.Children() {
		out = append(out, &dirEntry{info: newEntryInfo(a.arc.Path(), path.Join(res.Path, name), n, modTime)})
	}
	return out, nil
}

// ReadFile returns the content of a file, reading unpacked files from the
// sibling directory.
func (a *Archive) ReadFile(inner string) ([]byte, error) {
	res, err := a.resolve("read", inner, true)
	if err != nil {
		return nil, err
	}
	return a.readNode(inner, res)
}

// EntryReader reads the content of one file entry.
type EntryReader interface {
	io.ReadSeekCloser
	io.ReaderAt
	Size() int64
}

// Open returns a reader over the file at inner, following symlinks.
// Unlike ReadFile, reads through the returned reader are not checked
// against the integrity record.
func (a *Archive) Open(inner string) (EntryReader, error) {
	res, err := a.resolve("open", inner, true)
	if err != nil {
		return nil, err
	}
	n := res.Node
	if n.IsDir() {
		return nil, pathErr("open", inner, ErrIsDir)
	}
	if !n.Unpacked {
		virt, err := a.arc.OpenEntry(n)
		if err != nil {
			return nil, pathErr("open", inner, err)
		}
		return virt, nil
	}

	osf, err := os.Open(a.arc.UnpackedPath(res.Path))
	if err != nil {
		return nil, err
	}
	info, err := osf.Stat()
	if err != nil {
		osf.Close()
		return nil, err
	}
	return handle.NewVirtual(osf, 0, info.Size(), func() { osf.Close() }), nil
}

func (a *Archive) readNode(name string, res index.Resolved) ([]byte, error) {
	n := res.Node
	if n.IsDir() {
		return nil, pathErr("read", name, ErrIsDir)
	}
	var (
		content []byte
		err     error
	)
	if n.Unpacked {
		content, err = os.ReadFile(a.arc.UnpackedPath(res.Path))
		if err != nil {
			return nil, err
		}
	} else {
		content, err = a.arc.ReadEntry(n)
		if err != nil {
			return nil, pathErr("read", name, err)
		}
	}
	if n.Integrity != nil {
		if err := n.Integrity.Verify(content); err != nil {
			return nil, pathErr("read", name, integrityErr(err))
		}
	}
	return content, nil
}

// Walk visits every entry in depth-first header order. Symlinks are
// reported, not followed. Returning fs.SkipAll stops the walk without
// error.
func (a *Archive) Walk(fn func(inner string, info fs.FileInfo) error) error {
	modTime := a.arc.Info().ModTime()
	err := a.arc.Index().Walk(func(inner string, n *index.Node) error {
		return fn(inner, newEntryInfo(a.arc.Path(), inner, n, modTime))
	})
	if err == fs.SkipAll {
		return nil
	}
	return err
}
