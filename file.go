package asar

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"sync"
	"sync/atomic"

	"github.com/meigma/asar/internal/asartype"
	"github.com/meigma/asar/internal/handle"
	"github.com/meigma/asar/loop"
)

// writeFlags are the open flags that require a writable file.
const writeFlags = os.O_WRONLY | os.O_RDWR | os.O_APPEND | os.O_TRUNC

// File is an open file returned by FS.Open and FS.OpenFile.
//
// Packed entries are read through a bounded window of the archive; reads
// never cross into neighboring entries. Unpacked entries and real paths are
// backed by an *os.File.
type File struct {
	name string
	fd   int
	fsys *FS

	virt *handle.Virtual
	info fs.FileInfo
	real *os.File

	queueOnce sync.Once
	queue     *loop.Queue
	closed    atomic.Bool
}

// Interface compliance.
var (
	_ fs.File           = (*File)(nil)
	_ io.ReadSeekCloser = (*File)(nil)
	_ io.ReaderAt       = (*File)(nil)
	_ io.Writer         = (*File)(nil)
)

// Open opens name for reading.
func (f *FS) Open(name string) (*File, error) {
	return f.OpenFile(name, os.O_RDONLY, 0)
}

// OpenFile opens name with the given flags.
//
// Packed entries open read-only; write flags fail with ErrPermission.
// Directories inside an archive, including its root, fail with ErrIsDir,
// and O_CREATE of a missing entry fails with ErrNotDir.
func (f *FS) OpenFile(name string, flag int, perm fs.FileMode) (*File, error) {
	t, ok, err := f.locate("open", name)
	if err != nil {
		return nil, err
	}
	if !ok {
		osf, err := os.OpenFile(name, flag, perm)
		if err != nil {
			return nil, err
		}
		return f.register(&File{name: name, real: osf}), nil
	}

	res, err := t.arc.Index().Resolve(t.inner, true)
	if err != nil {
		if flag&os.O_CREATE != 0 && errors.Is(err, asartype.ErrNotFound) {
			err = ErrNotDir
		}
		return nil, pathErr("open", name, err)
	}
	n := res.Node
	if n.IsDir() {
		return nil, pathErr("open", name, ErrIsDir)
	}
	if n.Unpacked {
		osf, err := os.OpenFile(t.unpackedPath(res.Path), flag, perm)
		if err != nil {
			return nil, err
		}
		return f.register(&File{name: name, real: osf}), nil
	}
	if flag&writeFlags != 0 {
		return nil, pathErr("open", name, ErrPermission)
	}
	if flag&(os.O_CREATE|os.O_EXCL) == os.O_CREATE|os.O_EXCL {
		return nil, pathErr("open", name, fs.ErrExist)
	}

	virt, err := t.arc.OpenEntry(n)
	if err != nil {
		return nil, pathErr("open", name, err)
	}
	file := f.register(&File{name: name, virt: virt, info: t.info(res)})
	f.log().Debug("open packed entry",
		"path", name,
		"fd", file.fd,
		"archive", t.arc.Path(),
		"size", n.Size)
	return file, nil
}

func (f *FS) register(file *File) *File {
	file.fsys = f
	file.fd = f.files.Insert(file)
	return file
}

// File returns the open file registered under fd.
func (f *FS) File(fd int) (*File, error) {
	file, err := f.files.Get(fd)
	if err != nil {
		return nil, pathErr("fd", "", err)
	}
	return file, nil
}

// OpenFiles returns the number of files opened through f and not yet closed.
func (f *FS) OpenFiles() int {
	return f.files.Len()
}

// Name returns the name the file was opened with.
func (file *File) Name() string {
	return file.name
}

// Fd returns the descriptor under which the file is registered with its FS.
// It is not an OS descriptor; use it with the FS fd-based async calls.
func (file *File) Fd() int {
	return file.fd
}

// Packed reports whether the file is served from an archive's data region.
func (file *File) Packed() bool {
	return file.virt != nil
}

// Read reads up to len(p) bytes and advances the file offset. A packed
// file returns a short read at the end of its entry and io.EOF past it.
func (file *File) Read(p []byte) (int, error) {
	if file.closed.Load() {
		return 0, pathErr("read", file.name, ErrBadFD)
	}
	if file.virt != nil {
		n, err := file.virt.Read(p)
		return n, file.wrap("read", err)
	}
	return file.real.Read(p)
}

// ReadAt reads at off without moving the file offset.
func (file *File) ReadAt(p []byte, off int64) (int, error) {
	if file.closed.Load() {
		return 0, pathErr("read", file.name, ErrBadFD)
	}
	if file.virt != nil {
		n, err := file.virt.ReadAt(p, off)
		return n, file.wrap("read", err)
	}
	return file.real.ReadAt(p, off)
}

// Seek sets the offset for the next Read.
func (file *File) Seek(offset int64, whence int) (int64, error) {
	if file.closed.Load() {
		return 0, pathErr("seek", file.name, ErrBadFD)
	}
	if file.virt != nil {
		pos, err := file.virt.Seek(offset, whence)
		return pos, file.wrap("seek", err)
	}
	return file.real.Seek(offset, whence)
}

// Write writes to an unpacked or real file. Packed files fail with
// ErrPermission.
func (file *File) Write(p []byte) (int, error) {
	if file.closed.Load() {
		return 0, pathErr("write", file.name, ErrBadFD)
	}
	if file.virt != nil {
		return 0, pathErr("write", file.name, ErrPermission)
	}
	return file.real.Write(p)
}

// Stat returns the file's info.
func (file *File) Stat() (fs.FileInfo, error) {
	if file.closed.Load() {
		return nil, pathErr("stat", file.name, ErrBadFD)
	}
	if file.virt != nil {
		return file.info, nil
	}
	return file.real.Stat()
}

// Close closes the file and releases its descriptor. Closing twice fails
// with ErrBadFD.
func (file *File) Close() error {
	if !file.closed.CompareAndSwap(false, true) {
		return pathErr("close", file.name, ErrBadFD)
	}
	_, _ = file.fsys.files.Remove(file.fd) //nolint:errcheck // only FS.Close drains the table
	file.fsys.log().Debug("close", "path", file.name, "fd", file.fd)
	return file.closeHandle()
}

// release closes the file on FS teardown, after its fd was drained.
func (file *File) release() error {
	if !file.closed.CompareAndSwap(false, true) {
		return nil
	}
	return file.closeHandle()
}

func (file *File) closeHandle() error {
	if file.virt != nil {
		return file.virt.Close()
	}
	return file.real.Close()
}

// serial returns the queue that orders async operations on this file.
func (file *File) serial() *loop.Queue {
	file.queueOnce.Do(func() {
		file.queue = file.fsys.loop.NewQueue()
	})
	return file.queue
}

// wrap turns handle errors into path errors, leaving io.EOF bare.
func (file *File) wrap(op string, err error) error {
	if err == nil || err == io.EOF {
		return err
	}
	return pathErr(op, file.name, err)
}
