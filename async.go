package asar

import (
	"io/fs"

	"github.com/meigma/asar/loop"
)

// The async variants run the matching synchronous call in the background
// and deliver the result to cb on a later turn of the FS's loop (see
// FS.Loop and WithLoop). cb is never called from inside the registering
// call, even when the result is already known. Errors are delivered to cb.

// StatAsync is the async form of Stat.
func (f *FS) StatAsync(name string, cb func(fs.FileInfo, error)) {
	loop.Do(f.loop, func() (fs.FileInfo, error) { return f.Stat(name) }, cb)
}

// LstatAsync is the async form of Lstat.
func (f *FS) LstatAsync(name string, cb func(fs.FileInfo, error)) {
	loop.Do(f.loop, func() (fs.FileInfo, error) { return f.Lstat(name) }, cb)
}

// ReadDirAsync is the async form of ReadDir.
func (f *FS) ReadDirAsync(name string, cb func([]fs.DirEntry, error)) {
	loop.Do(f.loop, func() ([]fs.DirEntry, error) { return f.ReadDir(name) }, cb)
}

// ReadFileAsync is the async form of ReadFile.
func (f *FS) ReadFileAsync(name string, cb func([]byte, error)) {
	loop.Do(f.loop, func() ([]byte, error) { return f.ReadFile(name) }, cb)
}

// RealpathAsync is the async form of Realpath.
func (f *FS) RealpathAsync(name string, cb func(string, error)) {
	loop.Do(f.loop, func() (string, error) { return f.Realpath(name) }, cb)
}

// AccessAsync is the async form of Access.
func (f *FS) AccessAsync(name string, mode uint32, cb func(error)) {
	loop.Do(f.loop, func() (struct{}, error) {
		return struct{}{}, f.Access(name, mode)
	}, func(_ struct{}, err error) { cb(err) })
}

// OpenAsync opens name and delivers the new file's descriptor.
func (f *FS) OpenAsync(name string, flag int, perm fs.FileMode, cb func(fd int, err error)) {
	loop.Do(f.loop, func() (int, error) {
		file, err := f.OpenFile(name, flag, perm)
		if err != nil {
			return -1, err
		}
		return file.Fd(), nil
	}, cb)
}

// ReadAsync reads from the file's current offset into p. Reads issued on
// the same descriptor complete in issue order.
func (f *FS) ReadAsync(fd int, p []byte, cb func(n int, err error)) {
	file, err := f.File(fd)
	if err != nil {
		loop.Do(f.loop, func() (int, error) { return 0, err }, cb)
		return
	}
	loop.DoOn(file.serial(), func() (int, error) { return file.Read(p) }, cb)
}

// PreadAsync reads at off without moving the file offset.
func (f *FS) PreadAsync(fd int, p []byte, off int64, cb func(n int, err error)) {
	file, err := f.File(fd)
	if err != nil {
		loop.Do(f.loop, func() (int, error) { return 0, err }, cb)
		return
	}
	loop.DoOn(file.serial(), func() (int, error) { return file.ReadAt(p, off) }, cb)
}

// CloseAsync closes fd after every operation already queued on it.
func (f *FS) CloseAsync(fd int, cb func(error)) {
	done := func(_ struct{}, err error) { cb(err) }
	file, err := f.File(fd)
	if err != nil {
		loop.Do(f.loop, func() (struct{}, error) { return struct{}{}, err }, done)
		return
	}
	loop.DoOn(file.serial(), func() (struct{}, error) { return struct{}{}, file.Close() }, done)
}
