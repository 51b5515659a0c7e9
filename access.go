package asar

import (
	"io/fs"

	"golang.org/x/sys/unix"
)

// Access modes, matching access(2). Combine with bitwise or.
const (
	AccessExists  uint32 = 0
	AccessRead    uint32 = unix.R_OK
	AccessWrite   uint32 = unix.W_OK
	AccessExecute uint32 = unix.X_OK
)

// Access checks whether name is accessible with mode.
//
// Inside an archive, presence and read checks succeed for every entry
// that resolves. Write checks succeed only for unpacked files and are
// delegated to the real file. Execute checks succeed for directories and
// unpacked files whose real file allows it; packed files are never
// executable in place and fail with ErrPermission.
func (f *FS) Access(name string, mode uint32) error {
	t, res, ok, err := f.resolve("access", name, true)
	if err != nil {
		return err
	}
	if !ok {
		if err := unix.Access(name, mode); err != nil {
			return &fs.PathError{Op: "access", Path: name, Err: err}
		}
		return nil
	}

	n := res.Node
	needsReal := mode&(AccessWrite|AccessExecute) != 0
	if !needsReal {
		return nil
	}
	if n.IsFile() && n.Unpacked {
		unpacked := t.unpackedPath(res.Path)
		if err := unix.Access(unpacked, mode); err != nil {
			return &fs.PathError{Op: "access", Path: unpacked, Err: err}
		}
		return nil
	}
	if mode&AccessWrite != 0 {
		return pathErr("access", name, ErrPermission)
	}
	if !n.IsDir() {
		return pathErr("access", name, ErrPermission)
	}
	return nil
}
