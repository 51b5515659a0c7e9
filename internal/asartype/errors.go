package asartype

import (
	"errors"
	"io/fs"
	"syscall"
)

// Sentinel errors for archive operations.
//
// Each kind that has a POSIX counterpart also matches that errno and the
// corresponding io/fs sentinel through errors.Is, so callers written against
// the real filesystem keep working when a path falls inside an archive.
var (
	// ErrNotFound is returned when no entry exists at the requested path.
	ErrNotFound error = &kindError{msg: "asar: no such file or directory", errno: syscall.ENOENT}

	// ErrNotDir is returned when a path descends through a file, or when a
	// directory operation is attempted inside an archive.
	ErrNotDir error = &kindError{msg: "asar: not a directory", errno: syscall.ENOTDIR}

	// ErrIsDir is returned when a directory is opened as a file.
	ErrIsDir error = &kindError{msg: "asar: is a directory", errno: syscall.EISDIR}

	// ErrTooManySymlinks is returned when symlink resolution exceeds its budget.
	ErrTooManySymlinks error = &kindError{msg: "asar: too many levels of symbolic links", errno: syscall.ELOOP}

	// ErrPermission is returned for write or execute checks against packed entries.
	ErrPermission error = &kindError{msg: "asar: permission denied", errno: syscall.EACCES}

	// ErrBadFD is returned when a handle is unknown or already closed.
	ErrBadFD error = &kindError{msg: "asar: bad file descriptor", errno: syscall.EBADF, also: fs.ErrClosed}

	// ErrInvalid is returned for invalid arguments, such as readlink on a file.
	ErrInvalid error = &kindError{msg: "asar: invalid argument", errno: syscall.EINVAL, also: fs.ErrInvalid}

	// ErrArchiveCorrupt is returned when an archive header fails to decode or
	// declares entries outside the data region.
	ErrArchiveCorrupt = errors.New("asar: archive corrupt")

	// ErrIntegrity is returned when entry content does not match its recorded integrity.
	ErrIntegrity = errors.New("asar: integrity check failed")

	// ErrSizeOverflow is returned when byte counts exceed supported limits.
	ErrSizeOverflow = errors.New("asar: size overflow")
)

type kindError struct {
	msg   string
	errno syscall.Errno
	also  error
}

func (e *kindError) Error() string { return e.msg }

// Is reports whether target is the errno this kind maps to, or an io/fs
// sentinel that errno maps to.
func (e *kindError) Is(target error) bool {
	if target == e.errno {
		return true
	}
	if e.also != nil && target == e.also {
		return true
	}
	return e.errno.Is(target)
}

// Errno returns the errno associated with err's kind, or 0 when err is not
// an archive error kind.
func Errno(err error) syscall.Errno {
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.errno
	}
	return 0
}
