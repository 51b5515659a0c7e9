package asar

import "github.com/meigma/asar/internal/asartype"

// Errors re-exported from internal/asartype.
//
// Kinds with a POSIX counterpart also match that syscall.Errno and the
// related io/fs sentinel, so errors.Is(err, fs.ErrNotExist) and
// errors.Is(err, syscall.ENOENT) both hold for ErrNotFound.
var (
	// ErrNotFound is returned when no entry exists at the path (ENOENT).
	ErrNotFound = asartype.ErrNotFound

	// ErrNotDir is returned when a path descends through a file, or when a
	// directory is created or removed inside an archive (ENOTDIR).
	ErrNotDir = asartype.ErrNotDir

	// ErrIsDir is returned when a directory is opened for reading (EISDIR).
	ErrIsDir = asartype.ErrIsDir

	// ErrTooManySymlinks is returned when symlink resolution exceeds its
	// budget (ELOOP).
	ErrTooManySymlinks = asartype.ErrTooManySymlinks

	// ErrPermission is returned when writing or executing a packed entry (EACCES).
	ErrPermission = asartype.ErrPermission

	// ErrBadFD is returned for unknown or closed handles (EBADF).
	ErrBadFD = asartype.ErrBadFD

	// ErrInvalid is returned for invalid arguments (EINVAL).
	ErrInvalid = asartype.ErrInvalid

	// ErrArchiveCorrupt is returned when an archive header cannot be decoded.
	// The result is remembered: later accesses fail the same way.
	ErrArchiveCorrupt = asartype.ErrArchiveCorrupt

	// ErrIntegrity is returned when content does not match its recorded hash.
	ErrIntegrity = asartype.ErrIntegrity

	// ErrSizeOverflow is returned when a size value overflows.
	ErrSizeOverflow = asartype.ErrSizeOverflow
)

// Errno returns the syscall.Errno that err's kind maps to, or 0 if err is
// not one of the kinds above.
var Errno = asartype.Errno
