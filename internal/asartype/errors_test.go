package asartype

import (
	"errors"
	"fmt"
	"io/fs"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindErrorsMatchErrno(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		err   error
		errno syscall.Errno
		fsErr error
	}{
		{"not found", ErrNotFound, syscall.ENOENT, fs.ErrNotExist},
		{"not dir", ErrNotDir, syscall.ENOTDIR, nil},
		{"is dir", ErrIsDir, syscall.EISDIR, nil},
		{"loop", ErrTooManySymlinks, syscall.ELOOP, nil},
		{"permission", ErrPermission, syscall.EACCES, fs.ErrPermission},
		{"bad fd", ErrBadFD, syscall.EBADF, fs.ErrClosed},
		{"invalid", ErrInvalid, syscall.EINVAL, fs.ErrInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			wrapped := &fs.PathError{Op: "stat", Path: "/x.asar/a", Err: tt.err}
			assert.ErrorIs(t, wrapped, tt.err)
			assert.ErrorIs(t, wrapped, tt.errno)
			if tt.fsErr != nil {
				assert.ErrorIs(t, wrapped, tt.fsErr)
			}
			assert.Equal(t, tt.errno, Errno(wrapped))
		})
	}
}

func TestKindErrorsAreDistinct(t *testing.T) {
	t.Parallel()
	assert.NotErrorIs(t, ErrTooManySymlinks, ErrNotFound)
	assert.NotErrorIs(t, ErrNotFound, ErrTooManySymlinks)
	assert.NotErrorIs(t, ErrNotDir, fs.ErrNotExist)
}

func TestErrnoUnknown(t *testing.T) {
	t.Parallel()
	assert.Equal(t, syscall.Errno(0), Errno(errors.New("plain")))
	assert.Equal(t, syscall.Errno(0), Errno(fmt.Errorf("wrap: %w", ErrArchiveCorrupt)))
}
