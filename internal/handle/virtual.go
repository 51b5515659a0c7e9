package handle

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/meigma/asar/internal/asartype"
)

// Virtual reads one entry's byte window out of an archive file.
//
// The window is [base, base+size) in absolute file offsets. Reads never
// return bytes outside the window: a read that crosses its end is short,
// and a read starting at or past its end returns io.EOF with no bytes.
// Each Virtual has its own offset; many may share the same source.
type Virtual struct {
	src  io.ReaderAt
	base int64
	size int64

	mu      sync.Mutex
	pos     int64
	closed  bool
	release func()
}

// Interface compliance.
var (
	_ io.ReadSeekCloser = (*Virtual)(nil)
	_ io.ReaderAt       = (*Virtual)(nil)
)

// NewVirtual creates a Virtual over [base, base+size) of src. release, if
// non-nil, is called exactly once on Close.
func NewVirtual(src io.ReaderAt, base, size int64, release func()) *Virtual {
	return &Virtual{src: src, base: base, size: size, release: release}
}

// Size returns the window length.
func (v *Virtual) Size() int64 {
	return v.size
}

// Read reads from the current offset and advances it.
func (v *Virtual) Read(p []byte) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return 0, asartype.ErrBadFD
	}
	n, err := v.readAt(p, v.pos)
	v.pos += int64(n)
	return n, err
}

// ReadAt reads at off without touching the current offset.
func (v *Virtual) ReadAt(p []byte, off int64) (int, error) {
	v.mu.Lock()
	closed := v.closed
	v.mu.Unlock()
	if closed {
		return 0, asartype.ErrBadFD
	}
	return v.readAt(p, off)
}

func (v *Virtual) readAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("read at %d: %w", off, asartype.ErrInvalid)
	}
	if len(p) == 0 {
		return 0, nil
	}
	if off >= v.size {
		return 0, io.EOF
	}
	short := false
	if remaining := v.size - off; int64(len(p)) > remaining {
		p = p[:remaining]
		short = true
	}
	n, err := v.src.ReadAt(p, v.base+off)
	if errors.Is(err, io.EOF) && n == len(p) {
		err = nil
	}
	if err != nil {
		return n, err
	}
	if short {
		return n, io.EOF
	}
	return n, nil
}

// Seek implements io.Seeker. Seeking past the end is allowed; reads there
// return io.EOF.
func (v *Virtual) Seek(offset int64, whence int) (int64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return 0, asartype.ErrBadFD
	}
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = v.pos + offset
	case io.SeekEnd:
		abs = v.size + offset
	default:
		return 0, fmt.Errorf("seek whence %d: %w", whence, asartype.ErrInvalid)
	}
	if abs < 0 {
		return 0, fmt.Errorf("seek to %d: %w", abs, asartype.ErrInvalid)
	}
	v.pos = abs
	return abs, nil
}

// Close marks the handle closed and releases its archive reference.
func (v *Virtual) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return asartype.ErrBadFD
	}
	v.closed = true
	if v.release != nil {
		v.release()
		v.release = nil
	}
	return nil
}
