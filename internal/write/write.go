// Package write streams source files into an archive being created.
package write

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/opencontainers/go-digest"

	"github.com/meigma/asar/internal/asartype"
	"github.com/meigma/asar/internal/sizing"
)

// ErrChanged is returned when a source file no longer matches the size
// or digest recorded for it earlier in the same Create.
var ErrChanged = errors.New("file changed during archive creation")

// BufferSize is the copy buffer size used when File is given none.
const BufferSize = 32 << 10

// File copies exactly size bytes from src to w, checking ctx between
// reads, and returns the hex SHA256 of the bytes copied.
//
// A source shorter or longer than size fails with ErrChanged. buf is
// reused across calls; pass nil to allocate one.
func File(ctx context.Context, src io.Reader, w io.Writer, buf []byte, size uint64) (string, error) {
	if len(buf) == 0 {
		buf = make([]byte, BufferSize)
	}
	limit, ok := sizing.AddUint64(size, 1)
	if !ok {
		return "", asartype.ErrSizeOverflow
	}
	n, err := sizing.ToInt64(limit, asartype.ErrSizeOverflow)
	if err != nil {
		return "", err
	}

	digester := digest.SHA256.Digester()
	tee := io.TeeReader(io.LimitReader(src, n), digester.Hash())
	written, err := copyWithContext(ctx, w, tee, buf)
	if err != nil {
		return "", err
	}
	if written != size {
		return "", fmt.Errorf("%w: expected %d bytes, got %d", ErrChanged, size, written)
	}
	return digester.Digest().Encoded(), nil
}

// Verified copies like File and also fails with ErrChanged when the
// copied bytes do not hash to want.
func Verified(ctx context.Context, src io.Reader, w io.Writer, buf []byte, size uint64, want string) error {
	got, err := File(ctx, src, w, buf, size)
	if err != nil {
		return err
	}
	if want != "" && got != want {
		return fmt.Errorf("%w: digest %s, recorded %s", ErrChanged, got, want)
	}
	return nil
}

// copyWithContext copies from src to dst until EOF or error, checking for
// context cancellation between reads.
func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader, buf []byte) (uint64, error) {
	var written uint64
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		nr, er := src.Read(buf)
		if nr > 0 {
			nw, ew := dst.Write(buf[:nr])
			if nw > 0 {
				next, ok := sizing.AddUint64(written, uint64(nw)) //nolint:gosec // nw is non-negative by io.Writer contract
				if !ok {
					return written, asartype.ErrSizeOverflow
				}
				written = next
			}
			if ew != nil {
				return written, ew
			}
			if nw != nr {
				return written, io.ErrShortWrite
			}
		}
		if er != nil {
			if er == io.EOF {
				return written, nil
			}
			return written, er
		}
	}
}
