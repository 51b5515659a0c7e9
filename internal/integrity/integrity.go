// Package integrity computes and verifies per-entry integrity records.
//
// A record holds the SHA256 digest of the whole entry plus the digests of
// consecutive fixed-size blocks, so a reader holding only part of an entry
// can still check what it has.
package integrity

import (
	_ "crypto/sha256" // registers SHA256 for go-digest
	"errors"
	"fmt"
	"io"

	"github.com/opencontainers/go-digest"
)

const (
	// Algorithm is the only hash algorithm recorded in archive headers.
	Algorithm = "SHA256"

	// DefaultBlockSize is the block size used when creating records (4 MiB).
	DefaultBlockSize = 4 << 20
)

// ErrMismatch is returned when content does not match a record.
var ErrMismatch = errors.New("integrity mismatch")

// Record is the integrity metadata stored for a file entry.
type Record struct {
	Algorithm string   `json:"algorithm"`
	Hash      string   `json:"hash"`
	BlockSize int      `json:"blockSize"`
	Blocks    []string `json:"blocks"`
}

// Compute reads r to EOF and returns its integrity record and length.
func Compute(r io.Reader, blockSize int) (*Record, int64, error) {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	whole := digest.SHA256.Digester()
	rec := &Record{Algorithm: Algorithm, BlockSize: blockSize}

	buf := make([]byte, blockSize)
	var total int64
	for {
		n, err := io.ReadFull(r, buf)
		if n > 0 || (total == 0 && len(rec.Blocks) == 0 && isEnd(err)) {
			_, _ = whole.Hash().Write(buf[:n]) //nolint:errcheck // hash writes never fail
			rec.Blocks = append(rec.Blocks, digest.SHA256.FromBytes(buf[:n]).Encoded())
			total += int64(n)
		}
		if isEnd(err) {
			break
		}
		if err != nil {
			return nil, 0, err
		}
	}
	rec.Hash = whole.Digest().Encoded()
	return rec, total, nil
}

func isEnd(err error) bool {
	return err == io.EOF || err == io.ErrUnexpectedEOF
}

// Validate checks that the record is well formed.
func (r *Record) Validate() error {
	if r.Algorithm != Algorithm {
		return fmt.Errorf("unsupported integrity algorithm %q", r.Algorithm)
	}
	if r.BlockSize <= 0 {
		return fmt.Errorf("invalid integrity block size %d", r.BlockSize)
	}
	if err := digest.NewDigestFromEncoded(digest.SHA256, r.Hash).Validate(); err != nil {
		return fmt.Errorf("integrity hash: %w", err)
	}
	for i, b := range r.Blocks {
		if err := digest.NewDigestFromEncoded(digest.SHA256, b).Validate(); err != nil {
			return fmt.Errorf("integrity block %d: %w", i, err)
		}
	}
	return nil
}

// Verify checks content against the whole-entry hash and every block hash.
func (r *Record) Verify(content []byte) error {
	if err := r.Validate(); err != nil {
		return err
	}
	d := digest.NewDigestFromEncoded(digest.SHA256, r.Hash)
	v := d.Verifier()
	_, _ = v.Write(content) //nolint:errcheck // verifier writes never fail
	if !v.Verified() {
		return fmt.Errorf("%w: content hash", ErrMismatch)
	}
	want := blockCount(len(content), r.BlockSize)
	if len(r.Blocks) != want {
		return fmt.Errorf("%w: %d blocks recorded, %d expected", ErrMismatch, len(r.Blocks), want)
	}
	for i := range r.Blocks {
		if err := r.VerifyBlock(i, block(content, i, r.BlockSize)); err != nil {
			return err
		}
	}
	return nil
}

// VerifyBlock checks one block of content against its recorded hash.
func (r *Record) VerifyBlock(i int, data []byte) error {
	if i < 0 || i >= len(r.Blocks) {
		return fmt.Errorf("%w: block %d out of range", ErrMismatch, i)
	}
	v := digest.NewDigestFromEncoded(digest.SHA256, r.Blocks[i]).Verifier()
	_, _ = v.Write(data) //nolint:errcheck // verifier writes never fail
	if !v.Verified() {
		return fmt.Errorf("%w: block %d", ErrMismatch, i)
	}
	return nil
}

func blockCount(size, blockSize int) int {
	if size == 0 {
		return 1
	}
	return (size + blockSize - 1) / blockSize
}

func block(content []byte, i, blockSize int) []byte {
	start := i * blockSize
	end := min(start+blockSize, len(content))
	return content[start:end]
}
