// Package header encodes and decodes the archive header.
//
// An archive starts with an 8-byte size pickle holding the length of the
// header pickle that follows it. The header pickle carries a JSON document
// describing the entry tree, padded to a 4-byte boundary. File content
// starts immediately after the header pickle; file offsets in the JSON are
// relative to that point.
//
//	offset 0   uint32 LE  4 (size pickle payload length)
//	offset 4   uint32 LE  H (header pickle length)
//	offset 8   uint32 LE  H-4 (header pickle payload length)
//	offset 12  uint32 LE  L (JSON length)
//	offset 16  L bytes of JSON, zero padded to 4 bytes
//	offset 8+H data region
package header

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/meigma/asar/internal/asartype"
	"github.com/meigma/asar/internal/index"
	"github.com/meigma/asar/internal/sizing"
)

const (
	// sizePickleLen is the length of the leading size pickle.
	sizePickleLen = 8

	// MaxHeaderSize bounds the header pickle read into memory (256MB).
	MaxHeaderSize = 256 << 20
)

// Header is a decoded archive header.
type Header struct {
	// Root is the root directory of the entry tree.
	Root *index.Node

	// DataOffset is the absolute file offset where the data region starts.
	DataOffset int64

	// DataSize is the length of the data region in bytes.
	DataSize int64

	// JSON is the raw header document.
	JSON []byte
}

// Decode reads and decodes the header of an archive of fileSize bytes.
//
// Every failure to frame or parse the header, and every packed file whose
// range falls outside the data region, is reported as ErrArchiveCorrupt.
func Decode(r io.ReaderAt, fileSize int64) (*Header, error) {
	if fileSize < sizePickleLen {
		return nil, corrupt("file too small (%d bytes)", fileSize)
	}

	var prefix [sizePickleLen]byte
	if _, err := r.ReadAt(prefix[:], 0); err != nil {
		return nil, fmt.Errorf("read size pickle: %w", err)
	}
	if n := binary.LittleEndian.Uint32(prefix[0:4]); n != 4 {
		return nil, corrupt("size pickle payload is %d bytes, want 4", n)
	}
	headerLen := int64(binary.LittleEndian.Uint32(prefix[4:8]))
	if headerLen < 8 || headerLen > fileSize-sizePickleLen {
		return nil, corrupt("header length %d inconsistent with file size %d", headerLen, fileSize)
	}
	if headerLen > MaxHeaderSize {
		return nil, corrupt("header length %d exceeds limit", headerLen)
	}

	buf := make([]byte, headerLen)
	if _, err := r.ReadAt(buf, sizePickleLen); err != nil && err != io.EOF {
		return nil, fmt.Errorf("read header: %w", err)
	}

	payload := int64(binary.LittleEndian.Uint32(buf[0:4]))
	if payload != headerLen-4 {
		return nil, corrupt("header payload length %d, want %d", payload, headerLen-4)
	}
	jsonLen := int64(binary.LittleEndian.Uint32(buf[4:8]))
	if jsonLen > payload-4 {
		return nil, corrupt("header string length %d exceeds payload", jsonLen)
	}
	doc := buf[8 : 8+jsonLen]

	root, err := decodeJSON(doc)
	if err != nil {
		return nil, err
	}

	h := &Header{
		Root:       root,
		DataOffset: sizePickleLen + headerLen,
		DataSize:   fileSize - sizePickleLen - headerLen,
		JSON:       doc,
	}
	if err := h.validate(); err != nil {
		return nil, err
	}
	return h, nil
}

// validate checks that every packed file lies inside the data region and
// that every file size fits in an int64.
func (h *Header) validate() error {
	limit := uint64(h.DataSize) //nolint:gosec // DataSize is non-negative by construction
	return index.New(h.Root, 0).Walk(func(inner string, n *index.Node) error {
		if !n.IsFile() {
			return nil
		}
		if n.Unpacked {
			if _, err := sizing.ToInt64(n.Size, asartype.ErrArchiveCorrupt); err != nil {
				return fmt.Errorf("entry %s: size %d: %w", inner, n.Size, err)
			}
			return nil
		}
		if !sizing.Within(n.Offset, n.Size, limit) {
			return corrupt("entry %s: range [%d, +%d) exceeds data region of %d bytes", inner, n.Offset, n.Size, limit)
		}
		return nil
	})
}

// Encode serializes root into the size pickle and header pickle that
// precede the data region.
func Encode(root *index.Node) ([]byte, error) {
	doc, err := encodeJSON(root)
	if err != nil {
		return nil, err
	}
	jsonLen := uint64(len(doc))
	payload := sizing.Align4(4 + jsonLen)
	headerLen := 4 + payload
	if headerLen > MaxHeaderSize {
		return nil, fmt.Errorf("header of %d bytes exceeds limit: %w", headerLen, asartype.ErrSizeOverflow)
	}

	out := make([]byte, sizePickleLen+headerLen)
	binary.LittleEndian.PutUint32(out[0:4], 4)
	binary.LittleEndian.PutUint32(out[4:8], uint32(headerLen))
	binary.LittleEndian.PutUint32(out[8:12], uint32(payload))
	binary.LittleEndian.PutUint32(out[12:16], uint32(jsonLen))
	copy(out[16:], doc)
	return out, nil
}

func corrupt(format string, args ...any) error {
	return fmt.Errorf("%w: %s", asartype.ErrArchiveCorrupt, fmt.Sprintf(format, args...))
}
