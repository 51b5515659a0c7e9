// Package testutil provides helpers shared by the package tests.
package testutil

import (
	"io"
	"sync"
)

// Range is one ReadAt call recorded by a MockByteSource.
type Range struct {
	Off int64
	Len int
}

// MockByteSource is an in-memory io.ReaderAt that records every read.
type MockByteSource struct {
	data []byte

	mu     sync.Mutex
	ranges []Range
}

// NewMockByteSource returns a byte source backed by the provided data.
func NewMockByteSource(data []byte) *MockByteSource {
	return &MockByteSource{data: data}
}

// ReadAt implements io.ReaderAt semantics over the backing slice.
func (m *MockByteSource) ReadAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	m.ranges = append(m.ranges, Range{Off: off, Len: len(p)})
	m.mu.Unlock()

	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Size returns the total size of the backing data.
func (m *MockByteSource) Size() int64 {
	return int64(len(m.data))
}

// Ranges returns the reads issued so far.
func (m *MockByteSource) Ranges() []Range {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Range(nil), m.ranges...)
}
