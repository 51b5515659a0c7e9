// Package sizing provides safe size arithmetic and conversions for archive
// offsets, which are stored as unsigned 64-bit values in headers.
package sizing

import "math"

// ToInt converts a uint64 to int, returning overflowErr if it doesn't fit.
func ToInt(size uint64, overflowErr error) (int, error) {
	if size > uint64(math.MaxInt) {
		return 0, overflowErr
	}
	return int(size), nil
}

// ToInt64 converts a uint64 to int64, returning overflowErr if it doesn't fit.
func ToInt64(size uint64, overflowErr error) (int64, error) {
	if size > uint64(math.MaxInt64) {
		return 0, overflowErr
	}
	return int64(size), nil
}

// AddUint64 adds two uint64 values, returning (result, false) on overflow.
func AddUint64(a, b uint64) (uint64, bool) {
	sum := a + b
	if sum < a {
		return 0, false
	}
	return sum, true
}

// Within reports whether the range [off, off+size) fits inside limit bytes
// without overflowing.
func Within(off, size, limit uint64) bool {
	end, ok := AddUint64(off, size)
	return ok && end <= limit
}

// Align4 rounds n up to the next multiple of four.
func Align4(n uint64) uint64 {
	return (n + 3) &^ 3
}
