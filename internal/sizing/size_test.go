package sizing

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errOverflow = errors.New("overflow")

func TestToInt64(t *testing.T) {
	t.Parallel()
	v, err := ToInt64(42, errOverflow)
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)

	_, err = ToInt64(math.MaxUint64, errOverflow)
	assert.ErrorIs(t, err, errOverflow)
}

func TestToInt(t *testing.T) {
	t.Parallel()
	v, err := ToInt(7, errOverflow)
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	_, err = ToInt(math.MaxUint64, errOverflow)
	assert.ErrorIs(t, err, errOverflow)
}

func TestWithin(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name             string
		off, size, limit uint64
		want             bool
	}{
		{"inside", 0, 6, 10, true},
		{"exact end", 4, 6, 10, true},
		{"past end", 5, 6, 10, false},
		{"empty at end", 10, 0, 10, true},
		{"overflow", math.MaxUint64, 2, math.MaxUint64, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Within(tt.off, tt.size, tt.limit))
		})
	}
}

func TestAlign4(t *testing.T) {
	t.Parallel()
	assert.Equal(t, uint64(0), Align4(0))
	assert.Equal(t, uint64(4), Align4(1))
	assert.Equal(t, uint64(4), Align4(4))
	assert.Equal(t, uint64(8), Align4(5))
}
