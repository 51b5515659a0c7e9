// Package handle tracks open files by descriptor number and provides the
// bounded reader used for packed entries.
package handle

import (
	"sync"

	"github.com/meigma/asar/internal/asartype"
)

// FirstFD is the lowest descriptor a Table hands out. Keeping it well above
// the process's real descriptors makes a virtual fd easy to recognize in logs.
const FirstFD = 1 << 16

// Table maps descriptor numbers to open values.
//
// Descriptors are reused lowest-first after Remove. Table is safe for
// concurrent use.
type Table[T any] struct {
	mu    sync.Mutex
	items map[int]T
	free  []int
	next  int
}

// NewTable returns an empty Table.
func NewTable[T any]() *Table[T] {
	return &Table[T]{items: make(map[int]T), next: FirstFD}
}

// Insert stores v and returns its descriptor.
func (t *Table[T]) Insert(v T) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	var fd int
	if n := len(t.free); n > 0 {
		lowest := 0
		for i := 1; i < n; i++ {
			if t.free[i] < t.free[lowest] {
				lowest = i
			}
		}
		fd = t.free[lowest]
		t.free[lowest] = t.free[n-1]
		t.free = t.free[:n-1]
	} else {
		fd = t.next
		t.next++
	}
	t.items[fd] = v
	return fd
}

// Get returns the value stored under fd.
func (t *Table[T]) Get(fd int) (T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.items[fd]
	if !ok {
		var zero T
		return zero, asartype.ErrBadFD
	}
	return v, nil
}

// Remove deletes fd and returns the value it held.
func (t *Table[T]) Remove(fd int) (T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.items[fd]
	if !ok {
		var zero T
		return zero, asartype.ErrBadFD
	}
	delete(t.items, fd)
	t.free = append(t.free, fd)
	return v, nil
}

// Len returns the number of open descriptors.
func (t *Table[T]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.items)
}

// Drain removes and returns every stored value.
func (t *Table[T]) Drain() []T {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]T, 0, len(t.items))
	for fd, v := range t.items {
		out = append(out, v)
		delete(t.items, fd)
	}
	t.free = nil
	t.next = FirstFD
	return out
}
