package loop

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallbackNeverSynchronous(t *testing.T) {
	t.Parallel()
	l := New()
	called := false

	Do(l, func() (int, error) { return 42, nil }, func(v int, err error) {
		called = true
		assert.Equal(t, 42, v)
		assert.NoError(t, err)
	})
	l.Post(func() { called = true })
	assert.False(t, called, "callback ran inside the submitting call")

	l.RunUntilIdle()
	assert.True(t, called)
	assert.Equal(t, 0, l.Pending())
}

func TestPostDuringTurnRunsLater(t *testing.T) {
	t.Parallel()
	l := New()
	var order []string

	l.Post(func() {
		order = append(order, "first")
		l.Post(func() { order = append(order, "nested") })
	})
	l.Post(func() { order = append(order, "second") })

	l.RunUntilIdle()
	assert.Equal(t, []string{"first", "second", "nested"}, order)
}

func TestDoDeliversError(t *testing.T) {
	t.Parallel()
	l := New()
	boom := errors.New("boom")
	var got error

	Do(l, func() (string, error) { return "", boom }, func(_ string, err error) { got = err })
	l.RunUntilIdle()
	assert.ErrorIs(t, got, boom)
}

func TestQueuePreservesOrder(t *testing.T) {
	t.Parallel()
	l := New()
	q := l.NewQueue()
	var order []int

	for i := range 10 {
		DoOn(q, func() (int, error) {
			// Earlier items sleep longer; order must still hold.
			time.Sleep(time.Duration(10-i) * time.Millisecond)
			return i, nil
		}, func(v int, _ error) {
			order = append(order, v)
		})
	}
	l.RunUntilIdle()
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, order)
}

func TestQueueRunsSerially(t *testing.T) {
	t.Parallel()
	l := New()
	q := l.NewQueue()
	var running, peak atomic.Int32

	for range 8 {
		q.Go(func() func() {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			running.Add(-1)
			return nil
		})
	}
	l.RunUntilIdle()
	assert.Equal(t, int32(1), peak.Load())
}

func TestIndependentQueues(t *testing.T) {
	t.Parallel()
	l := New()
	slow := l.NewQueue()
	fast := l.NewQueue()
	release := make(chan struct{})
	var order []string

	slow.Go(func() func() {
		<-release
		return func() { order = append(order, "slow") }
	})
	fast.Go(func() func() {
		return func() {
			order = append(order, "fast")
			close(release)
		}
	})
	l.RunUntilIdle()
	assert.Equal(t, []string{"fast", "slow"}, order)
}

func TestMaxWorkers(t *testing.T) {
	t.Parallel()
	l := New(WithMaxWorkers(2))
	var running, peak atomic.Int32

	for range 10 {
		l.Go(func() func() {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			running.Add(-1)
			return nil
		})
	}
	l.RunUntilIdle()
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestRunStopsOnCancel(t *testing.T) {
	t.Parallel()
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	delivered := make(chan struct{})
	Do(l, func() (int, error) { return 1, nil }, func(int, error) { close(delivered) })

	select {
	case <-delivered:
	case <-time.After(5 * time.Second):
		t.Fatal("callback not delivered by Run")
	}

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
