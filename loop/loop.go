// Package loop provides the event loop that delivers completions of
// asynchronous filesystem operations.
//
// Work submitted through Go or a Queue runs on background goroutines. Its
// completion callback is posted to the Loop and only runs when the owner of
// the loop calls Run or RunUntilIdle, never inside the call that submitted
// the work.
package loop

import (
	"context"
	"log/slog"
	"runtime"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Loop is a single-consumer callback queue.
//
// Post and Go are safe to call from any goroutine. Run and RunUntilIdle
// must not be called concurrently with each other.
type Loop struct {
	logger  *slog.Logger
	workers *semaphore.Weighted

	mu       sync.Mutex
	queue    []func()
	inflight int
	wake     chan struct{}
}

// Option configures a Loop.
type Option func(*Loop)

// WithLogger sets the logger for loop events.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) {
		l.logger = logger
	}
}

// WithMaxWorkers bounds the number of background operations running at
// once. Values < 1 use GOMAXPROCS.
func WithMaxWorkers(n int) Option {
	return func(l *Loop) {
		if n < 1 {
			n = runtime.GOMAXPROCS(0)
		}
		l.workers = semaphore.NewWeighted(int64(n))
	}
}

// New creates a Loop.
func New(opts ...Option) *Loop {
	l := &Loop{wake: make(chan struct{}, 1)}
	for _, opt := range opts {
		opt(l)
	}
	if l.workers == nil {
		l.workers = semaphore.NewWeighted(int64(4 * runtime.GOMAXPROCS(0)))
	}
	return l
}

// log returns the logger, falling back to a discard logger if nil.
func (l *Loop) log() *slog.Logger {
	if l.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return l.logger
}

// Post queues fn to run on a later turn of the loop.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()
	l.signal()
}

// Go runs work in the background and posts the callback it returns.
// A nil callback posts nothing.
func (l *Loop) Go(work func() func()) {
	l.begin()
	go func() {
		_ = l.workers.Acquire(context.Background(), 1) //nolint:errcheck // background context never cancels
		cb := work()
		l.workers.Release(1)
		l.finish(cb)
	}()
}

// begin registers an operation whose callback is still owed.
func (l *Loop) begin() {
	l.mu.Lock()
	l.inflight++
	l.mu.Unlock()
}

// finish posts cb and retires the operation registered by begin.
func (l *Loop) finish(cb func()) {
	l.mu.Lock()
	if cb != nil {
		l.queue = append(l.queue, cb)
	}
	l.inflight--
	l.mu.Unlock()
	l.signal()
}

func (l *Loop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// turn runs the callbacks queued before it started. It reports whether
// more are queued and whether operations are in flight.
func (l *Loop) turn() (queued, inflight bool) {
	l.mu.Lock()
	batch := l.queue
	l.queue = nil
	l.mu.Unlock()

	for _, fn := range batch {
		fn()
	}
	if len(batch) > 0 {
		l.log().Debug("loop turn", "callbacks", len(batch))
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue) > 0, l.inflight > 0
}

// RunUntilIdle runs turns until no callbacks are queued and no operations
// are in flight.
func (l *Loop) RunUntilIdle() {
	for {
		queued, inflight := l.turn()
		switch {
		case queued:
		case inflight:
			<-l.wake
		default:
			return
		}
	}
}

// Run runs turns until ctx is done, waiting for new work when idle.
func (l *Loop) Run(ctx context.Context) error {
	for {
		if queued, _ := l.turn(); queued {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

// Pending returns the number of queued callbacks plus operations in flight.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue) + l.inflight
}

// Do runs work in the background and delivers its result to cb on the loop.
func Do[T any](l *Loop, work func() (T, error), cb func(T, error)) {
	l.Go(func() func() {
		v, err := work()
		return func() { cb(v, err) }
	})
}
