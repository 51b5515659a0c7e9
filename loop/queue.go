package loop

import "sync"

// Queue runs work items one at a time, in submission order, and posts
// their callbacks to the loop in the same order.
//
// Each open file owns a Queue so that reads issued against it complete in
// the order they were issued. Separate queues run independently.
type Queue struct {
	loop *Loop

	mu      sync.Mutex
	tasks   []func() func()
	running bool
}

// NewQueue creates a serial queue delivering to l.
func (l *Loop) NewQueue() *Queue {
	return &Queue{loop: l}
}

// Go appends work to the queue. The callback work returns is posted to the
// loop once work finishes; a nil callback posts nothing.
func (q *Queue) Go(work func() func()) {
	q.loop.begin()
	q.mu.Lock()
	q.tasks = append(q.tasks, work)
	start := !q.running
	q.running = true
	q.mu.Unlock()
	if start {
		go q.drain()
	}
}

func (q *Queue) drain() {
	for {
		q.mu.Lock()
		if len(q.tasks) == 0 {
			q.running = false
			q.mu.Unlock()
			return
		}
		work := q.tasks[0]
		q.tasks = q.tasks[1:]
		q.mu.Unlock()

		q.loop.finish(work())
	}
}

// DoOn runs work on q and delivers its result to cb on the queue's loop.
func DoOn[T any](q *Queue, work func() (T, error), cb func(T, error)) {
	q.Go(func() func() {
		v, err := work()
		return func() { cb(v, err) }
	})
}
