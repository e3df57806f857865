// Package queue provides the unbounded FIFO on each side of the renderer
// process boundary, and the goroutines that move commands across it.
package queue

import "sync"

// Queue is an unbounded FIFO for one producer and one consumer. Push never
// blocks; the consumer either drains without blocking or waits on Ready.
type Queue[T any] struct {
	mu     sync.Mutex
	items  []T
	closed bool
	ready  chan struct{}
}

// New returns an empty open queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{ready: make(chan struct{}, 1)}
}

// Push appends v. It returns false once the queue is closed.
func (q *Queue[T]) Push(v T) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, v)
	q.mu.Unlock()
	q.signal()
	return true
}

// Drain appends every queued item to dst in FIFO order and empties the queue.
// The closed result is true when the queue has been closed; items pushed
// before Close are still returned by the same call.
func (q *Queue[T]) Drain(dst []T) (_ []T, closed bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	dst = append(dst, q.items...)
	clear(q.items)
	q.items = q.items[:0]
	return dst, q.closed
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close stops further pushes. Queued items remain drainable.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

// Closed reports whether Close has been called.
func (q *Queue[T]) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Ready is signalled after a Push or Close. A single pending signal covers
// any number of pushes, so consumers must drain fully after waking.
func (q *Queue[T]) Ready() <-chan struct{} {
	return q.ready
}

func (q *Queue[T]) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
