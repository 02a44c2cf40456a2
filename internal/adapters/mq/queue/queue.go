// Package queue buffers accepted diagnostics until a worker turns them into
// opportunities.
package queue

import (
	"context"
	"sync"

	"github.com/okian/clarisa/internal/domain/model"
	"github.com/okian/clarisa/pkg/metrics"
)

const defaultQueueCapacity = 10_000

// Diagnostic is the payload type flowing through the queue.
type Diagnostic = model.Diagnostic

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds d to the queue. Returns false if the queue is full or
	// closed and d was not enqueued.
	Enqueue(ctx context.Context, d Diagnostic) bool
	// Dequeue returns a channel that receives diagnostics as they become
	// available. It is closed once the queue is closed and drained.
	Dequeue(ctx context.Context) <-chan Diagnostic
	// Len returns the number of queued diagnostics.
	Len(ctx context.Context) int
	// Cap returns the configured capacity.
	Cap() int
	// Close stops accepting new diagnostics.
	Close() error
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	items    chan Diagnostic
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a bounded in-memory queue.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.items = make(chan Diagnostic, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0, q.capacity)
	return q
}

// Enqueue implements Queue. It never blocks.
func (q *InMemoryQueue) Enqueue(ctx context.Context, d Diagnostic) bool { //nolint:gocritic // hugeParam: passed by value for channel semantics
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "closed")
		return false
	}
	if ctx.Err() != nil {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "context_cancelled")
		return false
	}

	select {
	case q.items <- d:
		metrics.RecordQueueEnqueue()
		metrics.UpdateQueueSize(len(q.items), q.capacity)
		return true
	default:
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "queue_full")
		return false
	}
}

// Dequeue implements Queue. Each call starts a forwarder that stops when
// ctx is done or the queue is closed and empty. A diagnostic taken from the
// queue but never handed over is counted as undelivered.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Diagnostic {
	out := make(chan Diagnostic)
	go func() {
		defer close(out)
		for {
			var d Diagnostic
			select {
			case <-ctx.Done():
				return
			case item, ok := <-q.items:
				if !ok {
					return
				}
				d = item
			}
			select {
			case out <- d:
				metrics.RecordQueueDequeue()
				metrics.UpdateQueueSize(len(q.items), q.capacity)
			case <-ctx.Done():
				metrics.RecordErrorByComponent("queue", "undelivered")
				return
			}
		}
	}()
	return out
}

// Len implements Queue.
func (q *InMemoryQueue) Len(_ context.Context) int {
	size := len(q.items)
	metrics.UpdateQueueSize(size, q.capacity)
	return size
}

// Cap implements Queue.
func (q *InMemoryQueue) Cap() int { return q.capacity }

// Close implements Queue. Items already queued are still delivered.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	close(q.items)
	q.closed = true
	return nil
}

// IsClosed implements Queue.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
