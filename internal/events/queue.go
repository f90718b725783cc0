package events

import (
	"context"
	"sync/atomic"

	"main/pkg/exception"

	"github.com/yanun0323/logs"
)

// Queue is a bounded, non-blocking event queue. It implements Sink so the
// bridge can hand events to a consumer that drains at its own pace.
type Queue struct {
	ch     chan Event
	done   chan struct{}
	closed uint32
	drops  uint64
}

// NewQueue allocates a queue with the given capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{
		ch:   make(chan Event, capacity),
		done: make(chan struct{}),
	}
}

// TryPublish enqueues an event without blocking.
func (q *Queue) TryPublish(e Event) error {
	if atomic.LoadUint32(&q.closed) != 0 {
		return exception.ErrQueueClosed
	}
	select {
	case q.ch <- e:
		return nil
	default:
		atomic.AddUint64(&q.drops, 1)
		return exception.ErrQueueFull
	}
}

// Emit implements Sink. A full queue drops the event; lifecycle correctness
// lives in the registry, not in this buffer.
func (q *Queue) Emit(e Event) {
	if err := q.TryPublish(e); err != nil {
		logs.Warnf("drop event %s for %s: %v", e.Type, e.ClientOrderID, err)
	}
}

// Drops returns the number of events dropped on overflow.
func (q *Queue) Drops() uint64 {
	return atomic.LoadUint64(&q.drops)
}

// Close stops the queue from accepting new events. Events already buffered
// are still drained by Run.
func (q *Queue) Close() {
	if atomic.CompareAndSwapUint32(&q.closed, 0, 1) {
		close(q.done)
	}
}

// Run consumes events until the context is done or the queue is closed.
func (q *Queue) Run(ctx context.Context, handler func(Event)) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.done:
			for {
				select {
				case e := <-q.ch:
					handler(e)
				default:
					return
				}
			}
		case e := <-q.ch:
			handler(e)
		}
	}
}
