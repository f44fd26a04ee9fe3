package bus

import (
	"context"
	"errors"
	"sync/atomic"
)

var (
	ErrQueueFull   = errors.New("frame queue full")
	ErrQueueClosed = errors.New("frame queue closed")
)

// Queue is a bounded, non-blocking frame queue between the transport reader
// and the agent runner. Frames are delivered in publish order.
type Queue struct {
	ch     chan []byte
	closed uint32
}

// NewQueue allocates a queue with the given capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{ch: make(chan []byte, capacity)}
}

// TryPublish enqueues a frame without blocking.
func (q *Queue) TryPublish(frame []byte) error {
	if atomic.LoadUint32(&q.closed) != 0 {
		return ErrQueueClosed
	}
	select {
	case q.ch <- frame:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops the queue from accepting new frames.
func (q *Queue) Close() {
	if atomic.CompareAndSwapUint32(&q.closed, 0, 1) {
		close(q.ch)
	}
}

// Run consumes frames until the context is done or the queue is closed.
func (q *Queue) Run(ctx context.Context, handler func(frame []byte)) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-q.ch:
			if !ok {
				return
			}
			handler(frame)
		}
	}
}
