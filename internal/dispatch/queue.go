package dispatch

import (
	"sync"

	"github.com/spec-kit/locate-service/internal/domain"
)

// Queue is the bounded buffer between the trigger scanner (producer) and
// the dispatch workers (consumers).
type Queue struct {
	mu     sync.RWMutex
	ch     chan domain.Trigger
	closed bool
}

// NewQueue builds a queue with the given capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 256
	}
	return &Queue{ch: make(chan domain.Trigger, capacity)}
}

// Offer enqueues without blocking. Returns false when the queue is full or
// shut down; the trigger is then left for the next sweep, which the dedup
// markers make safe.
func (q *Queue) Offer(trigger domain.Trigger) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return false
	}
	select {
	case q.ch <- trigger:
		return true
	default:
		return false
	}
}

// Source exposes the consumer side.
func (q *Queue) Source() <-chan domain.Trigger {
	return q.ch
}

// Close stops the queue; workers drain what remains.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.ch)
}
