package duel

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// writeQueue runs queued actions in order on one goroutine. The session
// pushes network sends and notifications while holding its lock; the pump
// executes them without it, so a slow peer never stalls state updates.
type writeQueue struct {
	mu      sync.Mutex
	pending []func()
	closed  bool
	wake    chan struct{}
	done    chan struct{}
}

func newWriteQueue() *writeQueue {
	q := &writeQueue{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go q.writePump()
	return q
}

// push appends fn. It never blocks.
func (q *writeQueue) push(fn func()) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.pending = append(q.pending, fn)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *writeQueue) take() ([]func(), bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	batch := q.pending
	q.pending = nil
	return batch, q.closed
}

// writePump handles queued actions until close, then drains what is left.
func (q *writeQueue) writePump() {
	defer close(q.done)

	for range q.wake {
		for {
			batch, closed := q.take()
			for _, fn := range batch {
				q.run(fn)
			}
			if len(batch) == 0 {
				if closed {
					return
				}
				break
			}
		}
	}
}

func (q *writeQueue) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("queued action panicked")
		}
	}()
	fn()
}

// flush blocks until everything queued so far has run, or timeout.
func (q *writeQueue) flush(timeout time.Duration) bool {
	done := make(chan struct{})
	q.push(func() { close(done) })
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// close stops accepting work and waits for the pump to drain.
func (q *writeQueue) close(timeout time.Duration) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}

	select {
	case <-q.done:
	case <-time.After(timeout):
		log.Warn().Dur("timeout", timeout).Msg("write queue did not drain in time")
	}
}
