package service

import "sync"

// eventQueue hands events to the session's handlers in emission order,
// on one goroutine. push never blocks the loop.
type eventQueue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pending []Event
	closed  bool
}

func newEventQueue() *eventQueue {
	q := &eventQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// push appends e. Events pushed after close are discarded.
func (q *eventQueue) push(e Event) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.pending = append(q.pending, e)
	q.cond.Signal()
}

// close lets run return once everything already pushed is delivered.
func (q *eventQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Signal()
}

// run delivers events until the queue is closed and drained. handlers is
// consulted per batch so late OnEvent registrations are honoured.
func (q *eventQueue) run(handlers func() []EventHandler) {
	for {
		q.mu.Lock()
		for len(q.pending) == 0 && !q.closed {
			q.cond.Wait()
		}
		batch := q.pending
		q.pending = nil
		closed := q.closed
		q.mu.Unlock()

		hs := handlers()
		for _, e := range batch {
			for _, h := range hs {
				h(e)
			}
		}
		if closed && len(batch) == 0 {
			return
		}
	}
}
