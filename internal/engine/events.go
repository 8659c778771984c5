// ABOUTME: Ordered event delivery for engine callbacks
// ABOUTME: Unbounded FIFO drained by a single dispatcher goroutine
package engine

import "sync"

type event struct {
	session Session
	kind    EventKind
	arg1    int
	arg2    int
}

// eventQueue never blocks the producer, so events can be queued with the engine lock held
type eventQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []event
	closed bool
	done   chan struct{}
}

func newEventQueue(deliver func(event)) *eventQueue {
	q := &eventQueue{done: make(chan struct{})}
	q.cond = sync.NewCond(&q.mu)
	go q.run(deliver)
	return q
}

func (q *eventQueue) push(ev event) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.items = append(q.items, ev)
	q.cond.Signal()
}

func (q *eventQueue) run(deliver func(event)) {
	defer close(q.done)

	for {
		q.mu.Lock()
		for len(q.items) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.items) == 0 {
			q.mu.Unlock()
			return
		}
		ev := q.items[0]
		q.items[0] = event{}
		q.items = q.items[1:]
		q.mu.Unlock()

		deliver(ev)
	}
}

// close stops accepting events and waits for queued ones to be delivered
func (q *eventQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.cond.Broadcast()
	q.mu.Unlock()

	<-q.done
}
