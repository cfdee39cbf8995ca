package runtime

import (
	"sync"
	"time"

	"github.com/roach88/graphcache/internal/transport"
)

// eventKind distinguishes operation outcomes.
type eventKind int

const (
	eventQueryDone eventKind = iota + 1
	eventMutationDone
)

// event carries one operation outcome to the Run loop.
type event struct {
	kind     eventKind
	op       *operation
	response *transport.Response
	err      error
}

// operation is the bookkeeping for one PerformQuery/PerformMutation call.
type operation struct {
	id       string
	document string
	updaters []CacheUpdater
	started  time.Time
}

// eventQueue is an unbounded FIFO of operation outcomes.
//
// Transport goroutines enqueue; the Run loop dequeues. The signal channel lets
// the loop wait without blocking past context cancellation.
type eventQueue struct {
	mu     sync.Mutex
	events []event
	closed bool
	signal chan struct{} // buffered, size 1
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]event, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds an event to the back of the queue. Returns false if the queue
// is closed.
func (q *eventQueue) Enqueue(e event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.events = append(q.events, e)

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front event without blocking.
func (q *eventQueue) TryDequeue() (event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return event{}, false
	}

	e := q.events[0]
	q.events[0] = event{} // release references held by the backing array
	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}
	return e, true
}

// Wait returns a channel that signals when events may be available. It is
// closed when the queue is closed.
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Close stops accepting events and wakes the loop. Queued events are still
// drained.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}

// inflightCounter tracks issued operations that have not been dispatched or
// dropped. Unlike sync.WaitGroup it allows add to race with wait.
type inflightCounter struct {
	mu   sync.Mutex
	cond *sync.Cond
	n    int
}

func newInflightCounter() *inflightCounter {
	c := &inflightCounter{}
	c.cond = sync.NewCond(&c.mu)
	return c
}

func (c *inflightCounter) add() {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

func (c *inflightCounter) done() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n--
	if c.n <= 0 {
		c.n = 0
		c.cond.Broadcast()
	}
}

// wait blocks until the count reaches zero.
func (c *inflightCounter) wait() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.n > 0 {
		c.cond.Wait()
	}
}

func (c *inflightCounter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}
