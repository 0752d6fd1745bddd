package engine

import (
	"errors"
	"sync"

	"github.com/roach88/sealbid/internal/auction"
)

// ErrBusy is returned when the engine's queue is at its limit.
var ErrBusy = errors.New("engine: queue full")

// EventType distinguishes between event kinds.
type EventType int

const (
	// EventTypeRequest carries a state-changing auction request.
	EventTypeRequest EventType = iota + 1
	// EventTypeInspect runs a read-only function against the auction.
	EventTypeInspect
)

// Event is one unit of work for the Run loop. reply receives exactly one
// Response once the event has been processed.
type Event struct {
	Type    EventType
	Request Request
	Inspect func(*auction.Auction)
	reply   chan Response
}

// eventQueue is the FIFO between callers of Do and Inspect and the Run
// loop. Producers may be on any goroutine; only Run consumes.
//
// A limit of zero leaves the queue unbounded. signal has a buffer of one,
// so any number of enqueues coalesce into a single wake-up, and it is
// closed with the queue so a waiting Run loop sees the close.
type eventQueue struct {
	mu     sync.Mutex
	events []Event
	head   int
	limit  int
	closed bool
	signal chan struct{}
}

func newEventQueue(limit int) *eventQueue {
	return &eventQueue{
		events: make([]Event, 0, 64),
		limit:  limit,
		signal: make(chan struct{}, 1),
	}
}

// Enqueue appends e. It fails with ErrStopped once the queue is closed
// and with ErrBusy when the limit is reached.
func (q *eventQueue) Enqueue(e Event) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrStopped
	}
	if q.limit > 0 && len(q.events)-q.head >= q.limit {
		return ErrBusy
	}
	q.events = append(q.events, e)

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return nil
}

// TryDequeue pops the oldest event without blocking.
func (q *eventQueue) TryDequeue() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.head == len(q.events) {
		return Event{}, false
	}
	e := q.events[q.head]
	q.events[q.head] = Event{}
	q.head++

	switch {
	case q.head == len(q.events):
		q.events, q.head = q.events[:0], 0
	case q.head >= 64 && 2*q.head >= len(q.events):
		n := copy(q.events, q.events[q.head:])
		clear(q.events[n:])
		q.events, q.head = q.events[:n], 0
	}
	return e, true
}

// Wait returns the wake-up channel. It is closed when the queue is closed.
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of queued events.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events) - q.head
}

// Drained reports whether the queue is closed and empty.
func (q *eventQueue) Drained() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed && q.head == len(q.events)
}

// Close stops further enqueues. Events already queued remain.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
