package enginecore

import (
	"container/heap"
	"sync"
)

// EventQueue is a priority structure ordered by (Time asc, Ordinal asc): the
// classic event-list invariant that ties at the same simulated time resolve
// in insertion order. It is grounded on the teacher's mutex-guarded
// PriorityQueue (internal/sbi/controller/scheduler.go) but orders via
// container/heap instead of a sort-on-pop, since the scheduler pops on every
// tick and O(log n) matters here in a way it didn't for that service-request
// queue.
type EventQueue struct {
	mu          sync.Mutex
	items       eventHeap
	nextOrdinal int64
}

// NewEventQueue returns an empty queue.
func NewEventQueue() *EventQueue {
	q := &EventQueue{}
	heap.Init(&q.items)
	return q
}

// Push assigns the event its insertion ordinal and inserts it. O(log n).
func (q *EventQueue) Push(e *Event) {
	if e == nil {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	e.Ordinal = q.nextOrdinal
	q.nextOrdinal++
	heap.Push(&q.items, e)
}

// PopMin removes and returns the smallest (Time, Ordinal) event, or nil if
// the queue is empty. O(log n).
func (q *EventQueue) PopMin() *Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	return heap.Pop(&q.items).(*Event)
}

// PeekMin inspects the smallest event without removing it.
func (q *EventQueue) PeekMin() *Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	return q.items[0]
}

// Remove removes a specific scheduled event, e.g. for cancellation. It is
// O(log n) given the event's live back-index, and a no-op if the event is
// not (or no longer) queued.
func (q *EventQueue) Remove(e *Event) {
	if e == nil {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if e.index < 0 || e.index >= len(q.items) || q.items[e.index] != e {
		return
	}
	heap.Remove(&q.items, e.index)
}

// Size returns the number of queued events.
func (q *EventQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// IsEmpty reports whether the queue currently holds no events.
func (q *EventQueue) IsEmpty() bool {
	return q.Size() == 0
}

// Events returns a snapshot of the queued events in heap (not necessarily
// time) order, for diagnostics only — never on the dispatch hot path.
func (q *EventQueue) Events() []*Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*Event, len(q.items))
	copy(out, q.items)
	return out
}

// eventHeap implements container/heap.Interface over *Event, ordered by
// (Time, Ordinal) and maintaining each Event's back-index for O(log n)
// arbitrary removal.
type eventHeap []*Event

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	if h[i].Time != h[j].Time {
		return h[i].Time.Before(h[j].Time)
	}
	return h[i].Ordinal < h[j].Ordinal
}

func (h eventHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *eventHeap) Push(x any) {
	e := x.(*Event)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}
