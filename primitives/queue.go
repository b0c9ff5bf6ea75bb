package primitives

import (
	"time"

	"github.com/signalsfoundry/primemover/enginecore"
	"github.com/signalsfoundry/primemover/internal/observability"
)

type queueItem[T any] struct {
	value    T
	enqueued enginecore.Time
}

// Queue is a FIFO container instrumented with the wait-time and length
// statistics DES models commonly need for service-time analysis. It does
// not itself block: Dequeue on an empty queue returns (zero, false)
// immediately, matching the primitive contract's "none, not an error".
type Queue[T any] struct {
	items []queueItem[T]

	totalEntries int64
	totalExits   int64
	maxLength    int
	totalWait    int64
	maxWait      enginecore.Time

	lengthIntegral int64
	lastLength     int
	lastChangeTime enginecore.Time
	haveLastChange bool

	metricsName string
	metrics     *observability.PrimitiveCollector
}

// NewQueue returns an empty queue.
func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{}
}

// SetMetrics attaches a Prometheus collector that Enqueue/Dequeue report to
// under the given instance name. A nil collector disables reporting.
func (q *Queue[T]) SetMetrics(name string, m *observability.PrimitiveCollector) {
	q.metricsName = name
	q.metrics = m
}

// Enqueue appends item, recording its arrival time for later wait-time
// accounting.
func (q *Queue[T]) Enqueue(item T) {
	now := enginecore.Now()
	q.items = append(q.items, queueItem[T]{value: item, enqueued: now})
	q.totalEntries++
	if len(q.items) > q.maxLength {
		q.maxLength = len(q.items)
	}
	q.foldLength(now)
	q.reportLength()
}

// Dequeue removes and returns the head item. ok is false if the queue is
// empty.
func (q *Queue[T]) Dequeue() (value T, ok bool) {
	if len(q.items) == 0 {
		return value, false
	}
	now := enginecore.Now()
	head := q.items[0]
	q.items = q.items[1:]
	q.totalExits++
	wait := int64(now) - int64(head.enqueued)
	q.totalWait += wait
	if enginecore.Time(wait) > q.maxWait {
		q.maxWait = enginecore.Time(wait)
	}
	q.foldLength(now)
	if q.metrics != nil {
		q.metrics.ObserveQueueDequeue(q.metricsName, time.Duration(wait)*time.Second, len(q.items))
	}
	return head.value, true
}

// Remove deletes the first item equal to target, reporting whether one was
// found. It updates length statistics as Dequeue does, but does not count
// toward total_exits (reserved for Dequeue).
func (q *Queue[T]) Remove(target T, eq func(a, b T) bool) bool {
	for i, it := range q.items {
		if eq(it.value, target) {
			now := enginecore.Now()
			q.items = append(q.items[:i], q.items[i+1:]...)
			q.foldLength(now)
			q.reportLength()
			return true
		}
	}
	return false
}

// Peek returns the head item without removing it. ok is false if empty.
func (q *Queue[T]) Peek() (value T, ok bool) {
	if len(q.items) == 0 {
		return value, false
	}
	return q.items[0].value, true
}

// Contains reports whether any queued item equals target under eq.
func (q *Queue[T]) Contains(target T, eq func(a, b T) bool) bool {
	for _, it := range q.items {
		if eq(it.value, target) {
			return true
		}
	}
	return false
}

// Size returns the current number of queued items.
func (q *Queue[T]) Size() int {
	return len(q.items)
}

// IsEmpty reports whether the queue currently holds no items.
func (q *Queue[T]) IsEmpty() bool {
	return len(q.items) == 0
}

// Clear empties the queue without touching accumulated statistics.
func (q *Queue[T]) Clear() {
	now := enginecore.Now()
	q.items = nil
	q.foldLength(now)
	q.reportLength()
}

func (q *Queue[T]) reportLength() {
	if q.metrics == nil {
		return
	}
	q.metrics.SetQueueLength(q.metricsName, len(q.items))
}

// Items returns a snapshot of the queued values in FIFO order, for
// diagnostics only.
func (q *Queue[T]) Items() []T {
	out := make([]T, len(q.items))
	for i, it := range q.items {
		out[i] = it.value
	}
	return out
}

func (q *Queue[T]) foldLength(now enginecore.Time) {
	if q.haveLastChange {
		delta := int64(now) - int64(q.lastChangeTime)
		q.lengthIntegral += int64(q.lastLength) * delta
	}
	q.lastLength = len(q.items)
	q.lastChangeTime = now
	q.haveLastChange = true
}

// QueueStatistics is a point-in-time snapshot of a Queue's usage history.
type QueueStatistics struct {
	TotalEntries  int64
	TotalExits    int64
	CurrentLength int
	MaxLength     int
	AvgWaitTime   float64
	MaxWaitTime   enginecore.Time
	AvgLength     float64
}

// Statistics reports entry/exit counts, wait times, and the time-weighted
// average length over [0, windowEnd].
func (q *Queue[T]) Statistics(windowEnd enginecore.Time) QueueStatistics {
	integral := q.lengthIntegral
	if q.haveLastChange {
		delta := int64(windowEnd) - int64(q.lastChangeTime)
		integral += int64(len(q.items)) * delta
	}
	var avgWait, avgLength float64
	if q.totalExits > 0 {
		avgWait = float64(q.totalWait) / float64(q.totalExits)
	}
	if windowEnd > 0 {
		avgLength = float64(integral) / float64(windowEnd)
	}
	return QueueStatistics{
		TotalEntries:  q.totalEntries,
		TotalExits:    q.totalExits,
		CurrentLength: len(q.items),
		MaxLength:     q.maxLength,
		AvgWaitTime:   avgWait,
		MaxWaitTime:   q.maxWait,
		AvgLength:     avgLength,
	}
}

// ResetStatistics zeroes every accumulated counter, leaving queued items and
// their recorded enqueue times untouched.
func (q *Queue[T]) ResetStatistics() {
	q.totalEntries = 0
	q.totalExits = 0
	q.maxLength = 0
	q.totalWait = 0
	q.maxWait = 0
	q.lengthIntegral = 0
	q.haveLastChange = false
}
