package primitives

import "github.com/signalsfoundry/primemover/enginecore"

// Condition is a typed value hand-off: a waiter's Await returns whatever
// value a subsequent Signal or SignalAll hands it, in FIFO order.
type Condition[T any] struct {
	waiters []*enginecore.Waiter
}

// NewCondition returns an empty condition.
func NewCondition[T any]() *Condition[T] {
	return &Condition[T]{}
}

// Await registers the currently-dispatching event as a waiter and blocks
// until a Signal or SignalAll delivers a value.
func (cd *Condition[T]) Await() T {
	c := enginecore.CurrentController()
	w := c.Suspend()
	cd.waiters = append(cd.waiters, w)
	val, _ := w.Await()
	if val == nil {
		var zero T
		return zero
	}
	return val.(T)
}

// Signal hands value to the longest-waiting waiter. A no-op if there are no
// waiters.
func (cd *Condition[T]) Signal(value T) {
	if len(cd.waiters) == 0 {
		return
	}
	c := enginecore.CurrentController()
	w := cd.waiters[0]
	cd.waiters = cd.waiters[1:]
	c.Resume(w, c.CurrentTime(), value, nil)
}

// SignalAll hands the same value to every current waiter, in registration
// order, all resuming at the current time.
func (cd *Condition[T]) SignalAll(value T) {
	if len(cd.waiters) == 0 {
		return
	}
	c := enginecore.CurrentController()
	now := c.CurrentTime()
	pending := cd.waiters
	cd.waiters = nil
	for _, w := range pending {
		c.Resume(w, now, value, nil)
	}
}

// HasWaiters reports whether any event is currently parked on cd.
func (cd *Condition[T]) HasWaiters() bool {
	return len(cd.waiters) > 0
}

// WaiterCount returns the number of events currently parked on cd.
func (cd *Condition[T]) WaiterCount() int {
	return len(cd.waiters)
}
