// Package primitives implements the blocking coordination types built on
// enginecore's continuation carrier: Signal, Condition, Resource, and Queue.
// Every suspension point here is an enginecore.Waiter; none of these types
// touch enginecore.Event directly.
package primitives

import "github.com/signalsfoundry/primemover/enginecore"

// Signal is an unvalued broadcast primitive: waiters block on Await and are
// released, in FIFO registration order, by Signal or SignalAll.
type Signal struct {
	waiters []*enginecore.Waiter
}

// NewSignal returns an empty signal.
func NewSignal() *Signal {
	return &Signal{}
}

// Await registers the currently-dispatching event as a waiter and blocks
// until Signal or SignalAll releases it. It must be called from inside a
// dispatched event.
func (s *Signal) Await() {
	c := enginecore.CurrentController()
	w := c.Suspend()
	s.waiters = append(s.waiters, w)
	w.Await()
}

// Signal resumes the longest-waiting waiter at the current time. A no-op if
// there are no waiters.
func (s *Signal) Signal() {
	if len(s.waiters) == 0 {
		return
	}
	c := enginecore.CurrentController()
	w := s.waiters[0]
	s.waiters = s.waiters[1:]
	c.Resume(w, c.CurrentTime(), nil, nil)
}

// SignalAll resumes every current waiter at the current time, in the order
// they registered, leaving the signal with no waiters.
func (s *Signal) SignalAll() {
	if len(s.waiters) == 0 {
		return
	}
	c := enginecore.CurrentController()
	now := c.CurrentTime()
	pending := s.waiters
	s.waiters = nil
	for _, w := range pending {
		c.Resume(w, now, nil, nil)
	}
}

// HasWaiters reports whether any event is currently parked on s.
func (s *Signal) HasWaiters() bool {
	return len(s.waiters) > 0
}

// WaiterCount returns the number of events currently parked on s.
func (s *Signal) WaiterCount() int {
	return len(s.waiters)
}
