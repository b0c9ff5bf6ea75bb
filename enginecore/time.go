// Package enginecore implements the Prime Mover discrete-event simulation
// runtime: the time model, the event and event queue, the continuation
// carrier, and the scheduler that drives them.
package enginecore

import "math"

// Time is the simulated clock. It is a signed 64-bit tick count unrelated to
// wall-clock time; negative, zero, and maximum values are all legal.
type Time int64

// MinTime and MaxTime bound the representable simulated timeline.
const (
	MinTime Time = math.MinInt64
	MaxTime Time = math.MaxInt64
)

// Before reports whether t occurs strictly before u. Ordinary int64
// comparison does not overflow (only subtraction does), so this is just `<`,
// but it is spelled out as a method so call sites never reach for `t-u`.
func (t Time) Before(u Time) bool { return t < u }

// After reports whether t occurs strictly after u.
func (t Time) After(u Time) bool { return t > u }

// Compare returns -1, 0, or 1 as t is before, equal to, or after u.
func (t Time) Compare(u Time) int {
	switch {
	case t < u:
		return -1
	case t > u:
		return 1
	default:
		return 0
	}
}
