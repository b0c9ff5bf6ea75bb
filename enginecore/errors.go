package enginecore

import (
	"errors"
	"fmt"
	"reflect"
)

// ErrSimulationEnd is the control-flow signal a dispatched event returns to
// terminate EventLoop cleanly. It propagates out of EventLoop unwrapped and
// is not itself a fault.
var ErrSimulationEnd = errors.New("simulation end")

// ErrTimeInPast is returned by PostAt when asked to schedule strictly before
// the controller's current time.
var ErrTimeInPast = errors.New("post_at: time is before current_time")

// ErrNoController's message is the reason carried by the ContractViolation
// that CurrentController (and so Now/BlockingSleep) panics with when no
// controller is bound to the running simulation.
var ErrNoController = errors.New("no controller bound")

// SimulationFault wraps a user exception (a non-ErrSimulationEnd error
// returned from Entity.Invoke) with the scheduler context needed to locate
// it: which component raised it, when, and which entity/event was
// dispatching. It is never re-wrapped if the underlying error is already a
// *SimulationFault.
type SimulationFault struct {
	Component   string
	Time        Time
	EntityClass string
	Signature   string
	Cause       error
}

func (f *SimulationFault) Error() string {
	return fmt.Sprintf("[%s] dispatch failed at time %d, entity %s, event %s: %s",
		f.Component, f.Time, f.EntityClass, f.Signature, f.Cause)
}

func (f *SimulationFault) Unwrap() error { return f.Cause }

// wrapFault wraps err as a *SimulationFault attributed to event, unless err
// already is one.
func wrapFault(component string, now Time, event *Event, err error) error {
	var existing *SimulationFault
	if errors.As(err, &existing) {
		return err
	}
	return &SimulationFault{
		Component:   component,
		Time:        now,
		EntityClass: event.entityClass(),
		Signature:   event.signature(),
		Cause:       err,
	}
}

// ContractViolation marks misuse of the core API — a programmer error, not
// a simulated-domain failure — such as constructing a Resource with
// non-positive capacity, releasing a token to the wrong pool, or posting
// when no controller is bound. It surfaces synchronously as a panic at the
// call site and never enters the event queue.
type ContractViolation struct {
	Op     string
	Reason string
}

func (v ContractViolation) Error() string {
	return fmt.Sprintf("contract violation in %s: %s", v.Op, v.Reason)
}

// violate panics with a ContractViolation for op/reason. Callers use this
// for synchronous API misuse, never for domain failures inside Invoke.
func violate(op, reason string) {
	panic(ContractViolation{Op: op, Reason: reason})
}

func entityClassName(e Entity) string {
	if e == nil {
		return "unknown"
	}
	t := reflect.TypeOf(e)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.String()
}
