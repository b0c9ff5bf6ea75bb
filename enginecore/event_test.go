package enginecore

import (
	"runtime"
	"testing"
	"weak"
)

func TestEventSignatureToleratesNilTarget(t *testing.T) {
	var e *Event
	if got := e.signature(); got != "unknown" {
		t.Fatalf("got %q, want unknown", got)
	}
	e = &Event{}
	if got := e.signature(); got != "unknown" {
		t.Fatalf("got %q, want unknown", got)
	}
}

func TestWeakSourceToleratesCollection(t *testing.T) {
	parent := &Event{Target: stubEntity{}}
	child := &Event{Target: stubEntity{}, Source: weak.Make(parent)}

	if child.Source.Value() == nil {
		t.Fatalf("expected source to resolve before collection")
	}

	parent = nil
	runtime.GC()
	runtime.GC()

	// The weak pointer must tolerate reclamation: reading it after the
	// referent is gone must not panic, just report absence.
	_ = child.Source.Value()
}

func TestSuspendRequiresDispatchingEvent(t *testing.T) {
	c := NewController()
	defer func() {
		r := recover()
		if _, ok := r.(ContractViolation); !ok {
			t.Fatalf("expected ContractViolation, got %v", r)
		}
	}()
	c.Suspend()
}

func TestPostContinuingWithoutDispatchPanics(t *testing.T) {
	c := NewController()
	defer func() {
		r := recover()
		if _, ok := r.(ContractViolation); !ok {
			t.Fatalf("expected ContractViolation, got %v", r)
		}
	}()
	c.PostContinuing(stubEntity{}, 0)
}

type doubleParkEntity struct{ c *Controller }

func (d *doubleParkEntity) Invoke(eventID int, args []Value) (Value, error) {
	d.c.Suspend()
	d.c.Suspend()
	return nil, nil
}
func (d *doubleParkEntity) SignatureOf(eventID int) string { return "double-park" }

func TestDoubleParkIsContractViolation(t *testing.T) {
	c := NewController()
	c.Post(&doubleParkEntity{c: c}, 0)
	defer func() {
		r := recover()
		if _, ok := r.(ContractViolation); !ok {
			t.Fatalf("expected ContractViolation panic from EventLoop, got %v", r)
		}
	}()
	_ = c.EventLoop()
}
