package primitives

import (
	"testing"

	"github.com/signalsfoundry/primemover/enginecore"
)

// runInDispatch drives fn to completion inside a single dispatched event, so
// calls needing enginecore.Now() (as Queue's statistics do) have a bound
// controller to read. fn must not call t.Fatal/FailNow: it runs on the
// dispatch goroutine, not the test goroutine: collect results into locals
// and assert on them after runInDispatch returns.
func runInDispatch(t *testing.T, fn func()) {
	t.Helper()
	c := enginecore.NewController()
	c.Post(&traceEntity{fn: fn}, 0)
	if err := c.EventLoop(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestQueueFIFOOrder(t *testing.T) {
	q := NewQueue[string]()
	var got [3]string
	var ok [3]bool
	var emptyOK bool
	runInDispatch(t, func() {
		q.Enqueue("a")
		q.Enqueue("b")
		q.Enqueue("c")
		for i := range got {
			got[i], ok[i] = q.Dequeue()
		}
		_, emptyOK = q.Dequeue()
	})

	want := [3]string{"a", "b", "c"}
	for i := range want {
		if !ok[i] || got[i] != want[i] {
			t.Fatalf("position %d: got (%q, %v), want %q", i, got[i], ok[i], want[i])
		}
	}
	if emptyOK {
		t.Fatalf("expected empty dequeue to report ok=false")
	}
}

func TestQueuePeekDoesNotRemove(t *testing.T) {
	q := NewQueue[int]()
	var v int
	var ok bool
	var size int
	runInDispatch(t, func() {
		q.Enqueue(1)
		q.Enqueue(2)
		v, ok = q.Peek()
		size = q.Size()
	})
	if !ok || v != 1 {
		t.Fatalf("got (%d, %v), want (1, true)", v, ok)
	}
	if size != 2 {
		t.Fatalf("expected peek to leave queue untouched, size=%d", size)
	}
}

func TestQueueRemoveAndContains(t *testing.T) {
	q := NewQueue[int]()
	eq := func(a, b int) bool { return a == b }
	var hadBefore, removed, hasAfter bool
	var size int
	runInDispatch(t, func() {
		q.Enqueue(1)
		q.Enqueue(2)
		q.Enqueue(3)
		hadBefore = q.Contains(2, eq)
		removed = q.Remove(2, eq)
		hasAfter = q.Contains(2, eq)
		size = q.Size()
	})

	if !hadBefore {
		t.Fatalf("expected queue to contain 2")
	}
	if !removed {
		t.Fatalf("expected Remove to find 2")
	}
	if hasAfter {
		t.Fatalf("expected 2 removed")
	}
	if size != 2 {
		t.Fatalf("expected size 2, got %d", size)
	}
}

func TestQueueSizeMatchesEntriesMinusExitsMinusRemoves(t *testing.T) {
	q := NewQueue[int]()
	eq := func(a, b int) bool { return a == b }
	var size int
	runInDispatch(t, func() {
		for i := 0; i < 5; i++ {
			q.Enqueue(i)
		}
		q.Dequeue()
		q.Dequeue()
		q.Remove(3, eq)
		size = q.Size()
	})
	if size != 2 {
		t.Fatalf("expected size 2, got %d", size)
	}
}

func TestQueueClear(t *testing.T) {
	q := NewQueue[int]()
	var empty bool
	runInDispatch(t, func() {
		q.Enqueue(1)
		q.Enqueue(2)
		q.Clear()
		empty = q.IsEmpty()
	})
	if !empty {
		t.Fatalf("expected queue empty after Clear")
	}
}

func TestQueueResetStatistics(t *testing.T) {
	q := NewQueue[int]()
	var stats QueueStatistics
	runInDispatch(t, func() {
		q.Enqueue(1)
		q.Dequeue()
		q.ResetStatistics()
		stats = q.Statistics(enginecore.Now())
	})
	if stats.TotalEntries != 0 || stats.TotalExits != 0 {
		t.Fatalf("expected statistics reset, got %+v", stats)
	}
}
