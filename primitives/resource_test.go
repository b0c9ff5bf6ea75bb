package primitives

import (
	"testing"

	"github.com/signalsfoundry/primemover/enginecore"
)

type customerEntity struct {
	r        *Resource
	hold     enginecore.Time
	finished *enginecore.Time
}

func (cu *customerEntity) Invoke(eventID int, args []enginecore.Value) (enginecore.Value, error) {
	tok := cu.r.Acquire(1)
	enginecore.BlockingSleep(cu.hold)
	cu.r.Release(tok)
	*cu.finished = enginecore.Now()
	return nil, nil
}
func (cu *customerEntity) SignatureOf(eventID int) string { return "customer" }

func TestResourceBurstArrivals(t *testing.T) {
	c := enginecore.NewController()
	r := NewResource(1)
	finished := make([]enginecore.Time, 5)

	for k := 0; k < 5; k++ {
		c.Post(&customerEntity{r: r, hold: 10, finished: &finished[k]}, 0)
	}
	if err := c.EventLoop(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for k := 0; k < 5; k++ {
		want := enginecore.Time(10 * (k + 1))
		if finished[k] != want {
			t.Fatalf("customer %d finished at %d, want %d", k, finished[k], want)
		}
	}

	stats := r.Statistics(c.CurrentTime())
	if stats.TotalAcquisitions != 5 {
		t.Fatalf("expected 5 acquisitions, got %d", stats.TotalAcquisitions)
	}
	if stats.AvgWaitTime != 20 {
		t.Fatalf("expected avg wait 20, got %v", stats.AvgWaitTime)
	}
	if stats.MaxWaitTime != 40 {
		t.Fatalf("expected max wait 40, got %v", stats.MaxWaitTime)
	}
}

func TestResourceFIFOWaitersWithHolder(t *testing.T) {
	c := enginecore.NewController()
	r := NewResource(1)
	var order []int

	holder := &customerEntity{r: r, hold: 100, finished: new(enginecore.Time)}
	c.Post(holder, 0)

	mk := func(id int) *traceEntity {
		return &traceEntity{fn: func() {
			tok := r.Acquire(1)
			order = append(order, id)
			r.Release(tok)
		}}
	}
	if err := c.PostAt(10, mk(1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.PostAt(20, mk(2)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.PostAt(30, mk(3)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := c.EventLoop(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []int{1, 2, 3}
	if len(order) != len(want) {
		t.Fatalf("got %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("got %v, want %v", order, want)
		}
	}
}

func TestResourceMM1Stable(t *testing.T) {
	c := enginecore.NewController()
	r := NewResource(1)
	finished := make([]enginecore.Time, 5)

	for k := 0; k < 5; k++ {
		arrival := enginecore.Time(20 * k)
		if err := c.PostAt(arrival, &customerEntity{r: r, hold: 10, finished: &finished[k]}, 0); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if err := c.EventLoop(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stats := r.Statistics(c.CurrentTime())
	if stats.AvgWaitTime != 0 {
		t.Fatalf("expected avg wait 0, got %v", stats.AvgWaitTime)
	}
	if stats.MaxWaitTime != 0 {
		t.Fatalf("expected max wait 0, got %v", stats.MaxWaitTime)
	}
}

func TestResourceZeroCountAcquireTriviallySucceeds(t *testing.T) {
	c := enginecore.NewController()
	r := NewResource(1)
	var acquired bool
	c.Post(&traceEntity{fn: func() {
		tok := r.Acquire(0)
		acquired = tok.Count() == 0
	}}, 0)
	if err := c.EventLoop(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !acquired {
		t.Fatalf("expected zero-count acquire to succeed")
	}
	stats := r.Statistics(c.CurrentTime())
	if stats.TotalAcquisitions != 1 {
		t.Fatalf("expected 1 acquisition, got %d", stats.TotalAcquisitions)
	}
}

func TestResourceNonPositiveCapacityIsContractViolation(t *testing.T) {
	defer func() {
		r := recover()
		if _, ok := r.(enginecore.ContractViolation); !ok {
			t.Fatalf("expected ContractViolation, got %v", r)
		}
	}()
	NewResource(0)
}

func TestResourceReleaseForeignTokenIsContractViolation(t *testing.T) {
	c := enginecore.NewController()
	a := NewResource(1)
	b := NewResource(1)
	defer func() {
		r := recover()
		if _, ok := r.(enginecore.ContractViolation); !ok {
			t.Fatalf("expected ContractViolation, got %v", r)
		}
	}()
	c.Post(&traceEntity{fn: func() {
		tok := a.Acquire(1)
		b.Release(tok)
	}}, 0)
	_ = c.EventLoop()
}
