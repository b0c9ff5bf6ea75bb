package main

import (
	"testing"

	"github.com/signalsfoundry/primemover/enginecore"
	"github.com/signalsfoundry/primemover/internal/logging"
	"github.com/signalsfoundry/primemover/primitives"
)

// TestIntegration_TellerShopSingleServer runs the demo scenario end to end
// with a single teller and confirms every customer is served exactly once
// and the teller's wait statistics match a simple FIFO queue.
func TestIntegration_TellerShopSingleServer(t *testing.T) {
	const (
		customers   = 5
		serviceTime = enginecore.Time(10)
	)

	teller := primitives.NewResource(1)
	lobby := primitives.NewQueue[int]()
	shop := &tellerShop{teller: teller, lobby: lobby, serviceTime: serviceTime, log: logging.Noop()}

	controller := enginecore.NewController()
	controller.SetTrackSpectrum(true)

	// All customers arrive in a single burst at time zero, so each waits
	// behind every customer ahead of it for the full service time.
	for i := 0; i < customers; i++ {
		controller.Post(shop, eventArrive, i)
	}

	if err := controller.EventLoop(); err != nil {
		t.Fatalf("EventLoop: %v", err)
	}

	if got := controller.TotalEvents(); got != customers {
		t.Fatalf("TotalEvents = %d, want %d", got, customers)
	}

	stats := teller.Statistics(controller.CurrentTime())
	if stats.TotalAcquisitions != customers {
		t.Fatalf("TotalAcquisitions = %d, want %d", stats.TotalAcquisitions, customers)
	}
	// Finish times are serviceTime*(k+1) for the k-th customer (all arriving
	// at time zero), so wait_k = serviceTime*k.
	wantAvgWait := float64(0+10+20+30+40) / customers
	if stats.AvgWaitTime != wantAvgWait {
		t.Fatalf("AvgWaitTime = %v, want %v", stats.AvgWaitTime, wantAvgWait)
	}
	if stats.MaxWaitTime != 40 {
		t.Fatalf("MaxWaitTime = %v, want 40", stats.MaxWaitTime)
	}

	if !lobby.IsEmpty() {
		t.Fatalf("expected lobby to be empty after the run, got size %d", lobby.Size())
	}
}

// TestIntegration_TellerShopRejectsUnknownEvent confirms the demo Entity
// surfaces unrecognised event IDs as an ordinary domain error rather than
// panicking.
func TestIntegration_TellerShopRejectsUnknownEvent(t *testing.T) {
	shop := &tellerShop{teller: primitives.NewResource(1), lobby: primitives.NewQueue[int]()}
	if _, err := shop.Invoke(99, nil); err == nil {
		t.Fatalf("expected an error for an unknown event ID")
	}
}
