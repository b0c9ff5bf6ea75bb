// Command primemover runs a small teller-queue simulation as a demonstration
// of the engine and blocking primitives: customers arrive at fixed
// intervals, queue for a shared pool of tellers, are served for a fixed
// duration, and leave.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"

	"github.com/signalsfoundry/primemover/enginecore"
	"github.com/signalsfoundry/primemover/internal/logging"
	"github.com/signalsfoundry/primemover/internal/observability"
	"github.com/signalsfoundry/primemover/primitives"
)

func main() {
	customers := flag.Int("customers", 20, "number of customers to simulate")
	tellerCount := flag.Int("tellers", 1, "teller pool capacity")
	arrivalGap := flag.Int64("arrival-gap", 5, "ticks between successive customer arrivals")
	serviceTime := flag.Int64("service-time", 8, "ticks a teller spends per customer")
	metricsAddr := flag.String("metrics-addr", "", "address to serve /metrics on; empty disables it")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx := context.Background()

	tracingCfg := observability.TracingConfigFromEnv()
	shutdownTracing, err := observability.InitTracing(ctx, tracingCfg, log)
	if err != nil {
		panic(fmt.Errorf("init tracing: %w", err))
	}
	defer observability.ShutdownWithTimeout(ctx, shutdownTracing, log)

	engineMetrics, err := observability.NewEngineCollector(nil)
	if err != nil {
		panic(fmt.Errorf("new engine collector: %w", err))
	}
	primMetrics, err := observability.NewPrimitiveCollector(nil)
	if err != nil {
		panic(fmt.Errorf("new primitive collector: %w", err))
	}

	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", engineMetrics.Handler())
		go func() {
			if srvErr := http.ListenAndServe(*metricsAddr, mux); srvErr != nil {
				log.Warn(ctx, "metrics server stopped", logging.String("error", srvErr.Error()))
			}
		}()
		log.Info(ctx, "metrics listening", logging.String("addr", *metricsAddr))
	}

	controller := enginecore.NewController()
	controller.SetLogger(log)
	controller.SetMetrics(engineMetrics)
	controller.SetTracingEnabled(tracingCfg.Enabled)
	controller.SetTrackSpectrum(true)

	teller := primitives.NewResource(*tellerCount)
	teller.SetMetrics("teller", primMetrics)
	lobby := primitives.NewQueue[int]()
	lobby.SetMetrics("lobby", primMetrics)

	shop := &tellerShop{teller: teller, lobby: lobby, serviceTime: enginecore.Time(*serviceTime), log: log}

	for i := 0; i < *customers; i++ {
		arrival := enginecore.Time(int64(i) * *arrivalGap)
		if postErr := controller.PostAt(arrival, shop, eventArrive, i); postErr != nil {
			panic(fmt.Errorf("schedule arrival %d: %w", i, postErr))
		}
	}

	log.Info(ctx, "starting simulation",
		logging.Int("customers", *customers),
		logging.Int("tellers", *tellerCount),
	)
	if loopErr := controller.EventLoop(); loopErr != nil {
		panic(fmt.Errorf("event loop: %w", loopErr))
	}

	stats := teller.Statistics(controller.CurrentTime())
	log.Info(ctx, "simulation complete",
		logging.Int("total_events", int(controller.TotalEvents())),
		logging.Any("teller_acquisitions", stats.TotalAcquisitions),
		logging.Any("teller_avg_wait", stats.AvgWaitTime),
		logging.Any("teller_max_wait", stats.MaxWaitTime),
		logging.Any("teller_utilization", stats.UtilizationRatio),
	)
	for _, entry := range controller.OrderedSpectrum() {
		fmt.Printf("%-24s %d\n", entry.Signature, entry.Count)
	}
}

const eventArrive = iota

// tellerShop is the demo Entity: customers arrive, queue for a shared teller
// pool, get served for a fixed duration, then leave.
type tellerShop struct {
	teller      *primitives.Resource
	lobby       *primitives.Queue[int]
	serviceTime enginecore.Time
	log         logging.Logger
}

func (s *tellerShop) SignatureOf(eventID int) string {
	if eventID == eventArrive {
		return "tellerShop.arrive"
	}
	return "tellerShop.unknown"
}

func (s *tellerShop) Invoke(eventID int, args []enginecore.Value) (enginecore.Value, error) {
	if eventID != eventArrive {
		return nil, fmt.Errorf("tellerShop: unknown event %d", eventID)
	}

	customerID := args[0].(int)
	s.lobby.Enqueue(customerID)
	token := s.teller.Acquire(1)
	s.lobby.Dequeue()

	s.log.Info(context.Background(), "customer being served",
		logging.Int("customer", customerID),
		logging.Any("time", enginecore.Now()),
	)

	enginecore.BlockingSleep(s.serviceTime)
	s.teller.Release(token)
	return nil, nil
}
