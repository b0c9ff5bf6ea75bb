package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrimitiveCollector exposes Prometheus metrics for the blocking primitives
// (primitives.Resource, primitives.Queue), labeled by the caller-supplied
// name of the specific instance being observed.
type PrimitiveCollector struct {
	gatherer prometheus.Gatherer

	ResourceAcquisitions *prometheus.CounterVec
	ResourceWaitSeconds  *prometheus.HistogramVec
	ResourceUtilization  *prometheus.GaugeVec

	QueueCurrentLength *prometheus.GaugeVec
	QueueWaitSeconds   *prometheus.HistogramVec
}

// NewPrimitiveCollector registers primitive metrics against the provided
// registerer.
func NewPrimitiveCollector(reg prometheus.Registerer) (*PrimitiveCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	acquisitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "resource_acquisitions_total",
		Help: "Total number of successful Resource.Acquire completions, labeled by resource name.",
	}, []string{"resource"})
	acquisitions, err := registerCounterVec(reg, acquisitions, "resource_acquisitions_total")
	if err != nil {
		return nil, err
	}

	resourceWait := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "resource_wait_seconds",
		Help:    "Simulated wait time between Resource.Acquire arrival and grant.",
		Buckets: []float64{0, 1, 5, 10, 30, 60, 300, 3600},
	}, []string{"resource"})
	resourceWait, err = registerHistogramVec(reg, resourceWait, "resource_wait_seconds")
	if err != nil {
		return nil, err
	}

	utilization := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "resource_utilization_ratio",
		Help: "Time-weighted fraction of a Resource's capacity in use over the run so far.",
	}, []string{"resource"})
	utilization, err = registerGaugeVec(reg, utilization, "resource_utilization_ratio")
	if err != nil {
		return nil, err
	}

	queueLength := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "queue_current_length",
		Help: "Current number of items held in a Queue, labeled by queue name.",
	}, []string{"queue"})
	queueLength, err = registerGaugeVec(reg, queueLength, "queue_current_length")
	if err != nil {
		return nil, err
	}

	queueWait := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "queue_wait_seconds",
		Help:    "Simulated wait time between Queue.Enqueue and the matching Dequeue.",
		Buckets: []float64{0, 1, 5, 10, 30, 60, 300, 3600},
	}, []string{"queue"})
	queueWait, err = registerHistogramVec(reg, queueWait, "queue_wait_seconds")
	if err != nil {
		return nil, err
	}

	return &PrimitiveCollector{
		gatherer:             gatherer,
		ResourceAcquisitions: acquisitions,
		ResourceWaitSeconds:  resourceWait,
		ResourceUtilization:  utilization,
		QueueCurrentLength:   queueLength,
		QueueWaitSeconds:     queueWait,
	}, nil
}

// ObserveResourceAcquire records one Resource.Acquire completion: its name,
// the simulated wait it experienced, and the pool's current utilization.
func (c *PrimitiveCollector) ObserveResourceAcquire(name string, wait time.Duration, utilization float64) {
	if c == nil {
		return
	}
	if c.ResourceAcquisitions != nil {
		c.ResourceAcquisitions.WithLabelValues(name).Inc()
	}
	if c.ResourceWaitSeconds != nil {
		c.ResourceWaitSeconds.WithLabelValues(name).Observe(wait.Seconds())
	}
	if c.ResourceUtilization != nil {
		c.ResourceUtilization.WithLabelValues(name).Set(utilization)
	}
}

// ObserveQueueDequeue records one Queue.Dequeue completion: its name, the
// simulated wait the item experienced, and the queue's current length.
func (c *PrimitiveCollector) ObserveQueueDequeue(name string, wait time.Duration, currentLength int) {
	if c == nil {
		return
	}
	if c.QueueWaitSeconds != nil {
		c.QueueWaitSeconds.WithLabelValues(name).Observe(wait.Seconds())
	}
	if c.QueueCurrentLength != nil {
		c.QueueCurrentLength.WithLabelValues(name).Set(float64(currentLength))
	}
}

// SetQueueLength updates a queue's current-length gauge directly, for
// mutators (Enqueue, Remove, Clear) that change length without a dequeue.
func (c *PrimitiveCollector) SetQueueLength(name string, length int) {
	if c == nil || c.QueueCurrentLength == nil {
		return
	}
	c.QueueCurrentLength.WithLabelValues(name).Set(float64(length))
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *PrimitiveCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}
