package primitives

import (
	"time"

	"github.com/signalsfoundry/primemover/enginecore"
	"github.com/signalsfoundry/primemover/internal/observability"
)

// Token is proof of a successful Acquire, redeemable only at the pool that
// issued it.
type Token struct {
	pool  *Resource
	count int
}

// Count returns the number of units this token holds.
func (t Token) Count() int { return t.count }

type resourceWaiter struct {
	w       *enginecore.Waiter
	count   int
	arrival enginecore.Time
}

// Resource is a counted pool with strict FIFO admission: a waiter can never
// be overtaken by a later arrival even if the later request could be
// satisfied immediately.
type Resource struct {
	capacity  int
	available int
	waiters   []resourceWaiter

	totalAcquisitions int64
	totalWaitTime     int64
	maxWaitTime       enginecore.Time
	utilIntegral      int64
	lastChangeTime    enginecore.Time
	haveLastChange    bool

	metricsName string
	metrics     *observability.PrimitiveCollector
}

// SetMetrics attaches a Prometheus collector that Acquire/Release report
// to under the given instance name. A nil collector disables reporting.
func (r *Resource) SetMetrics(name string, m *observability.PrimitiveCollector) {
	r.metricsName = name
	r.metrics = m
}

// NewResource constructs a pool with the given fixed capacity, which must be
// positive.
func NewResource(capacity int) *Resource {
	if capacity <= 0 {
		violateResource("NewResource", "capacity must be positive")
	}
	return &Resource{capacity: capacity, available: capacity}
}

func violateResource(op, reason string) {
	// Resource misuse is a contract violation, same as the rest of the core.
	panic(enginecore.ContractViolation{Op: op, Reason: reason})
}

// Acquire requests count units, blocking until they can be
// granted in FIFO order. A count of zero always succeeds immediately with
// zero wait, regardless of queue state.
func (r *Resource) Acquire(count int) Token {
	if count < 0 {
		violateResource("Acquire", "count must be non-negative")
	}
	c := enginecore.CurrentController()
	now := c.CurrentTime()

	if count == 0 {
		r.recordAcquisition(0)
		r.reportAcquire(0)
		return Token{pool: r, count: 0}
	}

	if len(r.waiters) == 0 && r.available >= count {
		r.setAvailable(now, r.available-count)
		r.recordAcquisition(0)
		r.reportAcquire(0)
		return Token{pool: r, count: count}
	}

	w := c.Suspend()
	r.waiters = append(r.waiters, resourceWaiter{w: w, count: count, arrival: now})
	val, _ := w.Await()
	return val.(Token)
}

// Release redeems a token at its issuing pool, returning its units to the
// available pool and waking FIFO-eligible waiters.
func (r *Resource) Release(token Token) {
	if token.pool != r {
		violateResource("Release", "token does not belong to this resource")
	}
	r.releaseCount(token.count)
}

// ReleaseCount returns count units directly to the pool, bypassing token
// validation. Intended for test utilities seeding resource state.
func (r *Resource) ReleaseCount(count int) {
	r.releaseCount(count)
}

func (r *Resource) releaseCount(count int) {
	if count == 0 {
		return
	}
	c := enginecore.CurrentController()
	now := c.CurrentTime()
	r.setAvailable(now, r.available+count)

	for len(r.waiters) > 0 && r.available >= r.waiters[0].count {
		head := r.waiters[0]
		r.waiters = r.waiters[1:]
		r.setAvailable(now, r.available-head.count)
		wait := int64(now) - int64(head.arrival)
		r.totalWaitTime += wait
		if enginecore.Time(wait) > r.maxWaitTime {
			r.maxWaitTime = enginecore.Time(wait)
		}
		r.totalAcquisitions++
		r.reportAcquire(wait)
		c.Resume(head.w, now, Token{pool: r, count: head.count}, nil)
	}
}

func (r *Resource) reportAcquire(waitTicks int64) {
	if r.metrics == nil {
		return
	}
	r.metrics.ObserveResourceAcquire(r.metricsName, time.Duration(waitTicks)*time.Second, r.currentUtilization())
}

// currentUtilization reports the time-weighted utilisation ratio as of the
// last recorded change, closing the window at lastChangeTime rather than a
// caller-supplied windowEnd (unlike Statistics).
func (r *Resource) currentUtilization() float64 {
	if !r.haveLastChange || r.lastChangeTime <= 0 {
		return 0
	}
	return float64(r.utilIntegral) / float64(r.lastChangeTime)
}

func (r *Resource) recordAcquisition(wait int64) {
	r.totalAcquisitions++
	r.totalWaitTime += wait
	if enginecore.Time(wait) > r.maxWaitTime {
		r.maxWaitTime = enginecore.Time(wait)
	}
}

// setAvailable updates available, folding the elapsed interval's usage into
// the utilisation integral before the change takes effect.
func (r *Resource) setAvailable(now enginecore.Time, newAvailable int) {
	if r.haveLastChange {
		used := r.capacity - r.available
		delta := int64(now) - int64(r.lastChangeTime)
		r.utilIntegral += int64(used) * delta
	}
	r.available = newAvailable
	r.lastChangeTime = now
	r.haveLastChange = true
}

// Available returns the current number of free units.
func (r *Resource) Available() int {
	return r.available
}

// Statistics is a point-in-time snapshot of a Resource's usage history.
type Statistics struct {
	TotalAcquisitions int64
	AvgWaitTime       float64
	MaxWaitTime       enginecore.Time
	UtilizationRatio  float64
}

// Statistics reports acquisition counts, wait times, and the time-weighted
// utilisation ratio over [0, windowEnd]. windowEnd is caller-supplied
// (typically the controller's current time) rather than read from the
// ambient controller, since callers legitimately read statistics after
// EventLoop has returned and released its binding.
func (r *Resource) Statistics(windowEnd enginecore.Time) Statistics {
	integral := r.utilIntegral
	if r.haveLastChange {
		used := r.capacity - r.available
		delta := int64(windowEnd) - int64(r.lastChangeTime)
		integral += int64(used) * delta
	}
	var avgWait, utilization float64
	if r.totalAcquisitions > 0 {
		avgWait = float64(r.totalWaitTime) / float64(r.totalAcquisitions)
	}
	if windowEnd > 0 {
		utilization = float64(integral) / float64(windowEnd)
	}
	return Statistics{
		TotalAcquisitions: r.totalAcquisitions,
		AvgWaitTime:       avgWait,
		MaxWaitTime:       r.maxWaitTime,
		UtilizationRatio:  utilization,
	}
}

// Loan is a scoped acquisition: hold it for the lifetime of a call and
// release it with defer, mirroring the source's guaranteed-release-on-exit
// idiom in a form Go's defer can express directly.
type Loan struct {
	r     *Resource
	token Token
}

// Loan acquires count units and returns a handle whose Release returns them.
// Callers are expected to `defer loan.Release()` immediately so the units
// are returned whether the enclosing call returns normally or panics.
func (r *Resource) Loan(count int) *Loan {
	return &Loan{r: r, token: r.Acquire(count)}
}

// Release returns the loan's units to its pool. Safe to call at most once.
func (l *Loan) Release() {
	l.r.Release(l.token)
}
