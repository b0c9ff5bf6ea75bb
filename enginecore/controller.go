package enginecore

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"
	"weak"

	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/primemover/internal/logging"
	"github.com/signalsfoundry/primemover/internal/observability"
)

// currentControllerSlot is the ambient binding blocking primitives use to
// locate the controller driving the goroutine they're running on, in place
// of the source's thread-local. Because a Controller hands control between
// its task goroutines one at a time (continuation.go), and two simulations
// never run concurrently in one process, a single package-level slot plays
// the same role as a true thread-local without needing one.
var currentControllerSlot atomic.Pointer[Controller]

// Controller drives a single simulation's main loop: it pops due events,
// advances simulated time, dispatches them to their target Entity, and
// shepherds blocking calls through the continuation carrier.
type Controller struct {
	mu sync.Mutex

	pending     *EventQueue
	currentTime Time
	startTime   Time
	endTime     Time
	endTimeSet  bool

	currentlyDispatching *Event

	trackEventSources bool
	trackSpectrum     bool
	totalEvents       int64
	spectrum          map[string]int64

	stepDone chan stepMsg

	log     logging.Logger
	metrics *observability.EngineCollector
	tracing bool
}

// NewController constructs an idle controller with an empty queue and
// current_time/start_time at zero.
func NewController() *Controller {
	return &Controller{
		pending:  NewEventQueue(),
		spectrum: make(map[string]int64),
		stepDone: make(chan stepMsg),
		log:      logging.Noop(),
	}
}

// SetLogger attaches a structured logger used for fault/contract-violation
// diagnostics. A nil logger is replaced with a no-op one.
func (c *Controller) SetLogger(log logging.Logger) {
	if log == nil {
		log = logging.Noop()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.log = log
}

// SetMetrics attaches a Prometheus collector the main loop reports
// per-dispatch counts, durations, and queue depth to. A nil collector
// disables reporting (the zero value of *observability.EngineCollector is
// also nil-safe, so this is optional).
func (c *Controller) SetMetrics(m *observability.EngineCollector) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics = m
}

// SetTracingEnabled toggles whether the main loop opens a
// "primemover.dispatch" OpenTelemetry span around each dispatch.
func (c *Controller) SetTracingEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tracing = enabled
}

// SetStartTime sets the controller's start time. If the controller has not
// yet dispatched anything, current_time is also reset to match.
func (c *Controller) SetStartTime(t Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.startTime = t
	if c.totalEvents == 0 {
		c.currentTime = t
	}
}

// SetEndTime sets the (exclusive) end time: EventLoop halts without
// dispatching any event scheduled at or after end_time (and once
// current_time >= end_time), in addition to halting when the queue drains.
func (c *Controller) SetEndTime(t Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endTime = t
	c.endTimeSet = true
}

// SetTrackEventSources toggles best-effort weak source-chain bookkeeping on
// posted events, for trace reconstruction.
func (c *Controller) SetTrackEventSources(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.trackEventSources = enabled
}

// SetTrackSpectrum toggles per-signature dispatch counting.
func (c *Controller) SetTrackSpectrum(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.trackSpectrum = enabled
}

// CurrentTime returns the controller's simulated clock. Only EventLoop
// advances it, and only forward.
func (c *Controller) CurrentTime() Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentTime
}

// TotalEvents returns the number of events dispatched to completion so far.
func (c *Controller) TotalEvents() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalEvents
}

// Spectrum returns a snapshot copy of per-signature dispatch counts as an
// unordered map; OrderedSpectrum returns the same counts sorted by
// signature. It is empty unless SetTrackSpectrum(true) was called.
func (c *Controller) Spectrum() map[string]int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int64, len(c.spectrum))
	for k, v := range c.spectrum {
		out[k] = v
	}
	return out
}

// Clear re-initialises the controller for reuse: a fresh empty queue,
// current_time reset to start_time, and statistics zeroed. clear();clear()
// leaves the controller in the same state as a single clear().
func (c *Controller) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = NewEventQueue()
	c.currentTime = c.startTime
	c.currentlyDispatching = nil
	c.totalEvents = 0
	c.spectrum = make(map[string]int64)
}

// Close releases this controller's ambient binding, if it currently holds
// one. It is safe to call even if EventLoop already released it.
func (c *Controller) Close() {
	currentControllerSlot.CompareAndSwap(c, nil)
}

// Post schedules target/eventID for dispatch at current_time.
func (c *Controller) Post(target Entity, eventID int, args ...Value) {
	c.postAt(c.CurrentTime(), target, eventID, args, nil)
}

// PostAt schedules target/eventID for dispatch at an absolute time, which
// must not precede current_time.
func (c *Controller) PostAt(t Time, target Entity, eventID int, args ...Value) error {
	if t.Before(c.CurrentTime()) {
		return ErrTimeInPast
	}
	c.postAt(t, target, eventID, args, nil)
	return nil
}

// PostContinuing schedules target/eventID for immediate dispatch and parks
// the calling event until that call completes, returning its value or
// error. It must be called from inside a dispatched event.
func (c *Controller) PostContinuing(target Entity, eventID int, args ...Value) (Value, error) {
	c.mu.Lock()
	caller := c.currentlyDispatching
	c.mu.Unlock()
	if caller == nil {
		violate("PostContinuing", "must be called from inside a dispatched event")
	}
	w := c.Suspend()
	c.postAt(c.CurrentTime(), target, eventID, args, caller)
	return w.Await()
}

func (c *Controller) postAt(t Time, target Entity, eventID int, args []Value, caller *Event) *Event {
	ev := &Event{Time: t, Target: target, EventID: eventID, Arguments: args, Caller: caller}
	c.mu.Lock()
	if c.trackEventSources && c.currentlyDispatching != nil {
		ev.Source = weak.Make(c.currentlyDispatching)
	}
	c.mu.Unlock()
	c.pending.Push(ev)
	return ev
}

// Waiter is a handle to a parked call: the core's realisation of the
// "resumable continuation" concept, returned by Controller.Suspend and
// completed by Controller.Resume. Blocking primitives (primitives package)
// hold a FIFO of these rather than touching *Event directly.
type Waiter struct {
	c    *Controller
	ev   *Event
	cont *continuation
}

// Suspend captures a resumable handle for the event currently dispatching
// on c, without yet blocking it. This lets a blocking primitive register
// the waiter in its own FIFO before actually parking via Await — otherwise
// a signal/release racing the registration could be missed.
func (c *Controller) Suspend() *Waiter {
	c.mu.Lock()
	ev := c.currentlyDispatching
	c.mu.Unlock()
	if ev == nil {
		violate("Suspend", "no event is currently dispatching on this controller")
	}
	if ev.Continuation != nil {
		violate("Suspend", "event already has a pending continuation (double park)")
	}
	cont := newContinuation()
	ev.Continuation = cont
	return &Waiter{c: c, ev: ev, cont: cont}
}

// Await blocks the calling event until Resume(w, ...) is called, then
// returns the delivered value, or the delivered error as if raised at the
// call site.
func (w *Waiter) Await() (Value, error) {
	w.c.stepDone <- stepMsg{kind: stepParked}
	out := <-w.cont.resume
	return out.value, out.err
}

// Park is a convenience for the common case of suspending and immediately
// awaiting the currently-dispatching event with no prior FIFO registration.
func (c *Controller) Park() (Value, error) {
	return c.Suspend().Await()
}

// Resume schedules a previously parked waiter to resume at the given time
// with the given value or error. It is the only way a parked event
// re-enters the queue, and the underlying event may be resumed at most
// once per Suspend.
func (c *Controller) Resume(w *Waiter, at Time, value Value, err error) {
	if w == nil || w.ev.Continuation != w.cont {
		violate("Resume", "waiter has no pending continuation (already resumed?)")
	}
	w.ev.pendingOutcome = outcome{value: value, err: err}
	w.ev.Time = at
	c.pending.Push(w.ev)
}

// stepKind distinguishes the three ways a dispatched task can hand control
// back to EventLoop.
type stepKind int

const (
	stepCompleted stepKind = iota
	stepParked
	stepFatal
)

// stepMsg is sent over Controller.stepDone by the goroutine currently
// running (or resuming) an event's Invoke call.
type stepMsg struct {
	kind  stepKind
	value Value
	err   error
	fatal any
}

// EventLoop drains the pending queue in (time, ordinal) order until it
// empties or the next event reaches the configured end time. It returns nil
// on a clean drain, ErrSimulationEnd on explicit user termination, or a
// *SimulationFault wrapping the first unhandled domain error. Runtime
// panics and ContractViolations propagate unwrapped via a genuine Go panic.
func (c *Controller) EventLoop() error {
	currentControllerSlot.Store(c)
	defer currentControllerSlot.CompareAndSwap(c, nil)

	for {
		if c.pending.IsEmpty() {
			return nil
		}
		next := c.pending.PeekMin()
		c.mu.Lock()
		endReached := c.endTimeSet &&
			(c.currentTime.Compare(c.endTime) >= 0 || next.Time.Compare(c.endTime) >= 0)
		c.mu.Unlock()
		if endReached {
			return nil
		}

		ev := c.pending.PopMin()

		c.mu.Lock()
		if ev.Time.After(c.currentTime) {
			c.currentTime = ev.Time
		}
		c.currentlyDispatching = ev
		metrics := c.metrics
		tracingOn := c.tracing
		metrics.SetQueueDepth(c.pending.Size())
		c.mu.Unlock()

		var span dispatchSpan
		if tracingOn {
			span = startDispatchSpan(ev.signature(), int64(ev.Time))
		}
		dispatchStart := time.Now()

		msg := c.dispatchOne(ev)

		if tracingOn {
			span.end(msg.kind)
		}

		c.mu.Lock()
		c.currentlyDispatching = nil
		c.mu.Unlock()

		switch msg.kind {
		case stepFatal:
			panic(msg.fatal)

		case stepParked:
			continue

		case stepCompleted:
			metrics.ObserveDispatch(ev.signature(), time.Since(dispatchStart))
			c.mu.Lock()
			c.totalEvents++
			if c.trackSpectrum {
				c.spectrum[ev.signature()]++
			}
			now := c.currentTime
			c.mu.Unlock()

			if errors.Is(msg.err, ErrSimulationEnd) {
				return msg.err
			}
			if ev.Caller != nil {
				caller := ev.Caller
				ev.Caller = nil
				w := &Waiter{c: c, ev: caller, cont: caller.Continuation}
				c.Resume(w, now, msg.value, msg.err)
				continue
			}
			if msg.err != nil {
				fault := wrapFault("scheduler", now, ev, msg.err)
				c.log.Error(context.Background(), "event dispatch failed",
					logging.String("entity", ev.entityClass()),
					logging.String("event", ev.signature()),
					logging.Any("time", now),
					logging.String("error", msg.err.Error()),
				)
				return fault
			}
		}
	}
}

// dispatchOne hands control to ev's task and blocks until it either parks
// or completes. If ev.Continuation is already set, ev represents a resume:
// the pending outcome is delivered to the already-running goroutine instead
// of spawning a new one.
func (c *Controller) dispatchOne(ev *Event) stepMsg {
	if ev.Continuation != nil {
		cont := ev.Continuation
		ev.Continuation = nil
		cont.resume <- ev.pendingOutcome
		return <-c.stepDone
	}
	go c.runTask(ev)
	return <-c.stepDone
}

func (c *Controller) runTask(ev *Event) {
	defer func() {
		if r := recover(); r != nil {
			c.stepDone <- stepMsg{kind: stepFatal, fatal: r}
		}
	}()
	val, err := ev.Target.Invoke(ev.EventID, ev.Arguments)
	c.stepDone <- stepMsg{kind: stepCompleted, value: val, err: err}
}

// CurrentController returns the controller bound to the currently running
// simulation, panicking with a ContractViolation if none is bound.
func CurrentController() *Controller {
	c := currentControllerSlot.Load()
	if c == nil {
		violate("CurrentController", ErrNoController.Error())
	}
	return c
}

// QueryCurrentController returns the bound controller and true, or
// (nil, false) if none is bound — the non-panicking counterpart to
// CurrentController.
func QueryCurrentController() (*Controller, bool) {
	c := currentControllerSlot.Load()
	return c, c != nil
}

// Now is a shortcut for CurrentController().CurrentTime().
func Now() Time {
	return CurrentController().CurrentTime()
}

// BlockingSleep parks the currently-dispatching event and schedules its own
// resumption at now+delta, returning once the scheduler reaches that time.
func BlockingSleep(delta Time) {
	c := CurrentController()
	at := c.CurrentTime() + delta
	w := c.Suspend()
	c.Resume(w, at, nil, nil)
	w.Await()
}

// dispatchSpan wraps the OpenTelemetry span opened around one event
// dispatch. Its zero value is a harmless no-op so callers can skip opening
// one when tracing is disabled without a separate branch at end().
type dispatchSpan struct {
	span trace.Span
}

func startDispatchSpan(signature string, simulatedTime int64) dispatchSpan {
	_, span := observability.StartDispatchSpan(context.Background(), signature, simulatedTime)
	return dispatchSpan{span: span}
}

func (s dispatchSpan) end(kind stepKind) {
	if s.span == nil {
		return
	}
	outcome := "completed"
	if kind == stepParked {
		outcome = "parked"
	} else if kind == stepFatal {
		outcome = "fatal"
	}
	observability.SetDispatchOutcome(s.span, outcome)
	s.span.End()
}

// SpectrumEntry is one row of OrderedSpectrum's diagnostic dump.
type SpectrumEntry struct {
	Signature string
	Count     int64
}

// OrderedSpectrum returns Spectrum's counts sorted by signature, for
// deterministic diagnostic output (e.g. logging or a debug endpoint).
func (c *Controller) OrderedSpectrum() []SpectrumEntry {
	counts := c.Spectrum()
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]SpectrumEntry, len(keys))
	for i, k := range keys {
		out[i] = SpectrumEntry{Signature: k, Count: counts[k]}
	}
	return out
}
