// Package scheduler implements fluxemu's deterministic, cooperative
// time-driven scheduler: it allocates virtual-time budget to each driven
// component in insertion order, respecting scheduled events and advisory
// preemption. It generalizes the fixed CPU/PPU/APU cycle-ratio loop found
// in simpler master-clock implementations in this corpus into a
// component-agnostic design driven by internal/event.Manager.
package scheduler

import (
	"sync"

	"fluxemu/internal/component"
	"fluxemu/internal/event"
	"fluxemu/internal/timeval"
)

// Scheduler owns the ordered set of driven components and the shared event
// manager, and advances virtual time one Run(delta) at a time.
type Scheduler struct {
	mu          sync.Mutex
	currentTime timeval.Period
	startTime   timeval.Period

	driven []*component.Handle
	events *event.Manager
}

// New constructs a Scheduler starting at startTime, backed by events.
func New(startTime timeval.Period, events *event.Manager) *Scheduler {
	return &Scheduler{currentTime: startTime, startTime: startTime, events: events}
}

// AddDriven registers a scheduler-driven component. Components are ticked
// in the order they were added; this order is never interleaved within one
// Run call.
func (s *Scheduler) AddDriven(h *component.Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.driven = append(s.driven, h)
}

// Now reports the scheduler's current virtual time.
func (s *Scheduler) Now() timeval.Period {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentTime
}

// Events exposes the shared event manager, e.g. so a component's builder
// can hand it to the component for self-scheduled wakeups.
func (s *Scheduler) Events() *event.Manager {
	return s.events
}

// Run advances virtual time by delta and invokes Synchronize, in insertion
// order, on every scheduler-driven component.
func (s *Scheduler) Run(delta timeval.Period) {
	s.mu.Lock()
	target := s.currentTime.Add(delta)
	s.currentTime = target
	driven := append([]*component.Handle(nil), s.driven...)
	s.mu.Unlock()

	for _, h := range driven {
		updated := h.LastObserved()
		ctx := &Context{
			events:           s.events,
			updatedTimestamp: updated,
			targetTimestamp:  target,
		}
		h.InteractMut(func(c component.Component) timeval.Period {
			c.Synchronize(ctx)
			return ctx.updatedTimestamp
		})
	}
}

// Context is the per-call SynchronizationContext a component uses to pace
// itself across one Run invocation via Allocate.
type Context struct {
	events           *event.Manager
	updatedTimestamp timeval.Period
	targetTimestamp  timeval.Period

	lastPeriod timeval.Period
}

// Allocate computes a budget of timestamps spaced by period, bounded by the
// soonest of Run's target time and the next scheduled event, optionally
// clamped to executionLimit timestamps (pass a negative limit for none).
func (c *Context) Allocate(period timeval.Period, executionLimit int) component.QuantaIterator {
	c.lastPeriod = period
	stop := c.computeStop()
	budget := stop.SubSaturating(c.updatedTimestamp).DivFloor(period)
	if executionLimit >= 0 && uint64(executionLimit) < budget {
		budget = uint64(executionLimit)
	}
	return &QuantaIterator{ctx: c, period: period, stop: stop, budget: budget}
}

func (c *Context) computeStop() timeval.Period {
	stop := c.targetTimestamp
	if next, ok := c.events.NextEvent(); ok {
		stop = stop.Min(next)
	}
	return stop
}

// QuantaIterator hands out successive timestamps, re-checking the
// preemption signal (and shrinking its remaining budget if it fired) at
// each step, and advancing the context's updatedTimestamp by period per
// timestamp returned.
type QuantaIterator struct {
	ctx    *Context
	period timeval.Period
	stop   timeval.Period
	budget uint64
}

// Next returns the next timestamp this component should act at, or false
// once the allocated budget (possibly shrunk by a late-arriving event) is
// exhausted.
func (q *QuantaIterator) Next() (timeval.Period, bool) {
	if q.ctx.events.PreemptionSignal().IsSet() {
		q.stop = q.ctx.computeStop()
		freshBudget := q.stop.SubSaturating(q.ctx.updatedTimestamp).DivFloor(q.period)
		if freshBudget < q.budget {
			q.budget = freshBudget
		}
		q.ctx.events.PreemptionSignal().Clear()
	}
	if q.budget == 0 {
		return timeval.Zero, false
	}
	q.budget--
	q.ctx.updatedTimestamp = q.ctx.updatedTimestamp.Add(q.period)
	return q.ctx.updatedTimestamp, true
}
