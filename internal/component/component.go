// Package component defines the polymorphic contract every fluxemu
// component implements, plus the handle that mediates exclusive mutable
// access to it from outside its own Synchronize call.
package component

import (
	"io"
	"sync"

	"fluxemu/internal/timeval"
)

// ID identifies a component within a Machine.
type ID int

// SyncContext is implemented by internal/scheduler.Context; it is declared
// here as an interface so component implementations don't import the
// scheduler package (which in turn depends on component), avoiding a cycle.
type SyncContext interface {
	// Allocate yields a sequence of timestamps at which the component
	// should perform exactly one atomic unit of work, spaced by period and
	// capped at executionLimit timestamps when executionLimit >= 0.
	Allocate(period timeval.Period, executionLimit int) QuantaIterator
}

// QuantaIterator hands out successive timestamps for one Allocate call.
type QuantaIterator interface {
	Next() (timeval.Period, bool)
}

// Component is the contract every driven or on-demand unit implements.
type Component interface {
	// Synchronize is invoked by the scheduler (or, for on-demand
	// components, by whatever subsystem pulls from them) once per Machine
	// run. It self-paces via ctx.Allocate.
	Synchronize(ctx SyncContext)

	// NeedsWork is a hint the scheduler may use to skip a call when fewer
	// than delta of virtual time have passed since the last one.
	NeedsWork(delta timeval.Period) bool

	// SnapshotVersion reports the current save-state format version, or
	// false if this component carries no persistent state.
	SnapshotVersion() (uint16, bool)
	StoreSnapshot(w io.Writer) error
	LoadSnapshot(version uint16, r io.Reader) error
}

// AudioFrame is one mono sample of produced audio.
type AudioFrame struct {
	Value float32
}

// AudioSource is the minimal interface the audio backend pulls from; it is
// satisfied by internal/ringbuffer.RingBuffer[AudioFrame].
type AudioSource interface {
	Pop() (AudioFrame, bool)
	Len() int
}

// AudioChannel describes one produced audio stream.
type AudioChannel struct {
	Source     AudioSource
	SampleRate float32
}

// AudioProvider is an optional capability: components that produce audio
// implement it and are discovered via a type assertion, mirroring the
// "avoid import cycles" interface-discovery pattern used throughout this
// corpus for optional component capabilities.
type AudioProvider interface {
	GetAudioChannel(path string) (AudioChannel, bool)
}

// Participation declares whether the scheduler actively ticks a component
// every run, or only when another subsystem pulls from it on demand.
type Participation int

const (
	SchedulerDriven Participation = iota
	OnDemand
)

// Handle mediates exclusive mutable access to a Component, pairing a lock
// with a virtual-time cursor of the last timestamp the component observed.
// It is the only legal way to obtain mutable access to a component from
// outside its own Synchronize call.
type Handle struct {
	mu            sync.Mutex
	name          string
	participation Participation
	impl          Component
	lastObserved  timeval.Period
}

// NewHandle wraps impl behind a fresh lock.
func NewHandle(name string, participation Participation, impl Component) *Handle {
	return &Handle{name: name, participation: participation, impl: impl}
}

// Name reports the component's registered name.
func (h *Handle) Name() string { return h.name }

// Participation reports whether the scheduler drives this component.
func (h *Handle) Participation() Participation { return h.participation }

// LastObserved reports the last virtual time this component was advanced to.
func (h *Handle) LastObserved() timeval.Period {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastObserved
}

// InteractMut runs f with the component locked, then records the value f
// returns as the component's new last-observed time. For a Synchronize call
// this must be the SyncContext's final updated timestamp, not the Run call's
// target time, so a period that doesn't evenly divide the run's delta
// carries its remainder forward instead of being dropped.
func (h *Handle) InteractMut(f func(Component) timeval.Period) timeval.Period {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastObserved = f(h.impl)
	return h.lastObserved
}

// InteractDynMut is the dynamically-typed counterpart used by external
// mediators (the audio backend) that only know the component through its
// optional capability interfaces rather than its concrete type.
func (h *Handle) InteractDynMut(f func(any)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	f(h.impl)
}
