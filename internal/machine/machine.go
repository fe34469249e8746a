// Package machine is fluxemu's composition root: a Builder assembles address
// spaces, named backing buffers, and components into a Machine, which then
// owns the scheduler and event manager for the lifetime of a run. It
// generalizes this corpus's single hard-coded console wiring (one fixed set
// of RAM/ROM/PPU/APU mappings, not reusable across machine definitions) into
// a config-driven graph any TOML-described machine can be built from.
package machine

import (
	"fmt"
	"io"
	"strings"

	"fluxemu/internal/component"
	"fluxemu/internal/debug"
	"fluxemu/internal/event"
	"fluxemu/internal/memmap"
	"fluxemu/internal/scheduler"
	"fluxemu/internal/timeval"
)

// BuildError aggregates every problem found while assembling a Machine, so a
// malformed machine definition is reported in one pass instead of
// failing on the first mistake.
type BuildError struct {
	Problems []error
}

func (e *BuildError) Error() string {
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = p.Error()
	}
	return fmt.Sprintf("machine: %d problem(s) building machine: %s", len(e.Problems), strings.Join(msgs, "; "))
}

// Unwrap exposes the aggregated problems to errors.Is/errors.As.
func (e *BuildError) Unwrap() []error { return e.Problems }

// Builder accumulates address spaces, buffers and components before a
// single validating Build call produces an immutable Machine.
type Builder struct {
	logger *debug.Logger

	spaces  []*memmap.AddressSpace
	buffers map[memmap.BufferPath]*memmap.Buffer

	handles  []*component.Handle
	byName   map[string]*component.Handle
	problems []error
}

// NewBuilder constructs an empty Builder. A nil logger is replaced with one
// that discards everything.
func NewBuilder(logger *debug.Logger) *Builder {
	if logger == nil {
		logger = debug.Nop()
	}
	return &Builder{
		logger:  logger,
		buffers: make(map[memmap.BufferPath]*memmap.Buffer),
		byName:  make(map[string]*component.Handle),
	}
}

// InsertAddressSpace allocates a fresh address space of 2^widthBits bytes
// and returns its index for later Memory* calls.
func (b *Builder) InsertAddressSpace(widthBits uint) int {
	b.spaces = append(b.spaces, memmap.New(widthBits))
	return len(b.spaces) - 1
}

func (b *Builder) space(idx int) (*memmap.AddressSpace, error) {
	if idx < 0 || idx >= len(b.spaces) {
		return nil, fmt.Errorf("address space index %d out of range (have %d)", idx, len(b.spaces))
	}
	return b.spaces[idx], nil
}

// MemoryRegisterBuffer allocates a named, sized backing buffer within space
// and returns the path later Memory map calls reference it by.
func (b *Builder) MemoryRegisterBuffer(space int, name string, size int, writable bool) memmap.BufferPath {
	path := memmap.BufferPath{Space: space, Name: name}
	b.buffers[path] = memmap.NewBuffer(make([]byte, size), writable)
	return path
}

// SeedBuffer overwrites a previously registered buffer's contents, e.g. to
// load ROM image bytes before mapping it. data longer than the buffer is
// truncated; shorter data is zero-padded to the buffer's length.
func (b *Builder) SeedBuffer(path memmap.BufferPath, data []byte) error {
	buf, ok := b.buffers[path]
	if !ok {
		return fmt.Errorf("buffer %+v not registered", path)
	}
	if len(data) > buf.Len() {
		data = data[:buf.Len()]
	}
	buf.Restore(append(data, make([]byte, buf.Len()-len(data))...))
	return nil
}

// MemoryMapBufferRead maps rng in space onto a previously registered buffer
// as read-only storage (ROM semantics, regardless of the buffer's own
// writable flag).
func (b *Builder) MemoryMapBufferRead(space int, rng memmap.Range, path memmap.BufferPath) {
	as, err := b.space(space)
	if err != nil {
		b.problems = append(b.problems, err)
		return
	}
	buf, ok := b.buffers[path]
	if !ok {
		b.problems = append(b.problems, fmt.Errorf("buffer %+v not registered", path))
		return
	}
	if err := as.MapROM(rng, buf); err != nil {
		b.problems = append(b.problems, err)
	}
}

// MemoryMapBufferWrite maps rng in space onto a previously registered
// buffer as read/write storage.
func (b *Builder) MemoryMapBufferWrite(space int, rng memmap.Range, path memmap.BufferPath) {
	as, err := b.space(space)
	if err != nil {
		b.problems = append(b.problems, err)
		return
	}
	buf, ok := b.buffers[path]
	if !ok {
		b.problems = append(b.problems, fmt.Errorf("buffer %+v not registered", path))
		return
	}
	if err := as.MapRAM(rng, buf); err != nil {
		b.problems = append(b.problems, err)
	}
}

// MemoryMapMMIO maps rng in space onto handler functions.
func (b *Builder) MemoryMapMMIO(space int, rng memmap.Range, read memmap.MMIORead, write memmap.MMIOWrite) {
	as, err := b.space(space)
	if err != nil {
		b.problems = append(b.problems, err)
		return
	}
	if err := as.MapMMIO(rng, read, write); err != nil {
		b.problems = append(b.problems, err)
	}
}

// AddressSpace exposes a previously inserted address space, e.g. so a CPU
// component can be constructed against it before InsertComponent.
func (b *Builder) AddressSpace(space int) (*memmap.AddressSpace, error) {
	return b.space(space)
}

// Logger returns the builder's logger, for components that want one scoped
// to their own name via Logger().For(name).
func (b *Builder) Logger() *debug.Logger {
	return b.logger
}

// InsertComponent registers impl under name with the given scheduling
// participation. Scheduler-driven components are added to the Machine's
// scheduler in insertion order; on-demand components are reachable only via
// InteractMut/InteractDynMut or a capability interface like
// component.AudioProvider.
func (b *Builder) InsertComponent(name string, participation component.Participation, impl component.Component) *component.Handle {
	if _, exists := b.byName[name]; exists {
		b.problems = append(b.problems, fmt.Errorf("component %q registered twice", name))
	}
	h := component.NewHandle(name, participation, impl)
	b.handles = append(b.handles, h)
	b.byName[name] = h
	return h
}

// Build validates the accumulated configuration and produces a Machine, or
// a *BuildError if any problem was recorded along the way.
func (b *Builder) Build(startTime timeval.Period) (*Machine, error) {
	if len(b.problems) > 0 {
		return nil, &BuildError{Problems: b.problems}
	}
	events := event.NewManager()
	sched := scheduler.New(startTime, events)
	for _, h := range b.handles {
		if h.Participation() == component.SchedulerDriven {
			sched.AddDriven(h)
		}
	}
	return &Machine{
		logger:    b.logger,
		scheduler: sched,
		events:    events,
		spaces:    b.spaces,
		byName:    b.byName,
		handles:   b.handles,
	}, nil
}

// Machine is a built, runnable graph of address spaces and components,
// driven by its own scheduler.
type Machine struct {
	logger    *debug.Logger
	scheduler *scheduler.Scheduler
	events    *event.Manager
	spaces    []*memmap.AddressSpace
	byName    map[string]*component.Handle
	handles   []*component.Handle
}

// Now reports the machine's current virtual time.
func (m *Machine) Now() timeval.Period {
	return m.scheduler.Now()
}

// Run advances virtual time by delta, driving every scheduler-driven
// component exactly once in insertion order.
func (m *Machine) Run(delta timeval.Period) {
	m.scheduler.Run(delta)
}

// Events exposes the shared event manager for components that schedule
// their own future wakeups (e.g. a periodic MMIO device).
func (m *Machine) Events() *event.Manager {
	return m.events
}

// AddressSpace returns a previously built address space by index.
func (m *Machine) AddressSpace(idx int) (*memmap.AddressSpace, error) {
	if idx < 0 || idx >= len(m.spaces) {
		return nil, fmt.Errorf("machine: address space index %d out of range", idx)
	}
	return m.spaces[idx], nil
}

// InteractMut runs f against the named component with exclusive access.
func (m *Machine) InteractMut(name string, f func(component.Component)) error {
	h, ok := m.byName[name]
	if !ok {
		return fmt.Errorf("machine: no component named %q", name)
	}
	now := m.scheduler.Now()
	h.InteractMut(func(c component.Component) timeval.Period {
		f(c)
		return now
	})
	return nil
}

// InteractDynMut runs f against the named component's concrete value,
// typically to type-assert an optional capability interface like
// component.AudioProvider.
func (m *Machine) InteractDynMut(name string, f func(any)) error {
	h, ok := m.byName[name]
	if !ok {
		return fmt.Errorf("machine: no component named %q", name)
	}
	h.InteractDynMut(f)
	return nil
}

// StoreSnapshot writes every component's snapshot (in insertion order,
// skipping stateless ones), each preceded by a "name version" header line.
// The component payloads are not length-prefixed.
func (m *Machine) StoreSnapshot(w io.Writer) error {
	for _, h := range m.handles {
		var outer error
		h.InteractDynMut(func(impl any) {
			c, ok := impl.(component.Component)
			if !ok {
				return
			}
			version, ok := c.SnapshotVersion()
			if !ok {
				return
			}
			if _, err := fmt.Fprintf(w, "%s %d\n", h.Name(), version); err != nil {
				outer = err
				return
			}
			outer = c.StoreSnapshot(w)
		})
		if outer != nil {
			return fmt.Errorf("machine: snapshotting %q: %w", h.Name(), outer)
		}
	}
	return nil
}
