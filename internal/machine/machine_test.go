package machine

import (
	"io"
	"testing"

	"fluxemu/internal/component"
	"fluxemu/internal/memmap"
	"fluxemu/internal/timeval"

	"github.com/stretchr/testify/require"
)

type stubComponent struct {
	ticks int
}

func (s *stubComponent) Synchronize(ctx component.SyncContext) {
	it := ctx.Allocate(timeval.FromInt(1), -1)
	for {
		if _, ok := it.Next(); !ok {
			return
		}
		s.ticks++
	}
}

func (s *stubComponent) NeedsWork(delta timeval.Period) bool { return true }
func (s *stubComponent) SnapshotVersion() (uint16, bool)     { return 0, false }
func (s *stubComponent) StoreSnapshot(w io.Writer) error     { return nil }
func (s *stubComponent) LoadSnapshot(version uint16, r io.Reader) error {
	return nil
}

func TestBuilderWiresAddressSpaceAndComponent(t *testing.T) {
	b := NewBuilder(nil)
	space := b.InsertAddressSpace(16)
	ram := b.MemoryRegisterBuffer(space, "ram", 0x10000, true)
	b.MemoryMapBufferWrite(space, memmap.Range{Low: 0, High: 0xFFFF}, ram)

	stub := &stubComponent{}
	b.InsertComponent("stub", component.SchedulerDriven, stub)

	m, err := b.Build(timeval.Zero)
	require.NoError(t, err)

	as, err := m.AddressSpace(space)
	require.NoError(t, err)
	require.NoError(t, memmap.WriteLE[uint8](as, 0x10, m.Now(), nil, 0x42))
	v, err := memmap.ReadLE[uint8](as, 0x10, m.Now(), nil)
	require.NoError(t, err)
	require.Equal(t, uint8(0x42), v)

	m.Run(timeval.FromInt(5))
	require.Equal(t, 5, stub.ticks)
}

func TestBuilderReportsUnregisteredBuffer(t *testing.T) {
	b := NewBuilder(nil)
	space := b.InsertAddressSpace(16)
	b.MemoryMapBufferWrite(space, memmap.Range{Low: 0, High: 0xFF}, memmap.BufferPath{Space: space, Name: "missing"})

	_, err := b.Build(timeval.Zero)
	require.Error(t, err)
	var buildErr *BuildError
	require.ErrorAs(t, err, &buildErr)
	require.Len(t, buildErr.Problems, 1)
}

func TestDuplicateComponentNameIsReported(t *testing.T) {
	b := NewBuilder(nil)
	b.InsertComponent("dup", component.OnDemand, &stubComponent{})
	b.InsertComponent("dup", component.OnDemand, &stubComponent{})

	_, err := b.Build(timeval.Zero)
	require.Error(t, err)
}

func TestInteractMutReachesNamedComponent(t *testing.T) {
	b := NewBuilder(nil)
	stub := &stubComponent{}
	b.InsertComponent("stub", component.OnDemand, stub)
	m, err := b.Build(timeval.Zero)
	require.NoError(t, err)

	called := false
	require.NoError(t, m.InteractMut("stub", func(c component.Component) {
		called = true
	}))
	require.True(t, called)

	require.Error(t, m.InteractMut("missing", func(component.Component) {}))
}
