package scheduler

import (
	"io"
	"testing"

	"fluxemu/internal/component"
	"fluxemu/internal/event"
	"fluxemu/internal/timeval"

	"github.com/stretchr/testify/require"
)

// countingComponent consumes every quantum offered to it at a fixed period
// and records how many timestamps it was given.
type countingComponent struct {
	period   timeval.Period
	observed int
	limit    int
}

func (c *countingComponent) Synchronize(ctx component.SyncContext) {
	it := ctx.Allocate(c.period, c.limit)
	for {
		_, ok := it.Next()
		if !ok {
			return
		}
		c.observed++
	}
}

func (c *countingComponent) NeedsWork(timeval.Period) bool             { return true }
func (c *countingComponent) SnapshotVersion() (uint16, bool)            { return 0, false }
func (c *countingComponent) StoreSnapshot(io.Writer) error              { return nil }
func (c *countingComponent) LoadSnapshot(uint16, io.Reader) error       { return nil }

func TestRunAdvancesNowByExactlyDelta(t *testing.T) {
	s := New(timeval.Zero, event.NewManager())
	for i := 0; i < 5; i++ {
		before := s.Now()
		s.Run(timeval.FromInt(37))
		require.Equal(t, before.Add(timeval.FromInt(37)).ToInt(), s.Now().ToInt())
	}
}

func TestDrivenComponentAdvancesExactQuanta(t *testing.T) {
	s := New(timeval.Zero, event.NewManager())
	comp := &countingComponent{period: timeval.FromInt(3), limit: -1}
	s.AddDriven(component.NewHandle("counter", component.SchedulerDriven, comp))

	s.Run(timeval.FromInt(10)) // floor(10/3) == 3
	require.Equal(t, 3, comp.observed)

	s.Run(timeval.FromInt(10)) // cumulative target 20; floor(20/3)=6 total
	require.Equal(t, 6, comp.observed)

	s.Run(timeval.FromInt(10)) // cumulative target 30; floor(30/3)=10 total
	require.Equal(t, 10, comp.observed)
}

func TestInsertionOrderIsDeterministic(t *testing.T) {
	s := New(timeval.Zero, event.NewManager())
	var order []string
	makeComp := func(name string) *countingComponent {
		return &countingComponent{period: timeval.FromInt(1), limit: -1}
	}
	a := makeComp("a")
	b := makeComp("b")
	ha := component.NewHandle("a", component.SchedulerDriven, orderTrackingComponent{a, &order, "a"})
	hb := component.NewHandle("b", component.SchedulerDriven, orderTrackingComponent{b, &order, "b"})
	s.AddDriven(ha)
	s.AddDriven(hb)

	s.Run(timeval.FromInt(5))
	require.Equal(t, []string{"a", "b"}, order)
}

// orderTrackingComponent wraps a countingComponent and records invocation
// order into a shared slice, without affecting the quantum-consumption math.
type orderTrackingComponent struct {
	*countingComponent
	order *[]string
	name  string
}

func (o orderTrackingComponent) Synchronize(ctx component.SyncContext) {
	*o.order = append(*o.order, o.name)
	o.countingComponent.Synchronize(ctx)
}

func TestEventPreemptionShrinksBudget(t *testing.T) {
	mgr := event.NewManager()
	s := New(timeval.Zero, mgr)
	comp := &countingComponent{period: timeval.FromInt(1), limit: -1}
	s.AddDriven(component.NewHandle("counter", component.SchedulerDriven, comp))

	// An event due at tick 4 should cap this component to 4 quanta even
	// though Run(10) would otherwise allow 10.
	mgr.Push(timeval.FromInt(4), event.Kind(1), event.ComponentID(1))
	s.Run(timeval.FromInt(10))
	require.Equal(t, 4, comp.observed)
}
