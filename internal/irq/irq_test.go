package irq

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRdyFlagDefaultsToRun(t *testing.T) {
	f := NewRdyFlag()
	require.True(t, f.Load())
	f.Store(false)
	require.False(t, f.Load())
}

func TestIrqFlagLevelSemantics(t *testing.T) {
	f := NewIrqFlag()
	require.False(t, f.Required(), "no interrupt requested by default")
	f.Store(false) // assert low
	require.True(t, f.Required())
	f.Store(true) // deassert
	require.False(t, f.Required())
}

func TestNmiFallingEdgeLatchesOncePerTransition(t *testing.T) {
	f := NewNmiFlag()
	f.Store(false) // high -> low: falling edge
	f.Store(true)  // low -> high: rising, no new edge
	f.Store(false) // high -> low again: new falling edge

	require.True(t, f.ConsumeFallingEdge())
	require.False(t, f.ConsumeFallingEdge(), "edge must be consumed exactly once")
}

func TestNmiRepeatedLowDoesNotRetrigger(t *testing.T) {
	f := NewNmiFlag()
	f.Store(false)
	require.True(t, f.ConsumeFallingEdge())

	f.Store(false)
	f.Store(false)
	require.False(t, f.ConsumeFallingEdge(), "repeated low-low-low must not retrigger")
}
