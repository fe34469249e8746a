// Package irq implements the interrupt lines shared between a CPU and its
// peripherals: a level-sensitive ready line, a level-sensitive IRQ line,
// and an edge-latching NMI line. All three are cheaply cloned handles over
// atomic state so a CPU and any number of peripherals can share one without
// a lock.
package irq

import "sync/atomic"

// RdyFlag is the CPU's RDY line: true means "run", false means "frozen on
// the current read cycle". Default is true.
type RdyFlag struct {
	state *atomic.Bool
}

// NewRdyFlag returns a RdyFlag defaulting to asserted (CPU runs).
func NewRdyFlag() RdyFlag {
	s := &atomic.Bool{}
	s.Store(true)
	return RdyFlag{state: s}
}

// Store sets the line's level.
func (f RdyFlag) Store(run bool) { f.state.Store(run) }

// Load reports whether the CPU is permitted to run.
func (f RdyFlag) Load() bool { return f.state.Load() }

// IrqFlag is the CPU's IRQ line. The line is stored inverted from its
// logical meaning: stored=false means the line is pulled low, which on
// real 6502 hardware is when an interrupt is being requested. Required
// reports the logical "interrupt is being requested" condition.
type IrqFlag struct {
	asserted *atomic.Bool
}

// NewIrqFlag returns an IrqFlag with no interrupt requested (line high).
func NewIrqFlag() IrqFlag {
	s := &atomic.Bool{}
	s.Store(true) // true == deasserted == no request, matching Store(true)=inactive
	return IrqFlag{asserted: s}
}

// Store sets the line level: true = deasserted (no interrupt), false =
// asserted low (interrupt requested) — mirroring real 6502 IRQ wiring.
func (f IrqFlag) Store(deasserted bool) { f.asserted.Store(deasserted) }

// Required reports whether an interrupt is currently being requested.
func (f IrqFlag) Required() bool { return !f.asserted.Load() }

// NmiFlag is the CPU's NMI line: edge-triggered on a high-to-low
// transition, which is latched as a one-shot for the CPU to consume.
type NmiFlag struct {
	current *atomic.Bool
	latched *atomic.Bool
}

// NewNmiFlag returns an NmiFlag with the line high and no latched edge.
func NewNmiFlag() NmiFlag {
	cur := &atomic.Bool{}
	cur.Store(true)
	return NmiFlag{current: cur, latched: &atomic.Bool{}}
}

// Store sets the line's current level. A true-to-false transition latches
// a falling edge; repeated false stores (or a rising edge) never retrigger
// it — only a fresh high-to-low transition does.
func (f NmiFlag) Store(high bool) {
	for {
		prev := f.current.Load()
		if f.current.CompareAndSwap(prev, high) {
			if prev && !high {
				f.latched.Store(true)
			}
			return
		}
	}
}

// ConsumeFallingEdge reads and clears the latched falling-edge flag,
// reporting whether an edge had occurred since the last consumption.
func (f NmiFlag) ConsumeFallingEdge() bool {
	return f.latched.Swap(false)
}
