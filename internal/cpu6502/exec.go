package cpu6502

import (
	"fluxemu/internal/component"
	"fluxemu/internal/memmap"
	"fluxemu/internal/timeval"
)

// Synchronize implements component.Component: it self-paces via ctx.Allocate
// using this CPU's configured clock period and executes exactly one Cycle
// at each allocated timestamp.
func (cpu *CPU) Synchronize(ctx component.SyncContext) {
	period := timeval.NewFrequency(cpu.frequencyHz).Period()
	it := ctx.Allocate(period, -1)
	for {
		now, ok := it.Next()
		if !ok {
			return
		}
		cpu.Step(now)
	}
}

// NeedsWork reports whether at least one clock period has elapsed, so the
// scheduler can skip a call when nothing would be allocated anyway.
func (cpu *CPU) NeedsWork(delta timeval.Period) bool {
	period := timeval.NewFrequency(cpu.frequencyHz).Period()
	return delta.DivFloor(period) > 0
}

func (cpu *CPU) resolveAddress(phi1 Phi1) uint16 {
	switch phi1.Source {
	case AddrFromIP:
		return cpu.InstructionPointer
	case AddrFromEffective:
		return cpu.EffectiveAddress
	case AddrFromStack:
		return 0x0100 | uint16(cpu.S)
	case AddrFromConst:
		return phi1.Const
	default:
		return cpu.InstructionPointer
	}
}

// Step executes exactly one Cycle against now (used for virtual-time
// resolution by MMIO handlers). If the RDY line is deasserted and the next
// queued cycle is a read, the CPU freezes for this step without consuming
// it; write cycles proceed regardless of RDY, matching real 6502 behaviour
// where RDY only gates read cycles. If the micro-op queue is empty, Step
// first polls for a pending NMI/IRQ and otherwise synthesizes an
// opcode-fetch cycle.
func (cpu *CPU) Step(now timeval.Period) {
	if len(cpu.queue) == 0 {
		if cpu.pollInterrupt() {
			// fall through: the interrupt sequence is now queued
		} else {
			cpu.queue = append(cpu.queue, readAt(AddrFromIP, true, MoveStep{Source: LocData, Dest: LocOpcodeFetch}))
		}
	}

	cycle := cpu.queue[0]
	if cycle.Bus == BusRead && !cpu.rdy.Load() {
		// RDY only gates read cycles; leave the cycle queued, untouched,
		// for a future Step once the peripheral releases the line.
		return
	}
	cpu.queue = cpu.queue[1:]

	cpu.bus.Address = cpu.resolveAddress(cycle.Phi1)
	if cycle.Phi1.IncrementIP {
		cpu.InstructionPointer++
	}

	switch cycle.Bus {
	case BusRead:
		cpu.bus.Data, _ = memmap.ReadLE[uint8](cpu.space, uint32(cpu.bus.Address), now, cpu.cache)
		for _, step := range cycle.Phi2 {
			step.Apply(cpu)
		}
	case BusWrite:
		for _, step := range cycle.Phi2 {
			step.Apply(cpu)
		}
		_ = memmap.WriteLE[uint8](cpu.space, uint32(cpu.bus.Address), now, cpu.cache, cpu.bus.Data)
	}
}

// pollInterrupt checks NMI (edge, higher priority, never maskable) then IRQ
// (level, masked by the I flag), queuing the seven-cycle dispatch sequence
// for whichever fired. Kinds that don't wire interrupt pins never poll.
func (cpu *CPU) pollInterrupt() bool {
	if !cpu.kind.SupportsInterrupts() {
		return false
	}
	if cpu.nmi.ConsumeFallingEdge() {
		cpu.expandInterrupt(NMIVector, false)
		return true
	}
	if cpu.irq.Required() && !cpu.Flags.I {
		cpu.expandInterrupt(IRQVector, false)
		return true
	}
	return false
}

// Reset queues the six-cycle reset sequence: two dummy internal reads, the
// stack pointer settling at 0xFD, interrupts masked, and the program
// counter loaded from the reset vector.
func (cpu *CPU) Reset() {
	cpu.queue = nil
	cpu.enqueue(
		readAt(AddrFromIP, false),
		readAt(AddrFromIP, false),
		readAt(AddrFromStack, false, stepFunc(func(cpu *CPU) { cpu.S = 0xFD })),
		readAt(AddrFromStack, false, SetFlagStep{Flag: &cpu.Flags.I, Value: true}, SetFlagStep{Flag: &cpu.Flags.D, Value: false}),
		Cycle{Bus: BusRead, Phi1: Phi1{Source: AddrFromConst, Const: ResetVector}, Phi2: []Step{MoveStep{Source: LocData, Dest: LocEffAddrLow}}},
		Cycle{Bus: BusRead, Phi1: Phi1{Source: AddrFromConst, Const: ResetVector + 1}, Phi2: []Step{MoveStep{Source: LocData, Dest: LocEffAddrHigh}, LoadIPFromEffectiveAddressStep{}}},
	)
}

// SnapshotVersion reports the CPU's save-state format version.
func (cpu *CPU) SnapshotVersion() (uint16, bool) {
	return SnapshotVersion, true
}
