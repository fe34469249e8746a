// Package cpu6502 implements fluxemu's cycle-accurate MOS 6502/65C02 CPU
// core: a decoder that reproduces the published instruction matrix plus
// the 65C02 delta, an instruction expander that builds a queue of Cycles
// from an addressing-mode prelude and an operation tail, and a
// phase-1/phase-2 interpreter that executes exactly one Cycle per
// scheduler quantum.
package cpu6502

import (
	"fmt"
	"io"

	"fluxemu/internal/irq"
	"fluxemu/internal/memmap"
)

// Vector addresses for reset/IRQ/NMI.
const (
	NMIVector   uint16 = 0xFFFA
	ResetVector uint16 = 0xFFFC
	IRQVector   uint16 = 0xFFFE
)

// Bus is the CPU's view of its data bus for the current cycle.
type Bus struct {
	Address uint16
	Data    uint8
}

// Config configures a CPU at construction time.
type Config struct {
	Kind      Kind
	Frequency float32 // clock rate in Hz; Synchronize and NeedsWork derive the quantum period from it
	Rdy       irq.RdyFlag
	Irq       irq.IrqFlag
	Nmi       irq.NmiFlag
	// BrokenRor models early-revision NMOS silicon where ROR behaves as an
	// arithmetic left shift with no carry-in, per spec §9 Open Questions.
	BrokenRor bool
}

// CPU is a cycle-accurate 6502-family processor built from a queue of
// micro-operation Cycles.
type CPU struct {
	A, X, Y uint8
	Flags   Flags
	S       uint8

	InstructionPointer uint16
	Operand            uint8
	EffectiveAddress   uint16

	bus Bus

	queue []Cycle

	kind        Kind
	brokenRor   bool
	frequencyHz float32

	rdy irq.RdyFlag
	irq irq.IrqFlag
	nmi irq.NmiFlag

	space *memmap.AddressSpace
	cache *memmap.Cache

	// scratch used by the pointer-arithmetic steps across cycle boundaries
	lastPointerDeltaNegative bool

	inInterruptSequence bool

	logf func(format string, args ...any)
}

// New constructs a CPU wired to space, with its own private address-space
// locality cache.
func New(cfg Config, space *memmap.AddressSpace) *CPU {
	return &CPU{
		kind:        cfg.Kind,
		brokenRor:   cfg.BrokenRor,
		frequencyHz: cfg.Frequency,
		rdy:         cfg.Rdy,
		irq:         cfg.Irq,
		nmi:         cfg.Nmi,
		space:       space,
		cache:       space.NewCache(),
		logf:        func(string, ...any) {},
	}
}

// SetLogf installs a printf-style sink for diagnostic messages (unofficial
// opcode encounters, halts). Tests typically leave this unset.
func (cpu *CPU) SetLogf(f func(format string, args ...any)) {
	cpu.logf = f
}

// Kind reports this CPU's configured family member.
func (cpu *CPU) Kind() Kind { return cpu.kind }

func (cpu *CPU) pointerLow(reg PtrReg) uint8 {
	if reg == PtrEffectiveAddress {
		return uint8(cpu.EffectiveAddress)
	}
	return uint8(cpu.InstructionPointer)
}

func (cpu *CPU) setPointerLow(reg PtrReg, low uint8) {
	if reg == PtrEffectiveAddress {
		cpu.EffectiveAddress = (cpu.EffectiveAddress & 0xFF00) | uint16(low)
		return
	}
	cpu.InstructionPointer = (cpu.InstructionPointer & 0xFF00) | uint16(low)
}

// adjustPointerHigh adds delta (±1) to the high byte of the selected
// pointer register, leaving the low byte untouched.
func (cpu *CPU) adjustPointerHigh(reg PtrReg, delta int) {
	if reg == PtrEffectiveAddress {
		cpu.EffectiveAddress += uint16(delta) << 8
		return
	}
	cpu.InstructionPointer += uint16(delta) << 8
}

// readLocation reads one byte from the named Location.
func (cpu *CPU) readLocation(loc Location, breakBit bool) uint8 {
	switch loc {
	case LocData:
		return cpu.bus.Data
	case LocA:
		return cpu.A
	case LocX:
		return cpu.X
	case LocY:
		return cpu.Y
	case LocS:
		return cpu.S
	case LocOperand:
		return cpu.Operand
	case LocFlags:
		return cpu.Flags.Pack(breakBit)
	case LocIPLow:
		return uint8(cpu.InstructionPointer)
	case LocIPHigh:
		return uint8(cpu.InstructionPointer >> 8)
	case LocEffAddrLow:
		return uint8(cpu.EffectiveAddress)
	case LocEffAddrHigh:
		return uint8(cpu.EffectiveAddress >> 8)
	case LocOne:
		return 1
	default:
		return 0
	}
}

// writeLocation stores value at the named Location, applying the N/Z
// update spec'd for Register/Data destinations when updateNZ is set.
func (cpu *CPU) writeLocation(loc Location, value uint8, updateNZ bool) {
	switch loc {
	case LocData:
		cpu.bus.Data = value
	case LocA:
		cpu.A = value
	case LocX:
		cpu.X = value
	case LocY:
		cpu.Y = value
	case LocS:
		cpu.S = value
	case LocOperand:
		cpu.Operand = value
	case LocFlags:
		cpu.Flags = Unpack(value)
	case LocIPLow:
		cpu.InstructionPointer = (cpu.InstructionPointer & 0xFF00) | uint16(value)
	case LocIPHigh:
		cpu.InstructionPointer = (cpu.InstructionPointer & 0x00FF) | uint16(value)<<8
	case LocEffAddrLow:
		cpu.EffectiveAddress = (cpu.EffectiveAddress & 0xFF00) | uint16(value)
	case LocEffAddrHigh:
		cpu.EffectiveAddress = (cpu.EffectiveAddress & 0x00FF) | uint16(value)<<8
	case LocOpcodeFetch:
		cpu.decodeAndExpand(value)
		return
	}
	if updateNZ {
		updateNZFlags(cpu, value)
	}
}

func updateNZFlags(cpu *CPU, value uint8) {
	updateNZ(&cpu.Flags, value)
}

// adcInto performs ADC semantics (binary or BCD) with operand added into A,
// honouring the CPU's decimal-mode support. Grounded on the reference
// decimal-add formula: split into nibbles, correct each nibble that
// exceeds 9, then derive V from the pre/post sign change of A.
func (cpu *CPU) adcInto(operand uint8) {
	carryIn := uint16(0)
	if cpu.Flags.C {
		carryIn = 1
	}
	if cpu.Flags.D && cpu.kind.SupportsDecimal() {
		a := uint16(cpu.A)
		b := uint16(operand)

		lo := (a & 0x0F) + (b & 0x0F) + carryIn
		var loCarry uint16
		if lo > 9 {
			lo -= 10
			loCarry = 1
		}
		hi := (a >> 4 & 0x0F) + (b >> 4 & 0x0F) + loCarry
		var hiCarry bool
		if hi > 9 {
			hi -= 10
			hiCarry = true
		}
		result := uint8(hi<<4 | lo)
		oldA := cpu.A
		cpu.A = result
		cpu.Flags.C = hiCarry
		updateNZ(&cpu.Flags, result)
		cpu.Flags.V = (oldA^operand)&0x80 == 0 && (oldA^result)&0x80 != 0
		return
	}

	sum := uint16(cpu.A) + uint16(operand) + carryIn
	result := uint8(sum)
	oldA := cpu.A
	cpu.Flags.C = sum > 0xFF
	updateNZ(&cpu.Flags, result)
	cpu.Flags.V = (oldA^operand)&0x80 == 0 && (oldA^result)&0x80 != 0
	cpu.A = result
}

// sbcDecimalInto performs BCD subtract-with-borrow for SBC in decimal mode.
// Unlike binary SBC, decimal subtraction isn't equivalent to inverting the
// operand and reusing adcInto's add-side nibble correction: it needs its own
// borrow correction per nibble. Grounded on the reference nibble-borrow
// formula (subtract each nibble including the incoming borrow, correct by 6
// on underflow, propagate the borrow to the next nibble).
func (cpu *CPU) sbcDecimalInto(operand uint8) {
	a := uint16(cpu.A)
	b := uint16(operand)
	borrow := uint16(0)
	if !cpu.Flags.C {
		borrow = 1
	}

	loDiff := (a & 0x0F) - (b & 0x0F) - borrow
	borrow = 0
	if loDiff&0x10 != 0 {
		loDiff = (loDiff - 6) & 0x0F
		borrow = 1
	}

	hiDiff := (a>>4&0x0F) - (b>>4&0x0F) - borrow
	var borrowedOut bool
	if hiDiff&0x10 != 0 {
		hiDiff = (hiDiff - 6) & 0x0F
		borrowedOut = true
	}

	result := uint8(hiDiff<<4 | loDiff)
	oldA := cpu.A
	cpu.A = result
	cpu.Flags.C = !borrowedOut
	updateNZ(&cpu.Flags, result)
	cpu.Flags.V = (oldA^operand)&0x80 != 0 && (oldA^result)&0x80 != 0
}

// StoreSnapshot writes this CPU's architectural state as a small versioned
// byte stream. The wire format is private to this package; only
// round-tripping through LoadSnapshot is guaranteed.
func (cpu *CPU) StoreSnapshot(w io.Writer) error {
	buf := []byte{
		cpu.A, cpu.X, cpu.Y, cpu.S,
		cpu.Flags.Pack(false),
		uint8(cpu.InstructionPointer), uint8(cpu.InstructionPointer >> 8),
	}
	_, err := w.Write(buf)
	return err
}

const SnapshotVersion uint16 = 1

// LoadSnapshot restores state written by StoreSnapshot.
func (cpu *CPU) LoadSnapshot(version uint16, r io.Reader) error {
	if version != SnapshotVersion {
		return fmt.Errorf("cpu6502: unsupported snapshot version %d", version)
	}
	buf := make([]byte, 7)
	if _, err := io.ReadFull(r, buf); err != nil {
		return fmt.Errorf("cpu6502: reading snapshot: %w", err)
	}
	cpu.A, cpu.X, cpu.Y, cpu.S = buf[0], buf[1], buf[2], buf[3]
	cpu.Flags = Unpack(buf[4])
	cpu.InstructionPointer = uint16(buf[5]) | uint16(buf[6])<<8
	cpu.queue = nil
	return nil
}
