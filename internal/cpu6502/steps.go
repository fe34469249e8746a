package cpu6502

// Location names a byte-sized place a Move step can read from or write to.
type Location int

const (
	LocData        Location = iota // bus.data, i.e. the byte just read/about to be written
	LocA                           // accumulator
	LocX                           // X register
	LocY                           // Y register
	LocS                           // stack pointer
	LocOperand                     // scratch operand register
	LocFlags                       // status byte, with the break bit supplied by the step
	LocIPLow                       // instruction_pointer low byte
	LocIPHigh                      // instruction_pointer high byte
	LocEffAddrLow                  // effective_address low byte
	LocEffAddrHigh                 // effective_address high byte
	LocZero                        // source-only: always reads as 0, used to zero-extend zero-page addresses
	LocOne                         // source-only: always reads as 1, used to step a zero-page pointer by one byte
	LocOpcodeFetch                 // destination-only: triggers decode + expansion
)

// MoveStep lifts a byte from Source and stores it at Dest, per spec
// §4.6.3's Move semantics: writing a Register or Data destination updates
// N/Z when UpdateNZ is set; writing LocFlags reconstitutes the flag byte;
// reading LocFlags projects the current flags with the given break bit;
// writing LocOpcodeFetch decodes the byte and appends its expansion.
type MoveStep struct {
	Source      Location
	Dest        Location
	UpdateNZ    bool
	BreakOnPush bool // only meaningful when Source == LocFlags
}

func (m MoveStep) Apply(cpu *CPU) {
	value := cpu.readLocation(m.Source, m.BreakOnPush)
	cpu.writeLocation(m.Dest, value, m.UpdateNZ)
}

// SetFlagStep directly sets or clears one status flag, independent of any
// data movement; the interrupt and reset sequences use it. The CLC/SEC/CLI/
// SEI/CLD/SED/CLV instructions set their flag through expandImplied instead.
type SetFlagStep struct {
	Flag  *bool // bound to the CPU's own Flags fields at construction time
	Value bool
}

func (s SetFlagStep) Apply(cpu *CPU) {
	*s.Flag = s.Value
}

// ALUOp selects a logic operation for ALUStep.
type ALUOp int

const (
	ALUAnd ALUOp = iota
	ALUOr
	ALUXor
	ALUBit // BIT: Z from A&operand, N/V from operand's bits 7/6, A unchanged
)

// ALUStep performs a bitwise operation between A and the operand/data byte.
type ALUStep struct {
	Op     ALUOp
	Source Location
}

func (s ALUStep) Apply(cpu *CPU) {
	operand := cpu.readLocation(s.Source, false)
	switch s.Op {
	case ALUAnd:
		cpu.A &= operand
		updateNZ(&cpu.Flags, cpu.A)
	case ALUOr:
		cpu.A |= operand
		updateNZ(&cpu.Flags, cpu.A)
	case ALUXor:
		cpu.A ^= operand
		updateNZ(&cpu.Flags, cpu.A)
	case ALUBit:
		cpu.Flags.Z = (cpu.A & operand) == 0
		cpu.Flags.N = operand&0x80 != 0
		cpu.Flags.V = operand&0x40 != 0
	}
}

// AddStep performs add-with-carry (ADC) or subtract-with-carry (SBC, via
// Invert) against A. In binary mode, SBC 1's-complements the operand and
// reuses ADC's add logic (the standard two's-complement equivalence); in
// decimal mode that equivalence doesn't hold, so SBC instead takes its own
// nibble-borrow subtraction path.
type AddStep struct {
	Source Location
	Invert bool
}

func (s AddStep) Apply(cpu *CPU) {
	operand := cpu.readLocation(s.Source, false)
	if s.Invert && cpu.Flags.D && cpu.kind.SupportsDecimal() {
		cpu.sbcDecimalInto(operand)
		return
	}
	if s.Invert {
		operand = ^operand
	}
	cpu.adcInto(operand)
}

// ShiftKind selects the direction and rotate behaviour for ShiftStep.
type ShiftKind int

const (
	ShiftLeft ShiftKind = iota
	ShiftRight
	RotateLeft
	RotateRight
)

// ShiftStep performs ASL/LSR/ROL/ROR against A or, for memory
// read-modify-write, the data bus byte.
type ShiftStep struct {
	Kind   ShiftKind
	Target Location // LocA or LocData
}

func (s ShiftStep) Apply(cpu *CPU) {
	value := cpu.readLocation(s.Target, false)
	var result uint8
	var carryOut bool
	switch s.Kind {
	case ShiftLeft:
		carryOut = value&0x80 != 0
		result = value << 1
	case ShiftRight:
		carryOut = value&0x01 != 0
		result = value >> 1
	case RotateLeft:
		carryOut = value&0x80 != 0
		result = value << 1
		if cpu.Flags.C {
			result |= 0x01
		}
	case RotateRight:
		if cpu.brokenRor {
			// Early-revision NMOS silicon: ROR misbehaves as an arithmetic
			// left shift with no carry-in, per spec's documented errata.
			carryOut = value&0x80 != 0
			result = value << 1
			break
		}
		carryOut = value&0x01 != 0
		result = value >> 1
		if cpu.Flags.C {
			result |= 0x80
		}
	}
	cpu.Flags.C = carryOut
	updateNZ(&cpu.Flags, result)
	cpu.writeLocation(s.Target, result, false)
}

// RegSelect names a register for CompareStep.
type RegSelect int

const (
	RegA RegSelect = iota
	RegX
	RegY
)

// CompareStep computes register - operand, updating N/Z/C without storing
// the result (CMP/CPX/CPY).
type CompareStep struct {
	Register RegSelect
	Source   Location
}

func (s CompareStep) Apply(cpu *CPU) {
	operand := cpu.readLocation(s.Source, false)
	var reg uint8
	switch s.Register {
	case RegA:
		reg = cpu.A
	case RegX:
		reg = cpu.X
	case RegY:
		reg = cpu.Y
	}
	result := reg - operand
	updateNZ(&cpu.Flags, result)
	cpu.Flags.C = reg >= operand
}

// IncDecStep adjusts a register or, for memory read-modify-write, the data
// bus byte by Delta (+1/-1),
// used for INC/DEC/INX/INY/DEX/DEY and the 65C02 INC A/DEC A.
type IncDecStep struct {
	Target Location
	Delta  int8
}

func (s IncDecStep) Apply(cpu *CPU) {
	value := cpu.readLocation(s.Target, false)
	result := uint8(int8(value) + s.Delta)
	updateNZ(&cpu.Flags, result)
	cpu.writeLocation(s.Target, result, false)
}

// IncrementStackStep adjusts the stack pointer by +1 (pull) or -1 (push),
// wrapping within a single byte.
type IncrementStackStep struct {
	Subtract bool
}

func (s IncrementStackStep) Apply(cpu *CPU) {
	if s.Subtract {
		cpu.S--
	} else {
		cpu.S++
	}
}

// PtrReg names the 16-bit register AddToPointerLikeRegisterStep operates on.
type PtrReg int

const (
	PtrIP PtrReg = iota
	PtrEffectiveAddress
)

// AddToPointerLikeRegisterStep adds a signed or unsigned 8-bit delta to the
// low byte of a 16-bit pointer register, leaving the high byte untouched
// during this cycle even when the add carries or the addition is signed
// and crosses a page — this is the canonical 6502 behaviour where
// peripherals observe the spurious intermediate address, and
// InsertAdjustmentCycleUponCarry schedules the AddCarryToPointerLikeRegister
// fixup cycle that corrects the high byte on the next cycle.
type AddToPointerLikeRegisterStep struct {
	Register PtrReg
	// DeltaSource names where the 8-bit delta is read from at apply time:
	// LocX/LocY for indexed addressing, LocOperand for a relative branch's
	// displacement byte (fetched by an earlier cycle in the same queue).
	DeltaSource                    Location
	Signed                         bool
	InsertAdjustmentCycleUponCarry bool
}

func (s AddToPointerLikeRegisterStep) Apply(cpu *CPU) {
	delta := cpu.readLocation(s.DeltaSource, false)
	low := cpu.pointerLow(s.Register)
	var sum uint16
	var crossed bool
	if s.Signed {
		signedDelta := int8(delta)
		widened := int16(low) + int16(signedDelta)
		crossed = widened < 0 || widened > 0xFF
		cpu.lastPointerDeltaNegative = signedDelta < 0
		sum = uint16(uint8(widened))
	} else {
		sum = uint16(low) + uint16(delta)
		crossed = sum > 0xFF
	}
	cpu.setPointerLow(s.Register, uint8(sum))
	needsFixup := crossed && s.InsertAdjustmentCycleUponCarry
	if needsFixup {
		cpu.queue = append([]Cycle{{
			Bus:  BusRead,
			Phi1: Phi1{Source: addrSourceFor(s.Register)},
			Phi2: []Step{AddCarryToPointerLikeRegisterStep{Register: s.Register, Signed: s.Signed}},
		}}, cpu.queue...)
	}
}

// AddCarryToPointerLikeRegisterStep corrects the high byte of a pointer
// register after a prior AddToPointerLikeRegisterStep carried or crossed a
// page, per spec §4.6.2's page-crossing adjustment cycle.
type AddCarryToPointerLikeRegisterStep struct {
	Register PtrReg
	Signed   bool
}

func (s AddCarryToPointerLikeRegisterStep) Apply(cpu *CPU) {
	if s.Signed && cpu.lastPointerDeltaNegative {
		cpu.adjustPointerHigh(s.Register, -1)
		return
	}
	cpu.adjustPointerHigh(s.Register, 1)
}

// LoadIPFromEffectiveAddressStep loads the instruction pointer from the
// current effective address, used by JMP, the end of JSR, and interrupt
// vector fetches.
type LoadIPFromEffectiveAddressStep struct{}

func (LoadIPFromEffectiveAddressStep) Apply(cpu *CPU) {
	cpu.InstructionPointer = cpu.EffectiveAddress
}

// IPIncrementStep increments the instruction pointer by one.
type IPIncrementStep struct{}

func (IPIncrementStep) Apply(cpu *CPU) {
	cpu.InstructionPointer++
}

func addrSourceFor(reg PtrReg) AddrSource {
	if reg == PtrEffectiveAddress {
		return AddrFromEffective
	}
	return AddrFromIP
}
