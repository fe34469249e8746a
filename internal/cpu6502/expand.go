package cpu6502

// decodeAndExpand is invoked by writeLocation when an opcode byte reaches
// LocOpcodeFetch. It looks the opcode up and appends the Cycle queue that
// implements it; an unrecognised opcode is logged and treated as a one-cycle
// NOP so a bad program counter can't wedge the host.
func (cpu *CPU) decodeAndExpand(opcode byte) {
	e, ok := Decode(opcode, cpu.kind)
	if !ok {
		cpu.logf("cpu6502: opcode 0x%02X at $%04X is unofficial/undefined for %v, treated as NOP", opcode, cpu.InstructionPointer-1, cpu.kind)
		return
	}
	switch e.Category {
	case CatImplied:
		cpu.expandImplied(e)
	case CatRead:
		cpu.expandRead(e)
	case CatWrite:
		cpu.expandWrite(e)
	case CatRMW:
		cpu.expandRMW(e)
	case CatBranch:
		cpu.expandBranch(e)
	case CatJump:
		cpu.expandJump()
	case CatJumpIndirect:
		cpu.expandJumpIndirect()
	case CatJSR:
		cpu.expandJSR()
	case CatRTS:
		cpu.expandRTS()
	case CatRTI:
		cpu.expandRTI()
	case CatBRK:
		cpu.expandInterrupt(IRQVector, true)
	case CatPush:
		cpu.expandPush(e)
	case CatPull:
		cpu.expandPull(e)
	}
}

func (cpu *CPU) enqueue(cycles ...Cycle) {
	cpu.queue = append(cpu.queue, cycles...)
}

func readAt(src AddrSource, incIP bool, phi2 ...Step) Cycle {
	return Cycle{Bus: BusRead, Phi1: Phi1{Source: src, IncrementIP: incIP}, Phi2: phi2}
}

func writeAt(src AddrSource, phi2 ...Step) Cycle {
	return Cycle{Bus: BusWrite, Phi1: Phi1{Source: src}, Phi2: phi2}
}

// preludeCycles builds the addressing-mode cycles that precede an
// operation's tail, for every mode that doesn't leech directly onto a
// single dummy/operand cycle (Implied, Accumulator, Immediate, Relative).
func (cpu *CPU) preludeCycles(mode Mode) []Cycle {
	switch mode {
	case ModeZeroPage:
		return []Cycle{
			readAt(AddrFromIP, true, MoveStep{Source: LocData, Dest: LocEffAddrLow}, MoveStep{Source: LocZero, Dest: LocEffAddrHigh}),
		}
	case ModeZeroPageX:
		return []Cycle{
			readAt(AddrFromIP, true, MoveStep{Source: LocData, Dest: LocEffAddrLow}, MoveStep{Source: LocZero, Dest: LocEffAddrHigh}),
			readAt(AddrFromEffective, false, AddToPointerLikeRegisterStep{Register: PtrEffectiveAddress, DeltaSource: LocX}),
		}
	case ModeZeroPageY:
		return []Cycle{
			readAt(AddrFromIP, true, MoveStep{Source: LocData, Dest: LocEffAddrLow}, MoveStep{Source: LocZero, Dest: LocEffAddrHigh}),
			readAt(AddrFromEffective, false, AddToPointerLikeRegisterStep{Register: PtrEffectiveAddress, DeltaSource: LocY}),
		}
	case ModeAbsolute:
		return []Cycle{
			readAt(AddrFromIP, true, MoveStep{Source: LocData, Dest: LocEffAddrLow}),
			readAt(AddrFromIP, true, MoveStep{Source: LocData, Dest: LocEffAddrHigh}),
		}
	case ModeAbsoluteX:
		return []Cycle{
			readAt(AddrFromIP, true, MoveStep{Source: LocData, Dest: LocEffAddrLow}),
			readAt(AddrFromIP, true, MoveStep{Source: LocData, Dest: LocEffAddrHigh},
				AddToPointerLikeRegisterStep{Register: PtrEffectiveAddress, DeltaSource: LocX, InsertAdjustmentCycleUponCarry: true}),
		}
	case ModeAbsoluteY:
		return []Cycle{
			readAt(AddrFromIP, true, MoveStep{Source: LocData, Dest: LocEffAddrLow}),
			readAt(AddrFromIP, true, MoveStep{Source: LocData, Dest: LocEffAddrHigh},
				AddToPointerLikeRegisterStep{Register: PtrEffectiveAddress, DeltaSource: LocY, InsertAdjustmentCycleUponCarry: true}),
		}
	case ModeIndexedIndirectX:
		return []Cycle{
			readAt(AddrFromIP, true, MoveStep{Source: LocData, Dest: LocEffAddrLow}, MoveStep{Source: LocZero, Dest: LocEffAddrHigh}),
			readAt(AddrFromEffective, false, AddToPointerLikeRegisterStep{Register: PtrEffectiveAddress, DeltaSource: LocX}),
			readAt(AddrFromEffective, false, MoveStep{Source: LocData, Dest: LocOperand},
				AddToPointerLikeRegisterStep{Register: PtrEffectiveAddress, DeltaSource: LocOne}),
			readAt(AddrFromEffective, false, MoveStep{Source: LocData, Dest: LocEffAddrHigh}, MoveStep{Source: LocOperand, Dest: LocEffAddrLow}),
		}
	case ModeIndirectIndexedY:
		return []Cycle{
			readAt(AddrFromIP, true, MoveStep{Source: LocData, Dest: LocEffAddrLow}, MoveStep{Source: LocZero, Dest: LocEffAddrHigh}),
			readAt(AddrFromEffective, false, MoveStep{Source: LocData, Dest: LocOperand},
				AddToPointerLikeRegisterStep{Register: PtrEffectiveAddress, DeltaSource: LocOne}),
			readAt(AddrFromEffective, false,
				MoveStep{Source: LocData, Dest: LocEffAddrHigh}, MoveStep{Source: LocOperand, Dest: LocEffAddrLow},
				AddToPointerLikeRegisterStep{Register: PtrEffectiveAddress, DeltaSource: LocY, InsertAdjustmentCycleUponCarry: true}),
		}
	case ModeZeroPageIndirect:
		return []Cycle{
			readAt(AddrFromIP, true, MoveStep{Source: LocData, Dest: LocEffAddrLow}, MoveStep{Source: LocZero, Dest: LocEffAddrHigh}),
			readAt(AddrFromEffective, false, MoveStep{Source: LocData, Dest: LocOperand},
				AddToPointerLikeRegisterStep{Register: PtrEffectiveAddress, DeltaSource: LocOne}),
			readAt(AddrFromEffective, false, MoveStep{Source: LocData, Dest: LocEffAddrHigh}, MoveStep{Source: LocOperand, Dest: LocEffAddrLow}),
		}
	default:
		return nil
	}
}

// expandRead builds: prelude cycles, then one tail cycle that reads the
// effective address and performs the opcode's register-level work. Immediate
// mode has no prelude cycles; its one fetch cycle leeches the tail directly.
func (cpu *CPU) expandRead(e entry) {
	if e.Mode == ModeImmediate {
		cpu.enqueue(readAt(AddrFromIP, true, e.Tail...))
		return
	}
	cpu.enqueue(cpu.preludeCycles(e.Mode)...)
	cpu.enqueue(readAt(AddrFromEffective, false, e.Tail...))
}

// expandWrite builds: prelude cycles, then one tail cycle that computes the
// value to write (into LocData) and writes it to the effective address.
func (cpu *CPU) expandWrite(e entry) {
	cpu.enqueue(cpu.preludeCycles(e.Mode)...)
	cpu.enqueue(writeAt(AddrFromEffective, e.Tail...))
}

// expandRMW builds the classic three-cycle read/dummy-write/write-back
// sequence memory read-modify-write instructions use: the unmodified
// operand is written back once before the modified value lands.
func (cpu *CPU) expandRMW(e entry) {
	cpu.enqueue(cpu.preludeCycles(e.Mode)...)
	cpu.enqueue(
		readAt(AddrFromEffective, false, MoveStep{Source: LocData, Dest: LocOperand}),
		writeAt(AddrFromEffective, MoveStep{Source: LocOperand, Dest: LocData}),
	)
	tail := append([]Step{MoveStep{Source: LocOperand, Dest: LocData}}, e.Tail...)
	cpu.enqueue(writeAt(AddrFromEffective, tail...))
}

// expandImplied covers Accumulator-mode shifts, register transfers, flag
// instructions and NOP: a single dummy-read cycle whose Phi2 leeches the
// operation's work directly (or sets a flag, for the six flag opcodes).
func (cpu *CPU) expandImplied(e entry) {
	tail := e.Tail
	if flag, value, ok := flagMutation(e.Mnemonic); ok {
		mnemonic := e.Mnemonic
		tail = []Step{stepFunc(func(cpu *CPU) {
			switch mnemonic {
			case "CLC", "SEC":
				cpu.Flags.C = value
			case "CLI", "SEI":
				cpu.Flags.I = value
			case "CLD", "SED":
				cpu.Flags.D = value
			case "CLV":
				cpu.Flags.V = value
			}
			_ = flag
		})}
	}
	cpu.enqueue(readAt(AddrFromIP, false, tail...))
}

func flagMutation(mnemonic string) (name string, value bool, ok bool) {
	switch mnemonic {
	case "CLC":
		return "C", false, true
	case "SEC":
		return "C", true, true
	case "CLI":
		return "I", false, true
	case "SEI":
		return "I", true, true
	case "CLD":
		return "D", false, true
	case "SED":
		return "D", true, true
	case "CLV":
		return "V", false, true
	default:
		return "", false, false
	}
}

// branchCondition reports which flag a conditional branch tests and the
// polarity it branches on.
func branchCondition(mnemonic string) (flag func(*Flags) bool, want bool) {
	switch mnemonic {
	case "BCC":
		return func(f *Flags) bool { return f.C }, false
	case "BCS":
		return func(f *Flags) bool { return f.C }, true
	case "BEQ":
		return func(f *Flags) bool { return f.Z }, true
	case "BNE":
		return func(f *Flags) bool { return f.Z }, false
	case "BPL":
		return func(f *Flags) bool { return f.N }, false
	case "BMI":
		return func(f *Flags) bool { return f.N }, true
	case "BVC":
		return func(f *Flags) bool { return f.V }, false
	case "BVS":
		return func(f *Flags) bool { return f.V }, true
	default: // BRA: always taken
		return func(*Flags) bool { return true }, true
	}
}

// expandBranch reads the displacement byte unconditionally (2 cycles
// including the opcode fetch even when not taken), then, if the branch is
// taken, appends a cycle that applies the displacement to the instruction
// pointer — itself capable of enqueueing a further page-crossing fixup
// cycle, yielding the classic 2/3/4-cycle branch timing.
func (cpu *CPU) expandBranch(e entry) {
	flagFn, want := branchCondition(e.Mnemonic)
	cpu.enqueue(readAt(AddrFromIP, true, stepFunc(func(cpu *CPU) {
		cpu.Operand = cpu.bus.Data
		if flagFn(&cpu.Flags) != want {
			return
		}
		cpu.queue = append(cpu.queue, readAt(AddrFromIP, false,
			AddToPointerLikeRegisterStep{Register: PtrIP, DeltaSource: LocOperand, Signed: true, InsertAdjustmentCycleUponCarry: true}))
	})))
}

// expandJump implements JMP absolute: read low/high, load the IP.
func (cpu *CPU) expandJump() {
	cpu.enqueue(
		readAt(AddrFromIP, true, MoveStep{Source: LocData, Dest: LocEffAddrLow}),
		readAt(AddrFromIP, true, MoveStep{Source: LocData, Dest: LocEffAddrHigh}, LoadIPFromEffectiveAddressStep{}),
	)
}

// expandJumpIndirect implements JMP (abs), including the NMOS page-wrap
// errata: when the pointer's low byte is 0xFF, buggy silicon fetches the
// high byte from the start of the same page instead of crossing.
func (cpu *CPU) expandJumpIndirect() {
	wrap := cpu.kind.HasIndirectJumpPageWrapErrata()
	bumpPointer := stepFunc(func(cpu *CPU) {
		if wrap {
			cpu.EffectiveAddress = cpu.EffectiveAddress&0xFF00 | uint16(uint8(cpu.EffectiveAddress)+1)
			return
		}
		cpu.EffectiveAddress++
	})
	cpu.enqueue(
		readAt(AddrFromIP, true, MoveStep{Source: LocData, Dest: LocEffAddrLow}),
		readAt(AddrFromIP, true, MoveStep{Source: LocData, Dest: LocEffAddrHigh}),
		readAt(AddrFromEffective, false, MoveStep{Source: LocData, Dest: LocOperand}, bumpPointer),
		readAt(AddrFromEffective, false, MoveStep{Source: LocData, Dest: LocEffAddrHigh}, MoveStep{Source: LocOperand, Dest: LocEffAddrLow}, LoadIPFromEffectiveAddressStep{}),
	)
}

// expandJSR implements the six-cycle JSR: fetch target low, an internal
// stack-peek delay, push the return address high then low, fetch target
// high and jump.
func (cpu *CPU) expandJSR() {
	cpu.enqueue(
		readAt(AddrFromIP, true, MoveStep{Source: LocData, Dest: LocOperand}),
		readAt(AddrFromStack, false),
		writeAt(AddrFromStack, MoveStep{Source: LocIPHigh, Dest: LocData}, IncrementStackStep{Subtract: true}),
		writeAt(AddrFromStack, MoveStep{Source: LocIPLow, Dest: LocData}, IncrementStackStep{Subtract: true}),
		readAt(AddrFromIP, true, MoveStep{Source: LocData, Dest: LocEffAddrHigh}, MoveStep{Source: LocOperand, Dest: LocEffAddrLow}, LoadIPFromEffectiveAddressStep{}),
	)
}

// expandRTS implements the six-cycle RTS: dummy operand read, dummy stack
// peek, pull low then high, then a final dummy cycle that increments past
// the JSR return address.
func (cpu *CPU) expandRTS() {
	cpu.enqueue(
		readAt(AddrFromIP, false),
		readAt(AddrFromStack, false, IncrementStackStep{Subtract: false}),
		readAt(AddrFromStack, false, MoveStep{Source: LocData, Dest: LocEffAddrLow}, IncrementStackStep{Subtract: false}),
		readAt(AddrFromStack, false, MoveStep{Source: LocData, Dest: LocEffAddrHigh}, LoadIPFromEffectiveAddressStep{}),
		readAt(AddrFromEffective, false, IPIncrementStep{}),
	)
}

// expandRTI implements the six-cycle RTI: dummy operand read, dummy stack
// peek, pull flags, then pull PCL/PCH and jump (no increment, unlike RTS).
func (cpu *CPU) expandRTI() {
	cpu.enqueue(
		readAt(AddrFromIP, false),
		readAt(AddrFromStack, false, IncrementStackStep{Subtract: false}),
		readAt(AddrFromStack, false, MoveStep{Source: LocData, Dest: LocFlags}, IncrementStackStep{Subtract: false}),
		readAt(AddrFromStack, false, MoveStep{Source: LocData, Dest: LocEffAddrLow}, IncrementStackStep{Subtract: false}),
		readAt(AddrFromStack, false, MoveStep{Source: LocData, Dest: LocEffAddrHigh}, LoadIPFromEffectiveAddressStep{}),
	)
}

// expandPush implements PHA/PHP/PHX/PHY: a dummy read, then the push.
func (cpu *CPU) expandPush(e entry) {
	tail := append([]Step{}, e.Tail...)
	tail = append(tail, IncrementStackStep{Subtract: true})
	cpu.enqueue(
		readAt(AddrFromIP, false),
		writeAt(AddrFromStack, tail...),
	)
}

// expandPull implements PLA/PLP/PLX/PLY: a dummy read, a dummy stack peek
// that pre-increments S, then the pull.
func (cpu *CPU) expandPull(e entry) {
	cpu.enqueue(
		readAt(AddrFromIP, false),
		readAt(AddrFromStack, false, IncrementStackStep{Subtract: false}),
		readAt(AddrFromStack, false, e.Tail...),
	)
}

// expandInterrupt builds the seven-cycle BRK/IRQ/NMI dispatch sequence.
// isBRK distinguishes a software BRK (the opcode-fetch cycle already
// happened and a padding byte follows, with the break bit set on the
// pushed flags) from a hardware IRQ/NMI (two leading idle cycles, break bit
// clear).
func (cpu *CPU) expandInterrupt(vector uint16, isBRK bool) {
	if isBRK {
		cpu.enqueue(readAt(AddrFromIP, true))
	} else {
		cpu.enqueue(readAt(AddrFromIP, false), readAt(AddrFromIP, false))
	}
	cpu.enqueue(
		writeAt(AddrFromStack, MoveStep{Source: LocIPHigh, Dest: LocData}, IncrementStackStep{Subtract: true}),
		writeAt(AddrFromStack, MoveStep{Source: LocIPLow, Dest: LocData}, IncrementStackStep{Subtract: true}),
		writeAt(AddrFromStack, MoveStep{Source: LocFlags, Dest: LocData, BreakOnPush: isBRK}, IncrementStackStep{Subtract: true}, SetFlagStep{Flag: &cpu.Flags.I, Value: true}),
		Cycle{Bus: BusRead, Phi1: Phi1{Source: AddrFromConst, Const: vector}, Phi2: []Step{MoveStep{Source: LocData, Dest: LocEffAddrLow}}},
		Cycle{Bus: BusRead, Phi1: Phi1{Source: AddrFromConst, Const: vector + 1}, Phi2: []Step{MoveStep{Source: LocData, Dest: LocEffAddrHigh}, LoadIPFromEffectiveAddressStep{}}},
	)
}
