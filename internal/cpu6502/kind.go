package cpu6502

// Kind selects which member of the 6502 family this CPU emulates. It gates
// instruction availability (undocumented opcodes, decimal mode, interrupt
// handling) and two historical errata: the absolute-indirect JMP page-wrap
// bug and early-silicon's broken ROR.
type Kind int

const (
	// Mos6507 is the reduced-pinout variant used in the Atari 2600; it has
	// no IRQ/NMI pins wired, so interrupts are never polled.
	Mos6507 Kind = iota
	// Ricoh2A0x is the NES's CPU: identical to NMOS 6502 except decimal
	// mode has no effect on ADC/SBC.
	Ricoh2A0x
	// Mos6502 is the original NMOS part, including the absolute-indirect
	// JMP page-wrap errata.
	Mos6502
	// Wdc65C02 is the CMOS revision: the JMP errata is fixed, undocumented
	// opcodes are explicit NOPs, and several new opcodes/addressing modes
	// are added.
	Wdc65C02
)

// SupportsInterrupts reports whether this kind polls IRQ/NMI at all.
func (k Kind) SupportsInterrupts() bool {
	return k != Mos6507
}

// SupportsDecimal reports whether ADC/SBC honour the D flag.
func (k Kind) SupportsDecimal() bool {
	return k != Ricoh2A0x
}

// HasIndirectJumpPageWrapErrata reports whether JMP (abs) fails to cross a
// page boundary when the pointer's low byte is 0xFF.
func (k Kind) HasIndirectJumpPageWrapErrata() bool {
	return k == Mos6502 || k == Mos6507 || k == Ricoh2A0x
}

// IsCMOS reports whether this kind is the 65C02 family. Decoding of the
// 65C02-only opcodes is gated by each table entry's MinKind, not by IsCMOS.
func (k Kind) IsCMOS() bool {
	return k == Wdc65C02
}
