package cpu6502

// Status register bit positions.
const (
	FlagC uint8 = 0x01
	FlagZ uint8 = 0x02
	FlagI uint8 = 0x04
	FlagD uint8 = 0x08
	FlagB uint8 = 0x10
	Flag5 uint8 = 0x20 // always reads as 1
	FlagV uint8 = 0x40
	FlagN uint8 = 0x80
)

// Flags is the 6502 status register, held as individual booleans rather
// than a packed byte so step implementations can read/write one flag
// without a mask-and-shift each time. Pack/Unpack convert to/from the wire
// byte used by PHP/PLP/BRK/RTI.
type Flags struct {
	N, V, D, I, Z, C bool
}

// Pack assembles the status byte. breakBit controls bit 4: set for an
// instruction-initiated push (PHP, BRK) and clear for a hardware interrupt
// sequence (IRQ, NMI).
func (f Flags) Pack(breakBit bool) uint8 {
	var b uint8 = Flag5
	if f.N {
		b |= FlagN
	}
	if f.V {
		b |= FlagV
	}
	if f.D {
		b |= FlagD
	}
	if f.I {
		b |= FlagI
	}
	if f.Z {
		b |= FlagZ
	}
	if f.C {
		b |= FlagC
	}
	if breakBit {
		b |= FlagB
	}
	return b
}

// Unpack reconstitutes Flags from a status byte (PLP, RTI). The break bit
// and bit 5 are not stored as CPU state; they only ever matter on the wire.
func Unpack(b uint8) Flags {
	return Flags{
		N: b&FlagN != 0,
		V: b&FlagV != 0,
		D: b&FlagD != 0,
		I: b&FlagI != 0,
		Z: b&FlagZ != 0,
		C: b&FlagC != 0,
	}
}

func updateNZ(f *Flags, value uint8) {
	f.Z = value == 0
	f.N = value&0x80 != 0
}
