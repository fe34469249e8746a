package cpu6502

// BusMode selects whether a Cycle's bus transaction is a read or a write.
type BusMode int

const (
	BusRead BusMode = iota
	BusWrite
)

// AddrSource selects what phi1 drives onto the address bus.
type AddrSource int

const (
	AddrFromIP         AddrSource = iota // instruction_pointer
	AddrFromEffective                    // effective_address
	AddrFromStack                        // 0x0100 | stack
	AddrFromConst                        // a fixed address baked into the cycle (vectors)
)

// Phi1 describes the address-bus setup that happens before the bus
// transaction: which source drives the address, plus a constant operand
// for AddrFromConst, and whether IP should auto-increment as a side effect
// of this phase (the common "read at PC, then PC++").
type Phi1 struct {
	Source      AddrSource
	Const       uint16
	IncrementIP bool
}

// Step is one phase-2 micro-operation. The vocabulary is closed: every
// concrete step type below corresponds 1:1 to one of the step kinds named
// in the instruction-set specification (mover, flag setter, increment,
// compare, stack-increment, adder, ALU logic, shifter, IP increment,
// AddToPointerLikeRegister, AddCarryToPointerLikeRegister,
// LoadIPFromEffectiveAddress).
type Step interface {
	Apply(cpu *CPU)
}

// Cycle is one emulated bus tick: phi1 sets the address bus, then the data
// direction decides the order against phi2. On a read, the bus transaction
// happens first and phi2 consumes the fetched byte from LocData. On a
// write, phi2 runs first to produce the byte at LocData and the
// transaction carries it out — mirroring the 6502's own read/write data
// bus timing.
type Cycle struct {
	Bus  BusMode
	Phi1 Phi1
	Phi2 []Step
}

// stepFunc adapts a plain function to the Step interface. It exists for
// control-flow glue the closed step vocabulary doesn't name on its own
// (branch-taken decisions, interrupt dispatch) rather than as a new kind of
// micro-operation.
type stepFunc func(cpu *CPU)

func (f stepFunc) Apply(cpu *CPU) { f(cpu) }
