package vm

import "fmt"

// NumRegisters is the number of general-purpose integer registers.
const NumRegisters = 32

// Well-known register indices per the standard integer calling convention.
// The VM core never interprets these; they are provided for collaborators
// (argument count goes in A0, the argument-vector pointer in A1, the
// environment-call number in A7).
const (
	RegZero = 0  // x0, hardwired zero
	RegRA   = 1  // x1, return address
	RegSP   = 2  // x2, stack pointer
	RegA0   = 10 // x10, first argument / return value
	RegA1   = 11 // x11, second argument
	RegA7   = 17 // x17, environment-call number
)

// RegisterFile holds the 32 general-purpose integer registers and the
// program counter. Register 0 always reads as zero regardless of prior
// writes. The zero value is a usable register file with everything zero.
type RegisterFile struct {
	regs [NumRegisters]uint64
	pc   uint64
}

// Get returns the value of register i. Index 0 always yields zero.
// An index outside 0-31 is a caller contract violation and panics.
func (r *RegisterFile) Get(i int) uint64 {
	if i < 0 || i >= NumRegisters {
		panic(fmt.Sprintf("RegisterFile.Get: register index %d out of range", i))
	}
	if i == RegZero {
		return 0
	}
	return r.regs[i]
}

// Set stores v into register i. Writes to index 0 are accepted and
// discarded. An index outside 0-31 is a caller contract violation.
func (r *RegisterFile) Set(i int, v uint64) {
	if i < 0 || i >= NumRegisters {
		panic(fmt.Sprintf("RegisterFile.Set: register index %d out of range", i))
	}
	if i == RegZero {
		return
	}
	r.regs[i] = v
}

// PC returns the program counter.
func (r *RegisterFile) PC() uint64 {
	return r.pc
}

// SetPC sets the program counter.
func (r *RegisterFile) SetPC(v uint64) {
	r.pc = v
}
