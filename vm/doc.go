// Package vm implements a single-hart RV64I virtual machine that executes
// a raw guest instruction image against an isolated register and memory
// model, and that can checkpoint and restore its own execution state.
//
// The design is deliberately small and deterministic:
//   - Fixed-width (32-bit) instruction words, decoded into one of the six
//     RISC-V format classes (R, I, S, B, U, J)
//   - A bounds-checked flat memory region with typed load/store accessors
//   - An explicit execution state machine (halted, running, faulted,
//     completed) guarding every operation
//   - Deep-copy snapshots for checkpoint/rewind, independent of any
//     subsequent VM mutation
//
// # Architecture Overview
//
// The VM consists of several components:
//
//   - RegisterFile: 32 general-purpose 64-bit registers plus a program
//     counter. Register x0 is hardwired to zero; writes to it are
//     accepted and discarded.
//
//   - Memory: a contiguous byte buffer with a configured base address.
//     Every access validates the full address range before touching the
//     buffer, so a faulting access never partially writes.
//
//   - Decode/Execute: Decode splits an instruction word into opcode,
//     register fields, function codes, and a sign-extended immediate.
//     Execution is an exhaustive dispatch over the decoded opcode; any
//     unrecognized combination produces an IllegalInstruction fault.
//
//   - Snapshots: SaveState and RestoreState copy the full register file
//     and memory contents byte-for-byte into caller-owned storage. A
//     faulted VM can only be recovered by restoring a valid snapshot.
//
// # Determinism
//
// Execution is strictly single-threaded and cooperative: Step performs
// exactly one instruction's worth of work before returning. Given an
// identical initial state and instruction stream, repeated runs produce
// bit-identical registers, memory, and diagnostics. Nothing in the
// execution path reads the clock or any other ambient source.
//
// # Environment calls
//
// When guest code issues an ECALL the VM only recognizes the instruction
// and reports it: the call number and arguments are gathered from the
// a-registers and handed to the installed EnvCallHandler (or surfaced in
// the StepResult when no handler is installed). The userspace package
// provides a handler implementing the basic file and exit calls.
package vm
