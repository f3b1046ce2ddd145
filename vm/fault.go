package vm

import (
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// Fault taxonomy
// Every fault is returned to the caller as a typed error, never swallowed
// and never retried. MemoryFault and IllegalInstruction during Step
// additionally move the VM to StateFaulted.
// ---------------------------------------------------------------------------

// MemoryFault reports an access outside the configured memory region.
type MemoryFault struct {
	Addr  uint64 // Faulting address
	Width int    // Access width in bytes
	Write bool   // True for stores, false for loads and fetches
}

func (f *MemoryFault) Error() string {
	kind := "read"
	if f.Write {
		kind = "write"
	}
	return fmt.Sprintf("memory fault: %d-byte %s at 0x%08X out of bounds", f.Width, kind, f.Addr)
}

// IllegalInstruction reports an instruction word that does not decode to
// any recognized operation.
type IllegalInstruction struct {
	Addr uint64 // PC of the instruction
	Word uint32 // Raw instruction word
}

func (f *IllegalInstruction) Error() string {
	return fmt.Sprintf("illegal instruction 0x%08X at 0x%08X", f.Word, f.Addr)
}

// InvalidStateError reports an operation invoked while the VM was not in
// the state that operation requires.
type InvalidStateError struct {
	Op    string // Operation that was attempted
	State State  // State the VM was in
}

func (f *InvalidStateError) Error() string {
	return fmt.Sprintf("invalid state: %s while %s", f.Op, f.State)
}

// SnapshotMismatchError reports a snapshot buffer too small for capture,
// or a restore from an invalid or size-mismatched snapshot.
type SnapshotMismatchError struct {
	Want uint64 // Required size in bytes
	Got  uint64 // Provided size in bytes
	Why  string // Short reason
}

func (f *SnapshotMismatchError) Error() string {
	if f.Why != "" {
		return fmt.Sprintf("snapshot mismatch: %s", f.Why)
	}
	return fmt.Sprintf("snapshot mismatch: have %d bytes, need %d", f.Got, f.Want)
}

// IsMemoryFault reports whether err is a MemoryFault.
func IsMemoryFault(err error) bool {
	var f *MemoryFault
	return errors.As(err, &f)
}

// IsIllegalInstruction reports whether err is an IllegalInstruction.
func IsIllegalInstruction(err error) bool {
	var f *IllegalInstruction
	return errors.As(err, &f)
}

// IsInvalidState reports whether err is an InvalidStateError.
func IsInvalidState(err error) bool {
	var f *InvalidStateError
	return errors.As(err, &f)
}

// IsSnapshotMismatch reports whether err is a SnapshotMismatchError.
func IsSnapshotMismatch(err error) bool {
	var f *SnapshotMismatchError
	return errors.As(err, &f)
}
