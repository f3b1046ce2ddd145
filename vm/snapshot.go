package vm

// ---------------------------------------------------------------------------
// Snapshot: point-in-time deep copy of the full VM state
// Capture and restore are synchronous full copies. The VM never aliases
// snapshot storage: the caller owns the buffer, and once captured a
// snapshot is never mutated by further VM execution.
// ---------------------------------------------------------------------------

// Snapshot is an independent, caller-owned copy of the register file,
// the full memory contents, and the execution state tag at one instant.
type Snapshot struct {
	regs  RegisterFile
	mem   []byte
	state State
	valid bool
}

// Valid reports whether the snapshot was produced by a successful
// SaveState and may be restored.
func (s *Snapshot) Valid() bool {
	return s != nil && s.valid
}

// State returns the execution state tag recorded at capture time.
func (s *Snapshot) State() State {
	return s.state
}

// MemorySize returns the size of the captured memory image.
func (s *Snapshot) MemorySize() uint64 {
	return uint64(len(s.mem))
}

// SaveState captures the full register file, memory contents, and state
// tag into buf, which must be caller-allocated with capacity at least the
// memory size. Returns a valid Snapshot backed by buf, or
// SnapshotMismatchError if the buffer is too small. The VM retains no
// reference to buf after the call returns.
func (vm *VM) SaveState(buf []byte) (*Snapshot, error) {
	size := vm.mem.Size()
	if uint64(cap(buf)) < size {
		return nil, &SnapshotMismatchError{Want: size, Got: uint64(cap(buf))}
	}

	image := buf[:size]
	vm.mem.CopyTo(image)

	return &Snapshot{
		regs:  vm.regs, // value copy, registers are a fixed array
		mem:   image,
		state: vm.state,
		valid: true,
	}, nil
}

// RestoreState overwrites the VM's register file and memory byte-for-byte
// from the snapshot and restores the execution state tag recorded at
// capture time. This is the only way to recover a faulted VM. An invalid
// snapshot or one whose memory image does not match the VM's configured
// memory size fails with SnapshotMismatchError, leaving the VM untouched.
func (vm *VM) RestoreState(snap *Snapshot) error {
	if !snap.Valid() {
		return &SnapshotMismatchError{Why: "snapshot is not valid"}
	}
	if uint64(len(snap.mem)) != vm.mem.Size() {
		return &SnapshotMismatchError{Want: vm.mem.Size(), Got: uint64(len(snap.mem))}
	}

	vm.regs = snap.regs
	vm.mem.CopyFrom(snap.mem)
	vm.state = snap.state
	return nil
}
