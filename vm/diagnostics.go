package vm

// diagnostics holds the VM's monotonically increasing performance
// counters. Counters survive snapshot restores: they count work the VM
// has done, not work the guest remembers.
type diagnostics struct {
	instructions uint64
	faults       uint64
	cycles       uint64
}

// Report is an immutable diagnostics report. A separate external sink
// renders it to text.
type Report struct {
	// InstructionsExecuted counts successfully retired instructions.
	InstructionsExecuted uint64

	// FaultCount counts decode and execute faults.
	FaultCount uint64

	// Cycles counts elapsed logical cycles under a deterministic cost
	// model: one per instruction, plus one for a memory access, plus one
	// for a taken control transfer.
	Cycles uint64
}

// Diagnostics returns a copy of the current counters.
func (vm *VM) Diagnostics() Report {
	return Report{
		InstructionsExecuted: vm.diag.instructions,
		FaultCount:           vm.diag.faults,
		Cycles:               vm.diag.cycles,
	}
}
