package vm

import (
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// VM: a single-hart RV64I machine
// ---------------------------------------------------------------------------

// State is the execution state tag. Every transition is guarded by an
// explicit check of the expected prior state.
type State int

const (
	StateHalted    State = iota // Initial state; Start has not been called
	StateRunning                // Stepping is legal
	StateFaulted                // A fault occurred; recover via RestoreState
	StateCompleted              // Guest signaled completion; terminal
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateHalted:
		return "halted"
	case StateRunning:
		return "running"
	case StateFaulted:
		return "faulted"
	case StateCompleted:
		return "completed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// DefaultMemorySize is the memory region size used when no option
// overrides it.
const DefaultMemorySize = 1 << 20

// DefaultLoadAddress is the conventional RISC-V DRAM base.
const DefaultLoadAddress = 0x80000000

// EnvCall carries a guest environment call to the host: the call number
// from a7 and the arguments from a0-a5. The core gathers the registers
// but never interprets them.
type EnvCall struct {
	Num  uint64
	Args [6]uint64
}

// EnvCallResult is the host's answer to an environment call. Ret is
// written back to a0. Exited marks the guest as completed.
type EnvCallResult struct {
	Ret      uint64
	Exited   bool
	ExitCode int64
}

// EnvCallHandler is implemented by the userspace-runtime collaborator
// that services environment calls (print, exit, read, write, open,
// close). The VM core only recognizes the ECALL instruction and reports
// it here.
type EnvCallHandler interface {
	HandleEnvCall(call *EnvCall) (EnvCallResult, error)
}

// StepResult describes what a single Step did.
type StepResult struct {
	// PC of the executed instruction.
	PC uint64

	// Raw word of the executed instruction.
	Word uint32

	// EnvCall is set when the instruction was an ECALL and no handler is
	// installed; the caller is expected to service it.
	EnvCall *EnvCall

	// Breakpoint is true when the instruction was an EBREAK.
	Breakpoint bool

	// Exited is true if the guest signaled completion through its
	// environment-call handler; the VM is now in StateCompleted.
	Exited bool

	// ExitCode is the guest exit status when Exited is true.
	ExitCode int64
}

// VM aggregates the register file, memory, state tag, and performance
// counters. It has a single owner and is not safe for concurrent use;
// there is only ever one thread of control touching VM state.
type VM struct {
	regs  RegisterFile
	mem   *Memory
	state State
	diag  diagnostics

	env EnvCallHandler
}

// Option configures a VM at construction time.
type Option func(*config)

type config struct {
	memorySize uint64
	env        EnvCallHandler
}

// WithMemorySize sets the memory region size in bytes.
func WithMemorySize(size uint64) Option {
	return func(c *config) {
		c.memorySize = size
	}
}

// WithEnvCallHandler installs the environment-call collaborator.
func WithEnvCallHandler(h EnvCallHandler) Option {
	return func(c *config) {
		c.env = h
	}
}

// New creates a VM with the program image loaded at loadAddr, which is
// also the memory base and the initial PC. The VM starts halted.
func New(program []byte, loadAddr uint64, opts ...Option) (*VM, error) {
	cfg := config{memorySize: DefaultMemorySize}
	for _, opt := range opts {
		opt(&cfg)
	}

	if uint64(len(program)) > cfg.memorySize {
		return nil, fmt.Errorf("program image (%d bytes) exceeds memory size (%d bytes)", len(program), cfg.memorySize)
	}

	vm := &VM{
		mem:   NewMemory(loadAddr, cfg.memorySize),
		state: StateHalted,
		env:   cfg.env,
	}
	if err := vm.mem.LoadImage(loadAddr, program); err != nil {
		return nil, fmt.Errorf("loading program image: %w", err)
	}
	vm.regs.SetPC(loadAddr)

	return vm, nil
}

// SetEnvCallHandler installs the environment-call collaborator after
// construction, for callers that need the VM's memory handle to build it.
func (vm *VM) SetEnvCallHandler(h EnvCallHandler) {
	vm.env = h
}

// State returns the current execution state tag.
func (vm *VM) State() State {
	return vm.state
}

// Registers returns the VM's register file for inspection. The VM remains
// the exclusive owner.
func (vm *VM) Registers() *RegisterFile {
	return &vm.regs
}

// Memory returns the VM's memory subsystem for inspection and image
// staging. The VM remains the exclusive owner.
func (vm *VM) Memory() *Memory {
	return vm.mem
}

// Start transitions the VM from halted to running. Calling Start from any
// other state is an InvalidStateError.
func (vm *VM) Start() error {
	if vm.state != StateHalted {
		return &InvalidStateError{Op: "start", State: vm.state}
	}
	vm.state = StateRunning
	return nil
}

// Step decode-executes exactly one instruction. On success the VM remains
// running (or moves to completed if the guest signaled termination). On a
// decode or execute fault the VM moves to faulted and the specific fault
// is returned; the failing instruction mutates nothing. An instruction
// that retires with the PC advanced past the end of the region faults the
// VM on the same step, so a running VM's PC is always in bounds. Stepping
// a VM that is not running returns InvalidStateError with no side effects.
func (vm *VM) Step() (StepResult, error) {
	if vm.state != StateRunning {
		return StepResult{}, &InvalidStateError{Op: "step", State: vm.state}
	}

	pc := vm.regs.PC()

	word, err := vm.mem.Read32(pc)
	if err != nil {
		return StepResult{}, vm.fault(err)
	}

	in, err := Decode(word)
	if err != nil {
		var illegal *IllegalInstruction
		if errors.As(err, &illegal) {
			illegal.Addr = pc
		}
		return StepResult{}, vm.fault(err)
	}

	res, err := vm.execute(pc, in)
	if err != nil {
		return StepResult{}, vm.fault(err)
	}

	res.PC = pc
	res.Word = word
	vm.diag.instructions++

	if res.Exited {
		vm.state = StateCompleted
		return res, nil
	}

	// The PC must stay inside the region whenever the VM is running.
	// Falling off the end therefore faults on the step that retires the
	// last instruction, not lazily on the next fetch.
	if npc := vm.regs.PC(); !vm.mem.Contains(npc) {
		return StepResult{}, vm.fault(&MemoryFault{Addr: npc, Width: InstructionWidth})
	}
	return res, nil
}

// fault records the fault and moves the VM to StateFaulted. Registers and
// memory keep whatever strictly prior instructions committed.
func (vm *VM) fault(err error) error {
	vm.diag.faults++
	vm.state = StateFaulted
	return err
}
