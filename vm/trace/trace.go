// Package trace records per-step execution traces as a stream of
// canonically encoded CBOR records. A trace is an observation of a run,
// not a reloadable machine image.
package trace

import (
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/hart/vm"
)

// Record describes one executed instruction.
type Record struct {
	Seq   uint64 `cbor:"1,keyasint"` // Step number, starting at 1
	PC    uint64 `cbor:"2,keyasint"` // Address of the instruction
	Word  uint32 `cbor:"3,keyasint"` // Raw instruction word
	Asm   string `cbor:"4,keyasint"` // Disassembly of the word
	State string `cbor:"5,keyasint"` // VM state after the step
}

// Recorder streams Records to an io.Writer. It is not safe for
// concurrent use; the VM it observes is single-threaded anyway.
type Recorder struct {
	enc *cbor.Encoder
	seq uint64
}

// NewRecorder creates a Recorder writing to w.
func NewRecorder(w io.Writer) *Recorder {
	return &Recorder{enc: cborEncMode.NewEncoder(w)}
}

// Step records one executed instruction and the VM's resulting state.
func (r *Recorder) Step(res vm.StepResult, state vm.State) error {
	r.seq++

	asm := fmt.Sprintf(".word 0x%08X", res.Word)
	if in, err := vm.Decode(res.Word); err == nil {
		asm = vm.Disassemble(in)
	}

	rec := Record{
		Seq:   r.seq,
		PC:    res.PC,
		Word:  res.Word,
		Asm:   asm,
		State: state.String(),
	}
	if err := r.enc.Encode(&rec); err != nil {
		return fmt.Errorf("trace: encode record %d: %w", r.seq, err)
	}
	return nil
}

// Count returns the number of records written so far.
func (r *Recorder) Count() uint64 {
	return r.seq
}
