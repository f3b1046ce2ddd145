package vm

import "fmt"

// InstructionWidth is the fixed instruction width in bytes.
const InstructionWidth = 4

// Format identifies the encoding class of an instruction word. It decides
// which register fields exist and how the immediate is assembled.
type Format int

const (
	FormatR Format = iota // register-register
	FormatI               // register-immediate (also loads, JALR, SYSTEM)
	FormatS               // store
	FormatB               // conditional branch
	FormatU               // upper immediate
	FormatJ               // unconditional jump
)

// String returns the format class letter.
func (f Format) String() string {
	switch f {
	case FormatR:
		return "R"
	case FormatI:
		return "I"
	case FormatS:
		return "S"
	case FormatB:
		return "B"
	case FormatU:
		return "U"
	case FormatJ:
		return "J"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// Opcode is the low 7 bits of an instruction word.
type Opcode uint32

const (
	// ========================================================================
	// Loads and stores
	// ========================================================================

	OpcodeLoad  Opcode = 0x03 // LB/LH/LW/LD/LBU/LHU/LWU
	OpcodeStore Opcode = 0x23 // SB/SH/SW/SD

	// ========================================================================
	// Integer computation
	// ========================================================================

	OpcodeOpImm   Opcode = 0x13 // ADDI/SLTI/SLTIU/XORI/ORI/ANDI/SLLI/SRLI/SRAI
	OpcodeOp      Opcode = 0x33 // ADD/SUB/SLL/SLT/SLTU/XOR/SRL/SRA/OR/AND
	OpcodeOpImm32 Opcode = 0x1B // ADDIW/SLLIW/SRLIW/SRAIW
	OpcodeOp32    Opcode = 0x3B // ADDW/SUBW/SLLW/SRLW/SRAW
	OpcodeLUI     Opcode = 0x37 // Load upper immediate
	OpcodeAUIPC   Opcode = 0x17 // Add upper immediate to PC

	// ========================================================================
	// Control transfer
	// ========================================================================

	OpcodeBranch Opcode = 0x63 // BEQ/BNE/BLT/BGE/BLTU/BGEU
	OpcodeJAL    Opcode = 0x6F // Jump and link
	OpcodeJALR   Opcode = 0x67 // Jump and link register

	// ========================================================================
	// System
	// ========================================================================

	OpcodeMiscMem Opcode = 0x0F // FENCE (executed as a no-op)
	OpcodeSystem  Opcode = 0x73 // ECALL/EBREAK
)

// opcodeFormats maps each recognized opcode to its format class. Decode
// of anything absent from this table is an IllegalInstruction.
var opcodeFormats = map[Opcode]Format{
	OpcodeLoad:    FormatI,
	OpcodeStore:   FormatS,
	OpcodeOpImm:   FormatI,
	OpcodeOp:      FormatR,
	OpcodeOpImm32: FormatI,
	OpcodeOp32:    FormatR,
	OpcodeLUI:     FormatU,
	OpcodeAUIPC:   FormatU,
	OpcodeBranch:  FormatB,
	OpcodeJAL:     FormatJ,
	OpcodeJALR:    FormatI,
	OpcodeMiscMem: FormatI,
	OpcodeSystem:  FormatI,
}

// Instruction is a decoded instruction word. It is transient: produced by
// Decode at fetch time, consumed by execute, never stored.
type Instruction struct {
	Raw    uint32 // Original instruction word
	Format Format // Encoding class
	Opcode Opcode
	Rd     int    // Destination register index
	Rs1    int    // First source register index
	Rs2    int    // Second source register index
	Funct3 uint32 // Minor function code (bits 14:12)
	Funct7 uint32 // Major function code (bits 31:25)
	Imm    int64  // Sign-extended immediate for the format class
}

// Decode splits a raw instruction word into its fields according to the
// word's format class. An unrecognized opcode yields IllegalInstruction
// with Addr zero; the fetch path fills in the PC.
func Decode(word uint32) (Instruction, error) {
	op := Opcode(word & 0x7F)
	format, ok := opcodeFormats[op]
	if !ok {
		return Instruction{}, &IllegalInstruction{Word: word}
	}

	in := Instruction{
		Raw:    word,
		Format: format,
		Opcode: op,
		Rd:     int(word >> 7 & 0x1F),
		Rs1:    int(word >> 15 & 0x1F),
		Rs2:    int(word >> 20 & 0x1F),
		Funct3: word >> 12 & 0x7,
		Funct7: word >> 25 & 0x7F,
	}

	switch format {
	case FormatI:
		in.Imm = immI(word)
	case FormatS:
		in.Imm = immS(word)
	case FormatB:
		in.Imm = immB(word)
	case FormatU:
		in.Imm = immU(word)
	case FormatJ:
		in.Imm = immJ(word)
	}

	return in, nil
}

// immI extracts the I-format immediate: bits 31:20, sign-extended.
func immI(word uint32) int64 {
	return int64(int32(word)) >> 20
}

// immS extracts the S-format immediate: bits 31:25 and 11:7.
func immS(word uint32) int64 {
	hi := int64(int32(word)) >> 25 // sign-extends
	lo := int64(word >> 7 & 0x1F)
	return hi<<5 | lo
}

// immB extracts the B-format immediate: a 13-bit branch offset with the
// low bit implicitly zero.
func immB(word uint32) int64 {
	sign := int64(int32(word)) >> 31 // all ones if bit 31 set
	b11 := int64(word >> 7 & 0x1)
	hi := int64(word >> 25 & 0x3F)
	lo := int64(word >> 8 & 0xF)
	return sign<<12 | b11<<11 | hi<<5 | lo<<1
}

// immU extracts the U-format immediate: bits 31:12 shifted into place.
func immU(word uint32) int64 {
	return int64(int32(word & 0xFFFFF000))
}

// immJ extracts the J-format immediate: a 21-bit jump offset with the low
// bit implicitly zero.
func immJ(word uint32) int64 {
	sign := int64(int32(word)) >> 31
	b19_12 := int64(word >> 12 & 0xFF)
	b11 := int64(word >> 20 & 0x1)
	b10_1 := int64(word >> 21 & 0x3FF)
	return sign<<20 | b19_12<<12 | b11<<11 | b10_1<<1
}
