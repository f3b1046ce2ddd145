package vm

import "fmt"

// regNames are the standard ABI register names.
var regNames = [NumRegisters]string{
	"zero", "ra", "sp", "gp", "tp", "t0", "t1", "t2",
	"s0", "s1", "a0", "a1", "a2", "a3", "a4", "a5",
	"a6", "a7", "s2", "s3", "s4", "s5", "s6", "s7",
	"s8", "s9", "s10", "s11", "t3", "t4", "t5", "t6",
}

// RegName returns the ABI name for register index i.
func RegName(i int) string {
	if i < 0 || i >= NumRegisters {
		return fmt.Sprintf("x?%d", i)
	}
	return regNames[i]
}

// Disassemble renders a decoded instruction as assembly text with ABI
// register names. Unrecognized function codes within a known opcode are
// rendered as raw words rather than guessed at.
func Disassemble(in Instruction) string {
	switch in.Opcode {
	case OpcodeLUI:
		return fmt.Sprintf("lui %s, 0x%x", RegName(in.Rd), uint32(in.Imm)>>12)
	case OpcodeAUIPC:
		return fmt.Sprintf("auipc %s, 0x%x", RegName(in.Rd), uint32(in.Imm)>>12)
	case OpcodeJAL:
		return fmt.Sprintf("jal %s, %d", RegName(in.Rd), in.Imm)
	case OpcodeJALR:
		return fmt.Sprintf("jalr %s, %d(%s)", RegName(in.Rd), in.Imm, RegName(in.Rs1))

	case OpcodeBranch:
		mnemonics := map[uint32]string{0x0: "beq", 0x1: "bne", 0x4: "blt", 0x5: "bge", 0x6: "bltu", 0x7: "bgeu"}
		if m, ok := mnemonics[in.Funct3]; ok {
			return fmt.Sprintf("%s %s, %s, %d", m, RegName(in.Rs1), RegName(in.Rs2), in.Imm)
		}

	case OpcodeLoad:
		mnemonics := map[uint32]string{0x0: "lb", 0x1: "lh", 0x2: "lw", 0x3: "ld", 0x4: "lbu", 0x5: "lhu", 0x6: "lwu"}
		if m, ok := mnemonics[in.Funct3]; ok {
			return fmt.Sprintf("%s %s, %d(%s)", m, RegName(in.Rd), in.Imm, RegName(in.Rs1))
		}

	case OpcodeStore:
		mnemonics := map[uint32]string{0x0: "sb", 0x1: "sh", 0x2: "sw", 0x3: "sd"}
		if m, ok := mnemonics[in.Funct3]; ok {
			return fmt.Sprintf("%s %s, %d(%s)", m, RegName(in.Rs2), in.Imm, RegName(in.Rs1))
		}

	case OpcodeOpImm, OpcodeOpImm32:
		if m := opImmMnemonic(in); m != "" {
			return fmt.Sprintf("%s %s, %s, %d", m, RegName(in.Rd), RegName(in.Rs1), immOrShamt(in))
		}

	case OpcodeOp, OpcodeOp32:
		if m := opMnemonic(in); m != "" {
			return fmt.Sprintf("%s %s, %s, %s", m, RegName(in.Rd), RegName(in.Rs1), RegName(in.Rs2))
		}

	case OpcodeMiscMem:
		if in.Funct3 == 0 {
			return "fence"
		}

	case OpcodeSystem:
		if in.Funct3 == 0 {
			switch in.Imm {
			case 0:
				return "ecall"
			case 1:
				return "ebreak"
			}
		}
	}

	return fmt.Sprintf(".word 0x%08X", in.Raw)
}

// opImmMnemonic resolves register-immediate mnemonics, including the
// RV64 word forms.
func opImmMnemonic(in Instruction) string {
	word := in.Opcode == OpcodeOpImm32
	switch in.Funct3 {
	case 0x0:
		return suffixW("addi", word)
	case 0x1:
		return suffixW("slli", word)
	case 0x2:
		return "slti"
	case 0x3:
		return "sltiu"
	case 0x4:
		return "xori"
	case 0x5:
		if in.Funct7&0x20 != 0 {
			return suffixW("srai", word)
		}
		return suffixW("srli", word)
	case 0x6:
		return "ori"
	case 0x7:
		return "andi"
	}
	return ""
}

// opMnemonic resolves register-register mnemonics, including the RV64
// word forms.
func opMnemonic(in Instruction) string {
	word := in.Opcode == OpcodeOp32
	switch funct(in.Funct3, in.Funct7) {
	case funct(0x0, 0x00):
		return suffixW("add", word)
	case funct(0x0, 0x20):
		return suffixW("sub", word)
	case funct(0x1, 0x00):
		return suffixW("sll", word)
	case funct(0x2, 0x00):
		return "slt"
	case funct(0x3, 0x00):
		return "sltu"
	case funct(0x4, 0x00):
		return "xor"
	case funct(0x5, 0x00):
		return suffixW("srl", word)
	case funct(0x5, 0x20):
		return suffixW("sra", word)
	case funct(0x6, 0x00):
		return "or"
	case funct(0x7, 0x00):
		return "and"
	}
	return ""
}

func suffixW(m string, word bool) string {
	if word {
		return m + "w"
	}
	return m
}

// immOrShamt returns the shift amount for shift-immediate forms and the
// plain immediate otherwise.
func immOrShamt(in Instruction) int64 {
	if in.Funct3 == 0x1 || in.Funct3 == 0x5 {
		return in.Imm & 0x3F
	}
	return in.Imm
}
