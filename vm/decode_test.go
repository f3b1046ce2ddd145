package vm

import "testing"

func TestDecodeIType(t *testing.T) {
	// addi x1, x0, 42
	in, err := Decode(0x02A00093)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if in.Format != FormatI {
		t.Errorf("Format = %s, want I", in.Format)
	}
	if in.Opcode != OpcodeOpImm || in.Rd != 1 || in.Rs1 != 0 || in.Funct3 != 0 {
		t.Errorf("Fields = %+v", in)
	}
	if in.Imm != 42 {
		t.Errorf("Imm = %d, want 42", in.Imm)
	}
}

func TestDecodeNegativeImmediates(t *testing.T) {
	cases := []struct {
		name string
		word uint32
		imm  int64
	}{
		{"addi x1, x0, -1", encodeI(OpcodeOpImm, 1, 0, 0x0, -1), -1},
		{"addi x1, x0, -2048", encodeI(OpcodeOpImm, 1, 0, 0x0, -2048), -2048},
		{"sd x2, -8(x1)", encodeS(OpcodeStore, 1, 2, 0x3, -8), -8},
		{"beq x1, x2, -4", encodeB(OpcodeBranch, 1, 2, 0x0, -4), -4},
		{"jal x1, -8", encodeJ(OpcodeJAL, 1, -8), -8},
		{"jal x1, -1048576", encodeJ(OpcodeJAL, 1, -1048576), -1048576},
	}
	for _, tc := range cases {
		in, err := Decode(tc.word)
		if err != nil {
			t.Errorf("%s: Decode failed: %v", tc.name, err)
			continue
		}
		if in.Imm != tc.imm {
			t.Errorf("%s: Imm = %d, want %d", tc.name, in.Imm, tc.imm)
		}
	}
}

func TestDecodeRType(t *testing.T) {
	// sub x3, x1, x2
	in, err := Decode(encodeR(OpcodeOp, 3, 1, 2, 0x0, 0x20))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if in.Format != FormatR {
		t.Errorf("Format = %s, want R", in.Format)
	}
	if in.Rd != 3 || in.Rs1 != 1 || in.Rs2 != 2 || in.Funct3 != 0 || in.Funct7 != 0x20 {
		t.Errorf("Fields = %+v", in)
	}
}

func TestDecodeUType(t *testing.T) {
	// lui x5, 0x80000 (sign-extends on RV64)
	in, err := Decode(encodeU(OpcodeLUI, 5, 0x80000000))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if in.Format != FormatU {
		t.Errorf("Format = %s, want U", in.Format)
	}
	if in.Imm != -0x80000000 {
		t.Errorf("Imm = %d, want %d", in.Imm, -0x80000000)
	}
}

func TestDecodeBTypeEvenOffsets(t *testing.T) {
	// Branch offsets have an implicit zero low bit.
	in, err := Decode(encodeB(OpcodeBranch, 1, 2, 0x1, 4094))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if in.Imm != 4094 {
		t.Errorf("Imm = %d, want 4094", in.Imm)
	}
}

func TestDecodeUnknownOpcode(t *testing.T) {
	for _, word := range []uint32{0x00000000, 0xFFFFFFFF, 0x0000007F, 0x0000002B} {
		_, err := Decode(word)
		if !IsIllegalInstruction(err) {
			t.Errorf("Decode(0x%08X): got %v, want IllegalInstruction", word, err)
		}
	}
}

func TestDecodeIsTotalOverRecognizedOpcodes(t *testing.T) {
	for op := range opcodeFormats {
		word := uint32(op) // zeroed fields, just the opcode
		if _, err := Decode(word); err != nil {
			t.Errorf("Decode rejected recognized opcode 0x%02X: %v", uint32(op), err)
		}
	}
}
