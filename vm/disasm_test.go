package vm

import "testing"

func TestDisassemble(t *testing.T) {
	cases := []struct {
		word uint32
		want string
	}{
		{addi(1, 0, 42), "addi ra, zero, 42"},
		{encodeR(OpcodeOp, 3, 1, 2, 0x0, 0x20), "sub gp, ra, sp"},
		{encodeR(OpcodeOp32, 3, 1, 2, 0x0, 0x00), "addw gp, ra, sp"},
		{encodeI(OpcodeLoad, 10, 2, 0x3, 16), "ld a0, 16(sp)"},
		{encodeS(OpcodeStore, 2, 10, 0x3, -8), "sd a0, -8(sp)"},
		{encodeB(OpcodeBranch, 1, 2, 0x0, -4), "beq ra, sp, -4"},
		{encodeU(OpcodeLUI, 5, 0x12345000), "lui t0, 0x12345"},
		{encodeJ(OpcodeJAL, 1, 2048), "jal ra, 2048"},
		{encodeI(OpcodeJALR, 0, 1, 0x0, 0), "jalr zero, 0(ra)"},
		{encodeI(OpcodeOpImm, 2, 1, 0x5, 0x400 | 3), "srai sp, ra, 3"},
		{ecallWord, "ecall"},
		{ebreakWord, "ebreak"},
		{encodeI(OpcodeMiscMem, 0, 0, 0x0, 0), "fence"},
	}
	for _, tc := range cases {
		in, err := Decode(tc.word)
		if err != nil {
			t.Errorf("Decode(0x%08X) failed: %v", tc.word, err)
			continue
		}
		if got := Disassemble(in); got != tc.want {
			t.Errorf("Disassemble(0x%08X) = %q, want %q", tc.word, got, tc.want)
		}
	}
}

func TestDisassembleUnknownFunctAsRawWord(t *testing.T) {
	in, err := Decode(encodeB(OpcodeBranch, 1, 2, 0x2, 8))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	want := ".word 0x" // prefix check is enough
	got := Disassemble(in)
	if len(got) < len(want) || got[:len(want)] != want {
		t.Errorf("Disassemble = %q, want raw word form", got)
	}
}

func TestRegNames(t *testing.T) {
	if RegName(0) != "zero" || RegName(2) != "sp" || RegName(10) != "a0" || RegName(31) != "t6" {
		t.Error("ABI register names wrong")
	}
}
