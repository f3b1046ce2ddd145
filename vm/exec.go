package vm

// ---------------------------------------------------------------------------
// Execute: dispatch on the decoded opcode/function-code pair
// Each arm computes its effect, validates any memory access or control
// transfer target, and only then commits to registers, memory, and PC.
// A faulting instruction therefore mutates nothing.
// ---------------------------------------------------------------------------

// execute runs one decoded instruction at pc. The default arm of every
// dispatch produces IllegalInstruction, keeping decode total.
func (vm *VM) execute(pc uint64, in Instruction) (StepResult, error) {
	var res StepResult
	next := pc + InstructionWidth
	vm.diag.cycles++

	switch in.Opcode {

	// ============ Upper immediate ============
	case OpcodeLUI:
		vm.regs.Set(in.Rd, uint64(in.Imm))

	case OpcodeAUIPC:
		vm.regs.Set(in.Rd, pc+uint64(in.Imm))

	// ============ Jumps ============
	case OpcodeJAL:
		target := pc + uint64(in.Imm)
		if err := vm.checkTarget(target); err != nil {
			return res, err
		}
		vm.regs.Set(in.Rd, next)
		next = target
		vm.diag.cycles++

	case OpcodeJALR:
		if in.Funct3 != 0 {
			return res, &IllegalInstruction{Addr: pc, Word: in.Raw}
		}
		target := (vm.regs.Get(in.Rs1) + uint64(in.Imm)) &^ 1
		if err := vm.checkTarget(target); err != nil {
			return res, err
		}
		vm.regs.Set(in.Rd, next)
		next = target
		vm.diag.cycles++

	// ============ Conditional branches ============
	case OpcodeBranch:
		a, b := vm.regs.Get(in.Rs1), vm.regs.Get(in.Rs2)
		var taken bool
		switch in.Funct3 {
		case 0x0: // BEQ
			taken = a == b
		case 0x1: // BNE
			taken = a != b
		case 0x4: // BLT
			taken = int64(a) < int64(b)
		case 0x5: // BGE
			taken = int64(a) >= int64(b)
		case 0x6: // BLTU
			taken = a < b
		case 0x7: // BGEU
			taken = a >= b
		default:
			return res, &IllegalInstruction{Addr: pc, Word: in.Raw}
		}
		if taken {
			target := pc + uint64(in.Imm)
			if err := vm.checkTarget(target); err != nil {
				return res, err
			}
			next = target
			vm.diag.cycles++
		}

	// ============ Loads ============
	case OpcodeLoad:
		addr := vm.regs.Get(in.Rs1) + uint64(in.Imm)
		var v uint64
		switch in.Funct3 {
		case 0x0: // LB
			b, err := vm.mem.Read8(addr)
			if err != nil {
				return res, err
			}
			v = uint64(int64(int8(b)))
		case 0x1: // LH
			h, err := vm.mem.Read16(addr)
			if err != nil {
				return res, err
			}
			v = uint64(int64(int16(h)))
		case 0x2: // LW
			w, err := vm.mem.Read32(addr)
			if err != nil {
				return res, err
			}
			v = uint64(int64(int32(w)))
		case 0x3: // LD
			d, err := vm.mem.Read64(addr)
			if err != nil {
				return res, err
			}
			v = d
		case 0x4: // LBU
			b, err := vm.mem.Read8(addr)
			if err != nil {
				return res, err
			}
			v = uint64(b)
		case 0x5: // LHU
			h, err := vm.mem.Read16(addr)
			if err != nil {
				return res, err
			}
			v = uint64(h)
		case 0x6: // LWU
			w, err := vm.mem.Read32(addr)
			if err != nil {
				return res, err
			}
			v = uint64(w)
		default:
			return res, &IllegalInstruction{Addr: pc, Word: in.Raw}
		}
		vm.regs.Set(in.Rd, v)
		vm.diag.cycles++

	// ============ Stores ============
	case OpcodeStore:
		addr := vm.regs.Get(in.Rs1) + uint64(in.Imm)
		v := vm.regs.Get(in.Rs2)
		var err error
		switch in.Funct3 {
		case 0x0: // SB
			err = vm.mem.Write8(addr, uint8(v))
		case 0x1: // SH
			err = vm.mem.Write16(addr, uint16(v))
		case 0x2: // SW
			err = vm.mem.Write32(addr, uint32(v))
		case 0x3: // SD
			err = vm.mem.Write64(addr, v)
		default:
			return res, &IllegalInstruction{Addr: pc, Word: in.Raw}
		}
		if err != nil {
			return res, err
		}
		vm.diag.cycles++

	// ============ Register-immediate computation ============
	case OpcodeOpImm:
		a := vm.regs.Get(in.Rs1)
		imm := uint64(in.Imm)
		var v uint64
		switch in.Funct3 {
		case 0x0: // ADDI
			v = a + imm
		case 0x2: // SLTI
			v = boolToReg(int64(a) < in.Imm)
		case 0x3: // SLTIU
			v = boolToReg(a < imm)
		case 0x4: // XORI
			v = a ^ imm
		case 0x6: // ORI
			v = a | imm
		case 0x7: // ANDI
			v = a & imm
		case 0x1: // SLLI (shamt is imm[5:0] on RV64)
			if in.Imm>>6 != 0 {
				return res, &IllegalInstruction{Addr: pc, Word: in.Raw}
			}
			v = a << (imm & 0x3F)
		case 0x5: // SRLI/SRAI
			shamt := imm & 0x3F
			switch in.Funct7 >> 1 { // bit 25 is part of the shamt on RV64
			case 0x00:
				v = a >> shamt
			case 0x10:
				v = uint64(int64(a) >> shamt)
			default:
				return res, &IllegalInstruction{Addr: pc, Word: in.Raw}
			}
		default:
			return res, &IllegalInstruction{Addr: pc, Word: in.Raw}
		}
		vm.regs.Set(in.Rd, v)

	// ============ Register-register computation ============
	case OpcodeOp:
		a, b := vm.regs.Get(in.Rs1), vm.regs.Get(in.Rs2)
		var v uint64
		switch funct(in.Funct3, in.Funct7) {
		case funct(0x0, 0x00): // ADD
			v = a + b
		case funct(0x0, 0x20): // SUB
			v = a - b
		case funct(0x1, 0x00): // SLL
			v = a << (b & 0x3F)
		case funct(0x2, 0x00): // SLT
			v = boolToReg(int64(a) < int64(b))
		case funct(0x3, 0x00): // SLTU
			v = boolToReg(a < b)
		case funct(0x4, 0x00): // XOR
			v = a ^ b
		case funct(0x5, 0x00): // SRL
			v = a >> (b & 0x3F)
		case funct(0x5, 0x20): // SRA
			v = uint64(int64(a) >> (b & 0x3F))
		case funct(0x6, 0x00): // OR
			v = a | b
		case funct(0x7, 0x00): // AND
			v = a & b
		default:
			return res, &IllegalInstruction{Addr: pc, Word: in.Raw}
		}
		vm.regs.Set(in.Rd, v)

	// ============ 32-bit word computation (RV64) ============
	case OpcodeOpImm32:
		a := uint32(vm.regs.Get(in.Rs1))
		var v uint32
		switch in.Funct3 {
		case 0x0: // ADDIW
			v = a + uint32(in.Imm)
		case 0x1: // SLLIW
			if in.Imm>>5 != 0 {
				return res, &IllegalInstruction{Addr: pc, Word: in.Raw}
			}
			v = a << (uint32(in.Imm) & 0x1F)
		case 0x5: // SRLIW/SRAIW
			shamt := uint32(in.Imm) & 0x1F
			switch in.Funct7 {
			case 0x00:
				v = a >> shamt
			case 0x20:
				v = uint32(int32(a) >> shamt)
			default:
				return res, &IllegalInstruction{Addr: pc, Word: in.Raw}
			}
		default:
			return res, &IllegalInstruction{Addr: pc, Word: in.Raw}
		}
		vm.regs.Set(in.Rd, signExtend32(v))

	case OpcodeOp32:
		a, b := uint32(vm.regs.Get(in.Rs1)), uint32(vm.regs.Get(in.Rs2))
		var v uint32
		switch funct(in.Funct3, in.Funct7) {
		case funct(0x0, 0x00): // ADDW
			v = a + b
		case funct(0x0, 0x20): // SUBW
			v = a - b
		case funct(0x1, 0x00): // SLLW
			v = a << (b & 0x1F)
		case funct(0x5, 0x00): // SRLW
			v = a >> (b & 0x1F)
		case funct(0x5, 0x20): // SRAW
			v = uint32(int32(a) >> (b & 0x1F))
		default:
			return res, &IllegalInstruction{Addr: pc, Word: in.Raw}
		}
		vm.regs.Set(in.Rd, signExtend32(v))

	// ============ Fence ============
	case OpcodeMiscMem:
		if in.Funct3 != 0 {
			return res, &IllegalInstruction{Addr: pc, Word: in.Raw}
		}
		// FENCE: a single hart with no reordering has nothing to order.

	// ============ System ============
	case OpcodeSystem:
		if in.Funct3 != 0 {
			return res, &IllegalInstruction{Addr: pc, Word: in.Raw}
		}
		switch in.Imm {
		case 0: // ECALL
			call := vm.gatherEnvCall()
			if vm.env == nil {
				res.EnvCall = call
				break
			}
			r, err := vm.env.HandleEnvCall(call)
			if err != nil {
				return res, err
			}
			vm.regs.Set(RegA0, r.Ret)
			if r.Exited {
				res.Exited = true
				res.ExitCode = r.ExitCode
			}
		case 1: // EBREAK
			res.Breakpoint = true
		default:
			return res, &IllegalInstruction{Addr: pc, Word: in.Raw}
		}

	default:
		return res, &IllegalInstruction{Addr: pc, Word: in.Raw}
	}

	vm.regs.SetPC(next)
	return res, nil
}

// checkTarget asserts a control-transfer target is representable within
// the memory region before it is committed to the PC.
func (vm *VM) checkTarget(target uint64) error {
	if !vm.mem.Contains(target) {
		return &MemoryFault{Addr: target, Width: InstructionWidth}
	}
	return nil
}

// gatherEnvCall reads the environment-call number and arguments from the
// a-registers per the standard integer calling convention.
func (vm *VM) gatherEnvCall() *EnvCall {
	call := &EnvCall{Num: vm.regs.Get(RegA7)}
	for i := 0; i < len(call.Args); i++ {
		call.Args[i] = vm.regs.Get(RegA0 + i)
	}
	return call
}

// funct packs a funct3/funct7 pair into one switchable value.
func funct(f3, f7 uint32) uint32 {
	return f7<<3 | f3
}

func boolToReg(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

func signExtend32(v uint32) uint64 {
	return uint64(int64(int32(v)))
}
