package insts

// Decoder decodes RV64IM machine code into Instructions. It carries no
// state and has no side effects: identical input words always produce
// identical output, and decoding never touches memory or registers.
type Decoder struct{}

// NewDecoder creates a new RV64IM instruction decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Field extraction helpers, named after the RISC-V manual's field names.
func opcode(w uint32) uint32 { return w & 0x7f }
func rd(w uint32) uint32     { return (w >> 7) & 0x1f }
func funct3(w uint32) uint32 { return (w >> 12) & 0x7 }
func rs1(w uint32) uint32    { return (w >> 15) & 0x1f }
func rs2(w uint32) uint32    { return (w >> 20) & 0x1f }
func funct7(w uint32) uint32 { return (w >> 25) & 0x7f }

// signExtend sign-extends the low `bits` bits of v to a full int64.
func signExtend(v uint32, bits uint) int64 {
	shift := 32 - bits
	return int64(int32(v<<shift)) >> shift
}

func immI(w uint32) int64 {
	return signExtend(w>>20, 12)
}

func immS(w uint32) int64 {
	v := ((w >> 25) << 5) | rd(w)
	return signExtend(v, 12)
}

func immB(w uint32) int64 {
	v := (((w >> 31) & 0x1) << 12) |
		(((w >> 7) & 0x1) << 11) |
		(((w >> 25) & 0x3f) << 5) |
		(((w >> 8) & 0xf) << 1)
	return signExtend(v, 13)
}

func immU(w uint32) int64 {
	// Bits 31:12 placed in the top 20 bits of the word, sign-extended from
	// bit 31; the low 12 bits of the result are always zero.
	return int64(int32(w & 0xfffff000))
}

func immJ(w uint32) int64 {
	v := (((w >> 31) & 0x1) << 20) |
		(((w >> 12) & 0xff) << 12) |
		(((w >> 20) & 0x1) << 11) |
		(((w >> 21) & 0x3ff) << 1)
	return signExtend(v, 21)
}

// Decode converts a raw 32-bit instruction word into a typed Instruction.
// An opcode/funct3/funct7 combination outside the supported RV64IM subset
// yields a *DecodeError, per spec.md §7.
func (d *Decoder) Decode(word uint32) (Instruction, error) {
	op := opcode(word)

	switch op {
	case 0x37: // LUI
		return Instruction{Op: OpLUI, Format: FormatU, Rd: Reg(rd(word)), Imm: immU(word)}, nil
	case 0x17: // AUIPC
		return Instruction{Op: OpAUIPC, Format: FormatU, Rd: Reg(rd(word)), Imm: immU(word)}, nil

	case 0x13: // OP-IMM (ALU-immediate, 64-bit)
		return decodeOpImm(word)
	case 0x1B: // OP-IMM-32 (ALU-immediate, W-variants)
		return decodeOpImm32(word)

	case 0x33: // OP (ALU register-register, 64-bit) + MUL/DIV/REM
		return decodeOp(word)
	case 0x3B: // OP-32 (ALU register-register W-variants) + MULW/DIVW/REMW
		return decodeOp32(word)

	case 0x03: // LOAD
		return decodeLoad(word)
	case 0x23: // STORE
		return decodeStore(word)

	case 0x63: // BRANCH
		return decodeBranch(word)

	case 0x6F: // JAL
		return Instruction{Op: OpJAL, Format: FormatJ, Rd: Reg(rd(word)), Imm: immJ(word)}, nil
	case 0x67: // JALR
		if funct3(word) != 0b000 {
			return Instruction{}, &DecodeError{Word: word, Reason: "invalid funct3 for JALR"}
		}
		return Instruction{Op: OpJALR, Format: FormatI, Rd: Reg(rd(word)), Rs1: Reg(rs1(word)), Imm: immI(word)}, nil

	case 0x73: // SYSTEM (only ECALL is supported)
		if word>>7 != 0 {
			return Instruction{}, &DecodeError{Word: word, Reason: "only ECALL is supported in the SYSTEM family"}
		}
		return Instruction{Op: OpECALL, Format: FormatSystem}, nil
	}

	return Instruction{}, &DecodeError{Word: word, Reason: "unrecognized opcode"}
}

func decodeOpImm(word uint32) (Instruction, error) {
	f3 := funct3(word)
	inst := Instruction{Format: FormatI, Rd: Reg(rd(word)), Rs1: Reg(rs1(word)), Imm: immI(word)}

	switch f3 {
	case 0b000:
		inst.Op = OpADDI
	case 0b010:
		inst.Op = OpSLTI
	case 0b011:
		inst.Op = OpSLTIU
	case 0b100:
		inst.Op = OpXORI
	case 0b110:
		inst.Op = OpORI
	case 0b111:
		inst.Op = OpANDI
	case 0b001:
		if funct7(word)>>1 != 0 {
			return Instruction{}, &DecodeError{Word: word, Reason: "invalid funct7 for SLLI"}
		}
		inst.Op = OpSLLI
		inst.Shamt = uint8((word >> 20) & 0x3f)
	case 0b101:
		shamt := uint8((word >> 20) & 0x3f)
		switch funct7(word) >> 1 {
		case 0b000000:
			inst.Op = OpSRLI
		case 0b010000:
			inst.Op = OpSRAI
		default:
			return Instruction{}, &DecodeError{Word: word, Reason: "invalid funct7 for SRLI/SRAI"}
		}
		inst.Shamt = shamt
	default:
		return Instruction{}, &DecodeError{Word: word, Reason: "invalid funct3 for OP-IMM"}
	}
	return inst, nil
}

func decodeOpImm32(word uint32) (Instruction, error) {
	f3 := funct3(word)
	inst := Instruction{Format: FormatI, Rd: Reg(rd(word)), Rs1: Reg(rs1(word)), Imm: immI(word)}

	switch f3 {
	case 0b000:
		inst.Op = OpADDIW
	case 0b001:
		if (word>>25)&0x7f != 0 {
			return Instruction{}, &DecodeError{Word: word, Reason: "invalid funct7 for SLLIW"}
		}
		inst.Op = OpSLLIW
		inst.Shamt = uint8((word >> 20) & 0x1f)
	case 0b101:
		shamt := uint8((word >> 20) & 0x1f)
		switch funct7(word) {
		case 0b0000000:
			inst.Op = OpSRLIW
		case 0b0100000:
			inst.Op = OpSRAIW
		default:
			return Instruction{}, &DecodeError{Word: word, Reason: "invalid funct7 for SRLIW/SRAIW"}
		}
		inst.Shamt = shamt
	default:
		return Instruction{}, &DecodeError{Word: word, Reason: "invalid funct3 for OP-IMM-32"}
	}
	return inst, nil
}

func decodeOp(word uint32) (Instruction, error) {
	f3, f7 := funct3(word), funct7(word)
	inst := Instruction{Format: FormatR, Rd: Reg(rd(word)), Rs1: Reg(rs1(word)), Rs2: Reg(rs2(word))}

	switch f7 {
	case 0b0000000:
		switch f3 {
		case 0b000:
			inst.Op = OpADD
		case 0b001:
			inst.Op = OpSLL
		case 0b010:
			inst.Op = OpSLT
		case 0b011:
			inst.Op = OpSLTU
		case 0b100:
			inst.Op = OpXOR
		case 0b101:
			inst.Op = OpSRL
		case 0b110:
			inst.Op = OpOR
		case 0b111:
			inst.Op = OpAND
		default:
			return Instruction{}, &DecodeError{Word: word, Reason: "invalid funct3 for OP/0000000"}
		}
	case 0b0100000:
		switch f3 {
		case 0b000:
			inst.Op = OpSUB
		case 0b101:
			inst.Op = OpSRA
		default:
			return Instruction{}, &DecodeError{Word: word, Reason: "invalid funct3 for OP/0100000"}
		}
	case 0b0000001:
		switch f3 {
		case 0b000:
			inst.Op = OpMUL
		case 0b100:
			inst.Op = OpDIV
		case 0b110:
			inst.Op = OpREM
		default:
			return Instruction{}, &DecodeError{Word: word, Reason: "invalid funct3 for OP/0000001 (M extension)"}
		}
	default:
		return Instruction{}, &DecodeError{Word: word, Reason: "invalid funct7 for OP"}
	}
	return inst, nil
}

func decodeOp32(word uint32) (Instruction, error) {
	f3, f7 := funct3(word), funct7(word)
	inst := Instruction{Format: FormatR, Rd: Reg(rd(word)), Rs1: Reg(rs1(word)), Rs2: Reg(rs2(word))}

	switch f7 {
	case 0b0000000:
		switch f3 {
		case 0b000:
			inst.Op = OpADDW
		case 0b001:
			inst.Op = OpSLLW
		case 0b101:
			inst.Op = OpSRLW
		default:
			return Instruction{}, &DecodeError{Word: word, Reason: "invalid funct3 for OP-32/0000000"}
		}
	case 0b0100000:
		switch f3 {
		case 0b000:
			inst.Op = OpSUBW
		case 0b101:
			inst.Op = OpSRAW
		default:
			return Instruction{}, &DecodeError{Word: word, Reason: "invalid funct3 for OP-32/0100000"}
		}
	case 0b0000001:
		switch f3 {
		case 0b000:
			inst.Op = OpMULW
		case 0b100:
			inst.Op = OpDIVW
		case 0b110:
			inst.Op = OpREMW
		default:
			return Instruction{}, &DecodeError{Word: word, Reason: "invalid funct3 for OP-32/0000001 (M extension)"}
		}
	default:
		return Instruction{}, &DecodeError{Word: word, Reason: "invalid funct7 for OP-32"}
	}
	return inst, nil
}

func decodeLoad(word uint32) (Instruction, error) {
	inst := Instruction{Format: FormatI, Rd: Reg(rd(word)), Rs1: Reg(rs1(word)), Imm: immI(word)}
	switch funct3(word) {
	case 0b000:
		inst.Op = OpLB
	case 0b001:
		inst.Op = OpLH
	case 0b010:
		inst.Op = OpLW
	case 0b011:
		inst.Op = OpLD
	case 0b100:
		inst.Op = OpLBU
	case 0b101:
		inst.Op = OpLHU
	case 0b110:
		inst.Op = OpLWU
	default:
		return Instruction{}, &DecodeError{Word: word, Reason: "invalid funct3 for LOAD"}
	}
	return inst, nil
}

func decodeStore(word uint32) (Instruction, error) {
	inst := Instruction{Format: FormatS, Rs1: Reg(rs1(word)), Rs2: Reg(rs2(word)), Imm: immS(word)}
	switch funct3(word) {
	case 0b000:
		inst.Op = OpSB
	case 0b001:
		inst.Op = OpSH
	case 0b010:
		inst.Op = OpSW
	case 0b011:
		inst.Op = OpSD
	default:
		return Instruction{}, &DecodeError{Word: word, Reason: "invalid funct3 for STORE"}
	}
	return inst, nil
}

func decodeBranch(word uint32) (Instruction, error) {
	inst := Instruction{Format: FormatB, Rs1: Reg(rs1(word)), Rs2: Reg(rs2(word)), Imm: immB(word)}
	switch funct3(word) {
	case 0b000:
		inst.Op = OpBEQ
	case 0b001:
		inst.Op = OpBNE
	case 0b100:
		inst.Op = OpBLT
	case 0b101:
		inst.Op = OpBGE
	case 0b110:
		inst.Op = OpBLTU
	case 0b111:
		inst.Op = OpBGEU
	default:
		return Instruction{}, &DecodeError{Word: word, Reason: "invalid funct3 for BRANCH"}
	}
	return inst, nil
}
