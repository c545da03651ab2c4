package emu

import "github.com/rv64im/rv64im/insts"

// ALU implements RV64IM arithmetic and logic operations. RISC-V carries
// no condition-flag register, so these methods never take a setFlags
// argument: BEQ/BLT and friends compare register values directly in
// BranchUnit instead.
type ALU struct {
	regs *RegFile
}

// NewALU creates a new ALU connected to the given register file.
func NewALU(regs *RegFile) *ALU {
	return &ALU{regs: regs}
}

func (a *ALU) r1(rs1 insts.Reg) uint64 { return a.regs.Read(rs1) }
func (a *ALU) r2(rs2 insts.Reg) uint64 { return a.regs.Read(rs2) }

// ADD performs 64-bit register-register addition: rd = rs1 + rs2.
func (a *ALU) ADD(rd, rs1, rs2 insts.Reg) {
	a.regs.Write(rd, a.r1(rs1)+a.r2(rs2))
}

// ADDI performs 64-bit register-immediate addition: rd = rs1 + imm.
func (a *ALU) ADDI(rd, rs1 insts.Reg, imm int64) {
	a.regs.Write(rd, a.r1(rs1)+uint64(imm))
}

// SUB performs 64-bit subtraction: rd = rs1 - rs2.
func (a *ALU) SUB(rd, rs1, rs2 insts.Reg) {
	a.regs.Write(rd, a.r1(rs1)-a.r2(rs2))
}

// SLT sets rd = 1 if rs1 < rs2 as signed 64-bit integers, else 0.
func (a *ALU) SLT(rd, rs1, rs2 insts.Reg) {
	a.regs.Write(rd, boolToReg(int64(a.r1(rs1)) < int64(a.r2(rs2))))
}

// SLTI sets rd = 1 if rs1 < imm as signed 64-bit integers, else 0.
func (a *ALU) SLTI(rd, rs1 insts.Reg, imm int64) {
	a.regs.Write(rd, boolToReg(int64(a.r1(rs1)) < imm))
}

// SLTU sets rd = 1 if rs1 < rs2 as unsigned 64-bit integers, else 0.
func (a *ALU) SLTU(rd, rs1, rs2 insts.Reg) {
	a.regs.Write(rd, boolToReg(a.r1(rs1) < a.r2(rs2)))
}

// SLTIU sets rd = 1 if rs1 < imm (sign-extended then compared as
// unsigned) else 0, per the RV64I convention for SLTIU's immediate.
func (a *ALU) SLTIU(rd, rs1 insts.Reg, imm int64) {
	a.regs.Write(rd, boolToReg(a.r1(rs1) < uint64(imm)))
}

// XOR, OR and AND mirror their mnemonics; Go's stdlib bitwise operators
// already match RISC-V semantics bit for bit, so there's no flag
// bookkeeping left to do here.

func (a *ALU) XOR(rd, rs1, rs2 insts.Reg) { a.regs.Write(rd, a.r1(rs1)^a.r2(rs2)) }
func (a *ALU) XORI(rd, rs1 insts.Reg, imm int64) {
	a.regs.Write(rd, a.r1(rs1)^uint64(imm))
}
func (a *ALU) OR(rd, rs1, rs2 insts.Reg) { a.regs.Write(rd, a.r1(rs1)|a.r2(rs2)) }
func (a *ALU) ORI(rd, rs1 insts.Reg, imm int64) {
	a.regs.Write(rd, a.r1(rs1)|uint64(imm))
}
func (a *ALU) AND(rd, rs1, rs2 insts.Reg) { a.regs.Write(rd, a.r1(rs1)&a.r2(rs2)) }
func (a *ALU) ANDI(rd, rs1 insts.Reg, imm int64) {
	a.regs.Write(rd, a.r1(rs1)&uint64(imm))
}

// SLL, SRL and SRA shift by the low 6 bits of rs2 (64-bit shift amounts
// are masked to 0-63, per the RV64I spec).
func (a *ALU) SLL(rd, rs1, rs2 insts.Reg) {
	a.regs.Write(rd, a.r1(rs1)<<(a.r2(rs2)&0x3f))
}
func (a *ALU) SLLI(rd, rs1 insts.Reg, shamt uint8) {
	a.regs.Write(rd, a.r1(rs1)<<shamt)
}
func (a *ALU) SRL(rd, rs1, rs2 insts.Reg) {
	a.regs.Write(rd, a.r1(rs1)>>(a.r2(rs2)&0x3f))
}
func (a *ALU) SRLI(rd, rs1 insts.Reg, shamt uint8) {
	a.regs.Write(rd, a.r1(rs1)>>shamt)
}
func (a *ALU) SRA(rd, rs1, rs2 insts.Reg) {
	a.regs.Write(rd, uint64(int64(a.r1(rs1))>>(a.r2(rs2)&0x3f)))
}
func (a *ALU) SRAI(rd, rs1 insts.Reg, shamt uint8) {
	a.regs.Write(rd, uint64(int64(a.r1(rs1))>>shamt))
}

// LUI loads imm (already shifted into bits 31:12 by the decoder, and
// sign-extended to 64 bits) directly into rd.
func (a *ALU) LUI(rd insts.Reg, imm int64) {
	a.regs.Write(rd, uint64(imm))
}

// AUIPC computes rd = pc + imm, where imm is the same U-type value LUI
// would load and pc is the address of the AUIPC instruction itself.
func (a *ALU) AUIPC(rd insts.Reg, pc uint64, imm int64) {
	a.regs.Write(rd, pc+uint64(imm))
}

// W-variant operations compute on the low 32 bits of their operands and
// sign-extend the 32-bit result back to 64 bits, per RV64I §2.4.

func (a *ALU) ADDW(rd, rs1, rs2 insts.Reg) {
	a.writeW(rd, int32(a.r1(rs1))+int32(a.r2(rs2)))
}
func (a *ALU) ADDIW(rd, rs1 insts.Reg, imm int64) {
	a.writeW(rd, int32(a.r1(rs1))+int32(imm))
}
func (a *ALU) SUBW(rd, rs1, rs2 insts.Reg) {
	a.writeW(rd, int32(a.r1(rs1))-int32(a.r2(rs2)))
}
func (a *ALU) SLLW(rd, rs1, rs2 insts.Reg) {
	a.writeW(rd, int32(uint32(a.r1(rs1))<<(a.r2(rs2)&0x1f)))
}
func (a *ALU) SLLIW(rd, rs1 insts.Reg, shamt uint8) {
	a.writeW(rd, int32(uint32(a.r1(rs1))<<shamt))
}
func (a *ALU) SRLW(rd, rs1, rs2 insts.Reg) {
	a.writeW(rd, int32(uint32(a.r1(rs1))>>(a.r2(rs2)&0x1f)))
}
func (a *ALU) SRLIW(rd, rs1 insts.Reg, shamt uint8) {
	a.writeW(rd, int32(uint32(a.r1(rs1))>>shamt))
}
func (a *ALU) SRAW(rd, rs1, rs2 insts.Reg) {
	a.writeW(rd, int32(a.r1(rs1))>>(a.r2(rs2)&0x1f))
}
func (a *ALU) SRAIW(rd, rs1 insts.Reg, shamt uint8) {
	a.writeW(rd, int32(a.r1(rs1))>>shamt)
}

// writeW sign-extends a 32-bit W-variant result to 64 bits before
// writing it to rd.
func (a *ALU) writeW(rd insts.Reg, result int32) {
	a.regs.Write(rd, uint64(int64(result)))
}

// MUL, DIV and REM operate on the full 64-bit operands. The source this
// emulator is modeled on truncates these to 32 bits by mistake; that bug
// is not reproduced here, per the corrected contract.
func (a *ALU) MUL(rd, rs1, rs2 insts.Reg) {
	a.regs.Write(rd, a.r1(rs1)*a.r2(rs2))
}

// DIV performs signed 64-bit division, truncating toward zero. Division
// by zero yields all-ones; INT64_MIN/-1 yields INT64_MIN, since the
// mathematical result overflows the result type.
func (a *ALU) DIV(rd, rs1, rs2 insts.Reg) {
	n, d := int64(a.r1(rs1)), int64(a.r2(rs2))
	switch {
	case d == 0:
		a.regs.Write(rd, ^uint64(0))
	case n == minInt64 && d == -1:
		a.regs.Write(rd, uint64(n))
	default:
		a.regs.Write(rd, uint64(n/d))
	}
}

// REM performs signed 64-bit remainder. Division by zero yields the
// dividend; INT64_MIN%-1 yields 0.
func (a *ALU) REM(rd, rs1, rs2 insts.Reg) {
	n, d := int64(a.r1(rs1)), int64(a.r2(rs2))
	switch {
	case d == 0:
		a.regs.Write(rd, uint64(n))
	case n == minInt64 && d == -1:
		a.regs.Write(rd, 0)
	default:
		a.regs.Write(rd, uint64(n%d))
	}
}

// MULW, DIVW and REMW compute on the low 32 bits and sign-extend the
// result, unlike the 64-bit forms above.
func (a *ALU) MULW(rd, rs1, rs2 insts.Reg) {
	a.writeW(rd, int32(a.r1(rs1))*int32(a.r2(rs2)))
}

func (a *ALU) DIVW(rd, rs1, rs2 insts.Reg) {
	n, d := int32(a.r1(rs1)), int32(a.r2(rs2))
	switch {
	case d == 0:
		a.regs.Write(rd, ^uint64(0))
	case n == minInt32 && d == -1:
		a.writeW(rd, minInt32)
	default:
		a.writeW(rd, n/d)
	}
}

func (a *ALU) REMW(rd, rs1, rs2 insts.Reg) {
	n, d := int32(a.r1(rs1)), int32(a.r2(rs2))
	switch {
	case d == 0:
		a.writeW(rd, n)
	case n == minInt32 && d == -1:
		a.writeW(rd, 0)
	default:
		a.writeW(rd, n%d)
	}
}

const (
	minInt64 = int64(-1 << 63)
	minInt32 = int32(-1 << 31)
)

func boolToReg(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}
