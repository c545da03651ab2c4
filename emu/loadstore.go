package emu

import "github.com/rv64im/rv64im/insts"

// LoadStoreUnit implements RV64I's seven load forms and four store
// forms. Effective addresses are always rs1 + imm with 64-bit wraparound;
// RISC-V does not require alignment, so unlike a real machine this
// emulator never faults on a misaligned access — only on an access that
// falls outside addressable memory (see Memory.checkBounds).
type LoadStoreUnit struct {
	regs *RegFile
	mem  *Memory
}

// NewLoadStoreUnit creates a new LoadStoreUnit connected to the given
// register file and memory.
func NewLoadStoreUnit(regs *RegFile, mem *Memory) *LoadStoreUnit {
	return &LoadStoreUnit{regs: regs, mem: mem}
}

func (lsu *LoadStoreUnit) effectiveAddr(rs1 insts.Reg, imm int64) uint64 {
	return lsu.regs.Read(rs1) + uint64(imm)
}

// LB loads a signed byte, sign-extended to 64 bits.
func (lsu *LoadStoreUnit) LB(rd, rs1 insts.Reg, imm int64) {
	addr := lsu.effectiveAddr(rs1, imm)
	lsu.regs.Write(rd, uint64(int64(int8(lsu.mem.Read8(addr)))))
}

// LBU loads a byte, zero-extended to 64 bits.
func (lsu *LoadStoreUnit) LBU(rd, rs1 insts.Reg, imm int64) {
	addr := lsu.effectiveAddr(rs1, imm)
	lsu.regs.Write(rd, uint64(lsu.mem.Read8(addr)))
}

// LH loads a signed halfword, sign-extended to 64 bits.
func (lsu *LoadStoreUnit) LH(rd, rs1 insts.Reg, imm int64) {
	addr := lsu.effectiveAddr(rs1, imm)
	lsu.regs.Write(rd, uint64(int64(int16(lsu.mem.Read16(addr)))))
}

// LHU loads a halfword, zero-extended to 64 bits.
func (lsu *LoadStoreUnit) LHU(rd, rs1 insts.Reg, imm int64) {
	addr := lsu.effectiveAddr(rs1, imm)
	lsu.regs.Write(rd, uint64(lsu.mem.Read16(addr)))
}

// LW loads a signed word, sign-extended to 64 bits.
func (lsu *LoadStoreUnit) LW(rd, rs1 insts.Reg, imm int64) {
	addr := lsu.effectiveAddr(rs1, imm)
	lsu.regs.Write(rd, uint64(int64(int32(lsu.mem.Read32(addr)))))
}

// LWU loads a word, zero-extended to 64 bits.
func (lsu *LoadStoreUnit) LWU(rd, rs1 insts.Reg, imm int64) {
	addr := lsu.effectiveAddr(rs1, imm)
	lsu.regs.Write(rd, uint64(lsu.mem.Read32(addr)))
}

// LD loads a full 64-bit doubleword.
func (lsu *LoadStoreUnit) LD(rd, rs1 insts.Reg, imm int64) {
	addr := lsu.effectiveAddr(rs1, imm)
	lsu.regs.Write(rd, lsu.mem.Read64(addr))
}

// SB stores the low byte of rs2.
func (lsu *LoadStoreUnit) SB(rs1, rs2 insts.Reg, imm int64) {
	addr := lsu.effectiveAddr(rs1, imm)
	lsu.mem.Write8(addr, uint8(lsu.regs.Read(rs2)))
}

// SH stores the low halfword of rs2.
func (lsu *LoadStoreUnit) SH(rs1, rs2 insts.Reg, imm int64) {
	addr := lsu.effectiveAddr(rs1, imm)
	lsu.mem.Write16(addr, uint16(lsu.regs.Read(rs2)))
}

// SW stores the low word of rs2.
func (lsu *LoadStoreUnit) SW(rs1, rs2 insts.Reg, imm int64) {
	addr := lsu.effectiveAddr(rs1, imm)
	lsu.mem.Write32(addr, uint32(lsu.regs.Read(rs2)))
}

// SD stores the full 64-bit value of rs2.
func (lsu *LoadStoreUnit) SD(rs1, rs2 insts.Reg, imm int64) {
	addr := lsu.effectiveAddr(rs1, imm)
	lsu.mem.Write64(addr, lsu.regs.Read(rs2))
}
