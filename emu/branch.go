package emu

import "github.com/rv64im/rv64im/insts"

// BranchUnit evaluates RV64IM's six branch conditions. RISC-V branches
// compare their two register operands directly and carry no
// condition-code state between instructions.
type BranchUnit struct {
	regs *RegFile
}

// NewBranchUnit creates a new BranchUnit connected to the given register
// file.
func NewBranchUnit(regs *RegFile) *BranchUnit {
	return &BranchUnit{regs: regs}
}

// Taken reports whether the branch named by op should be taken, given
// its two register operands.
func (b *BranchUnit) Taken(op insts.Op, rs1, rs2 insts.Reg) bool {
	v1, v2 := b.regs.Read(rs1), b.regs.Read(rs2)

	switch op {
	case insts.OpBEQ:
		return v1 == v2
	case insts.OpBNE:
		return v1 != v2
	case insts.OpBLT:
		return int64(v1) < int64(v2)
	case insts.OpBGE:
		return int64(v1) >= int64(v2)
	case insts.OpBLTU:
		return v1 < v2
	case insts.OpBGEU:
		return v1 >= v2
	default:
		return false
	}
}
