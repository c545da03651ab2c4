// Package emu provides RV64IM functional emulation.
package emu

import "github.com/rv64im/rv64im/insts"

// RegFile holds the 32 general-purpose integer registers x0-x31. RISC-V
// has no architecturally distinct stack register: x2 (sp) is
// conventional, not special-cased by hardware. The one true special
// case is x0, which reads as a constant zero and silently discards
// writes.
type RegFile struct {
	x [32]uint64
}

// Read returns the value of reg. Reading insts.Zero always yields 0.
func (r *RegFile) Read(reg insts.Reg) uint64 {
	if reg == insts.Zero {
		return 0
	}
	return r.x[reg]
}

// Write stores value into reg. Writes to insts.Zero are discarded, per
// the RV64I base ISA's hard-wired-zero register.
func (r *RegFile) Write(reg insts.Reg, value uint64) {
	if reg == insts.Zero {
		return
	}
	r.x[reg] = value
}

// Snapshot returns a copy of all 32 registers.
func (r *RegFile) Snapshot() [32]uint64 {
	return r.x
}
