// Package insts provides RV64IM instruction definitions and decoding.
package insts

// Reg identifies one of the 32 general-purpose integer registers by its
// architectural index. Index 0 (Zero) is hard-wired to the constant 0; it
// is still a valid Reg value so that decoded instructions can name it like
// any other register, with the zero-read/zero-write behavior enforced by
// the register file rather than by the decoder.
type Reg uint8

// Standard RISC-V calling-convention register names, bijective with 0-31.
const (
	Zero Reg = iota // x0, hard-wired zero
	RA               // x1, return address
	SP               // x2, stack pointer
	GP               // x3, global pointer
	TP               // x4, thread pointer
	T0               // x5
	T1               // x6
	T2               // x7
	S0               // x8 (frame pointer)
	S1               // x9
	A0               // x10
	A1               // x11
	A2               // x12
	A3               // x13
	A4               // x14
	A5               // x15
	A6               // x16
	A7               // x17
	S2               // x18
	S3               // x19
	S4               // x20
	S5               // x21
	S6               // x22
	S7               // x23
	S8               // x24
	S9               // x25
	S10              // x26
	S11              // x27
	T3               // x28
	T4               // x29
	T5               // x30
	T6               // x31
)

// regNames gives the ABI name for each register index, used for
// disassembly and diagnostics.
var regNames = [32]string{
	"zero", "ra", "sp", "gp", "tp", "t0", "t1", "t2",
	"s0", "s1", "a0", "a1", "a2", "a3", "a4", "a5",
	"a6", "a7", "s2", "s3", "s4", "s5", "s6", "s7",
	"s8", "s9", "s10", "s11", "t3", "t4", "t5", "t6",
}

// String returns the ABI name of the register, e.g. "a0" for x10.
func (r Reg) String() string {
	if int(r) >= len(regNames) {
		return "x?"
	}
	return regNames[r]
}
