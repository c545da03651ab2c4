// Package insts provides RV64IM instruction definitions and decoding.
//
// It decodes raw 32-bit instruction words into a structured, tagged-
// variant Instruction covering the base integer ISA plus the M
// extension's MUL/DIV/REM family:
//
//	decoder := insts.NewDecoder()
//	inst, err := decoder.Decode(0x00A58533) // ADD a0, a1, a0
//	fmt.Printf("%s x%d, x%d, x%d\n", inst.Op, inst.Rd, inst.Rs1, inst.Rs2)
package insts
