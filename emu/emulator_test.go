package emu_test

import (
	"bytes"
	"encoding/binary"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rv64im/rv64im/emu"
	"github.com/rv64im/rv64im/insts"
)

// recordingObserver adapts two closures to the emu.CacheObserver
// interface for tests that only care about which addresses were seen.
type recordingObserver struct {
	onLoad  func(addr uint64, size int)
	onStore func(addr uint64, size int)
}

func (r *recordingObserver) ObserveLoad(addr uint64, size int)  { r.onLoad(addr, size) }
func (r *recordingObserver) ObserveStore(addr uint64, size int) { r.onStore(addr, size) }

func uint32ToBytes(w uint32) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, w)
	return buf
}

// encodeR builds an R-type word: funct7|rs2|rs1|funct3|rd|opcode.
func encodeR(opcode, funct3, funct7, rd, rs1, rs2 uint32) uint32 {
	return funct7<<25 | rs2<<20 | rs1<<15 | funct3<<12 | rd<<7 | opcode
}

// encodeI builds an I-type word with a 12-bit immediate.
func encodeI(opcode, funct3, rd, rs1 uint32, imm int32) uint32 {
	return uint32(imm)<<20&0xfff00000 | rs1<<15 | funct3<<12 | rd<<7 | opcode
}

// encodeS builds an S-type word.
func encodeS(opcode, funct3, rs1, rs2 uint32, imm int32) uint32 {
	u := uint32(imm)
	return (u>>5)<<25 | rs2<<20 | rs1<<15 | funct3<<12 | (u&0x1f)<<7 | opcode
}

// encodeB builds a B-type word from a byte offset (must be even).
func encodeB(opcode, funct3, rs1, rs2 uint32, offset int32) uint32 {
	u := uint32(offset)
	bit12 := (u >> 12) & 0x1
	bit11 := (u >> 11) & 0x1
	bits10_5 := (u >> 5) & 0x3f
	bits4_1 := (u >> 1) & 0xf
	return bit12<<31 | bits10_5<<25 | rs2<<20 | rs1<<15 | funct3<<12 | bits4_1<<8 | bit11<<7 | opcode
}

// encodeU builds a U-type word from a 20-bit upper immediate already
// shifted into bits 31:12.
func encodeU(opcode, rd uint32, imm20 uint32) uint32 {
	return imm20<<12 | rd<<7 | opcode
}

// encodeJ builds a J-type word from a byte offset (must be even).
func encodeJ(opcode, rd uint32, offset int32) uint32 {
	u := uint32(offset)
	bit20 := (u >> 20) & 0x1
	bits10_1 := (u >> 1) & 0x3ff
	bit11 := (u >> 11) & 0x1
	bits19_12 := (u >> 12) & 0xff
	return bit20<<31 | bits10_1<<21 | bit11<<20 | bits19_12<<12 | rd<<7 | opcode
}

var _ = Describe("Emulator", func() {
	var (
		e         *emu.Emulator
		stdoutBuf *bytes.Buffer
	)

	BeforeEach(func() {
		stdoutBuf = &bytes.Buffer{}
		e = emu.NewEmulator(emu.WithStdout(stdoutBuf))
	})

	Describe("NewEmulator", func() {
		It("creates an emulator with initialized registers and memory", func() {
			Expect(e.RegFile()).NotTo(BeNil())
			Expect(e.Memory()).NotTo(BeNil())
			Expect(e.Halted()).To(BeFalse())
		})
	})

	Describe("LoadProgram", func() {
		It("sets the PC to the entry point and copies the image into memory", func() {
			program := []byte{0xDE, 0xAD, 0xBE, 0xEF}
			e.LoadProgram(0x2000, program, 0x2000)

			Expect(e.PC()).To(Equal(uint64(0x2000)))
			Expect(e.Memory().Read8(0x2000)).To(Equal(uint8(0xDE)))
			Expect(e.Memory().Read8(0x2003)).To(Equal(uint8(0xEF)))
		})
	})

	Describe("Step", func() {
		It("executes ADDI and advances the PC by 4", func() {
			word := encodeI(0x13, 0b000, uint32(insts.A0), uint32(insts.Zero), 5)
			e.LoadProgram(0x1000, uint32ToBytes(word), 0x1000)

			result := e.Step()

			Expect(result.Err).To(BeNil())
			Expect(e.RegFile().Read(insts.A0)).To(Equal(uint64(5)))
			Expect(e.PC()).To(Equal(uint64(0x1004)))
		})

		It("executes LUI", func() {
			word := encodeU(0x37, uint32(insts.A0), 0xABCDE)
			e.LoadProgram(0x1000, uint32ToBytes(word), 0x1000)

			e.Step()

			// Bit 31 of the U-type immediate is set, so the result is
			// sign-extended to 64 bits.
			Expect(e.RegFile().Read(insts.A0)).To(Equal(uint64(0xFFFFFFFFABCDE000)))
		})

		It("executes register-register ADD", func() {
			word := encodeR(0x33, 0b000, 0, uint32(insts.A2), uint32(insts.A0), uint32(insts.A1))
			e.LoadProgram(0x1000, uint32ToBytes(word), 0x1000)
			e.RegFile().Write(insts.A0, 10)
			e.RegFile().Write(insts.A1, 32)

			e.Step()

			Expect(e.RegFile().Read(insts.A2)).To(Equal(uint64(42)))
		})

		It("performs full 64-bit MUL, not the source's buggy 32-bit truncation", func() {
			word := encodeR(0x33, 0b000, 0b0000001, uint32(insts.A2), uint32(insts.A0), uint32(insts.A1))
			e.LoadProgram(0x1000, uint32ToBytes(word), 0x1000)
			e.RegFile().Write(insts.A0, uint64(1)<<40)
			e.RegFile().Write(insts.A1, 4)

			e.Step()

			Expect(e.RegFile().Read(insts.A2)).To(Equal(uint64(1) << 42))
		})

		It("takes a branch and redirects the PC by the encoded offset", func() {
			word := encodeB(0x63, 0b000, uint32(insts.A0), uint32(insts.A1), 16)
			e.LoadProgram(0x1000, uint32ToBytes(word), 0x1000)
			e.RegFile().Write(insts.A0, 9)
			e.RegFile().Write(insts.A1, 9)

			e.Step()

			Expect(e.PC()).To(Equal(uint64(0x1000 + 16)))
		})

		It("does not branch when the condition is false", func() {
			word := encodeB(0x63, 0b000, uint32(insts.A0), uint32(insts.A1), 16)
			e.LoadProgram(0x1000, uint32ToBytes(word), 0x1000)
			e.RegFile().Write(insts.A0, 1)
			e.RegFile().Write(insts.A1, 2)

			e.Step()

			Expect(e.PC()).To(Equal(uint64(0x1004)))
		})

		It("executes JAL, linking the return address and jumping", func() {
			word := encodeJ(0x6F, uint32(insts.RA), 32)
			e.LoadProgram(0x1000, uint32ToBytes(word), 0x1000)

			e.Step()

			Expect(e.RegFile().Read(insts.RA)).To(Equal(uint64(0x1004)))
			Expect(e.PC()).To(Equal(uint64(0x1000 + 32)))
		})

		It("loads and stores a doubleword round trip", func() {
			sw := encodeS(0x23, 0b011, uint32(insts.SP), uint32(insts.A0), 8)
			ld := encodeI(0x03, 0b011, uint32(insts.A1), uint32(insts.SP), 8)
			program := append(uint32ToBytes(sw), uint32ToBytes(ld)...)
			e.LoadProgram(0x1000, program, 0x1000)
			e.RegFile().Write(insts.SP, 256)
			e.RegFile().Write(insts.A0, 0xCAFEF00DCAFEF00D)

			e.Step()
			e.Step()

			Expect(e.RegFile().Read(insts.A1)).To(Equal(uint64(0xCAFEF00DCAFEF00D)))
		})

		It("reports a fatal error for an unrecognized opcode", func() {
			e.LoadProgram(0x1000, uint32ToBytes(0x7F), 0x1000)

			result := e.Step()

			Expect(result.Err).To(HaveOccurred())
			Expect(result.Exited).To(BeFalse())
		})

		It("converts an out-of-range memory access into a fatal Err rather than panicking", func() {
			lb := encodeI(0x03, 0b000, uint32(insts.A1), uint32(insts.A0), 0)
			e.LoadProgram(0x1000, uint32ToBytes(lb), 0x1000)
			e.RegFile().Write(insts.A0, e.Memory().Size()+1000)

			var result emu.StepResult
			Expect(func() { result = e.Step() }).NotTo(Panic())
			Expect(result.Err).To(HaveOccurred())
		})
	})

	Describe("CacheObserver", func() {
		It("reports load and store effective addresses without altering execution", func() {
			type access struct {
				addr  uint64
				size  int
				store bool
			}
			var accesses []access
			observer := &recordingObserver{
				onLoad:  func(addr uint64, size int) { accesses = append(accesses, access{addr: addr, size: size}) },
				onStore: func(addr uint64, size int) { accesses = append(accesses, access{addr: addr, size: size, store: true}) },
			}

			obs := emu.NewEmulator(emu.WithCacheObserver(observer))

			sw := encodeS(0x23, 0b011, uint32(insts.SP), uint32(insts.A0), 8)
			ld := encodeI(0x03, 0b011, uint32(insts.A1), uint32(insts.SP), 8)
			program := append(uint32ToBytes(sw), uint32ToBytes(ld)...)
			obs.LoadProgram(0x1000, program, 0x1000)
			obs.RegFile().Write(insts.SP, 256)
			obs.RegFile().Write(insts.A0, 42)

			obs.Step()
			obs.Step()

			Expect(accesses).To(HaveLen(2))
			Expect(accesses[0].store).To(BeTrue())
			Expect(accesses[0].addr).To(Equal(uint64(264)))
			Expect(accesses[0].size).To(Equal(8))
			Expect(accesses[1].store).To(BeFalse())
			Expect(accesses[1].addr).To(Equal(uint64(264)))
			Expect(obs.RegFile().Read(insts.A1)).To(Equal(uint64(42)))
		})
	})

	Describe("ECALL", func() {
		It("halts on the exit syscall with A0 as the exit code", func() {
			addi := encodeI(0x13, 0b000, uint32(insts.A0), uint32(insts.Zero), 7)
			addiA7 := encodeI(0x13, 0b000, uint32(insts.A7), uint32(insts.Zero), int32(emu.SyscallExit))
			ecall := uint32(0x73)
			program := append(append(uint32ToBytes(addi), uint32ToBytes(addiA7)...), uint32ToBytes(ecall)...)
			e.LoadProgram(0x1000, program, 0x1000)

			e.Step()
			e.Step()
			result := e.Step()

			Expect(result.Exited).To(BeTrue())
			Expect(result.ExitCode).To(Equal(int64(7)))
			Expect(e.Halted()).To(BeTrue())
		})
	})

	Describe("the return-to-zero halt heuristic", func() {
		It("halts when JALR resolves to address 0 and A7 is unchanged", func() {
			jalr := encodeI(0x67, 0b000, uint32(insts.Zero), uint32(insts.RA), 0)
			e.LoadProgram(0x1000, uint32ToBytes(jalr), 0x1000)
			e.RegFile().Write(insts.RA, 0)
			e.RegFile().Write(insts.A0, 3)

			result := e.Step()

			Expect(result.Exited).To(BeTrue())
			Expect(result.ExitCode).To(Equal(int64(3)))
		})

		It("does not halt when the heuristic is disabled", func() {
			e2 := emu.NewEmulator(emu.WithHaltOnReturn(false))
			jalr := encodeI(0x67, 0b000, uint32(insts.Zero), uint32(insts.RA), 0)
			e2.LoadProgram(0x1000, uint32ToBytes(jalr), 0x1000)
			e2.RegFile().Write(insts.RA, 0)

			result := e2.Step()

			Expect(result.Exited).To(BeFalse())
			Expect(e2.PC()).To(Equal(uint64(0)))
		})
	})

	Describe("sentinel load addresses", func() {
		It("halts with a fault exit code on a load from address 0", func() {
			lb := encodeI(0x03, 0b000, uint32(insts.A1), uint32(insts.Zero), 0)
			e.LoadProgram(0x1000, uint32ToBytes(lb), 0x1000)

			result := e.Step()

			Expect(result.Exited).To(BeTrue())
			Expect(result.ExitCode).To(Equal(int64(69)))
		})

		It("halts cleanly on a load from address 1", func() {
			lb := encodeI(0x03, 0b000, uint32(insts.A1), uint32(insts.Zero), 1)
			e.LoadProgram(0x1000, uint32ToBytes(lb), 0x1000)

			result := e.Step()

			Expect(result.Exited).To(BeTrue())
			Expect(result.ExitCode).To(Equal(int64(0)))
		})
	})

	Describe("Run", func() {
		It("drives Step until exit and returns the exit code", func() {
			addi := encodeI(0x13, 0b000, uint32(insts.A0), uint32(insts.Zero), 9)
			addiA7 := encodeI(0x13, 0b000, uint32(insts.A7), uint32(insts.Zero), int32(emu.SyscallExit))
			ecall := uint32(0x73)
			program := append(append(uint32ToBytes(addi), uint32ToBytes(addiA7)...), uint32ToBytes(ecall)...)
			e.LoadProgram(0x1000, program, 0x1000)

			code := e.Run()

			Expect(code).To(Equal(int64(9)))
		})

		It("returns -1 and logs to stderr on a fatal error", func() {
			stderrBuf := &bytes.Buffer{}
			e2 := emu.NewEmulator(emu.WithStderr(stderrBuf))
			e2.LoadProgram(0x1000, uint32ToBytes(0x7F), 0x1000)

			code := e2.Run()

			Expect(code).To(Equal(int64(-1)))
			Expect(stderrBuf.Len()).To(BeNumerically(">", 0))
		})
	})
})
