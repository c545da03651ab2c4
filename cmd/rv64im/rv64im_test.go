package rv64im

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// encodeI builds an I-type word, duplicated here rather than imported
// from the emu package's tests since it is test-only scaffolding with
// no production use on either side.
func encodeI(opcode, funct3, rd, rs1 uint32, imm int32) uint32 {
	return uint32(imm)<<20&0xfff00000 | rs1<<15 | funct3<<12 | rd<<7 | opcode
}

func captureStdout(fn func()) string {
	r, w, err := os.Pipe()
	Expect(err).NotTo(HaveOccurred())
	old := os.Stdout
	os.Stdout = w
	fn()
	Expect(w.Close()).To(Succeed())
	os.Stdout = old

	var buf bytes.Buffer
	_, err = io.Copy(&buf, r)
	Expect(err).NotTo(HaveOccurred())
	return buf.String()
}

var _ = Describe("decode command", func() {
	It("prints the decoded mnemonic and operands", func() {
		output := captureStdout(func() {
			rootCmd.SetArgs([]string{"decode", "0x00A58533"}) // ADD a0, a1, a0
			Expect(rootCmd.Execute()).To(Succeed())
		})
		Expect(output).To(ContainSubstring("ADD"))
		Expect(output).To(ContainSubstring("rd=a0"))
	})

	It("reports an error for an unrecognized word", func() {
		rootCmd.SetArgs([]string{"decode", "0x7F"})
		Expect(rootCmd.Execute()).To(HaveOccurred())
	})
})

var _ = Describe("info command", func() {
	It("reports the entry point and segments of a flat binary", func() {
		dir, err := os.MkdirTemp("", "rv64im-cli-*")
		Expect(err).NotTo(HaveOccurred())
		defer func() { _ = os.RemoveAll(dir) }()

		path := filepath.Join(dir, "program.bin")
		word := encodeI(0x13, 0b000, 10, 0, 7) // ADDI a0, zero, 7
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, word)
		Expect(os.WriteFile(path, buf, 0o644)).To(Succeed())

		output := captureStdout(func() {
			rootCmd.SetArgs([]string{"info", "--format", "flat", "--base", "0x1000", path})
			Expect(rootCmd.Execute()).To(Succeed())
		})

		Expect(output).To(ContainSubstring("entry point: 0x1000"))
		Expect(output).To(ContainSubstring("segments:    1"))
	})
})

var _ = Describe("run command", func() {
	It("executes a flat binary to completion and reports its exit code", func() {
		dir, err := os.MkdirTemp("", "rv64im-cli-*")
		Expect(err).NotTo(HaveOccurred())
		defer func() { _ = os.RemoveAll(dir) }()

		path := filepath.Join(dir, "program.bin")
		addi := encodeI(0x13, 0b000, 10, 0, 9)  // ADDI a0, zero, 9
		addiA7 := encodeI(0x13, 0b000, 17, 0, 93) // ADDI a7, zero, 93
		ecall := uint32(0x73)

		var buf bytes.Buffer
		for _, w := range []uint32{addi, addiA7, ecall} {
			b := make([]byte, 4)
			binary.LittleEndian.PutUint32(b, w)
			buf.Write(b)
		}
		Expect(os.WriteFile(path, buf.Bytes(), 0o644)).To(Succeed())

		captureStdout(func() {
			rootCmd.SetArgs([]string{"run", "--format", "flat", "--base", "0x1000", path})
			Expect(rootCmd.Execute()).To(Succeed())
		})

		Expect(exitCode).To(Equal(9))
	})
})
