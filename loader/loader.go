// Package loader turns an on-disk artifact — a flat binary or a 64-bit
// RISC-V ELF — into the (bytes, base, entry, initial SP) tuple the
// emulator core consumes.
package loader

import (
	"debug/elf"
	"fmt"
	"io"
	"os"
)

// DefaultBase is the load address used for flat binaries when the
// caller does not override it, matching a typical freestanding RV64
// base address.
const DefaultBase = 0x40000000

// DefaultStackSize is the default stack reservation below the top of
// guest memory.
const DefaultStackSize = 1 << 20 // 1 MiB

// SegmentFlags records a loaded segment's memory protection bits. The
// emulator's flat memory model does not enforce them today; they are
// carried through for the `info` CLI subcommand to report.
type SegmentFlags uint32

const (
	SegmentFlagExecute SegmentFlags = 1 << iota
	SegmentFlagWrite
	SegmentFlagRead
)

// Segment is one loadable region of a program image.
type Segment struct {
	VirtAddr uint64
	Data     []byte
	MemSize  uint64 // may exceed len(Data); the remainder is zero-filled BSS
	Flags    SegmentFlags
}

// Program is a loaded image ready to be copied into guest memory.
type Program struct {
	EntryPoint uint64
	Segments   []Segment
	InitialSP  uint64
}

// LoadFlat treats the file at path as a raw instruction stream: its
// bytes are copied verbatim into guest memory starting at base, with
// no header to parse. The entry point defaults to base.
func LoadFlat(path string, base uint64, memorySize uint64) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read flat binary: %w", err)
	}

	return &Program{
		EntryPoint: base,
		Segments: []Segment{{
			VirtAddr: base,
			Data:     data,
			MemSize:  uint64(len(data)),
			Flags:    SegmentFlagExecute | SegmentFlagRead,
		}},
		InitialSP: stackTop(memorySize),
	}, nil
}

// LoadELF parses a 64-bit RISC-V ELF and returns its PT_LOAD segments,
// entry point and a stack pointer seated at the top of guest memory.
func LoadELF(path string, memorySize uint64) (*Program, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open ELF file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if f.Class != elf.ELFCLASS64 {
		return nil, fmt.Errorf("not a 64-bit ELF file")
	}
	if f.Machine != elf.EM_RISCV {
		return nil, fmt.Errorf("not a RISC-V ELF file (machine type: %v)", f.Machine)
	}

	prog := &Program{
		EntryPoint: f.Entry,
		InitialSP:  stackTop(memorySize),
	}

	for _, phdr := range f.Progs {
		if phdr.Type != elf.PT_LOAD {
			continue
		}

		data := make([]byte, phdr.Filesz)
		if phdr.Filesz > 0 {
			n, err := phdr.ReadAt(data, 0)
			if err != nil && err != io.EOF {
				return nil, fmt.Errorf("read segment at 0x%x: %w", phdr.Vaddr, err)
			}
			if uint64(n) != phdr.Filesz {
				return nil, fmt.Errorf("short read for segment at 0x%x: got %d bytes, expected %d",
					phdr.Vaddr, n, phdr.Filesz)
			}
		}

		var flags SegmentFlags
		if phdr.Flags&elf.PF_X != 0 {
			flags |= SegmentFlagExecute
		}
		if phdr.Flags&elf.PF_W != 0 {
			flags |= SegmentFlagWrite
		}
		if phdr.Flags&elf.PF_R != 0 {
			flags |= SegmentFlagRead
		}

		prog.Segments = append(prog.Segments, Segment{
			VirtAddr: phdr.Vaddr,
			Data:     data,
			MemSize:  phdr.Memsz,
			Flags:    flags,
		})
	}

	return prog, nil
}

// stackTop seats the initial stack pointer at the top of a
// memorySize-byte guest address space.
func stackTop(memorySize uint64) uint64 {
	return memorySize
}
