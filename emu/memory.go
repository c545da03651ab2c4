package emu

import "fmt"

// Memory is flat, byte-addressable, little-endian guest memory backed by
// a single Go slice. RV64IM has no address translation in this
// emulator's scope: every address in [0, len(bytes)) is directly
// addressable guest memory.
type Memory struct {
	bytes []byte
}

// MemoryFault reports an access outside the addressable guest segment.
// Per the out-of-range-access-is-fatal rule, Emulator.Step catches this
// with recover() and reports it as a fatal StepResult.Err rather than
// letting it escape as a Go panic.
type MemoryFault struct {
	Addr uint64
	Size int
}

func (f *MemoryFault) Error() string {
	return fmt.Sprintf("memory fault: access of %d byte(s) at 0x%016X outside guest memory", f.Size, f.Addr)
}

// NewMemory allocates size bytes of zeroed guest memory.
func NewMemory(size uint64) *Memory {
	return &Memory{bytes: make([]byte, size)}
}

// Size returns the number of addressable bytes.
func (m *Memory) Size() uint64 {
	return uint64(len(m.bytes))
}

func (m *Memory) checkBounds(addr uint64, n int) {
	if addr+uint64(n) > uint64(len(m.bytes)) || addr+uint64(n) < addr {
		panic(&MemoryFault{Addr: addr, Size: n})
	}
}

// Read8 reads a single byte.
func (m *Memory) Read8(addr uint64) uint8 {
	m.checkBounds(addr, 1)
	return m.bytes[addr]
}

// Write8 writes a single byte.
func (m *Memory) Write8(addr uint64, v uint8) {
	m.checkBounds(addr, 1)
	m.bytes[addr] = v
}

// Read16 reads a little-endian 16-bit halfword.
func (m *Memory) Read16(addr uint64) uint16 {
	m.checkBounds(addr, 2)
	return uint16(m.bytes[addr]) | uint16(m.bytes[addr+1])<<8
}

// Write16 writes a little-endian 16-bit halfword.
func (m *Memory) Write16(addr uint64, v uint16) {
	m.checkBounds(addr, 2)
	m.bytes[addr] = byte(v)
	m.bytes[addr+1] = byte(v >> 8)
}

// Read32 reads a little-endian 32-bit word.
func (m *Memory) Read32(addr uint64) uint32 {
	m.checkBounds(addr, 4)
	return uint32(m.bytes[addr]) |
		uint32(m.bytes[addr+1])<<8 |
		uint32(m.bytes[addr+2])<<16 |
		uint32(m.bytes[addr+3])<<24
}

// Write32 writes a little-endian 32-bit word.
func (m *Memory) Write32(addr uint64, v uint32) {
	m.checkBounds(addr, 4)
	m.bytes[addr] = byte(v)
	m.bytes[addr+1] = byte(v >> 8)
	m.bytes[addr+2] = byte(v >> 16)
	m.bytes[addr+3] = byte(v >> 24)
}

// Read64 reads a little-endian 64-bit doubleword.
func (m *Memory) Read64(addr uint64) uint64 {
	m.checkBounds(addr, 8)
	lo := uint64(m.Read32(addr))
	hi := uint64(m.Read32(addr + 4))
	return lo | hi<<32
}

// Write64 writes a little-endian 64-bit doubleword.
func (m *Memory) Write64(addr uint64, v uint64) {
	m.checkBounds(addr, 8)
	m.Write32(addr, uint32(v))
	m.Write32(addr+4, uint32(v>>32))
}

// LoadBytes copies data into memory starting at addr, for use by the
// program loader when placing ELF segments or a flat binary image.
func (m *Memory) LoadBytes(addr uint64, data []byte) {
	m.checkBounds(addr, len(data))
	copy(m.bytes[addr:], data)
}

// Slice returns a read-only view of [addr, addr+n) for diagnostics.
func (m *Memory) Slice(addr uint64, n int) []byte {
	m.checkBounds(addr, n)
	out := make([]byte, n)
	copy(out, m.bytes[addr:addr+uint64(n)])
	return out
}
