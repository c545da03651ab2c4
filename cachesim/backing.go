package cachesim

import (
	"github.com/rv64im/rv64im/emu"
)

// MemoryBacking wraps emu.Memory as a BackingStore, so the estimator can be
// pointed at the same guest memory the emulator executes against.
type MemoryBacking struct {
	memory *emu.Memory
}

// NewMemoryBacking creates a MemoryBacking adapter over memory.
func NewMemoryBacking(memory *emu.Memory) *MemoryBacking {
	return &MemoryBacking{memory: memory}
}

// Read fetches size bytes from the backing memory starting at addr.
func (m *MemoryBacking) Read(addr uint64, size int) []byte {
	data := make([]byte, size)
	for i := 0; i < size; i++ {
		data[i] = m.memory.Read8(addr + uint64(i))
	}
	return data
}
