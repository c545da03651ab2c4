// Package cachesim provides an optional cache-latency estimator. It is a
// read-only observer of addresses the executor already computed: nothing
// it does can change architectural state or the emulator's exit code.
package cachesim

import (
	akitacache "github.com/sarchlab/akita/v4/mem/cache"
)

// Config holds the direct-mapped cache's shape.
type Config struct {
	LineSize    int    // bytes per cache line
	NumLines    int    // direct-mapped: one way per set, so NumLines == NumSets
	HitLatency  uint64 // cycles
	MissLatency uint64 // cycles, including the backing-store fetch
}

// DefaultConfig returns a 64 KiB direct-mapped cache (1024 64-byte lines)
// with a small hit/miss latency split. Callers typically override these
// fields from config.Config.Cache instead of taking the default verbatim.
func DefaultConfig() Config {
	return Config{
		LineSize:    64,
		NumLines:    1024,
		HitLatency:  4,
		MissLatency: 120,
	}
}

// AccessResult reports what happened on one observed access.
type AccessResult struct {
	Hit     bool
	Latency uint64
}

// Statistics accumulates counts across the estimator's lifetime.
type Statistics struct {
	Reads           uint64
	Writes          uint64
	Hits            uint64
	Misses          uint64
	EstimatedCycles uint64
}

// BackingStore is the next level down, consulted only to decide whether a
// block exists there; the estimator never needs its contents.
type BackingStore interface {
	Read(addr uint64, size int) []byte
}

// Cache is a direct-mapped (associativity 1) address-only cache model: it
// tracks which block currently occupies each line and reports hit/miss and
// latency, but never stores or returns data, since it never sits between
// the executor and real memory.
type Cache struct {
	config    Config
	directory *akitacache.DirectoryImpl
	backing   BackingStore
	stats     Statistics
}

// New creates a direct-mapped cache of the given configuration.
func New(config Config, backing BackingStore) *Cache {
	return &Cache{
		config: config,
		directory: akitacache.NewDirectory(
			config.NumLines,
			1, // direct-mapped: one way per set
			config.LineSize,
			akitacache.NewLRUVictimFinder(),
		),
		backing: backing,
	}
}

// Config returns the cache's configuration.
func (c *Cache) Config() Config {
	return c.config
}

// Stats returns the accumulated statistics.
func (c *Cache) Stats() Statistics {
	return c.stats
}

// Reset clears all state, including statistics.
func (c *Cache) Reset() {
	c.directory.Reset()
	c.stats = Statistics{}
}

func (c *Cache) blockAddr(addr uint64) uint64 {
	return (addr / uint64(c.config.LineSize)) * uint64(c.config.LineSize)
}

// fetchFromBacking consults the backing store on a miss and discards the
// result: the estimator only wants to know that a fetch would happen, not
// the data itself. A line that runs past the end of guest memory is
// swallowed rather than allowed to propagate, since an address-latency
// model must never abort the guest it is merely observing.
func (c *Cache) fetchFromBacking(blockAddr uint64) {
	if c.backing == nil {
		return
	}
	defer func() { _ = recover() }()
	_ = c.backing.Read(blockAddr, c.config.LineSize)
}

// observe looks up addr's line, installing it on a miss, and returns the
// hit/miss verdict with its latency. It never reads or writes the block's
// contents — there is nothing downstream of this model that needs them.
func (c *Cache) observe(addr uint64) AccessResult {
	blockAddr := c.blockAddr(addr)
	block := c.directory.Lookup(0, blockAddr)

	if block != nil && block.IsValid {
		c.stats.Hits++
		c.directory.Visit(block)
		latency := c.config.HitLatency
		c.stats.EstimatedCycles += latency
		return AccessResult{Hit: true, Latency: latency}
	}

	c.stats.Misses++
	victim := c.directory.FindVictim(blockAddr)
	if victim != nil {
		victim.Tag = blockAddr
		victim.IsValid = true
		victim.IsDirty = false
		c.directory.Visit(victim)
	}
	c.fetchFromBacking(blockAddr)
	latency := c.config.MissLatency
	c.stats.EstimatedCycles += latency
	return AccessResult{Hit: false, Latency: latency}
}

// ObserveLoad records a load of size bytes at addr.
func (c *Cache) ObserveLoad(addr uint64, size int) AccessResult {
	c.stats.Reads++
	return c.observe(addr)
}

// ObserveStore records a store of size bytes at addr.
func (c *Cache) ObserveStore(addr uint64, size int) AccessResult {
	c.stats.Writes++
	return c.observe(addr)
}
