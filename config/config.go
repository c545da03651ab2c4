// Package config loads TOML run configuration for the emulator, with
// built-in defaults for every field so an absent file is never an
// error.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config holds the emulator's run settings. The CLI's --base,
// --max-instructions and --trace-cache flags take precedence over the
// matching loaded values; the other settings have no flag. See
// cmd/rv64im for how the two are merged.
type Config struct {
	Execution struct {
		MemorySizeBytes uint64 `toml:"memory_size_bytes"`
		BaseAddress     uint64 `toml:"base_address"`
		StackSizeBytes  uint64 `toml:"stack_size_bytes"`
		MaxInstructions uint64 `toml:"max_instructions"` // 0 = unlimited
		HaltOnReturn    bool   `toml:"halt_on_return"`
	} `toml:"execution"`

	Trace struct {
		Instructions bool `toml:"instructions"`
		Memory       bool `toml:"memory"`
		Cache        bool `toml:"cache"`
	} `toml:"trace"`

	Cache struct {
		LineSizeBytes uint64 `toml:"line_size_bytes"`
		NumLines      uint64 `toml:"num_lines"`
		HitLatency    uint64 `toml:"hit_latency_cycles"`
		MissLatency   uint64 `toml:"miss_latency_cycles"`
	} `toml:"cache"`
}

// Default returns a Config populated with the emulator's built-in
// defaults: a 64 MiB memory window, a freestanding base address, no
// instruction cap, and the return-to-zero halt heuristic enabled.
func Default() *Config {
	cfg := &Config{}

	cfg.Execution.MemorySizeBytes = 64 << 20
	cfg.Execution.BaseAddress = 0x40000000
	cfg.Execution.StackSizeBytes = 1 << 20
	cfg.Execution.MaxInstructions = 0
	cfg.Execution.HaltOnReturn = true

	cfg.Trace.Instructions = false
	cfg.Trace.Memory = false
	cfg.Trace.Cache = false

	cfg.Cache.LineSizeBytes = 64
	cfg.Cache.NumLines = 1024
	cfg.Cache.HitLatency = 4
	cfg.Cache.MissLatency = 120

	return cfg
}

// Load reads path and overlays it onto Default(). An empty path or a
// missing file is not an error: Default() alone is returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}

	return cfg, nil
}

// Save writes c to path as TOML, creating parent directories as
// needed.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create config file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := toml.NewEncoder(f).Encode(c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return nil
}
