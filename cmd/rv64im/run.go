package rv64im

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rv64im/rv64im/cachesim"
	"github.com/rv64im/rv64im/config"
	"github.com/rv64im/rv64im/emu"
	"github.com/rv64im/rv64im/insts"
	"github.com/rv64im/rv64im/loader"
)

var (
	runFormat          string
	runBase            uint64
	runEntry           uint64
	runMaxInstructions uint64
	runTraceCache      bool
	runVerbose         bool
)

var runCmd = &cobra.Command{
	Use:   "run <program>",
	Short: "Load and execute a program until it halts",
	Args:  cobra.ExactArgs(1),
	RunE:  runRun,
}

func init() {
	runCmd.Flags().StringVar(&runFormat, "format", "flat", "program format: flat or elf")
	runCmd.Flags().Uint64Var(&runBase, "base", 0, "load address for flat binaries (overrides config)")
	runCmd.Flags().Uint64Var(&runEntry, "entry", 0, "entry point override (defaults to the loaded base/ELF entry)")
	runCmd.Flags().Uint64Var(&runMaxInstructions, "max-instructions", 0, "instruction budget (0 = unlimited, overrides config)")
	runCmd.Flags().BoolVar(&runTraceCache, "trace-cache", false, "enable the cache-latency estimator and report its stats")
	runCmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "print loader and execution diagnostics")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("base") {
		cfg.Execution.BaseAddress = runBase
	}
	if cmd.Flags().Changed("max-instructions") {
		cfg.Execution.MaxInstructions = runMaxInstructions
	}
	if cmd.Flags().Changed("trace-cache") {
		cfg.Trace.Cache = runTraceCache
	}

	path := args[0]
	base := cfg.Execution.BaseAddress
	if base == 0 {
		base = loader.DefaultBase
	}

	var prog *loader.Program
	switch runFormat {
	case "elf":
		prog, err = loader.LoadELF(path, cfg.Execution.MemorySizeBytes)
	case "flat":
		prog, err = loader.LoadFlat(path, base, cfg.Execution.MemorySizeBytes)
	default:
		return fmt.Errorf("unknown format %q (want flat or elf)", runFormat)
	}
	if err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}

	if runVerbose {
		fmt.Printf("loaded %s: entry=0x%x segments=%d\n", path, prog.EntryPoint, len(prog.Segments))
	}

	entry := prog.EntryPoint
	if cmd.Flags().Changed("entry") {
		entry = runEntry
	}

	e := emu.NewEmulator(
		emu.WithMemorySize(cfg.Execution.MemorySizeBytes),
		emu.WithMaxInstructions(cfg.Execution.MaxInstructions),
		emu.WithHaltOnReturn(cfg.Execution.HaltOnReturn),
		emu.WithEntryPoint(entry),
	)
	for _, seg := range prog.Segments {
		e.Memory().LoadBytes(seg.VirtAddr, seg.Data)
	}
	e.SetPC(entry)
	e.RegFile().Write(insts.SP, prog.InitialSP)

	var cache *cachesim.Cache
	if cfg.Trace.Cache {
		cacheCfg := cachesim.DefaultConfig()
		if cfg.Cache.LineSizeBytes != 0 {
			cacheCfg.LineSize = int(cfg.Cache.LineSizeBytes)
		}
		if cfg.Cache.NumLines != 0 {
			cacheCfg.NumLines = int(cfg.Cache.NumLines)
		}
		if cfg.Cache.HitLatency != 0 {
			cacheCfg.HitLatency = cfg.Cache.HitLatency
		}
		if cfg.Cache.MissLatency != 0 {
			cacheCfg.MissLatency = cfg.Cache.MissLatency
		}
		backing := cachesim.NewMemoryBacking(e.Memory())
		cache = cachesim.New(cacheCfg, backing)
		e.SetCacheObserver(discardingObserver{cache})
	}

	exitCode = int(e.Run())

	if runVerbose {
		fmt.Printf("instructions executed: %d\n", e.InstructionCount())
	}
	if cache != nil {
		stats := cache.Stats()
		fmt.Printf("cache: reads=%d writes=%d hits=%d misses=%d estimated-cycles=%d\n",
			stats.Reads, stats.Writes, stats.Hits, stats.Misses, stats.EstimatedCycles)
	}

	return nil
}

// discardingObserver adapts cachesim.Cache's AccessResult-returning
// methods to emu.CacheObserver's void-returning contract: the CLI only
// cares about the accumulated Stats(), not any single access's result.
type discardingObserver struct {
	cache *cachesim.Cache
}

func (d discardingObserver) ObserveLoad(addr uint64, size int)  { d.cache.ObserveLoad(addr, size) }
func (d discardingObserver) ObserveStore(addr uint64, size int) { d.cache.ObserveStore(addr, size) }
