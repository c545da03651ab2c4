package rv64im

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rv64im/rv64im/config"
	"github.com/rv64im/rv64im/loader"
)

var (
	infoFormat string
	infoBase   uint64
)

var infoCmd = &cobra.Command{
	Use:   "info <program>",
	Short: "Print a program's entry point and segments without running it",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

func init() {
	infoCmd.Flags().StringVar(&infoFormat, "format", "flat", "program format: flat or elf")
	infoCmd.Flags().Uint64Var(&infoBase, "base", 0, "load address for flat binaries (overrides config)")
}

func runInfo(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	base := infoBase
	if base == 0 {
		base = cfg.Execution.BaseAddress
	}
	if base == 0 {
		base = loader.DefaultBase
	}

	path := args[0]
	var prog *loader.Program
	switch infoFormat {
	case "elf":
		prog, err = loader.LoadELF(path, cfg.Execution.MemorySizeBytes)
	case "flat":
		prog, err = loader.LoadFlat(path, base, cfg.Execution.MemorySizeBytes)
	default:
		return fmt.Errorf("unknown format %q (want flat or elf)", infoFormat)
	}
	if err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}

	fmt.Printf("entry point: 0x%x\n", prog.EntryPoint)
	fmt.Printf("initial sp:  0x%x\n", prog.InitialSP)
	fmt.Printf("segments:    %d\n", len(prog.Segments))
	for i, seg := range prog.Segments {
		fmt.Printf("  [%d] addr=0x%x filesz=%d memsz=%d flags=%03b\n",
			i, seg.VirtAddr, len(seg.Data), seg.MemSize, seg.Flags)
	}
	return nil
}
