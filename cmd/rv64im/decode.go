package rv64im

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rv64im/rv64im/insts"
)

var decodeCmd = &cobra.Command{
	Use:   "decode <word>",
	Short: "Decode a single 32-bit instruction word",
	Args:  cobra.ExactArgs(1),
	RunE:  runDecode,
}

func runDecode(cmd *cobra.Command, args []string) error {
	text := strings.TrimPrefix(strings.ToLower(args[0]), "0x")
	word, err := strconv.ParseUint(text, 16, 32)
	if err != nil {
		return fmt.Errorf("parse instruction word %q: %w", args[0], err)
	}

	decoder := insts.NewDecoder()
	inst, err := decoder.Decode(uint32(word))
	if err != nil {
		return err
	}

	fmt.Printf("%-6s rd=%s rs1=%s rs2=%s imm=%d\n", inst.Op, inst.Rd, inst.Rs1, inst.Rs2, inst.Imm)
	return nil
}
