// Package rv64im implements the command-line front end over the
// emulator core: run, decode and info subcommands built with cobra.
package rv64im

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "rv64im",
	Short: "A user-mode instruction-set simulator for RV64IM",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a TOML configuration file")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(infoCmd)
}

// Execute runs the command tree and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return exitCode
}

// exitCode carries the guest's exit code out of runCmd, since a cobra
// RunE can only report success/failure, not an arbitrary integer.
var exitCode int
