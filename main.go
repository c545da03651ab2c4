// Command rv64im is a user-mode instruction-set simulator for RV64IM.
package main

import (
	"os"

	"github.com/rv64im/rv64im/cmd/rv64im"
)

func main() {
	os.Exit(rv64im.Execute())
}
