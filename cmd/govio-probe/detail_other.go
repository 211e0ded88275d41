//go:build !linux

package main

import (
	"fmt"

	"github.com/behrlich/govio"
)

// printOpcodeDetails has nothing to report outside Linux: Poll and IOCP
// have no opcode-probe concept analogous to io_uring's.
func printOpcodeDetails(cfg govio.DriverConfig, logger govio.Logger) {
	fmt.Println("opcodes: not applicable on this platform")
}
