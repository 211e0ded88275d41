//go:build linux

package main

import (
	"fmt"

	"github.com/behrlich/govio"
	"github.com/behrlich/govio/internal/iouring"
	"github.com/behrlich/govio/internal/iouring/sys"
)

// opcodesOfInterest are the opcodes fusion's Select actually cares about
// pinning via DriverConfig.OpFlags, plus the ones the provided-buffer
// and multishot recv paths depend on.
var opcodesOfInterest = []struct {
	name string
	op   sys.Op
}{
	{"READ", sys.IORING_OP_READ},
	{"WRITE", sys.IORING_OP_WRITE},
	{"ACCEPT", sys.IORING_OP_ACCEPT},
	{"CONNECT", sys.IORING_OP_CONNECT},
	{"SEND", sys.IORING_OP_SEND},
	{"RECV", sys.IORING_OP_RECV},
	{"SEND_ZC", sys.IORING_OP_SEND_ZC},
	{"SENDMSG_ZC", sys.IORING_OP_SENDMSG_ZC},
	{"READ_MULTISHOT", sys.IORING_OP_READ_MULTISHOT},
	{"POLL_ADD", sys.IORING_OP_POLL_ADD},
	{"ASYNC_CANCEL", sys.IORING_OP_ASYNC_CANCEL},
	{"TIMEOUT", sys.IORING_OP_TIMEOUT},
	{"OPENAT", sys.IORING_OP_OPENAT},
	{"STATX", sys.IORING_OP_STATX},
}

// printOpcodeDetails opens its own short-lived ring (separate from
// whatever fusion.Select constructs) purely to query RegisterProbe and
// report per-opcode kernel support, then tears it down.
func printOpcodeDetails(cfg govio.DriverConfig, logger govio.Logger) {
	d, err := iouring.NewDriver(cfg, logger)
	if err != nil {
		fmt.Printf("opcodes: io_uring unavailable: %v\n", err)
		return
	}
	defer d.Close()

	probe := d.Probe()
	if probe == nil {
		fmt.Println("opcodes: kernel did not return a probe")
		return
	}

	fmt.Printf("last_op: %d\n", probe.LastOp())
	fmt.Printf("features: 0x%08x\n", probe.Features())
	for _, oc := range opcodesOfInterest {
		fmt.Printf("  %-16s %t\n", oc.name, probe.SupportsOp(oc.op))
	}
}
