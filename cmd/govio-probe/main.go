// Command govio-probe reports which backend Proactor the fusion
// selector would choose on the current machine, and (on Linux, with
// -v) which individual io_uring opcodes the running kernel supports.
// Modeled on go-ublk's cmd/ublk-mem/main.go: a flag.FlagSet, a
// govlog-backed logger wired to -v, and plain fmt.Printf reporting
// rather than a structured output format.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/behrlich/govio"
	"github.com/behrlich/govio/internal/fusion"
	"github.com/behrlich/govio/internal/govlog"
)

func main() {
	var (
		capacity   = flag.Uint("capacity", 1024, "submission ring capacity / event batch size")
		threads    = flag.Int("threads", 256, "blocking thread pool limit")
		sqpollIdle = flag.Duration("sqpoll", 0, "SQPOLL idle timeout (0 disables SQPOLL)")
		verbose    = flag.Bool("v", false, "verbose: also report per-opcode kernel support")
	)
	flag.Parse()

	logCfg := govlog.DefaultConfig()
	if *verbose {
		logCfg.Level = govlog.LevelDebug
	}
	logger := govlog.New(logCfg)

	cfg := govio.DefaultDriverConfig()
	cfg.Capacity = uint32(*capacity)
	cfg.ThreadPoolLimit = *threads
	cfg.SQPollIdle = *sqpollIdle

	backend, err := fusion.Probe(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "govio-probe: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("backend: %s\n", backend)
	fmt.Printf("capacity: %d\n", cfg.Capacity)
	fmt.Printf("thread_pool_limit: %d\n", cfg.ThreadPoolLimit)
	if cfg.SQPollIdle > 0 {
		fmt.Printf("sqpoll_idle: %s\n", cfg.SQPollIdle)
	}

	if *verbose {
		printOpcodeDetails(cfg, logger)
	}
}
