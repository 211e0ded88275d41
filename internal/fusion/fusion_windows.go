//go:build windows

package fusion

import (
	"github.com/behrlich/govio"
	"github.com/behrlich/govio/internal/iocp"
)

// Select always returns the IOCP backend on Windows — unlike Linux's
// io_uring (which a kernel build may lack or restrict certain opcodes
// on), IOCP is a stable, universally-available Windows primitive with
// nothing to probe or fall back from.
func Select(cfg govio.DriverConfig, logger govio.Logger) (govio.Proactor, error) {
	return iocp.NewDriver(cfg, logger)
}

// Backend names the selected Proactor kind.
type Backend int

const (
	BackendIoUring Backend = iota
	BackendPoll
	BackendIOCP
)

func (b Backend) String() string {
	switch b {
	case BackendIoUring:
		return "iouring"
	case BackendPoll:
		return "poll"
	case BackendIOCP:
		return "iocp"
	default:
		return "unknown"
	}
}

func Probe(cfg govio.DriverConfig, logger govio.Logger) (Backend, error) {
	return BackendIOCP, nil
}
