//go:build !linux && !windows

package fusion

import (
	"github.com/behrlich/govio"
	"github.com/behrlich/govio/internal/pollfd"
)

// Select always returns the Poll backend on BSD/Darwin — there is no
// completion-based primitive to fuse against outside Linux's io_uring
// and Windows's IOCP.
func Select(cfg govio.DriverConfig, logger govio.Logger) (govio.Proactor, error) {
	return pollfd.NewDriver(cfg, logger)
}

// Backend names the selected Proactor kind.
type Backend int

const (
	BackendIoUring Backend = iota
	BackendPoll
)

func (b Backend) String() string {
	switch b {
	case BackendIoUring:
		return "iouring"
	case BackendPoll:
		return "poll"
	default:
		return "unknown"
	}
}

func Probe(cfg govio.DriverConfig, logger govio.Logger) (Backend, error) {
	return BackendPoll, nil
}
