//go:build linux

// Package fusion selects which backend Proactor a Runtime actually talks
// to (spec §4.5): IoUring when the kernel's probed opcode support covers
// everything the caller asked for, Poll otherwise. The choice is made
// once, at runtime construction, and is deterministic given a fixed probe
// outcome — there is no per-op runtime re-deciding, unlike the per-op
// backend-capability split opset's three interfaces already provide.
//
// This file is Linux-only (internal/iouring only builds there). The BSD
// build (fusion_bsd.go) always selects Poll; the Windows build
// (fusion_windows.go) always selects the IOCP backend.
package fusion

import (
	"github.com/behrlich/govio"
	"github.com/behrlich/govio/internal/iouring"
	"github.com/behrlich/govio/internal/iouring/sys"
	"github.com/behrlich/govio/internal/pollfd"
)

// Select builds whichever backend Proactor satisfies cfg's requirements,
// per spec §4.5's preference order: try IoUring first (it's probed for
// cfg.OpFlags support), fall back to Poll if the kernel lacks io_uring
// entirely or doesn't support one of the required opcodes.
func Select(cfg govio.DriverConfig, logger govio.Logger) (govio.Proactor, error) {
	d, err := iouring.NewDriver(cfg, logger)
	if err != nil {
		return pollfd.NewDriver(cfg, logger)
	}
	if !coversRequiredOps(d, cfg.OpFlags) {
		d.Close()
		return pollfd.NewDriver(cfg, logger)
	}
	return d, nil
}

// coversRequiredOps reports whether d's probed kernel supports every
// opcode in required. An empty required list means "accept whatever the
// kernel has" (the common case — most callers don't pin specific
// opcodes).
func coversRequiredOps(d *iouring.Driver, required []uint8) bool {
	if len(required) == 0 {
		return true
	}
	probe := d.Probe()
	if probe == nil {
		return false
	}
	for _, op := range required {
		if !probe.SupportsOp(sys.Op(op)) {
			return false
		}
	}
	return true
}

// Backend names the selected Proactor kind, surfaced for diagnostics
// (cmd/govio-probe) without requiring a type switch on govio.Proactor.
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

// Probe reports which backend Select would currently choose for cfg,
// without keeping either Proactor open — used by cmd/govio-probe to
// report the fusion decision and by tests asserting deterministic
// selection.
func Probe(cfg govio.DriverConfig, logger govio.Logger) (Backend, error) {
	d, err := iouring.NewDriver(cfg, logger)
	if err != nil {
		return BackendPoll, nil
	}
	defer d.Close()
	if !coversRequiredOps(d, cfg.OpFlags) {
		return BackendPoll, nil
	}
	return BackendIoUring, nil
}
