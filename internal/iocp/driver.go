//go:build windows

// Package iocp implements the Windows IOCP backend (spec §4.3): a
// govio.Proactor built over a single I/O completion port. Unlike
// io_uring's ring or the Poll backend's readiness queue, IOCP delivers
// completions tagged by an OVERLAPPED pointer rather than an integer
// correlation token, so every in-flight op here carries a small
// allocated header embedding that OVERLAPPED plus its slab key — the
// same layout compio's own IOCP driver uses (an Overlapped struct with
// an attached driver/key tag) to recover which operation a
// GetQueuedCompletionStatus wakeup belongs to.
//
// Grounded on other_examples' joeycumines-go-utilpkg and
// momentics-hioload-ws IOCP pollers for the port-creation/
// GetQueuedCompletionStatus/PostQueuedCompletionStatus wake pattern, and
// on original_source/compio-driver/src/sys/iocp/mod.rs for the
// Driver.push/poll/cancel shape and the embedded-Overlapped-header idea.
//
// None of internal/opset's current ops provide a genuinely asynchronous
// Win32 submission path (golang.org/x/sys/windows.ReadFile et al. are
// called synchronously in internal/opset's syscall_windows.go, matching
// how the blocking-fallback functions are written on every other
// backend) — so opset.KindOverlapped ops run RunBlocking inline and
// complete immediately, the same way a Windows op that happens to
// finish without going pending would under the real API. KindIOCPBlocking
// and KindEvent ops both dispatch through internal/workerpool (spec
// §4.3) and report their result back into the port via
// PostQueuedCompletionStatus, so Poll's GetQueuedCompletionStatus loop is
// the single, uniform completion-delivery path regardless of which kind
// produced the result.
package iocp

import (
	"sync/atomic"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/behrlich/govio"
	"github.com/behrlich/govio/internal/opset"
	"github.com/behrlich/govio/internal/slab"
	"github.com/behrlich/govio/internal/workerpool"
)

// opHeader is the per-operation completion-port tag: ov's address is
// what PostQueuedCompletionStatus/GetQueuedCompletionStatus pass back
// and forth, and since ov is opHeader's first field, a *windows.Overlapped
// received from GetQueuedCompletionStatus can be cast straight back to
// its owning *opHeader.
type opHeader struct {
	ov        windows.Overlapped
	key       uint64
	n         int
	err       error
	cancelled atomic.Bool
}

// Driver adapts a single IOCP completion port into a govio.Proactor.
type Driver struct {
	port   windows.Handle
	ops    *slab.Slab[*opHeader]
	pool   *workerpool.Pool
	logger govio.Logger
}

// NewDriver creates the completion port and sizes the blocking thread
// pool backing KindIOCPBlocking/KindEvent ops.
func NewDriver(cfg govio.DriverConfig, logger govio.Logger) (*Driver, error) {
	port, err := windows.CreateIoCompletionPort(windows.InvalidHandle, 0, 0, 0)
	if err != nil {
		return nil, err
	}
	return &Driver{
		port:   port,
		ops:    slab.New[*opHeader](),
		pool:   workerpool.New(cfg.ThreadPoolLimit),
		logger: logger,
	}, nil
}

// Attach associates fd (a Win32 handle or socket) with the completion
// port. Idempotent: re-associating a handle already on this port is not
// an error.
func (d *Driver) Attach(fd int) error {
	if fd < 0 {
		return govio.NewError("Attach", 0, "iocp", govio.KindInvalidInput, nil)
	}
	_, err := windows.CreateIoCompletionPort(windows.Handle(fd), d.port, 0, 0)
	if err == windows.ERROR_INVALID_PARAMETER {
		// Already associated with this port.
		return nil
	}
	return err
}

func (d *Driver) Push(op govio.Op) (govio.PushResult, error) {
	iop, ok := op.(opset.IOCPOp)
	if !ok {
		return inlineUnsupported(op), nil
	}

	switch iop.IOCPKind() {
	case opset.KindOverlapped:
		n, err := iop.RunBlocking()
		return govio.PushResult{Inline: true, Completion: govio.Completion{N: n, Err: err}}, nil
	case opset.KindEvent:
		if _, ok := iop.EventHandle(); !ok {
			n, err := iop.RunBlocking()
			return govio.PushResult{Inline: true, Completion: govio.Completion{N: n, Err: err}}, nil
		}
		return d.pushAsync(iop)
	default:
		return d.pushAsync(iop)
	}
}

// pushAsync dispatches iop.RunBlocking to the bounded thread pool and
// arranges for its result to surface through the completion port,
// matching the teacher's push_blocking/notify.port.post pairing.
func (d *Driver) pushAsync(iop opset.IOCPOp) (govio.PushResult, error) {
	hdr := &opHeader{}
	key := d.ops.Insert(hdr)
	hdr.key = key

	accepted := d.pool.Try(iop.RunBlocking, func(n int, err error) {
		if hdr.cancelled.Load() {
			n, err = 0, govio.ErrTimedOut
		}
		hdr.n, hdr.err = n, err
		windows.PostQueuedCompletionStatus(d.port, uint32(n), 0, &hdr.ov)
	})
	if !accepted {
		d.ops.Remove(key)
		return govio.PushResult{}, govio.ErrQueueFull
	}
	return govio.PushResult{Key: key}, nil
}

func inlineUnsupported(op govio.Op) govio.PushResult {
	return govio.PushResult{
		Inline: true,
		Completion: govio.Completion{
			Err: govio.NewError(op.Name(), 0, "iocp", govio.KindUnsupported, nil),
		},
	}
}

// Cancel is advisory (spec §4.7): the dispatched goroutine keeps running
// to completion (Windows gives us no portable way to interrupt an
// arbitrary blocking syscall), but its eventually-posted result is
// overridden to ErrTimedOut before delivery.
func (d *Driver) Cancel(key uint64) {
	if hdr, ok := d.ops.Get(key); ok {
		hdr.cancelled.Store(true)
	}
}

func (d *Driver) Poll(timeout *time.Duration, fn func(govio.Completion)) error {
	ms := uint32(windows.INFINITE)
	switch {
	case timeout == nil:
	case *timeout == 0:
		ms = 0
	default:
		if m := timeout.Milliseconds(); m < int64(windows.INFINITE) {
			ms = uint32(m)
		}
	}

	if !d.drainOne(fn, ms) {
		return govio.ErrTimedOut
	}
	d.drainAvailable(fn)
	return nil
}

// drainOne blocks up to ms milliseconds for exactly one completion
// packet and delivers it if it carries a live op (as opposed to a bare
// Wake() post, which arrives with a nil overlapped pointer).
func (d *Driver) drainOne(fn func(govio.Completion), ms uint32) bool {
	var bytes uint32
	var key uintptr
	var ov *windows.Overlapped
	if err := windows.GetQueuedCompletionStatus(d.port, &bytes, &key, &ov, ms); err != nil {
		return false
	}
	return d.deliver(fn, ov)
}

// drainAvailable non-blockingly drains any further completions already
// queued on the port, the same "drain everything ready, then return" step
// every other backend's Poll performs.
func (d *Driver) drainAvailable(fn func(govio.Completion)) {
	for {
		var bytes uint32
		var key uintptr
		var ov *windows.Overlapped
		if err := windows.GetQueuedCompletionStatus(d.port, &bytes, &key, &ov, 0); err != nil {
			return
		}
		if !d.deliver(fn, ov) {
			return
		}
	}
}

func (d *Driver) deliver(fn func(govio.Completion), ov *windows.Overlapped) bool {
	if ov == nil {
		// A bare Wake() post — nothing to deliver, but the call still
		// counts as "something arrived" for the caller's purposes.
		return true
	}
	hdr := (*opHeader)(unsafe.Pointer(ov))
	stored, ok := d.ops.Remove(hdr.key)
	if !ok || stored != hdr {
		return true
	}
	fn(govio.Completion{Key: hdr.key, N: hdr.n, Err: hdr.err})
	return true
}

// CreateBufferPool has no IOCP equivalent — Windows overlapped I/O has
// no registered-buffer-table concept analogous to io_uring's, and
// internal/bufring's ring-mapped pool is IoUring-specific by
// construction (spec §4.2 names it as the io_uring backend's feature).
func (d *Driver) CreateBufferPool(n int, sz int) (uint32, error) {
	return 0, govio.ErrUnsupported
}

func (d *Driver) ReleaseBufferPool(id uint32) error {
	return govio.ErrUnsupported
}

// RegisterFd reports ErrUnsupported: IOCP has no fixed-file/registered-fd
// table analogous to io_uring's.
func (d *Driver) RegisterFd(fd int) (uint32, error) {
	return 0, govio.ErrUnsupported
}

func (d *Driver) UnregisterFd(idx uint32) error {
	return govio.ErrUnsupported
}

func (d *Driver) CreateWaker() (govio.Waker, error) {
	return &portWaker{port: d.port}, nil
}

func (d *Driver) Close() error {
	d.pool.Close()
	d.pool.Wait()
	return windows.CloseHandle(d.port)
}

// portWaker wakes a goroutine blocked in Driver.Poll by posting a bare
// completion packet with a nil overlapped pointer — GetQueuedCompletionStatus
// wakes immediately, deliver() recognizes the nil pointer and treats it as
// a no-op completion.
type portWaker struct {
	port windows.Handle
}

func (w *portWaker) Wake() error {
	return windows.PostQueuedCompletionStatus(w.port, 0, 0, nil)
}
