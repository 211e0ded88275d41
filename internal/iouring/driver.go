//go:build linux

package iouring

import (
	"syscall"
	"time"

	"github.com/behrlich/govio"
	"github.com/behrlich/govio/internal/iouring/sys"
	"github.com/behrlich/govio/internal/opset"
	"github.com/behrlich/govio/internal/slab"
	"github.com/behrlich/govio/internal/workerpool"
)

// defaultFixedFileTableSize is how many slots RegisterFd's lazily
// registered fixed-file table carries; the size is fixed and does not
// depend on the ring's capacity (spec §9's registered-fd
// Open Question decision: the table exists, but nothing registers into
// it unless a caller explicitly asks).
const defaultFixedFileTableSize = 256

// emptyFixedSlot marks an unused fixed-file table entry, the same
// sparse-registration sentinel compio's register_fd uses.
const emptyFixedSlot int32 = -1

// wakeUserData and cancelUserData are out-of-band CQE correlation tokens
// that never collide with a real slab key: the slab hands out ids
// starting at 0 and growing, so the top bit is never set by a live op
// (a single ring is never expected to have 2^63 outstanding operations).
const (
	wakeUserData   uint64 = 1 << 63
	cancelUserData uint64 = 1<<63 | 1
)

// Driver adapts the teacher's Ring/Probe/Prep*/CQE machinery into a
// govio.Proactor (spec §4.2): a slab of live opset.IoUringOp values keyed
// by CQE userData, a bounded blocking-thread-pool fallback for ops the
// probed kernel doesn't support (or that declare opset.ForcedBlocking),
// and a ring-submitted NOP as the cross-goroutine wake mechanism.
type Driver struct {
	ring   *Ring
	probe  *Probe
	ops    *slab.Slab[opset.IoUringOp]
	pool   *workerpool.Pool
	logger govio.Logger

	blockingCh chan blockingResult

	// Lazily registered fixed-file table backing RegisterFd/UnregisterFd.
	// Registered on first RegisterFd call, never shrunk. Single-owner,
	// same contract as the rest of Driver: callers must not call
	// RegisterFd/UnregisterFd concurrently with Poll.
	fixedRegistered bool
	fixedTableSize  uint32
	fixedFree       []uint32
}

type blockingResult struct {
	key uint64
	n   int
	err error
}

// NewDriver constructs a Driver from a DriverConfig (spec §4.2's
// "Creation" step): sets up the ring with the requested capacity and
// flags, probes opcode support, and sizes the blocking thread pool.
func NewDriver(cfg govio.DriverConfig, logger govio.Logger) (*Driver, error) {
	opts := []Option{WithCQSize(cfg.Capacity * 2)}
	if cfg.CoopTaskrun {
		opts = append(opts, WithCoopTaskrun())
	}
	if cfg.TaskrunFlag {
		opts = append(opts, WithFlags(sys.IORING_SETUP_TASKRUN_FLAG))
	}
	if cfg.SQPollIdle > 0 {
		opts = append(opts, WithSQPoll(), WithSQPollIdle(uint32(cfg.SQPollIdle.Milliseconds())))
	}

	ring, err := New(cfg.Capacity, opts...)
	if err != nil {
		return nil, err
	}
	if cfg.Eventfd != 0 {
		if err := ring.RegisterEventfd(cfg.Eventfd); err != nil {
			ring.Close()
			return nil, err
		}
	}

	probe, err := ring.Probe()
	if err != nil {
		// A probe failure doesn't prevent operation — it just means every
		// op falls back to the blocking pool until proven otherwise.
		probe = nil
	}

	return &Driver{
		ring:       ring,
		probe:      probe,
		ops:        slab.New[opset.IoUringOp](),
		pool:       workerpool.New(cfg.ThreadPoolLimit),
		logger:     logger,
		blockingCh: make(chan blockingResult, 64),
	}, nil
}

// Probe returns the opcode-support probe this Driver's ring reported at
// construction, or nil if probing itself failed (in which case every op
// degrades to the blocking pool). Used by internal/fusion to decide
// whether IoUring covers a caller's required opcode set.
func (d *Driver) Probe() *Probe {
	return d.probe
}

// RingFd exposes the underlying ring's file descriptor, for
// internal/bufring's ring-mapped provided-buffer registration
// (IORING_REGISTER_PBUF_RING), which operates beneath the Proactor
// interface rather than through it.
func (d *Driver) RingFd() int {
	return d.ring.Fd()
}

func (d *Driver) Attach(fd int) error {
	if fd < 0 {
		return govio.NewError("Attach", 0, "iouring", govio.KindInvalidInput, nil)
	}
	return nil
}

func (d *Driver) Push(op govio.Op) (govio.PushResult, error) {
	iop, ok := op.(opset.IoUringOp)
	if !ok {
		return inlineUnsupported(op), nil
	}

	if forced, ok := iop.(opset.ForcedBlocking); ok && forced.ForceBlocking() {
		return d.pushBlocking(iop)
	}
	if d.probe != nil && !d.probe.SupportsOp(iop.Opcode()) {
		return d.pushBlocking(iop)
	}

	key := d.ops.Insert(iop)
	if err := iop.Submit(d.ring, key); err != nil {
		d.ops.Remove(key)
		if pr, ok := d.pushBlockingErr(iop); ok {
			return pr, nil
		}
		return govio.PushResult{}, govio.ErrQueueFull
	}
	return govio.PushResult{Key: key}, nil
}

// pushBlockingErr retries a failed ring submission on the thread pool,
// the same degrade-rather-than-fail path a probe-unsupported opcode
// takes. Returns ok=false if the pool is also at capacity, in which case
// the caller surfaces the original admission failure.
func (d *Driver) pushBlockingErr(iop opset.IoUringOp) (govio.PushResult, bool) {
	pr, err := d.pushBlocking(iop)
	return pr, err == nil
}

func (d *Driver) pushBlocking(iop opset.IoUringOp) (govio.PushResult, error) {
	key := d.ops.Insert(iop)
	accepted := d.pool.Try(iop.RunBlocking, func(n int, err error) {
		d.blockingCh <- blockingResult{key: key, n: n, err: err}
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
			Err: govio.NewError(op.Name(), 0, "iouring", govio.KindUnsupported, nil),
		},
	}
}

func (d *Driver) Cancel(key uint64) {
	d.ring.PrepCancel(key, 0, cancelUserData)
	d.ring.Submit()
}

func (d *Driver) Poll(timeout *time.Duration, fn func(govio.Completion)) error {
	delivered := d.drainBlocking(fn)
	delivered = d.drainCQEs(fn) || delivered
	if delivered {
		return nil
	}

	switch {
	case timeout == nil:
		if _, _, _, err := d.ring.WaitCQE(); err != nil {
			return translateRingErr(err)
		}
	case *timeout == 0:
		return govio.ErrTimedOut
	default:
		if _, _, _, err := d.ring.WaitCQETimeout(*timeout); err != nil {
			return translateRingErr(err)
		}
	}

	d.drainBlocking(fn)
	d.drainCQEs(fn)
	return nil
}

func (d *Driver) drainBlocking(fn func(govio.Completion)) bool {
	delivered := false
	for {
		select {
		case r := <-d.blockingCh:
			d.ops.Remove(r.key)
			fn(govio.Completion{Key: r.key, N: r.n, Err: r.err})
			delivered = true
		default:
			return delivered
		}
	}
}

func (d *Driver) drainCQEs(fn func(govio.Completion)) bool {
	delivered := false
	d.ring.ForEachCQE(func(userData uint64, res int32, flags uint32) bool {
		if userData == wakeUserData || userData == cancelUserData {
			return true
		}
		iop, ok := d.ops.Remove(userData)
		if !ok {
			return true
		}
		n, err := iop.InterpretResult(res, flags)
		fn(govio.Completion{Key: userData, N: n, Err: err, Flags: flags})
		delivered = true
		return true
	})
	return delivered
}

func translateRingErr(err error) error {
	if err == ErrRingClosed {
		return govio.ErrDriverClosed
	}
	return govio.ErrTimedOut
}

// CreateBufferPool registers n fixed buffers of sz bytes via
// IORING_REGISTER_BUFFERS. Only one pool may be registered at a time —
// the kernel's classic fixed-buffer table has a single active slot per
// ring, unlike the ring-mapped provided-buffer groups internal/bufring
// manages, which support many concurrent pools.
func (d *Driver) CreateBufferPool(n int, sz int) (uint32, error) {
	bufs := make([][]byte, n)
	for i := range bufs {
		bufs[i] = make([]byte, sz)
	}
	if err := d.ring.RegisterBuffers(bufs); err != nil {
		return 0, err
	}
	return 1, nil
}

func (d *Driver) ReleaseBufferPool(id uint32) error {
	return d.ring.UnregisterBuffers()
}

// RegisterFd installs fd into the ring's fixed-file table
// (IORING_REGISTER_FILES / IORING_REGISTER_FILES_UPDATE), returning the
// slot index. The table is lazily registered on first use, sized to
// defaultFixedFileTableSize and filled with emptyFixedSlot placeholders,
// then patched one slot at a time via Ring.UpdateFiles as RegisterFd and
// UnregisterFd are called.
func (d *Driver) RegisterFd(fd int) (uint32, error) {
	if err := d.ensureFixedTable(); err != nil {
		return 0, err
	}
	if len(d.fixedFree) == 0 {
		return 0, govio.NewError("RegisterFd", 0, "iouring", govio.KindInvalidInput, syscall.EMFILE)
	}

	idx := d.fixedFree[len(d.fixedFree)-1]
	if err := d.ring.UpdateFiles(idx, int32(fd)); err != nil {
		return 0, err
	}
	d.fixedFree = d.fixedFree[:len(d.fixedFree)-1]
	return idx, nil
}

// UnregisterFd releases a slot obtained from RegisterFd, clearing it back
// to emptyFixedSlot.
func (d *Driver) UnregisterFd(idx uint32) error {
	if !d.fixedRegistered || idx >= d.fixedTableSize {
		return govio.NewError("UnregisterFd", 0, "iouring", govio.KindInvalidInput, nil)
	}
	if err := d.ring.UpdateFiles(idx, emptyFixedSlot); err != nil {
		return err
	}
	d.fixedFree = append(d.fixedFree, idx)
	return nil
}

func (d *Driver) ensureFixedTable() error {
	if d.fixedRegistered {
		return nil
	}

	size := defaultFixedFileTableSize
	placeholders := make([]int, size)
	for i := range placeholders {
		placeholders[i] = int(emptyFixedSlot)
	}
	if err := d.ring.RegisterFiles(placeholders); err != nil {
		return err
	}

	d.fixedTableSize = uint32(size)
	d.fixedFree = make([]uint32, size)
	for i := range d.fixedFree {
		d.fixedFree[i] = uint32(size) - 1 - uint32(i)
	}
	d.fixedRegistered = true
	return nil
}

func (d *Driver) CreateWaker() (govio.Waker, error) {
	return &ringWaker{ring: d.ring}, nil
}

func (d *Driver) Close() error {
	d.pool.Close()
	d.pool.Wait()
	if d.fixedRegistered {
		d.ring.UnregisterFiles()
	}
	return d.ring.Close()
}

// ringWaker wakes a goroutine blocked in Driver.Poll by submitting a NOP
// through the ring itself — safe from any goroutine since Ring guards SQ
// access with its own sqLock, avoiding the need for a separate eventfd
// registration for the common single-ring case.
type ringWaker struct {
	ring *Ring
}

func (w *ringWaker) Wake() error {
	if err := w.ring.PrepNop(wakeUserData); err != nil {
		return err
	}
	_, err := w.ring.Submit()
	return err
}
