// Package opset defines the per-syscall operation descriptors shared
// across backends (spec §3.1, §4.7): ReadAt, WriteAt, Accept, Connect,
// Send, Recv, RecvMsg, SendMsg, Shutdown, Close, Sync,
// plus the platform extras (ConnectNamedPipe, Splice,
// PollOnce, Asyncify, WaitProcess, Socket). Each variant carries its own
// fd/buffer/params and implements three small per-backend interfaces so
// the fusion selector's choice of backend is transparent to callers
// (spec §4.5).
//
// The op vocabulary is grounded on the teacher's sqe.go Prep* method set
// (Nop, Read, Write, ReadFixed, WriteFixed, Readv, Writev, Fsync, Timeout,
// Cancel, Accept, Connect, Send, Recv, Close, Shutdown, Sendmsg, Recvmsg,
// Socket, PollAdd, Openat, Statx, Splice) and supplemented from
// original_source (compio-fs/src/named_pipe.go for ConnectNamedPipe,
// compio-process/src/lib.go for WaitProcess).
package opset

import (
	"syscall"
	"unsafe"

	"github.com/behrlich/govio"
	"github.com/behrlich/govio/internal/iouring/sys"
)

// Decision is what a Poll-backend op returns from PreSubmit (spec §4.4).
type Decision struct {
	// CompletedInline is set when the op finished without needing to wait
	// (or failed outright); N/Err are then valid and final.
	CompletedInline bool
	N               int
	Err             error

	// Wait means: register interest in fd for Readable/Writable and
	// revisit via OnReadiness once the poller reports it ready.
	Wait      bool
	Fd        int
	Readable  bool
	Writable  bool

	// Blocking means: dispatch to the thread pool instead.
	Blocking bool
}

// DecisionCompleted builds an inline-completion Decision.
func DecisionCompleted(n int, err error) Decision {
	return Decision{CompletedInline: true, N: n, Err: err}
}

// DecisionWaitReadable builds a Decision waiting for fd to become
// readable.
func DecisionWaitReadable(fd int) Decision {
	return Decision{Wait: true, Fd: fd, Readable: true}
}

// DecisionWaitWritable builds a Decision waiting for fd to become
// writable.
func DecisionWaitWritable(fd int) Decision {
	return Decision{Wait: true, Fd: fd, Writable: true}
}

// DecisionBlocking builds a Decision routing the op to the thread pool.
func DecisionBlocking() Decision {
	return Decision{Blocking: true}
}

// PollOp is the capability set the Poll backend requires (spec §4.4).
type PollOp interface {
	govio.Op
	// PreSubmit is called once at Push time.
	PreSubmit() (Decision, error)
	// OnReadiness is called each time the poller reports fd ready per the
	// interest registered by a prior Wait decision. ok=false means "still
	// would block", re-register and wait again.
	OnReadiness() (n int, ok bool, err error)
	// RunBlocking executes the op synchronously; only called when
	// PreSubmit (or a retried OnReadiness) asked for Blocking.
	RunBlocking() (int, error)
}

// IoUringSubmitter is the subset of *iouring.Ring's Prep* vocabulary an op
// needs to submit itself. internal/iouring.Ring satisfies this
// structurally; opset never imports internal/iouring so the dependency
// runs the other way (internal/iouring imports internal/opset), avoiding
// a cycle.
type IoUringSubmitter interface {
	PrepNop(userData uint64) error
	PrepRead(fd int, buf []byte, offset uint64, userData uint64) error
	PrepWrite(fd int, buf []byte, offset uint64, userData uint64) error
	PrepReadv(fd int, iovecs []syscall.Iovec, offset uint64, userData uint64) error
	PrepWritev(fd int, iovecs []syscall.Iovec, offset uint64, userData uint64) error
	PrepFsync(fd int, flags uint32, userData uint64) error
	PrepAccept(fd int, addr unsafe.Pointer, addrLen *uint32, flags uint32, userData uint64) error
	PrepConnect(fd int, addr unsafe.Pointer, addrLen uint32, userData uint64) error
	PrepSend(fd int, buf []byte, flags int, userData uint64) error
	PrepRecv(fd int, buf []byte, flags int, userData uint64) error
	PrepClose(fd int, userData uint64) error
	PrepShutdown(fd int, how int, userData uint64) error
	PrepSendmsg(fd int, msg *syscall.Msghdr, flags int, userData uint64) error
	PrepRecvmsg(fd int, msg *syscall.Msghdr, flags int, userData uint64) error
	PrepSocket(domain, typ, protocol int, userData uint64) error
	PrepPollAdd(fd int, pollMask uint32, userData uint64) error
	PrepSplice(fdIn int, offIn int64, fdOut int, offOut int64, nbytes uint32, flags uint32, userData uint64) error
	PrepCancel(targetUserData uint64, flags uint32, userData uint64) error
	PrepOpenat(dirfd int, path *byte, flags int, mode uint32, userData uint64) error
	PrepStatx(dirfd int, path *byte, flags, mask int, statxbuf unsafe.Pointer, userData uint64) error
	PrepRecvProvided(fd int, bufGroup uint16, length int, flags int, userData uint64) error
}

// IoUringOp is the capability set the IoUring backend requires. Unlike a
// literal SQE-filling interface, Submit takes the Ring itself (as an
// IoUringSubmitter) and calls whichever PrepX method matches the op's
// opcode, matching the teacher's Ring.PrepX(..., userData) call shape
// rather than exposing raw *sys.SQE plumbing to opset.
type IoUringOp interface {
	govio.Op
	// Opcode reports the IORING_OP_* this op submits, so the driver can
	// consult a Probe before calling Submit and fall back to RunBlocking
	// on kernels that don't support it (spec §4.2 step 1).
	Opcode() sys.Op
	// Submit prepares and queues this op's SQE via s, stamping userData
	// (normally the op's slab key) as the CQE correlation token.
	Submit(s IoUringSubmitter, userData uint64) error
	// RunBlocking executes the op synchronously on the thread pool; used
	// both for ops the driver always treats as blocking (Asyncify) and as
	// the fallback when the probed kernel doesn't support the op's
	// opcode.
	RunBlocking() (int, error)
	// InterpretResult turns a raw CQE result into the op's (n, err) pair,
	// e.g. Accept turns a non-negative res into an owned fd.
	InterpretResult(res int32, flags uint32) (int, error)
}

// IOCPKind is the shape an IOCPOp's completion takes (spec §4.3 step 1).
type IOCPKind int

const (
	// KindOverlapped means the op drives a Win32 overlapped call.
	KindOverlapped IOCPKind = iota
	// KindIOCPBlocking means dispatch to the thread pool.
	KindIOCPBlocking
	// KindEvent means completion is signalled by a Win32 event handle
	// (e.g. process exit) rather than by overlapped I/O.
	KindEvent
)

// IOCPOp is the capability set the IOCP backend requires.
type IOCPOp interface {
	govio.Op
	IOCPKind() IOCPKind
	// RunBlocking executes the op synchronously; used for KindIOCPBlocking.
	RunBlocking() (int, error)
	// EventHandle returns the handle to wait on for KindEvent ops.
	EventHandle() (handle uintptr, ok bool)
}

// ForcedBlocking is implemented by ops that must always go to the thread
// pool regardless of what the backend's opcode probe reports — Asyncify
// (by definition) and WaitProcess (Linux has no portable readiness-only
// wait for process exit without a pidfd). A backend checks this before
// consulting its opcode-support probe.
type ForcedBlocking interface {
	ForceBlocking() bool
}

// baseOp is embedded by concrete op types to provide Name() and hold
// common close-path state. It is not itself a full Op implementation.
type baseOp struct {
	name string
}

func (b baseOp) Name() string { return b.name }

// IOCPKind defaults every op to the thread-pool path (spec §4.3's
// OpType::Blocking), matching how syscall_windows.go's blocking-fallback
// functions are written — as synchronous Win32 calls, not genuinely
// overlapped ones. WaitProcess and ConnectNamedPipe override this; their
// own IOCPKind method (defined directly on the concrete type) shadows
// this embedded one.
func (b baseOp) IOCPKind() IOCPKind { return KindIOCPBlocking }

// EventHandle defaults to "nothing to wait on"; only KindEvent ops
// override it.
func (b baseOp) EventHandle() (uintptr, bool) { return 0, false }

// resultFromErrno turns a raw errno-style int result (negative = -errno,
// matching io_uring CQE semantics, spec §4.7) into (n, err). A non-negative
// result is returned verbatim as the transferred count.
func resultFromErrno(res int32) (int, error) {
	if res >= 0 {
		return int(res), nil
	}
	errno := syscall.Errno(-res)
	kind := govio.KindOSError
	switch errno {
	case syscall.ETIMEDOUT, syscall.ECANCELED:
		kind = govio.KindTimedOut
	case syscall.EINTR, syscall.EAGAIN, syscall.EBUSY:
		kind = govio.KindInterrupted
	case syscall.ENOSYS, syscall.EOPNOTSUPP:
		kind = govio.KindUnsupported
	case syscall.EINVAL:
		kind = govio.KindInvalidInput
	case syscall.ECONNRESET, syscall.EPIPE:
		kind = govio.KindConnectionReset
	}
	return 0, &govio.Error{Kind: kind, Errno: errno}
}
