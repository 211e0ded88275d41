package govio

import "time"

// Completion is the (key, result) pair a Proactor delivers for a
// previously submitted operation, per spec §3.1.
type Completion struct {
	// Key is the raw slab key the operation was submitted with.
	Key uint64
	// N is the non-negative transferred byte count / fd / opaque success
	// value. Meaningless if Err is non-nil.
	N int
	// Err is nil on success, or a *Error on failure.
	Err error
	// Flags carries backend-specific bits — on io_uring with ring-mapped
	// buffers, the selected buffer id is encoded here (see
	// internal/bufring).
	Flags uint32
}

// PushResult is returned by Proactor.Push.
type PushResult struct {
	// Inline is true when the operation completed synchronously — e.g. a
	// close, a shutdown, or a kernel call that didn't need to suspend. In
	// that case Completion is already populated and Key is meaningless.
	Inline     bool
	Completion Completion
	// Key is valid only when Inline is false.
	Key uint64
}

// Op is the capability set every operation variant (ReadAt, Send, Accept,
// ...) must expose to a Proactor: it can be asked to prepare itself for
// submission, to be cancelled, and — once a completion has arrived — to
// interpret the raw result into whatever form the caller expects
// (bytes transferred, an accepted fd, ...).
//
// Concrete op types live in internal/opset; Op here is the minimal
// interface the public Proactor contract is stated in terms of. An
// operation must not be moved after a successful Push that returned
// Pending — callers achieve this in Go by submitting a pointer and never
// touching the pointee themselves until the future resolves.
type Op interface {
	// Name identifies the op variant for error messages and metrics
	// (e.g. "ReadAt", "Accept").
	Name() string
}

// Proactor is the polymorphic driver abstraction backends implement:
// io_uring, IOCP, and the portable Poll fallback. See spec §4.1.
type Proactor interface {
	// Attach registers fd with the backend. Idempotent. On IOCP this
	// associates fd with the completion port; on IoUring/Poll it is a
	// no-op beyond a compatibility check. Returns ErrUnsupported if fd's
	// type is incompatible with this backend.
	Attach(fd int) error

	// Push submits one operation. The op must not be submitted twice.
	// Errors that belong to the operation itself (a bad fd, an invalid
	// buffer length) are delivered inline as part of PushResult.Completion,
	// never as a non-nil error return — the error return is reserved for
	// admission failures (e.g. a full ring that even a drain-and-retry
	// could not clear).
	Push(op Op) (PushResult, error)

	// Cancel requests cancellation of the operation identified by key.
	// Cancellation is advisory: eventually a completion for key will
	// arrive, with either the real result or a KindTimedOut error (the
	// reference's cancellation sentinel per spec §4.7). Calling Cancel
	// after the completion has already been observed is a no-op.
	Cancel(key uint64)

	// Poll blocks up to timeout waiting for at least one completion, then
	// drains all immediately-available completions into fn. A nil
	// timeout waits indefinitely; a zero timeout performs a non-blocking
	// drain. Returns ErrTimedOut if nothing arrived and timeout elapsed.
	Poll(timeout *time.Duration, fn func(Completion)) error

	// CreateBufferPool registers n fixed-size buffers of sz bytes each
	// and returns an opaque pool id.
	CreateBufferPool(n int, sz int) (uint32, error)
	// ReleaseBufferPool releases a pool created by CreateBufferPool.
	ReleaseBufferPool(id uint32) error

	// RegisterFd installs fd into the backend's fixed-file table (spec
	// §9's Open Question on direct-descriptor registration) and returns
	// its slot index, usable by ops that opt into IOSQE_FIXED_FILE.
	// Returns ErrUnsupported on backends with no such table (Poll, IOCP).
	RegisterFd(fd int) (uint32, error)
	// UnregisterFd releases a slot obtained from RegisterFd.
	UnregisterFd(idx uint32) error

	// CreateWaker returns a cross-thread-safe object whose Wake method
	// causes the next (or a currently blocked) Poll call to return
	// promptly.
	CreateWaker() (Waker, error)

	// Close releases all backend resources. Outstanding operations are
	// not guaranteed to complete after Close.
	Close() error
}

// Waker is a handle that can be signalled from any goroutine to unblock a
// Proactor.Poll call running on the runtime's owning goroutine.
type Waker interface {
	Wake() error
}

// RegisteredFd is a slot index into a Proactor's fixed-file table,
// obtained from Runtime.RegisterFd (spec §9's Open Question on
// direct-descriptor registration; compio's RegisteredFd). Only the
// IoUring backend currently has a fixed-file table — ops that want to
// exercise IOSQE_FIXED_FILE read Index off this handle explicitly; no
// op defaults to using it.
type RegisteredFd struct {
	Index uint32
}
