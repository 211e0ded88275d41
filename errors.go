package govio

import (
	"errors"
	"fmt"
)

// Kind classifies the errors a Proactor can surface, matching the
// cross-backend error table (spec §7).
type Kind int

const (
	// KindOSError preserves the raw OS error code.
	KindOSError Kind = iota
	// KindTimedOut means a poll deadline elapsed without completion, or a
	// cancelled op finished. io_uring's ECANCELED is mapped here too (see
	// resultFromErrno in internal/opset).
	KindTimedOut
	// KindInterrupted means transient backend state (ring busy, signal);
	// the caller should retry.
	KindInterrupted
	// KindWouldBlock only ever originates in the Poll backend and is
	// never surfaced to user tasks — the runtime hides it.
	KindWouldBlock
	// KindUnsupported means the op/opcode/fd type is not supported by the
	// selected backend.
	KindUnsupported
	// KindInvalidInput means a required parameter was out of range (e.g.
	// a buffer length exceeding math.MaxUint32 for a ring-mapped read).
	KindInvalidInput
	// KindConnectionReset means the peer closed the socket ungracefully.
	KindConnectionReset
	// KindEOF means a read/recv returned zero bytes; represented as a
	// successful Completion{N: 0}, not normally surfaced as an error, but
	// Kind still names it for callers that want to branch on it.
	KindEOF
)

func (k Kind) String() string {
	switch k {
	case KindOSError:
		return "os-error"
	case KindTimedOut:
		return "timed-out"
	case KindInterrupted:
		return "interrupted"
	case KindWouldBlock:
		return "would-block"
	case KindUnsupported:
		return "unsupported"
	case KindInvalidInput:
		return "invalid-input"
	case KindConnectionReset:
		return "connection-reset"
	case KindEOF:
		return "eof"
	default:
		return "unknown"
	}
}

// Error is the structured error type surfaced by a Proactor or Runtime. It
// tags a Kind with the operation, key, and backend it came from, following
// go-ublk's Error{Op, DevID, Queue, Code, Errno, Msg, Inner} pattern
// (ehrlich-b-go-ublk/errors.go) generalized from ublk-specific fields to
// govio's op/key/backend fields, and adapted from ygrebnov-workers's
// TaskMetaError/taskTaggedError tagging pattern
// (ygrebnov-workers/error_tagging.go) for the Unwrap/Format behavior.
type Error struct {
	// Op names the operation that failed (e.g. "ReadAt", "Accept").
	Op string
	// Key is the raw slab key of the failing operation, 0 if not
	// applicable (e.g. a push-time validation error before a key was
	// allocated).
	Key uint64
	// Backend names which backend produced the error ("iouring", "iocp",
	// "poll").
	Backend string
	// Kind classifies the error per the table above.
	Kind Kind
	// Errno is the raw OS error, if any.
	Errno error
	// Inner is the wrapped cause, if any, distinct from Errno.
	Inner error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Errno != nil {
		return fmt.Sprintf("govio: %s: %s (op=%s key=%d backend=%s): %v", e.Kind, msg, e.Op, e.Key, e.Backend, e.Errno)
	}
	return fmt.Sprintf("govio: %s (op=%s key=%d backend=%s)", msg, e.Op, e.Key, e.Backend)
}

func (e *Error) Unwrap() error {
	if e.Errno != nil {
		return e.Errno
	}
	return e.Inner
}

// Is supports errors.Is comparisons against a sentinel *Error carrying only
// a Kind, mirroring go-ublk's Is() support for its UblkErrorCode sentinel.
func (e *Error) Is(target error) bool {
	var te *Error
	if errors.As(target, &te) {
		return e.Kind == te.Kind
	}
	return false
}

// NewError constructs an *Error, the normal way backends report a failed
// operation result (never as a Push failure — see Proactor.Push's
// contract).
func NewError(op string, key uint64, backend string, kind Kind, errno error) *Error {
	return &Error{Op: op, Key: key, Backend: backend, Kind: kind, Errno: errno}
}

// Sentinel errors for errors.Is comparisons that don't need full context.
var (
	ErrTimedOut     = &Error{Kind: KindTimedOut}
	ErrInterrupted  = &Error{Kind: KindInterrupted}
	ErrWouldBlock   = &Error{Kind: KindWouldBlock}
	ErrUnsupported  = &Error{Kind: KindUnsupported}
	ErrInvalidInput = &Error{Kind: KindInvalidInput}
)

// ErrDriverClosed reports a backend that has been closed (the io_uring
// driver translates its ring's ErrRingClosed into it); ErrQueueFull reports
// a submission refused because the ring or the blocking pool is full. Both
// live here since callers compose against govio.Proactor without importing
// a backend package directly.
var (
	ErrDriverClosed = errors.New("govio: driver closed")
	ErrQueueFull    = errors.New("govio: submission queue full")
)
