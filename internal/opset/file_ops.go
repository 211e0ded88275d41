package opset

import (
	"github.com/behrlich/govio"
	"github.com/behrlich/govio/internal/iouring/sys"
)

// ReadAt reads into buf starting at offset (spec §3.1). Submitted via
// IORING_OP_READ / ReadFile+OVERLAPPED.Offset / read(2)+EAGAIN retry
// depending on backend.
type ReadAt struct {
	baseOp
	Fd     int
	Buf    govio.MutableBuffer
	Offset uint64
}

// NewReadAt builds a ReadAt op over buf's free (uninitialized) capacity.
func NewReadAt(fd int, buf govio.MutableBuffer, offset uint64) *ReadAt {
	return &ReadAt{baseOp: baseOp{name: "ReadAt"}, Fd: fd, Buf: buf, Offset: offset}
}

func (op *ReadAt) Opcode() sys.Op { return sys.IORING_OP_READ }

func (op *ReadAt) Submit(s IoUringSubmitter, userData uint64) error {
	return s.PrepRead(op.Fd, op.Buf.FreeBytes(), op.Offset, userData)
}

func (op *ReadAt) RunBlocking() (int, error) {
	n, err := preadSyscall(op.Fd, op.Buf.FreeBytes(), op.Offset)
	if err == nil {
		op.Buf.SetInitialized(n)
	}
	return n, err
}

func (op *ReadAt) InterpretResult(res int32, flags uint32) (int, error) {
	n, err := resultFromErrno(res)
	if err == nil {
		op.Buf.SetInitialized(n)
	}
	return n, err
}

func (op *ReadAt) PreSubmit() (Decision, error) {
	n, err := preadSyscall(op.Fd, op.Buf.FreeBytes(), op.Offset)
	if isWouldBlock(err) {
		return DecisionWaitReadable(op.Fd), nil
	}
	if err == nil {
		op.Buf.SetInitialized(n)
	}
	return DecisionCompleted(n, err), nil
}

func (op *ReadAt) OnReadiness() (int, bool, error) {
	n, err := preadSyscall(op.Fd, op.Buf.FreeBytes(), op.Offset)
	if isWouldBlock(err) {
		return 0, false, nil
	}
	if err == nil {
		op.Buf.SetInitialized(n)
	}
	return n, true, err
}

// WriteAt writes buf's initialized bytes starting at offset.
type WriteAt struct {
	baseOp
	Fd     int
	Buf    govio.Buffer
	Offset uint64
}

func NewWriteAt(fd int, buf govio.Buffer, offset uint64) *WriteAt {
	return &WriteAt{baseOp: baseOp{name: "WriteAt"}, Fd: fd, Buf: buf, Offset: offset}
}

func (op *WriteAt) Opcode() sys.Op { return sys.IORING_OP_WRITE }

func (op *WriteAt) Submit(s IoUringSubmitter, userData uint64) error {
	return s.PrepWrite(op.Fd, op.Buf.Bytes(), op.Offset, userData)
}

func (op *WriteAt) RunBlocking() (int, error) {
	return pwriteSyscall(op.Fd, op.Buf.Bytes(), op.Offset)
}

func (op *WriteAt) InterpretResult(res int32, flags uint32) (int, error) {
	return resultFromErrno(res)
}

func (op *WriteAt) PreSubmit() (Decision, error) {
	n, err := pwriteSyscall(op.Fd, op.Buf.Bytes(), op.Offset)
	if isWouldBlock(err) {
		return DecisionWaitWritable(op.Fd), nil
	}
	return DecisionCompleted(n, err), nil
}

func (op *WriteAt) OnReadiness() (int, bool, error) {
	n, err := pwriteSyscall(op.Fd, op.Buf.Bytes(), op.Offset)
	if isWouldBlock(err) {
		return 0, false, nil
	}
	return n, true, err
}

// Sync flushes fd's data (and metadata, if Metadata is set) to stable
// storage — IORING_OP_FSYNC / FlushFileBuffers / fsync(2)+fdatasync(2).
type Sync struct {
	baseOp
	Fd       int
	Metadata bool
}

func NewSync(fd int, metadata bool) *Sync {
	return &Sync{baseOp: baseOp{name: "Sync"}, Fd: fd, Metadata: metadata}
}

func (op *Sync) Opcode() sys.Op { return sys.IORING_OP_FSYNC }

func (op *Sync) Submit(s IoUringSubmitter, userData uint64) error {
	var flags uint32
	if !op.Metadata {
		flags = iosyncDatasync
	}
	return s.PrepFsync(op.Fd, flags, userData)
}

func (op *Sync) RunBlocking() (int, error) {
	return fsyncSyscall(op.Fd, op.Metadata)
}

func (op *Sync) InterpretResult(res int32, flags uint32) (int, error) {
	return resultFromErrno(res)
}

func (op *Sync) PreSubmit() (Decision, error) {
	n, err := fsyncSyscall(op.Fd, op.Metadata)
	return DecisionCompleted(n, err), nil
}

func (op *Sync) OnReadiness() (int, bool, error) {
	return 0, true, nil
}

// Close closes fd — IORING_OP_CLOSE / CloseHandle / close(2). Closes are
// always treated as inline-completing by the runtime (spec §4.7), but the
// op is still expressed generically so the Poll/IOCP backends can share
// the same submission path as everything else.
type Close struct {
	baseOp
	Fd int
}

func NewClose(fd int) *Close {
	return &Close{baseOp: baseOp{name: "Close"}, Fd: fd}
}

func (op *Close) Opcode() sys.Op { return sys.IORING_OP_CLOSE }

func (op *Close) Submit(s IoUringSubmitter, userData uint64) error {
	return s.PrepClose(op.Fd, userData)
}

func (op *Close) RunBlocking() (int, error) {
	return closeSyscall(op.Fd)
}

func (op *Close) InterpretResult(res int32, flags uint32) (int, error) {
	return resultFromErrno(res)
}

func (op *Close) PreSubmit() (Decision, error) {
	n, err := closeSyscall(op.Fd)
	return DecisionCompleted(n, err), nil
}

func (op *Close) OnReadiness() (int, bool, error) {
	return 0, true, nil
}
