package opset

import (
	"syscall"
	"unsafe"

	"github.com/behrlich/govio"
	"github.com/behrlich/govio/internal/iouring/sys"
)

// sizeofSockaddrAny is large enough for any sockaddr_storage /
// SOCKADDR_STORAGE the kernel could write an accepted/connected peer
// address into, on every supported backend.
const sizeofSockaddrAny = 128

// Accept accepts one connection on a listening socket fd — IORING_OP_ACCEPT
// / AcceptEx / accept(2). The accepted peer address is written into an
// internally owned buffer; callers that need it can read RemoteAddr()
// after the op completes.
type Accept struct {
	baseOp
	Fd        int
	Multishot bool

	addrBuf [sizeofSockaddrAny]byte
	addrLen uint32
}

func NewAccept(fd int) *Accept {
	a := &Accept{baseOp: baseOp{name: "Accept"}, Fd: fd}
	a.addrLen = sizeofSockaddrAny
	return a
}

// RemoteAddr returns the raw sockaddr bytes written by the kernel, sized
// to the address actually returned.
func (op *Accept) RemoteAddr() []byte {
	n := op.addrLen
	if n > sizeofSockaddrAny {
		n = sizeofSockaddrAny
	}
	return op.addrBuf[:n]
}

func (op *Accept) Opcode() sys.Op { return sys.IORING_OP_ACCEPT }

func (op *Accept) Submit(s IoUringSubmitter, userData uint64) error {
	op.addrLen = sizeofSockaddrAny
	return s.PrepAccept(op.Fd, unsafe.Pointer(&op.addrBuf[0]), &op.addrLen, 0, userData)
}

func (op *Accept) RunBlocking() (int, error) {
	op.addrLen = sizeofSockaddrAny
	return acceptSyscall(op.Fd, unsafe.Pointer(&op.addrBuf[0]), &op.addrLen)
}

func (op *Accept) InterpretResult(res int32, flags uint32) (int, error) {
	return resultFromErrno(res)
}

func (op *Accept) PreSubmit() (Decision, error) {
	n, err := op.RunBlocking()
	if isWouldBlock(err) {
		return DecisionWaitReadable(op.Fd), nil
	}
	return DecisionCompleted(n, err), nil
}

func (op *Accept) OnReadiness() (int, bool, error) {
	n, err := op.RunBlocking()
	if isWouldBlock(err) {
		return 0, false, nil
	}
	return n, true, err
}

// Connect initiates a connection on fd to the peer address Addr
// (raw sockaddr wire bytes) — IORING_OP_CONNECT / ConnectEx / connect(2).
type Connect struct {
	baseOp
	Fd   int
	Addr []byte
}

func NewConnect(fd int, addr []byte) *Connect {
	return &Connect{baseOp: baseOp{name: "Connect"}, Fd: fd, Addr: addr}
}

func (op *Connect) Opcode() sys.Op { return sys.IORING_OP_CONNECT }

func (op *Connect) Submit(s IoUringSubmitter, userData uint64) error {
	return s.PrepConnect(op.Fd, unsafe.Pointer(&op.Addr[0]), uint32(len(op.Addr)), userData)
}

func (op *Connect) RunBlocking() (int, error) {
	return connectSyscall(op.Fd, unsafe.Pointer(&op.Addr[0]), uint32(len(op.Addr)))
}

func (op *Connect) InterpretResult(res int32, flags uint32) (int, error) {
	return resultFromErrno(res)
}

func (op *Connect) PreSubmit() (Decision, error) {
	n, err := op.RunBlocking()
	if isWouldBlock(err) || err == syscall.EINPROGRESS {
		return DecisionWaitWritable(op.Fd), nil
	}
	return DecisionCompleted(n, err), nil
}

func (op *Connect) OnReadiness() (int, bool, error) {
	return 0, true, nil
}

// Send writes buf's initialized bytes to a connected socket fd.
type Send struct {
	baseOp
	Fd    int
	Buf   govio.Buffer
	Flags int
}

func NewSend(fd int, buf govio.Buffer, flags int) *Send {
	return &Send{baseOp: baseOp{name: "Send"}, Fd: fd, Buf: buf, Flags: flags}
}

func (op *Send) Opcode() sys.Op { return sys.IORING_OP_SEND }

func (op *Send) Submit(s IoUringSubmitter, userData uint64) error {
	return s.PrepSend(op.Fd, op.Buf.Bytes(), op.Flags, userData)
}

func (op *Send) RunBlocking() (int, error) {
	return sendSyscall(op.Fd, op.Buf.Bytes(), op.Flags)
}

func (op *Send) InterpretResult(res int32, flags uint32) (int, error) {
	return resultFromErrno(res)
}

func (op *Send) PreSubmit() (Decision, error) {
	n, err := op.RunBlocking()
	if isWouldBlock(err) {
		return DecisionWaitWritable(op.Fd), nil
	}
	return DecisionCompleted(n, err), nil
}

func (op *Send) OnReadiness() (int, bool, error) {
	n, err := op.RunBlocking()
	if isWouldBlock(err) {
		return 0, false, nil
	}
	return n, true, err
}

// Recv reads into buf's free capacity from a connected socket fd.
type Recv struct {
	baseOp
	Fd    int
	Buf   govio.MutableBuffer
	Flags int
}

func NewRecv(fd int, buf govio.MutableBuffer, flags int) *Recv {
	return &Recv{baseOp: baseOp{name: "Recv"}, Fd: fd, Buf: buf, Flags: flags}
}

func (op *Recv) Opcode() sys.Op { return sys.IORING_OP_RECV }

func (op *Recv) Submit(s IoUringSubmitter, userData uint64) error {
	return s.PrepRecv(op.Fd, op.Buf.FreeBytes(), op.Flags, userData)
}

func (op *Recv) RunBlocking() (int, error) {
	n, err := recvSyscall(op.Fd, op.Buf.FreeBytes(), op.Flags)
	if err == nil {
		op.Buf.SetInitialized(n)
	}
	return n, err
}

func (op *Recv) InterpretResult(res int32, flags uint32) (int, error) {
	n, err := resultFromErrno(res)
	if err == nil {
		op.Buf.SetInitialized(n)
	}
	return n, err
}

func (op *Recv) PreSubmit() (Decision, error) {
	n, err := op.RunBlocking()
	if isWouldBlock(err) {
		return DecisionWaitReadable(op.Fd), nil
	}
	return DecisionCompleted(n, err), nil
}

func (op *Recv) OnReadiness() (int, bool, error) {
	n, err := op.RunBlocking()
	if isWouldBlock(err) {
		return 0, false, nil
	}
	return n, true, err
}

// RecvProvided is Recv's ring-mapped-buffer-pool variant (spec §4.2): it
// carries no caller buffer, only a length ceiling and the group id a
// prior internal/bufring.Pool was registered under. The kernel picks a
// buffer from that group itself; the selected buffer id is reported back
// in the completion's Flags, decoded via GetBufID on the io_uring side.
// It is IoUring-only by construction — there is no portable degradation,
// since "the kernel picks the buffer" has no meaning on a readiness-based
// backend, so RunBlocking always fails rather than pretending to
// support it.
type RecvProvided struct {
	baseOp
	Fd       int
	BufGroup uint16
	Length   int
	Flags    int
}

func NewRecvProvided(fd int, bufGroup uint16, length int, flags int) *RecvProvided {
	return &RecvProvided{baseOp: baseOp{name: "RecvProvided"}, Fd: fd, BufGroup: bufGroup, Length: length, Flags: flags}
}

func (op *RecvProvided) Opcode() sys.Op { return sys.IORING_OP_RECV }

func (op *RecvProvided) Submit(s IoUringSubmitter, userData uint64) error {
	return s.PrepRecvProvided(op.Fd, op.BufGroup, op.Length, op.Flags, userData)
}

func (op *RecvProvided) RunBlocking() (int, error) {
	return 0, govio.NewError(op.Name(), 0, "opset", govio.KindUnsupported, nil)
}

func (op *RecvProvided) InterpretResult(res int32, flags uint32) (int, error) {
	return resultFromErrno(res)
}

// SendMsg sends msg (with optional ancillary data / multiple iovecs, and
// a segment size for UDP GSO — spec SUPPLEMENTED FEATURES) to fd. When
// SegSize is non-zero, a SOL_UDP/UDP_SEGMENT ancillary message is spliced
// onto Msg's control data before submission, telling the kernel to slice
// the payload into SegSize-byte datagrams (UDP GSO).
type SendMsg struct {
	baseOp
	Fd      int
	Msg     *syscall.Msghdr
	Flags   int
	SegSize uint16 // 0 disables UDP GSO

	segCmsg []byte
}

func NewSendMsg(fd int, msg *syscall.Msghdr, flags int) *SendMsg {
	return &SendMsg{baseOp: baseOp{name: "SendMsg"}, Fd: fd, Msg: msg, Flags: flags}
}

func (op *SendMsg) Opcode() sys.Op { return sys.IORING_OP_SENDMSG }

// applySegSize splices a UDP_SEGMENT cmsg onto op.Msg's control data,
// replacing whatever was there — callers combining GSO with other
// ancillary data should fold it into a single Msg.Control themselves
// before setting SegSize.
func (op *SendMsg) applySegSize() {
	if op.SegSize == 0 || op.Msg == nil {
		return
	}
	if op.segCmsg == nil {
		op.segCmsg = buildUDPSegmentCmsg(op.SegSize)
	}
	if len(op.segCmsg) == 0 {
		return
	}
	op.Msg.Control = &op.segCmsg[0]
	op.Msg.SetControllen(len(op.segCmsg))
}

func (op *SendMsg) Submit(s IoUringSubmitter, userData uint64) error {
	op.applySegSize()
	return s.PrepSendmsg(op.Fd, op.Msg, op.Flags, userData)
}

func (op *SendMsg) RunBlocking() (int, error) {
	op.applySegSize()
	return sendmsgSyscall(op.Fd, op.Msg, op.Flags)
}

func (op *SendMsg) InterpretResult(res int32, flags uint32) (int, error) {
	return resultFromErrno(res)
}

func (op *SendMsg) PreSubmit() (Decision, error) {
	n, err := op.RunBlocking()
	if isWouldBlock(err) {
		return DecisionWaitWritable(op.Fd), nil
	}
	return DecisionCompleted(n, err), nil
}

func (op *SendMsg) OnReadiness() (int, bool, error) {
	n, err := op.RunBlocking()
	if isWouldBlock(err) {
		return 0, false, nil
	}
	return n, true, err
}

// RecvMsg receives into msg, surfacing GRO segment size via SegSize once
// interpreted from ancillary control data (spec SUPPLEMENTED FEATURES).
// Msg.Control must point at a buffer large enough to hold the kernel's
// SOL_UDP/UDP_GRO cmsg (unix.CmsgSpace(2) bytes) for SegSize to populate.
type RecvMsg struct {
	baseOp
	Fd      int
	Msg     *syscall.Msghdr
	Flags   int
	SegSize uint16
}

func NewRecvMsg(fd int, msg *syscall.Msghdr, flags int) *RecvMsg {
	return &RecvMsg{baseOp: baseOp{name: "RecvMsg"}, Fd: fd, Msg: msg, Flags: flags}
}

func (op *RecvMsg) Opcode() sys.Op { return sys.IORING_OP_RECVMSG }

func (op *RecvMsg) Submit(s IoUringSubmitter, userData uint64) error {
	return s.PrepRecvmsg(op.Fd, op.Msg, op.Flags, userData)
}

func (op *RecvMsg) RunBlocking() (int, error) {
	n, err := recvmsgSyscall(op.Fd, op.Msg, op.Flags)
	if err == nil {
		op.applyGROSegSize()
	}
	return n, err
}

func (op *RecvMsg) InterpretResult(res int32, flags uint32) (int, error) {
	n, err := resultFromErrno(res)
	if err == nil {
		op.applyGROSegSize()
	}
	return n, err
}

// applyGROSegSize parses op.Msg's control data (filled in by the kernel
// alongside the completed recvmsg) for a SOL_UDP/UDP_GRO cmsg, setting
// SegSize when the kernel coalesced multiple datagrams into this one.
func (op *RecvMsg) applyGROSegSize() {
	if op.Msg == nil || op.Msg.Control == nil || op.Msg.Controllen == 0 {
		return
	}
	control := unsafe.Slice(op.Msg.Control, int(op.Msg.Controllen))
	if seg, ok := parseUDPGROSegSize(control); ok {
		op.SegSize = seg
	}
}

func (op *RecvMsg) PreSubmit() (Decision, error) {
	n, err := op.RunBlocking()
	if isWouldBlock(err) {
		return DecisionWaitReadable(op.Fd), nil
	}
	return DecisionCompleted(n, err), nil
}

func (op *RecvMsg) OnReadiness() (int, bool, error) {
	n, err := op.RunBlocking()
	if isWouldBlock(err) {
		return 0, false, nil
	}
	return n, true, err
}

// How selects which half(s) of a connection Shutdown closes.
type How = int

const (
	ShutRD   How = 0
	ShutWR   How = 1
	ShutRDWR How = 2
)

// Shutdown shuts down fd's read and/or write half — IORING_OP_SHUTDOWN /
// shutdown(2) / Winsock shutdown.
type Shutdown struct {
	baseOp
	Fd  int
	How How
}

func NewShutdown(fd int, how How) *Shutdown {
	return &Shutdown{baseOp: baseOp{name: "Shutdown"}, Fd: fd, How: how}
}

func (op *Shutdown) Opcode() sys.Op { return sys.IORING_OP_SHUTDOWN }

func (op *Shutdown) Submit(s IoUringSubmitter, userData uint64) error {
	return s.PrepShutdown(op.Fd, op.How, userData)
}

func (op *Shutdown) RunBlocking() (int, error) {
	return shutdownSyscall(op.Fd, op.How)
}

func (op *Shutdown) InterpretResult(res int32, flags uint32) (int, error) {
	return resultFromErrno(res)
}

func (op *Shutdown) PreSubmit() (Decision, error) {
	n, err := op.RunBlocking()
	return DecisionCompleted(n, err), nil
}

func (op *Shutdown) OnReadiness() (int, bool, error) {
	return 0, true, nil
}

// Socket creates a new socket fd — IORING_OP_SOCKET / WSASocket /
// socket(2).
type Socket struct {
	baseOp
	Domain, Type, Protocol int
}

func NewSocket(domain, typ, protocol int) *Socket {
	return &Socket{baseOp: baseOp{name: "Socket"}, Domain: domain, Type: typ, Protocol: protocol}
}

func (op *Socket) Opcode() sys.Op { return sys.IORING_OP_SOCKET }

func (op *Socket) Submit(s IoUringSubmitter, userData uint64) error {
	return s.PrepSocket(op.Domain, op.Type, op.Protocol, userData)
}

func (op *Socket) RunBlocking() (int, error) {
	return socketSyscall(op.Domain, op.Type, op.Protocol)
}

func (op *Socket) InterpretResult(res int32, flags uint32) (int, error) {
	return resultFromErrno(res)
}

func (op *Socket) PreSubmit() (Decision, error) {
	n, err := op.RunBlocking()
	return DecisionCompleted(n, err), nil
}

func (op *Socket) OnReadiness() (int, bool, error) {
	return 0, true, nil
}
