//go:build unix

// Blocking-fallback syscalls shared by every op's RunBlocking/PreSubmit
// method on Linux/BSD/Darwin, grounded on golang.org/x/sys/unix the same
// way the teacher's sys package wraps raw io_uring syscalls — here for
// the plain read/write/fsync/close path the Poll backend (and the
// io_uring opcode-unsupported fallback) dispatches to the thread pool.
package opset

import (
	"encoding/binary"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

const iosyncDatasync = 1 // IORING_FSYNC_DATASYNC

func preadSyscall(fd int, buf []byte, offset uint64) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	n, err := unix.Pread(fd, buf, int64(offset))
	return n, err
}

func pwriteSyscall(fd int, buf []byte, offset uint64) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	n, err := unix.Pwrite(fd, buf, int64(offset))
	return n, err
}

func fsyncSyscall(fd int, metadata bool) (int, error) {
	var err error
	if metadata {
		err = unix.Fsync(fd)
	} else {
		err = unix.Fdatasync(fd)
	}
	return 0, err
}

func closeSyscall(fd int) (int, error) {
	return 0, unix.Close(fd)
}

func isWouldBlock(err error) bool {
	return err == unix.EAGAIN || err == unix.EWOULDBLOCK
}

func acceptSyscall(fd int, addr unsafe.Pointer, addrLen *uint32) (int, error) {
	nfd, _, errno := syscall.Syscall6(syscall.SYS_ACCEPT4, uintptr(fd), uintptr(addr), uintptr(unsafe.Pointer(addrLen)), unix.SOCK_CLOEXEC, 0, 0)
	if errno != 0 {
		return 0, errno
	}
	return int(nfd), nil
}

func connectSyscall(fd int, addr unsafe.Pointer, addrLen uint32) (int, error) {
	_, _, errno := syscall.Syscall(syscall.SYS_CONNECT, uintptr(fd), uintptr(addr), uintptr(addrLen))
	if errno != 0 {
		return 0, errno
	}
	return 0, nil
}

func sendSyscall(fd int, buf []byte, flags int) (int, error) {
	n, err := unix.Send(fd, buf, flags)
	return n, err
}

func recvSyscall(fd int, buf []byte, flags int) (int, error) {
	n, _, err := unix.Recvfrom(fd, buf, flags)
	return n, err
}

// buildUDPSegmentCmsg encodes a SOL_UDP/UDP_SEGMENT ancillary message
// carrying segSize, the control data the kernel's GSO path reads to
// split a single sendmsg into segSize-byte UDP datagrams.
func buildUDPSegmentCmsg(segSize uint16) []byte {
	b := make([]byte, unix.CmsgSpace(2))
	hdr := (*unix.Cmsghdr)(unsafe.Pointer(&b[0]))
	hdr.Level = unix.SOL_UDP
	hdr.Type = unix.UDP_SEGMENT
	hdr.SetLen(unix.CmsgLen(2))
	binary.NativeEndian.PutUint16(b[unix.CmsgLen(0):], segSize)
	return b
}

// parseUDPGROSegSize scans control for a SOL_UDP/UDP_GRO ancillary
// message and decodes the segment size the kernel's GRO coalescing
// reported for the datagram just received.
func parseUDPGROSegSize(control []byte) (uint16, bool) {
	msgs, err := unix.ParseSocketControlMessage(control)
	if err != nil {
		return 0, false
	}
	for _, m := range msgs {
		if m.Header.Level == unix.SOL_UDP && m.Header.Type == unix.UDP_GRO && len(m.Data) >= 2 {
			return binary.NativeEndian.Uint16(m.Data), true
		}
	}
	return 0, false
}

func sendmsgSyscall(fd int, msg *syscall.Msghdr, flags int) (int, error) {
	n, _, errno := syscall.Syscall(syscall.SYS_SENDMSG, uintptr(fd), uintptr(unsafe.Pointer(msg)), uintptr(flags))
	if errno != 0 {
		return 0, errno
	}
	return int(n), nil
}

func recvmsgSyscall(fd int, msg *syscall.Msghdr, flags int) (int, error) {
	n, _, errno := syscall.Syscall(syscall.SYS_RECVMSG, uintptr(fd), uintptr(unsafe.Pointer(msg)), uintptr(flags))
	if errno != 0 {
		return 0, errno
	}
	return int(n), nil
}

func shutdownSyscall(fd int, how int) (int, error) {
	return 0, unix.Shutdown(fd, how)
}

func socketSyscall(domain, typ, protocol int) (int, error) {
	fd, err := unix.Socket(domain, typ, protocol)
	return fd, err
}

// waitProcessSyscall blocks until pid exits, returning its exit code.
func waitProcessSyscall(pid int) (int, error) {
	var ws unix.WaitStatus
	_, err := unix.Wait4(pid, &ws, 0, nil)
	if err != nil {
		return 0, err
	}
	return ws.ExitStatus(), nil
}

// openPidfd opens a pollable pidfd for pid (Linux 5.3+), for
// WaitProcess.PreSubmit. pollfd.Driver checks ForcedBlocking before
// PreSubmit, so WaitProcess reaches the thread pool without calling it.
// Returns the raw errno (e.g. ENOSYS) where pidfd_open is unavailable.
func openPidfd(pid int) (int, error) {
	fd, _, errno := syscall.Syscall(unix.SYS_PIDFD_OPEN, uintptr(pid), 0, 0)
	if errno != 0 {
		return 0, errno
	}
	return int(fd), nil
}

// connectNamedPipeSyscall has no Unix equivalent; named pipes are a
// Windows-only transport (spec SUPPLEMENTED FEATURES).
func connectNamedPipeSyscall(handle int) (int, error) {
	return 0, syscall.ENOSYS
}

// disconnectNamedPipeSyscall has no Unix equivalent either.
func disconnectNamedPipeSyscall(handle int) (int, error) {
	return 0, syscall.ENOSYS
}

func preadvSyscall(fd int, iovecs []syscall.Iovec, offset uint64) (int, error) {
	if len(iovecs) == 0 {
		return 0, nil
	}
	n, _, errno := syscall.Syscall6(syscall.SYS_PREADV, uintptr(fd), uintptr(unsafe.Pointer(&iovecs[0])), uintptr(len(iovecs)), uintptr(offset), uintptr(offset>>32), 0)
	if errno != 0 {
		return 0, errno
	}
	return int(n), nil
}

func pwritevSyscall(fd int, iovecs []syscall.Iovec, offset uint64) (int, error) {
	if len(iovecs) == 0 {
		return 0, nil
	}
	n, _, errno := syscall.Syscall6(syscall.SYS_PWRITEV, uintptr(fd), uintptr(unsafe.Pointer(&iovecs[0])), uintptr(len(iovecs)), uintptr(offset), uintptr(offset>>32), 0)
	if errno != 0 {
		return 0, errno
	}
	return int(n), nil
}

func openatSyscall(dirfd int, path *byte, flags int, mode uint32) (int, error) {
	fd, err := unix.Openat(dirfd, bytePtrToString(path), flags, mode)
	return fd, err
}

func statxSyscall(dirfd int, path *byte, flags, mask int, statxbuf unsafe.Pointer) (int, error) {
	_, _, errno := syscall.Syscall6(unix.SYS_STATX, uintptr(dirfd), uintptr(unsafe.Pointer(path)), uintptr(flags), uintptr(mask), uintptr(statxbuf), 0)
	if errno != 0 {
		return 0, errno
	}
	return 0, nil
}

func spliceSyscall(fdIn int, offIn int64, fdOut int, offOut int64, nbytes uint32, flags uint32) (int, error) {
	var pOffIn, pOffOut *int64
	if offIn >= 0 {
		pOffIn = &offIn
	}
	if offOut >= 0 {
		pOffOut = &offOut
	}
	n, _, errno := syscall.Syscall6(unix.SYS_SPLICE, uintptr(fdIn), uintptr(unsafe.Pointer(pOffIn)), uintptr(fdOut), uintptr(unsafe.Pointer(pOffOut)), uintptr(nbytes), uintptr(flags))
	if errno != 0 {
		return 0, errno
	}
	return int(n), nil
}

// bytePtrToString converts a NUL-terminated *byte (the wire form
// PrepOpenat/PrepStatx already take) back to a Go string for the unix
// package's string-taking Openat wrapper.
func bytePtrToString(p *byte) string {
	if p == nil {
		return ""
	}
	n := 0
	for {
		b := *(*byte)(unsafe.Pointer(uintptr(unsafe.Pointer(p)) + uintptr(n)))
		if b == 0 {
			break
		}
		n++
	}
	return string(unsafe.Slice(p, n))
}
