//go:build windows

// Blocking-fallback syscalls for Windows, grounded on golang.org/x/sys/windows
// the same way internal/iocp wraps overlapped I/O — fd here is a raw
// windows.Handle value carried in an int.
package opset

import (
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

const iosyncDatasync = 0 // unused on Windows; Sync always flushes fully.

func preadSyscall(fd int, buf []byte, offset uint64) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	h := windows.Handle(fd)
	var ov windows.Overlapped
	ov.Offset = uint32(offset)
	ov.OffsetHigh = uint32(offset >> 32)
	var done uint32
	err := windows.ReadFile(h, buf, &done, &ov)
	if err == windows.ERROR_HANDLE_EOF {
		return 0, nil
	}
	return int(done), err
}

func pwriteSyscall(fd int, buf []byte, offset uint64) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	h := windows.Handle(fd)
	var ov windows.Overlapped
	ov.Offset = uint32(offset)
	ov.OffsetHigh = uint32(offset >> 32)
	var done uint32
	err := windows.WriteFile(h, buf, &done, &ov)
	return int(done), err
}

func fsyncSyscall(fd int, metadata bool) (int, error) {
	return 0, windows.FlushFileBuffers(windows.Handle(fd))
}

func closeSyscall(fd int) (int, error) {
	return 0, windows.CloseHandle(windows.Handle(fd))
}

func isWouldBlock(err error) bool {
	return err == windows.WSAEWOULDBLOCK
}

// ws2_32 winsock entry points not wrapped by golang.org/x/sys/windows in
// raw-pointer form (it only exposes the Sockaddr-interface-based Accept/
// Connect), resolved the same way internal/iocp resolves ConnectEx/
// AcceptEx: a lazy DLL + cached proc.
var (
	ws2_32       = syscall.NewLazyDLL("ws2_32.dll")
	procAccept   = ws2_32.NewProc("accept")
	procConnect  = ws2_32.NewProc("connect")
)

const invalidSocket = ^uintptr(0)

func acceptSyscall(fd int, addr unsafe.Pointer, addrLen *uint32) (int, error) {
	r1, _, errno := procAccept.Call(uintptr(fd), uintptr(addr), uintptr(unsafe.Pointer(addrLen)))
	if r1 == invalidSocket {
		return 0, errno
	}
	return int(r1), nil
}

func connectSyscall(fd int, addr unsafe.Pointer, addrLen uint32) (int, error) {
	r1, _, errno := procConnect.Call(uintptr(fd), uintptr(addr), uintptr(addrLen))
	if r1 != 0 {
		return 0, errno
	}
	return 0, nil
}

func sendSyscall(fd int, buf []byte, flags int) (int, error) {
	return windows.Send(windows.Handle(fd), buf, flags)
}

func recvSyscall(fd int, buf []byte, flags int) (int, error) {
	return windows.Recv(windows.Handle(fd), buf, flags)
}

func sendmsgSyscall(fd int, msg *syscall.Msghdr, flags int) (int, error) {
	return 0, windows.WSAEOPNOTSUPP
}

func recvmsgSyscall(fd int, msg *syscall.Msghdr, flags int) (int, error) {
	return 0, windows.WSAEOPNOTSUPP
}

// buildUDPSegmentCmsg/parseUDPGROSegSize have no Windows equivalent
// wired here: sendmsgSyscall/recvmsgSyscall already report
// WSAEOPNOTSUPP for this syscall.Msghdr-based path on Windows, so
// SegSize can never actually reach the wire there.
func buildUDPSegmentCmsg(segSize uint16) []byte {
	return nil
}

func parseUDPGROSegSize(control []byte) (uint16, bool) {
	return 0, false
}

func shutdownSyscall(fd int, how int) (int, error) {
	return 0, windows.Shutdown(windows.Handle(fd), how)
}

func socketSyscall(domain, typ, protocol int) (int, error) {
	h, err := windows.Socket(domain, typ, protocol)
	return int(h), err
}

// openPidfd has no Windows equivalent; WaitProcess always goes through
// the KindEvent path there instead.
func openPidfd(pid int) (int, error) {
	return 0, windows.ERROR_NOT_SUPPORTED
}

func connectNamedPipeSyscall(handle int) (int, error) {
	ov := new(windows.Overlapped)
	err := windows.ConnectNamedPipe(windows.Handle(handle), ov)
	return 0, err
}

func disconnectNamedPipeSyscall(handle int) (int, error) {
	return 0, windows.DisconnectNamedPipe(windows.Handle(handle))
}

// waitProcessSyscall blocks until the process handle h signals, returning
// its exit code.
func waitProcessSyscall(h int) (int, error) {
	handle := windows.Handle(h)
	if _, err := windows.WaitForSingleObject(handle, windows.INFINITE); err != nil {
		return 0, err
	}
	var code uint32
	if err := windows.GetExitCodeProcess(handle, &code); err != nil {
		return 0, err
	}
	return int(code), nil
}

// preadvSyscall/pwritevSyscall/spliceSyscall have no Windows equivalent
// exercised here — ReadV/WriteV fall back to sequential ReadFile/WriteFile
// per iovec, and Splice is Linux-only (spec §4.7 platform extras).
func preadvSyscall(fd int, iovecs []syscall.Iovec, offset uint64) (int, error) {
	total := 0
	for _, iov := range iovecs {
		buf := unsafe.Slice(iov.Base, int(iov.Len))
		n, err := preadSyscall(fd, buf, offset+uint64(total))
		total += n
		if err != nil {
			return total, err
		}
		if n < len(buf) {
			break
		}
	}
	return total, nil
}

func pwritevSyscall(fd int, iovecs []syscall.Iovec, offset uint64) (int, error) {
	total := 0
	for _, iov := range iovecs {
		buf := unsafe.Slice(iov.Base, int(iov.Len))
		n, err := pwriteSyscall(fd, buf, offset+uint64(total))
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func openatSyscall(dirfd int, path *byte, flags int, mode uint32) (int, error) {
	return 0, windows.ERROR_NOT_SUPPORTED
}

func statxSyscall(dirfd int, path *byte, flags, mask int, statxbuf unsafe.Pointer) (int, error) {
	return 0, windows.ERROR_NOT_SUPPORTED
}

func spliceSyscall(fdIn int, offIn int64, fdOut int, offOut int64, nbytes uint32, flags uint32) (int, error) {
	return 0, windows.ERROR_NOT_SUPPORTED
}
