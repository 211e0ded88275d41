//go:build linux

package pollfd

import (
	"time"

	"golang.org/x/sys/unix"
)

type epollPoller struct {
	epfd int
	buf  []unix.EpollEvent
}

func newSysPoller() (sysPoller, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &epollPoller{epfd: fd, buf: make([]unix.EpollEvent, 256)}, nil
}

func epollMask(readable, writable bool) uint32 {
	var mask uint32
	if readable {
		mask |= unix.EPOLLIN
	}
	if writable {
		mask |= unix.EPOLLOUT
	}
	return mask
}

func (p *epollPoller) Add(fd int, readable, writable bool) error {
	ev := unix.EpollEvent{Events: epollMask(readable, writable), Fd: int32(fd)}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev)
}

func (p *epollPoller) Modify(fd int, readable, writable bool) error {
	ev := unix.EpollEvent{Events: epollMask(readable, writable), Fd: int32(fd)}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &ev)
}

func (p *epollPoller) Remove(fd int) error {
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

func (p *epollPoller) Wait(timeout *time.Duration) ([]readyFd, error) {
	ms := -1
	if timeout != nil {
		ms = int(timeout.Milliseconds())
	}
	n, err := unix.EpollWait(p.epfd, p.buf, ms)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, err
	}
	out := make([]readyFd, 0, n)
	for i := 0; i < n; i++ {
		ev := p.buf[i]
		out = append(out, readyFd{
			fd:       int(ev.Fd),
			readable: ev.Events&(unix.EPOLLIN|unix.EPOLLHUP|unix.EPOLLERR) != 0,
			writable: ev.Events&(unix.EPOLLOUT|unix.EPOLLHUP|unix.EPOLLERR) != 0,
			errored:  ev.Events&unix.EPOLLERR != 0,
		})
	}
	return out, nil
}

func (p *epollPoller) Close() error {
	return unix.Close(p.epfd)
}

func newWakePipe() (read, write int, err error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_CLOEXEC|unix.O_NONBLOCK); err != nil {
		return 0, 0, err
	}
	return fds[0], fds[1], nil
}

func writeWakeByte(fd int) (int, error) {
	return unix.Write(fd, []byte{1})
}

func drainWakePipe(fd int) {
	var buf [64]byte
	for {
		n, err := unix.Read(fd, buf[:])
		if n <= 0 || err != nil {
			return
		}
	}
}

func setNonblock(fd int) error {
	return unix.SetNonblock(fd, true)
}
