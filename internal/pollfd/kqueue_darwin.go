//go:build darwin

package pollfd

import (
	"time"

	"golang.org/x/sys/unix"
)

type kqueuePoller struct {
	kq  int
	buf []unix.Kevent_t
}

func newSysPoller() (sysPoller, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	unix.CloseOnExec(kq)
	return &kqueuePoller{kq: kq, buf: make([]unix.Kevent_t, 256)}, nil
}

func (p *kqueuePoller) changeOne(fd int, filter int16, flags uint16) error {
	kev := unix.Kevent_t{Ident: uint64(fd), Filter: filter, Flags: flags}
	_, err := unix.Kevent(p.kq, []unix.Kevent_t{kev}, nil, nil)
	return err
}

func (p *kqueuePoller) Add(fd int, readable, writable bool) error {
	if readable {
		if err := p.changeOne(fd, unix.EVFILT_READ, unix.EV_ADD|unix.EV_ENABLE); err != nil {
			return err
		}
	}
	if writable {
		if err := p.changeOne(fd, unix.EVFILT_WRITE, unix.EV_ADD|unix.EV_ENABLE); err != nil {
			return err
		}
	}
	return nil
}

// Modify reconciles the registered filter set for fd, deleting whichever
// of read/write is no longer wanted and adding whichever newly is — kqueue
// has no single combined-mask update the way epoll_ctl(MOD) does.
func (p *kqueuePoller) Modify(fd int, readable, writable bool) error {
	if !readable {
		p.changeOne(fd, unix.EVFILT_READ, unix.EV_DELETE)
	}
	if !writable {
		p.changeOne(fd, unix.EVFILT_WRITE, unix.EV_DELETE)
	}
	return p.Add(fd, readable, writable)
}

func (p *kqueuePoller) Remove(fd int) error {
	p.changeOne(fd, unix.EVFILT_READ, unix.EV_DELETE)
	p.changeOne(fd, unix.EVFILT_WRITE, unix.EV_DELETE)
	return nil
}

func (p *kqueuePoller) Wait(timeout *time.Duration) ([]readyFd, error) {
	var ts *unix.Timespec
	if timeout != nil {
		sec := int64(*timeout / time.Second)
		nsec := int64(*timeout % time.Second)
		ts = &unix.Timespec{Sec: sec, Nsec: nsec}
	}
	n, err := unix.Kevent(p.kq, nil, p.buf, ts)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, err
	}
	out := make([]readyFd, 0, n)
	for i := 0; i < n; i++ {
		kev := p.buf[i]
		r := readyFd{fd: int(kev.Ident), errored: kev.Flags&unix.EV_ERROR != 0}
		switch kev.Filter {
		case unix.EVFILT_READ:
			r.readable = true
		case unix.EVFILT_WRITE:
			r.writable = true
		}
		if kev.Flags&unix.EV_EOF != 0 {
			r.readable = true
			r.writable = true
			r.errored = true
		}
		out = append(out, r)
	}
	return out, nil
}

func (p *kqueuePoller) Close() error {
	return unix.Close(p.kq)
}

func newWakePipe() (read, write int, err error) {
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		return 0, 0, err
	}
	unix.SetNonblock(fds[0], true)
	unix.SetNonblock(fds[1], true)
	unix.CloseOnExec(fds[0])
	unix.CloseOnExec(fds[1])
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
