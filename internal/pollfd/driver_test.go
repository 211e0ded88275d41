//go:build linux || darwin

package pollfd

import (
	"syscall"
	"testing"
	"time"

	"github.com/behrlich/govio"
	"github.com/behrlich/govio/internal/govlog"
	"github.com/behrlich/govio/internal/opset"
)

func newTestDriver(t *testing.T) *Driver {
	t.Helper()
	d, err := NewDriver(govio.DriverConfig{ThreadPoolLimit: 4}, govlog.Default())
	if err != nil {
		t.Fatalf("NewDriver() error = %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func waitForCompletion(t *testing.T, d *Driver) govio.Completion {
	t.Helper()
	var got *govio.Completion
	timeout := 2 * time.Second
	if err := d.Poll(&timeout, func(c govio.Completion) {
		if got == nil {
			got = &c
		}
	}); err != nil {
		t.Fatalf("Poll() error = %v", err)
	}
	if got == nil {
		t.Fatal("Poll() delivered no completion before timeout")
	}
	return *got
}

func TestDriverRecvWaitsThenCompletes(t *testing.T) {
	d := newTestDriver(t)

	fds, err := syscall.Socketpair(syscall.AF_UNIX, syscall.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("Socketpair() error = %v", err)
	}
	defer syscall.Close(fds[0])
	defer syscall.Close(fds[1])
	if err := setNonblock(fds[0]); err != nil {
		t.Fatalf("setNonblock() error = %v", err)
	}

	buf := make([]byte, 0, 5)
	slice := govio.NewSlice(buf, 0, cap(buf))
	op := opset.NewRecv(fds[0], &slice, 0)

	pr, err := d.Push(op)
	if err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	if pr.Inline {
		t.Fatal("Push() on an empty socket should not complete inline")
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		syscall.Write(fds[1], []byte("hello"))
	}()

	c := waitForCompletion(t, d)
	if c.Key != pr.Key {
		t.Fatalf("completion key = %d, want %d", c.Key, pr.Key)
	}
	if c.Err != nil {
		t.Fatalf("completion err = %v", c.Err)
	}
	if string(slice.Bytes()) != "hello" {
		t.Fatalf("read %q, want %q", slice.Bytes(), "hello")
	}
}

func TestDriverWakerUnblocksPoll(t *testing.T) {
	d := newTestDriver(t)

	waker, err := d.CreateWaker()
	if err != nil {
		t.Fatalf("CreateWaker() error = %v", err)
	}

	done := make(chan struct{})
	go func() {
		time.Sleep(20 * time.Millisecond)
		if err := waker.Wake(); err != nil {
			t.Errorf("Wake() error = %v", err)
		}
		close(done)
	}()

	if err := d.Poll(nil, func(govio.Completion) {}); err != nil {
		t.Fatalf("Poll() error = %v", err)
	}
	<-done
}

func TestDriverUnsupportedOpCompletesInline(t *testing.T) {
	d := newTestDriver(t)

	pr, err := d.Push(plainOp{})
	if err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	if !pr.Inline {
		t.Fatal("Push() of a non-PollOp should complete inline")
	}
	if pr.Completion.Err == nil {
		t.Fatal("inline completion should carry an unsupported error")
	}
}

type plainOp struct{}

func (plainOp) Name() string { return "plainOp" }
