//go:build linux || darwin

package runtime

import (
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/behrlich/govio"
	"github.com/behrlich/govio/internal/govlog"
	"github.com/behrlich/govio/internal/opset"
)

func newTestRuntime(t *testing.T) *Runtime {
	t.Helper()
	rt, err := New(govio.RuntimeConfig{
		EventInterval: 61,
		Driver:        govio.DriverConfig{Capacity: 32, ThreadPoolLimit: 4},
		Logger:        govlog.Default(),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { rt.Close() })
	return rt
}

// TestBlockOnWriteThenReadRoundTrip covers scenario S1: write 5 bytes at
// offset 0, then read them back into an empty buffer.
func TestBlockOnWriteThenReadRoundTrip(t *testing.T) {
	rt := newTestRuntime(t)

	f, err := os.CreateTemp(t.TempDir(), "s1")
	if err != nil {
		t.Fatalf("CreateTemp() error = %v", err)
	}
	defer f.Close()
	fd := int(f.Fd())

	payload := []byte{1, 2, 3, 4, 5}
	result := rt.BlockOn(func(task *Task) any {
		c := task.Submit(opset.NewWriteAt(fd, govio.Bytes(payload), 0))
		if c.Err != nil {
			return c.Err
		}
		if c.N != len(payload) {
			t.Fatalf("WriteAt N = %d, want %d", c.N, len(payload))
		}

		buf := make([]byte, 0, 5)
		slice := govio.NewSlice(buf, 0, cap(buf))
		c = task.Submit(opset.NewReadAt(fd, &slice, 0))
		if c.Err != nil {
			return c.Err
		}
		return append([]byte(nil), buf[:c.N]...)
	})

	got, ok := result.([]byte)
	if !ok {
		t.Fatalf("BlockOn result = %v (%T), want []byte", result, result)
	}
	if string(got) != string(payload) {
		t.Fatalf("round-trip content = %v, want %v", got, payload)
	}
}

// TestConcurrentSleepsCompleteIndependently covers scenario S6: a 25ms
// sleep started alongside a 50ms sleep must finish first and must not
// disturb the longer one.
func TestConcurrentSleepsCompleteIndependently(t *testing.T) {
	rt := newTestRuntime(t)

	order := make(chan string, 2)
	rt.BlockOn(func(task *Task) any {
		task.Spawn(func(sub *Task) {
			sub.Sleep(50 * time.Millisecond)
			order <- "long"
		})
		task.Spawn(func(sub *Task) {
			sub.Sleep(25 * time.Millisecond)
			order <- "short"
		})
		if first := <-order; first != "short" {
			t.Fatalf("first to complete = %q, want %q", first, "short")
		}
		if second := <-order; second != "long" {
			t.Fatalf("second to complete = %q, want %q", second, "long")
		}
		return nil
	})
}

// TestTimeoutCancelsThenPipeStillUsable covers scenario S3: a read that
// never completes is raced against a short timeout, which must win; the
// same fd must still be usable for a subsequent read afterward.
func TestTimeoutCancelsThenPipeStillUsable(t *testing.T) {
	rt := newTestRuntime(t)

	fds, err := syscall.Socketpair(syscall.AF_UNIX, syscall.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("Socketpair() error = %v", err)
	}
	defer syscall.Close(fds[0])
	defer syscall.Close(fds[1])
	if err := syscall.SetNonblock(fds[0], true); err != nil {
		t.Fatalf("SetNonblock() error = %v", err)
	}

	result := rt.BlockOn(func(task *Task) any {
		buf := make([]byte, 0, 4)
		slice := govio.NewSlice(buf, 0, cap(buf))
		_, err := task.Timeout(10*time.Millisecond, opset.NewRecv(fds[0], &slice, 0))
		if err != govio.ErrTimedOut {
			return err
		}

		go func() {
			time.Sleep(5 * time.Millisecond)
			syscall.Write(fds[1], []byte("ping"))
		}()
		buf2 := make([]byte, 0, 4)
		slice2 := govio.NewSlice(buf2, 0, cap(buf2))
		c := task.Submit(opset.NewRecv(fds[0], &slice2, 0))
		if c.Err != nil {
			return c.Err
		}
		return append([]byte(nil), buf2[:c.N]...)
	})

	got, ok := result.([]byte)
	if !ok {
		t.Fatalf("BlockOn result = %v (%T), want []byte", result, result)
	}
	if string(got) != "ping" {
		t.Fatalf("recv after timeout = %q, want %q", got, "ping")
	}
}

// TestBlockingRunsOnThreadPool exercises Task.Blocking, the Asyncify path
// spec §4.6 reserves for work with no completion-based equivalent.
func TestBlockingRunsOnThreadPool(t *testing.T) {
	rt := newTestRuntime(t)

	result := rt.BlockOn(func(task *Task) any {
		n, err := task.Blocking("double", func() (int, error) { return 21 * 2, nil })
		if err != nil {
			return err
		}
		return n
	})

	if result != 42 {
		t.Fatalf("Blocking() result = %v, want 42", result)
	}
}
