//go:build linux

package bufring

import (
	"syscall"
	"testing"
	"time"

	"github.com/behrlich/govio"
	"github.com/behrlich/govio/internal/opset"
)

// TestIoUringPoolRecvProvidedRoundTrip exercises the full ring-mapped
// buffer path end to end: a real provided-buffer group registered on a
// real ring, an opset.RecvProvided submitted against a connected
// socketpair, and the completion's selected buffer id decoded back into
// the pool-owned bytes via BufID/View.
func TestIoUringPoolRecvProvidedRoundTrip(t *testing.T) {
	d := newTestRing(t)

	pool, err := New(d, 3, 4, 64)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer pool.Close()

	fds, err := syscall.Socketpair(syscall.AF_UNIX, syscall.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("Socketpair() error = %v", err)
	}
	defer syscall.Close(fds[0])
	defer syscall.Close(fds[1])

	payload := []byte("ring-mapped")
	if _, err := syscall.Write(fds[1], payload); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	op := opset.NewRecvProvided(fds[0], pool.GroupID(), 64, 0)
	pr, err := d.Push(op)
	if err != nil {
		t.Fatalf("Push() error = %v", err)
	}

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
	if got.Key != pr.Key {
		t.Fatalf("completion key = %d, want %d", got.Key, pr.Key)
	}
	if got.Err != nil {
		t.Fatalf("completion err = %v", got.Err)
	}
	if got.N != len(payload) {
		t.Fatalf("completion n = %d, want %d", got.N, len(payload))
	}

	id, ok := BufID(got.Flags)
	if !ok {
		t.Fatal("BufID() ok = false, want a selected buffer id")
	}
	view := pool.View(id)
	if string(view[:got.N]) != string(payload) {
		t.Fatalf("pool.View(%d)[:%d] = %q, want %q", id, got.N, view[:got.N], payload)
	}

	pool.Release(id)
}
