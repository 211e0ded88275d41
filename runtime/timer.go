package runtime

import (
	"time"

	"github.com/behrlich/govio"
	"github.com/behrlich/govio/internal/timerheap"
)

// Sleep suspends the calling task until d has elapsed, registering a
// timer with the loop goroutine's heap rather than blocking a real OS
// thread (spec §4.6's timer wheel). Two concurrent sleeps with different
// durations complete independently — the shorter one firing first never
// cancels or otherwise disturbs the longer one (scenario S6).
func (t *Task) Sleep(d time.Duration) {
	done := make(chan struct{})
	ackCh := make(chan timerheap.Key, 1)
	t.rt.timerCh <- timerRequest{
		deadline: time.Now().Add(d),
		wake:     func() { close(done) },
		ackCh:    ackCh,
	}
	t.rt.waker.Wake()
	<-ackCh
	<-done
}

// Yield gives up the rest of the current time slice, letting the loop
// goroutine service any other queued work before this task resumes.
// Implemented as a zero-duration timer — the cheapest suspension point
// that still round-trips through the loop goroutine.
func (t *Task) Yield() {
	t.Sleep(0)
}

// Timeout races op against a d-duration timer on the runtime's own timer
// heap (the same one Sleep uses, not a standalone stdlib timer): if op
// completes first its Completion is returned with a nil error; if the
// timer fires first, op is cancelled and Timeout returns
// govio.ErrTimedOut, matching the `timeout(10ms, read(...))` shape from
// scenario S3. The cancelled op's eventual real completion is still
// drained so its buffer is not considered free until the kernel confirms
// (spec §3.1/§5's buffer-lifetime invariant).
func (t *Task) Timeout(d time.Duration, op govio.Op) (govio.Completion, error) {
	resultCh := make(chan govio.Completion, 1)
	ackCh := make(chan submitAck, 1)
	t.rt.submitCh <- submitRequest{op: op, resultCh: resultCh, ackCh: ackCh}
	t.rt.waker.Wake()
	ack := <-ackCh
	if ack.inline {
		return <-resultCh, nil
	}

	timerDone := make(chan struct{})
	timerAckCh := make(chan timerheap.Key, 1)
	t.rt.timerCh <- timerRequest{
		deadline: time.Now().Add(d),
		wake:     func() { close(timerDone) },
		ackCh:    timerAckCh,
	}
	t.rt.waker.Wake()
	<-timerAckCh

	select {
	case c := <-resultCh:
		return c, nil
	case <-timerDone:
		t.rt.cancelCh <- ack.key
		t.rt.waker.Wake()
		go func() { <-resultCh }()
		return govio.Completion{}, govio.ErrTimedOut
	}
}
