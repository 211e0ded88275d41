// Package runtime is the single-threaded cooperative scheduler described
// in spec.md §4.6: a proactor, a slab of operation slots, and a timer
// heap, all owned by one goroutine that alternates between draining
// submitted work and blocking in Proactor.Poll.
//
// Rust's compio has no goroutines to reach for — a task is a Future
// polled cooperatively on the single runtime thread. Go already ships a
// scheduler that does exactly that job for us, so the idiomatic
// translation (grounded on original_source/src/task/runtime.go's
// Runtime::run/block_on loop) is: a spawned task is a real goroutine that
// suspends at an await point by blocking on a channel, while one
// dedicated loop goroutine retains exclusive ownership of the proactor,
// the slot table, and the timer heap — preserving spec §5's
// single-threaded-ownership invariant even though the process as a whole
// is multi-goroutine. Task goroutines never touch proactor/timers
// directly; they hand requests to the loop goroutine over submitCh /
// timerCh and block on a per-request channel for the reply, exactly the
// shape DESIGN.md already called a "channel-based future".
package runtime

import (
	"context"
	"time"

	"github.com/behrlich/govio"
	"github.com/behrlich/govio/internal/fusion"
	"github.com/behrlich/govio/internal/timerheap"
)

// Runtime owns a Proactor, a timer heap, and the single goroutine that is
// allowed to touch either. Construct one with New or NewWithProactor and
// drive it with BlockOn.
type Runtime struct {
	proactor govio.Proactor
	waker    govio.Waker
	timers   *timerheap.Heap
	logger   govio.Logger

	eventInterval int

	// pending realizes spec §4.6's "slab of operation slots" as a map
	// keyed directly by the key the Proactor itself handed back from
	// Push — there is no separate key-translation layer, since the
	// Proactor's key is already the stable identity a slot needs.
	pending map[uint64]chan govio.Completion

	submitCh      chan submitRequest
	cancelCh      chan uint64
	timerCh       chan timerRequest
	timerCancelCh chan timerheap.Key
}

type submitRequest struct {
	op       govio.Op
	resultCh chan govio.Completion
	ackCh    chan submitAck
}

type submitAck struct {
	key    uint64
	inline bool
}

type timerRequest struct {
	deadline time.Time
	wake     func()
	ackCh    chan timerheap.Key
}

// New builds a Runtime whose Proactor is chosen by the fusion selector
// (spec §4.5) from cfg.
func New(cfg govio.RuntimeConfig) (*Runtime, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = defaultLogger{}
	}
	p, err := fusion.Select(cfg.Driver, logger)
	if err != nil {
		return nil, err
	}
	return NewWithProactor(p, cfg)
}

// NewWithProactor builds a Runtime around an already-constructed Proactor
// — used by tests that want a specific backend rather than whatever
// fusion.Select would pick.
func NewWithProactor(p govio.Proactor, cfg govio.RuntimeConfig) (*Runtime, error) {
	interval := cfg.EventInterval
	if interval <= 0 {
		interval = govio.DefaultRuntimeConfig().EventInterval
	}
	waker, err := p.CreateWaker()
	if err != nil {
		p.Close()
		return nil, err
	}
	return &Runtime{
		proactor:      p,
		waker:         waker,
		timers:        timerheap.New(),
		logger:        cfg.Logger,
		eventInterval: interval,
		pending:       make(map[uint64]chan govio.Completion),
		submitCh:      make(chan submitRequest, 128),
		cancelCh:      make(chan uint64, 128),
		timerCh:       make(chan timerRequest, 128),
		timerCancelCh: make(chan timerheap.Key, 128),
	}, nil
}

// defaultLogger discards everything; used only when a caller builds a
// Runtime via New without supplying cfg.Logger.
type defaultLogger struct{}

func (defaultLogger) Debug(string, ...any) {}
func (defaultLogger) Info(string, ...any)  {}
func (defaultLogger) Warn(string, ...any)  {}
func (defaultLogger) Error(string, ...any) {}

// Close shuts down the underlying Proactor. Callers must ensure no
// BlockOn is in progress.
func (rt *Runtime) Close() error {
	return rt.proactor.Close()
}

// RegisterFd installs fd into the backend's fixed-file table (spec §9's
// Open Question on direct-descriptor registration) and returns a handle
// usable by ops that opt into IOSQE_FIXED_FILE. Returns ErrUnsupported on
// backends without a fixed-file table (Poll, IOCP). Callers must ensure
// no BlockOn is in progress, the same contract as Close.
func (rt *Runtime) RegisterFd(fd int) (govio.RegisteredFd, error) {
	idx, err := rt.proactor.RegisterFd(fd)
	if err != nil {
		return govio.RegisteredFd{}, err
	}
	return govio.RegisteredFd{Index: idx}, nil
}

// UnregisterFd releases a slot obtained from RegisterFd.
func (rt *Runtime) UnregisterFd(rfd govio.RegisteredFd) error {
	return rt.proactor.UnregisterFd(rfd.Index)
}

// Task is the handle a spawned function uses to submit operations, sleep,
// yield, and spawn further tasks. It carries no state of its own beyond a
// reference to the owning Runtime — it is the Go analogue of a Future's
// execution context.
type Task struct {
	rt *Runtime
}

// BlockOn runs fn on a new goroutine, drives the event loop on the
// calling goroutine until fn returns, and returns fn's result. This is
// the runtime's single entry point (spec §4.6: "while the root future is
// not ready").
func (rt *Runtime) BlockOn(fn func(*Task) any) any {
	var result any
	done := make(chan struct{})
	go func() {
		result = fn(&Task{rt: rt})
		close(done)
		rt.waker.Wake()
	}()

	for {
		select {
		case <-done:
			return result
		default:
		}
		rt.runOnce()
	}
}

// Spawn starts fn on a new goroutine against the same Runtime, without
// blocking the caller. The spawned task runs concurrently with whatever
// BlockOn is currently driving; the event loop keeps servicing it exactly
// like the root task since both submit through the same channels.
func (t *Task) Spawn(fn func(*Task)) {
	go fn(&Task{rt: t.rt})
}

// runOnce performs one iteration of spec §4.6's event loop: drain
// already-queued submit/cancel/timer requests without blocking, then
// block in Proactor.Poll for at most the nearest timer deadline, then
// expire due timers.
func (rt *Runtime) runOnce() {
	processed := 0
drain:
	for processed < rt.eventInterval {
		select {
		case req := <-rt.submitCh:
			rt.handleSubmit(req)
			processed++
		case key := <-rt.cancelCh:
			rt.proactor.Cancel(key)
			processed++
		case tr := <-rt.timerCh:
			k := rt.timers.Insert(tr.deadline, tr.wake)
			tr.ackCh <- k
			processed++
		case k := <-rt.timerCancelCh:
			rt.timers.Cancel(k)
			processed++
		default:
			break drain
		}
	}

	timeout := rt.timers.NextTimeout(time.Now())
	err := rt.proactor.Poll(timeout, func(c govio.Completion) {
		if ch, ok := rt.pending[c.Key]; ok {
			delete(rt.pending, c.Key)
			ch <- c
			close(ch)
		}
	})
	if err != nil && rt.logger != nil && err != govio.ErrTimedOut {
		rt.logger.Warn("proactor poll error", "err", err)
	}
	rt.timers.ExpireDue(time.Now())
}

func (rt *Runtime) handleSubmit(req submitRequest) {
	pr, err := rt.proactor.Push(req.op)
	if err != nil {
		req.resultCh <- govio.Completion{Err: err}
		req.ackCh <- submitAck{inline: true}
		return
	}
	if pr.Inline {
		req.resultCh <- pr.Completion
		req.ackCh <- submitAck{inline: true}
		return
	}
	rt.pending[pr.Key] = req.resultCh
	req.ackCh <- submitAck{key: pr.Key}
}

// Submit hands op to the proactor and blocks the calling task goroutine
// until its completion arrives. This is the common case — no
// cancellation path needed.
func (t *Task) Submit(op govio.Op) govio.Completion {
	resultCh := make(chan govio.Completion, 1)
	ackCh := make(chan submitAck, 1)
	t.rt.submitCh <- submitRequest{op: op, resultCh: resultCh, ackCh: ackCh}
	t.rt.waker.Wake()
	<-ackCh
	return <-resultCh
}

// SubmitCtx is Submit with cancellation: if ctx is done before the
// completion arrives, the op is cancelled and SubmitCtx returns
// immediately with ctx.Err(). The eventual real completion is still
// drained on a background goroutine so the runtime's slot is freed once
// the kernel confirms — the buffer-lifetime invariant from spec §3.1/§5
// requires the op's storage to outlive it regardless of whether the
// caller is still waiting.
func (t *Task) SubmitCtx(ctx context.Context, op govio.Op) (govio.Completion, error) {
	resultCh := make(chan govio.Completion, 1)
	ackCh := make(chan submitAck, 1)
	t.rt.submitCh <- submitRequest{op: op, resultCh: resultCh, ackCh: ackCh}
	t.rt.waker.Wake()
	ack := <-ackCh
	if ack.inline {
		return <-resultCh, nil
	}

	select {
	case c := <-resultCh:
		return c, nil
	case <-ctx.Done():
		t.rt.cancelCh <- ack.key
		t.rt.waker.Wake()
		go func() { <-resultCh }()
		return govio.Completion{}, ctx.Err()
	}
}

// Blocking runs fn on the runtime's bounded thread pool via the
// Asyncify op (spec §4.6's "Blocking tasks" paragraph), for work that has
// no completion-based or overlapped equivalent — a DNS lookup, a CGO
// call, anything that must block a real OS thread.
func (t *Task) Blocking(name string, fn func() (int, error)) (int, error) {
	c := t.Submit(asyncifyOp(name, fn))
	return c.N, c.Err
}
