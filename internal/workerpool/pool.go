// Package workerpool implements the bounded blocking-operation thread pool
// each backend dispatches its "Blocking" ops to (spec §4.6, §9's
// back-pressure note). Grounded on ygrebnov-workers/pool/fixed.go's
// fixed-capacity channel-juggling pool and ygrebnov-workers/dispatcher.go's
// inflight-tracking dispatch loop, adapted from a generic task-result pool
// into a pool whose job signature is a plain closure reporting
// (result int, err error) back through a caller-supplied callback — govio
// has no use for ygrebnov-workers's ordered-results/error-tagging
// machinery, only for the backpressure-refusal shape.
package workerpool

import "sync"

// Job is blocking work dispatched to a pool worker. It returns the
// syscall-style (n, err) pair a completion is built from.
type Job func() (n int, err error)

// Pool is a bounded pool of goroutines executing Jobs. Unlike
// ygrebnov-workers's dispatcher (which spawns a goroutine per task and
// relies on a semaphore-like worker object pool for reuse), Pool caps the
// number of concurrently running goroutines at Limit and refuses
// additional work with ok=false rather than queuing it — callers are
// expected to yield cooperatively and retry, per spec §9's "Blocking pool
// back-pressure" design note.
type Pool struct {
	limit   int
	mu      sync.Mutex
	running int
	wg      sync.WaitGroup
	closed  bool
}

// New returns a Pool that allows up to limit concurrent workers. limit <=
// 0 means unbounded (matches a dynamic ygrebnov-workers pool).
func New(limit int) *Pool {
	return &Pool{limit: limit}
}

// Try attempts to dispatch job to a new worker goroutine. on is called
// with the job's result once it completes, from the worker goroutine (the
// caller must make on safe to call from any goroutine — typically it
// forwards through a channel, as the io_uring driver's blocking-completion
// channel does).
//
// Try returns false without starting job if the pool is at capacity or
// closed; the caller must retry later rather than block.
func (p *Pool) Try(job Job, on func(n int, err error)) bool {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return false
	}
	if p.limit > 0 && p.running >= p.limit {
		p.mu.Unlock()
		return false
	}
	p.running++
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()
		defer func() {
			p.mu.Lock()
			p.running--
			p.mu.Unlock()
		}()
		n, err := job()
		on(n, err)
	}()
	return true
}

// Running returns the number of in-flight workers.
func (p *Pool) Running() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Close marks the pool closed; further Try calls fail. Close does not
// wait for in-flight jobs — call Wait for that.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}

// Wait blocks until all dispatched jobs have completed.
func (p *Pool) Wait() {
	p.wg.Wait()
}
