// Package bufring implements the ring-mapped buffer pool from spec §4.2:
// a kernel-managed group of fixed-size buffers an IoUring recv/read can
// select from (via IOSQE_BUFFER_SELECT) without the caller provisioning a
// buffer per op. It degrades to a portable capped free-list on any other
// backend, where the caller picks a buffer explicitly before submitting.
//
// Grounded on original_source/compio-driver/src/iour/ring_mapped_buffers.rs
// (InnerBufRing's mmap/register/push/sync cycle) for the IoUring form
// (iouring_pool.go, Linux-only), and on go-ublk's
// internal/queue/pool.go buffer-reuse idiom for the portable form below —
// adapted from that file's unbounded size-bucketed sync.Pool into a
// capped free-list, since spec testable property 7 ("at most n borrowed
// views exist simultaneously") needs an enforced upper bound that
// sync.Pool's ungoverned eviction cannot give us.
package bufring

import (
	"sync"

	"github.com/bytedance/gopkg/lang/mcache"
)

// Pool hands out fixed-size buffers identified by a small integer id
// within groupID, and takes them back on Release.
type Pool interface {
	// GroupID is the id operations pass to the backend (IOSQE_BUFFER_SELECT
	// + this group, on IoUring). On the portable pool it only labels the
	// pool; PortablePool.Acquire takes no group id.
	GroupID() uint16
	// BufLen is the fixed size of every buffer in the pool.
	BufLen() int
	// View returns the current backing bytes for id — valid only between
	// a successful borrow and its matching Release.
	View(id uint16) []byte
	// Release returns a borrowed id to the pool. On IoUring this
	// re-publishes the id into the kernel-visible ring and fences the
	// tail with a release store (spec §4.2); on the portable pool it
	// marks the slot free again.
	Release(id uint16)
	Close() error
}

// PortablePool is the non-IoUring degradation: the caller calls Acquire
// itself (there is no kernel buffer-selection here) before submitting an
// op against the returned id's buffer, and must Release it afterward.
type PortablePool struct {
	groupID uint16
	bufLen  int

	mu    sync.Mutex
	bufs  [][]byte
	free  []uint16
}

// NewPortablePool allocates n buffers of sz bytes under groupID, drawing
// the backing storage from mcache's size-classed free list rather than
// the Go heap directly — the same allocator cloudwego-gopkg's own
// buffer types (xbuf, gridbuf) use for their per-request scratch
// buffers.
func NewPortablePool(groupID uint16, n int, sz int) *PortablePool {
	bufs := make([][]byte, n)
	free := make([]uint16, n)
	for i := range bufs {
		bufs[i] = mcache.Malloc(sz)
		free[i] = uint16(n - 1 - i) // pop from the tail below, so id 0 is handed out first
	}
	return &PortablePool{groupID: groupID, bufLen: sz, bufs: bufs, free: free}
}

func (p *PortablePool) GroupID() uint16 { return p.groupID }
func (p *PortablePool) BufLen() int     { return p.bufLen }

// Acquire borrows a free buffer id, or ok=false if every buffer in the
// pool is currently checked out.
func (p *PortablePool) Acquire() (id uint16, buf []byte, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.free) == 0 {
		return 0, nil, false
	}
	id = p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	return id, p.bufs[id], true
}

func (p *PortablePool) View(id uint16) []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bufs[id]
}

func (p *PortablePool) Release(id uint16) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.free = append(p.free, id)
}

func (p *PortablePool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, b := range p.bufs {
		mcache.Free(b)
	}
	return nil
}

// BufID decodes the selected buffer id out of a govio.Completion.Flags
// value for a completed opset.RecvProvided, mirroring sys.CQE.GetBufID's
// IORING_CQE_F_BUFFER-bit-then-upper-16-bits layout. ok is false if the
// completion carries no selected buffer (IORING_CQE_F_BUFFER unset).
func BufID(flags uint32) (id uint16, ok bool) {
	const cqeFBuffer = 1 << 0
	if flags&cqeFBuffer == 0 {
		return 0, false
	}
	return uint16(flags >> 16), true
}
