//go:build linux

package bufring

import (
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/behrlich/govio"
	"github.com/behrlich/govio/internal/iouring"
	"github.com/behrlich/govio/internal/iouring/sys"
)

// bufEntrySize is sizeof(struct io_uring_buf) — 16 bytes: a u64 addr, a
// u32 len, a u16 bid, a u16 resv. sys.Buf already has this shape.
const bufEntrySize = 16

// tailWordOffset is the byte offset of the 4-byte word containing the
// ring header's Tail field. Per the kernel's io_uring_buf_ring ABI,
// entry 0's 16 bytes double as the header (resv1 u64, resv2 u32, resv3
// u16, tail u16) — the same aliasing original_source's InnerBufRing
// relies on via BufRingEntry::tail(ring_start). The actual tail field is
// only the top 2 bytes of this word (offset 14-15); the bottom 2 bytes
// (offset 12-13) alias entry 0's Bid field. Go has no 16-bit atomic
// primitive, so sync() does an atomic 4-byte read-modify-write over this
// word rather than touching the tail bytes alone.
const tailWordOffset = 12

// IoUringPool is the kernel-managed form of Pool: an anonymous
// page-aligned mapping carved into a ring of sys.Buf cells, registered
// with the ring under groupID via IORING_REGISTER_PBUF_RING. Recv/Read
// ops set IOSQE_BUFFER_SELECT and this GroupID; the kernel itself picks
// a buffer and reports its id in the completion flags.
type IoUringPool struct {
	fd       int
	groupID  uint16
	bufLen   int
	entries  uint16 // power of 2, >= bufCount
	mask     uint16
	mem      []byte
	bufs     [][]byte
	localTail uint16
}

// NewIoUringPool allocates n buffers of sz bytes each, rounds the ring to
// the next power of 2 >= n, and registers it against ringFd under
// groupID.
func NewIoUringPool(ringFd int, groupID uint16, n int, sz int) (*IoUringPool, error) {
	entries := nextPow2(uint16(n))
	memLen := int(entries) * bufEntrySize

	mem, err := unix.Mmap(-1, 0, memLen, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_SHARED)
	if err != nil {
		return nil, err
	}
	if err := unix.Madvise(mem, unix.MADV_DONTFORK); err != nil {
		unix.Munmap(mem)
		return nil, err
	}

	bufs := make([][]byte, n)
	for i := range bufs {
		bufs[i] = make([]byte, sz)
	}

	p := &IoUringPool{
		fd:      ringFd,
		groupID: groupID,
		bufLen:  sz,
		entries: entries,
		mask:    entries - 1,
		mem:     mem,
		bufs:    bufs,
	}

	setup := sys.BufRingSetup{
		RingAddr: uint64(uintptr(unsafe.Pointer(&mem[0]))),
		Nentries: uint32(entries),
		BGid:     groupID,
	}
	if err := sys.RegisterPBufRing(ringFd, &setup); err != nil {
		unix.Munmap(mem)
		return nil, err
	}

	for i := range bufs {
		p.push(uint16(i))
	}
	p.sync()

	return p, nil
}

func nextPow2(n uint16) uint16 {
	if n == 0 {
		return 1
	}
	p := uint16(1)
	for p < n {
		p <<= 1
	}
	return p
}

func (p *IoUringPool) GroupID() uint16 { return p.groupID }
func (p *IoUringPool) BufLen() int     { return p.bufLen }

func (p *IoUringPool) View(id uint16) []byte {
	return p.bufs[id]
}

// entryAt returns the sys.Buf cell at ring index idx (not buffer id —
// the ring is indexed by (tail & mask), not by bid).
func (p *IoUringPool) entryAt(idx uint16) *sys.Buf {
	return (*sys.Buf)(unsafe.Pointer(&p.mem[uintptr(idx)*bufEntrySize]))
}

// push writes bid's address/len into the next ring slot without yet
// publishing it to the kernel — callers must follow with sync().
func (p *IoUringPool) push(bid uint16) {
	idx := p.localTail & p.mask
	p.localTail++

	e := p.entryAt(idx)
	e.Addr = uint64(uintptr(unsafe.Pointer(&p.bufs[bid][0])))
	e.Len = uint32(p.bufLen)
	e.Bid = bid
}

// sync fences the local tail with a release store so the kernel's
// acquire load observes every push() since the last sync() (spec §4.2 /
// §5's release-store/acquire-load pairing). Go's sync/atomic has no
// 16-bit primitive and the real tail field is only 2 bytes wide (offset
// 14-15), aliasing entry 0's Bid field (offset 12-13) in the kernel's
// union layout — a plain 4-byte atomic store would stomp entry 0's Bid
// whenever it currently holds a live buffer, so this does an atomic
// read-modify-write over the containing 4-byte word instead, touching
// only the upper 16 bits.
func (p *IoUringPool) sync() {
	word := (*uint32)(unsafe.Pointer(&p.mem[tailWordOffset]))
	for {
		cur := atomic.LoadUint32(word)
		next := (cur &^ 0xFFFF0000) | (uint32(p.localTail) << 16)
		if atomic.CompareAndSwapUint32(word, cur, next) {
			return
		}
	}
}

// Release re-publishes id to the ring, making it selectable again.
func (p *IoUringPool) Release(id uint16) {
	p.push(id)
	p.sync()
}

func (p *IoUringPool) Close() error {
	if err := sys.UnregisterPBufRing(p.fd, p.groupID); err != nil {
		return err
	}
	return unix.Munmap(p.mem)
}

// New builds an IoUringPool when p is backed by an *iouring.Driver,
// falling back to the portable free-list for any other Proactor
// implementation (the Poll backend, or a caller-supplied fake in tests).
func New(p govio.Proactor, groupID uint16, n int, sz int) (Pool, error) {
	if d, ok := p.(*iouring.Driver); ok {
		return NewIoUringPool(d.RingFd(), groupID, n, sz)
	}
	return NewPortablePool(groupID, n, sz), nil
}
