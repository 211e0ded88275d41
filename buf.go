package govio

import "unsafe"

// Buffer is a stable-address, read-only view of bytes that may be handed to
// a kernel completion-based operation. Its base address must not change
// while a submitted operation holds it, even if the Buffer value itself is
// moved or copied (Go slices already give this for free: the backing array
// does not move, only the header does).
type Buffer interface {
	// Bytes returns the initialized portion of the buffer.
	Bytes() []byte
}

// MutableBuffer is a Buffer that additionally exposes reserved-but-
// uninitialized capacity the kernel may write into, and a way to grow the
// initialized prefix once a completion reports how much was written.
type MutableBuffer interface {
	Buffer

	// FreeBytes returns the uninitialized tail capacity available for the
	// kernel to write into. len(FreeBytes()) == Cap() - len(Bytes()).
	FreeBytes() []byte

	// Cap returns the total capacity, initialized or not.
	Cap() int

	// SetInitialized grows the initialized prefix by n bytes. It must only
	// be called after a completion reports n bytes written, and n must not
	// exceed len(FreeBytes()) at the time of the call.
	SetInitialized(n int)
}

// VectoredBuffer is a finite ordered sequence of Buffers presented to the
// kernel as a scatter/gather array. The slice storage itself, not just each
// element's bytes, must remain stable for the duration of the call.
type VectoredBuffer interface {
	Buffers() []Buffer
}

// VectoredMutableBuffer is the writable counterpart of VectoredBuffer.
type VectoredMutableBuffer interface {
	MutableBuffers() []MutableBuffer
}

// BasePointer returns the stable base address of b's initialized bytes, or
// nil if b is empty. Used by buffer-stability checks (see the package
// tests) and by backends that need a raw pointer to hand to a syscall.
func BasePointer(b Buffer) unsafe.Pointer {
	bs := b.Bytes()
	if len(bs) == 0 {
		return nil
	}
	return unsafe.Pointer(&bs[0])
}

// Bytes is the trivial Buffer/MutableBuffer implementation over a plain
// []byte, analogous to compio's IoBuf impl for Vec<u8>: the initialized
// length is len(b), the capacity is cap(b).
type Bytes []byte

func (b Bytes) Bytes() []byte { return b }

func (b Bytes) Cap() int { return cap(b) }

func (b Bytes) FreeBytes() []byte {
	return b[len(b):cap(b)]
}

func (b *Bytes) SetInitialized(n int) {
	*b = (*b)[:len(*b)+n]
}

// Slice is an owned buffer value restricted to the half-open range
// [begin, end) of an underlying owned buffer, mirroring compio's
// Slice<T>/IoBuf::slice. It lets a caller hand a sub-region of a larger
// allocation to an operation without copying. initialized tracks how much
// of [begin, end) currently holds meaningful data, independent of owner's
// own length.
type Slice struct {
	owner       []byte
	begin, end  int
	initialized int
}

// NewSlice returns a Slice over owner[begin:end], keeping owner's backing
// array alive and stable for as long as the Slice exists. The initialized
// prefix starts at min(len(owner), end) - begin.
func NewSlice(owner []byte, begin, end int) Slice {
	if begin > end || end > cap(owner) || begin < 0 {
		panic("govio: slice bounds out of range")
	}
	init := len(owner) - begin
	if init < 0 {
		init = 0
	}
	if init > end-begin {
		init = end - begin
	}
	return Slice{owner: owner, begin: begin, end: end, initialized: init}
}

func (s Slice) Bytes() []byte {
	full := s.owner[s.begin:s.end:s.end]
	return full[:s.initialized]
}

func (s Slice) Cap() int { return s.end - s.begin }

func (s Slice) FreeBytes() []byte {
	full := s.owner[s.begin:s.end:s.end]
	return full[s.initialized:]
}

func (s *Slice) SetInitialized(n int) {
	if s.initialized+n > s.Cap() {
		panic("govio: SetInitialized grows past capacity")
	}
	s.initialized += n
}

// IntoInner returns the underlying owned buffer sized to the slice's
// initialized prefix, consuming the Slice. It is the Go analogue of
// compio's Slice::into_inner.
func (s Slice) IntoInner() []byte {
	return s.owner[:s.begin+s.initialized]
}
