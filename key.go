package govio

import "fmt"

// Key identifies a submitted operation from the moment Proactor.Push
// returns Pending until the matching completion is observed. It is a
// process-unique integer, phantom-typed in T so the caller's code cannot
// mix up keys belonging to different operation variants, even though the
// integer itself is erased once it reaches a backend's registry.
//
// Analogous to compio's Key<T> (original_source/src/key.go), translated
// from a PhantomData-carrying struct into a Go generic struct.
type Key[T any] struct {
	id uint64
}

// newKey constructs a Key from a raw slab id. It is unexported, so only
// package govio can call it; Proactor.Push itself hands out raw uint64
// keys (see RawKey below).
func newKey[T any](id uint64) Key[T] { return Key[T]{id: id} }

// Raw returns the underlying slab id, for handing to a backend's
// completion-lookup table. The value has no meaning outside the proactor
// that issued it.
func (k Key[T]) Raw() uint64 { return k.id }

func (k Key[T]) String() string { return fmt.Sprintf("Key(%d)", k.id) }

// RawKey is the type-erased form of Key[T], used internally by backends
// that store heterogeneous operations in one slab (e.g. the io_uring
// driver's registry, which holds Read, Write, Accept, ... side by side).
type RawKey = uint64
