// Package mmio provides types for memory mapped peripheral registers.
//
// All accesses are done with atomic loads and stores, which the compiler
// neither elides, merges nor reorders. That is the volatile semantic required
// for device memory.
package mmio

import (
	"sync/atomic"
	"unsafe"
)

// U32 is a 32-bit register.
type U32 struct {
	r atomic.Uint32
}

func (r *U32) Load() uint32 {
	return r.r.Load()
}

func (r *U32) Store(v uint32) {
	r.r.Store(v)
}

// LoadBits returns the register's value masked with mask.
func (r *U32) LoadBits(mask uint32) uint32 {
	return r.r.Load() & mask
}

// SetBits sets the bits in mask using a read-modify-write.
func (r *U32) SetBits(mask uint32) {
	r.r.Store(r.r.Load() | mask)
}

// ClearBits clears the bits in mask using a read-modify-write.
func (r *U32) ClearBits(mask uint32) {
	r.r.Store(r.r.Load() &^ mask)
}

// StoreBits replaces the bits in mask with the corresponding bits of v.
func (r *U32) StoreBits(mask, v uint32) {
	r.r.Store(r.r.Load()&^mask | v&mask)
}

func (r *U32) Addr() uintptr {
	return uintptr(unsafe.Pointer(r))
}

// R32 is a 32-bit register holding a value of type T, usually a set of flags.
type R32[T ~uint32] struct {
	r U32
}

func (r *R32[T]) Load() T {
	return T(r.r.Load())
}

func (r *R32[T]) Store(v T) {
	r.r.Store(uint32(v))
}

func (r *R32[T]) LoadBits(mask T) T {
	return T(r.r.LoadBits(uint32(mask)))
}

func (r *R32[T]) SetBits(mask T) {
	r.r.SetBits(uint32(mask))
}

func (r *R32[T]) ClearBits(mask T) {
	r.r.ClearBits(uint32(mask))
}

func (r *R32[T]) StoreBits(mask, v T) {
	r.r.StoreBits(uint32(mask), uint32(v))
}

func (r *R32[T]) Addr() uintptr {
	return r.r.Addr()
}
