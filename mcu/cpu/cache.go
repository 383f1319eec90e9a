// The CPU accesses memory through a write-back data cache and in general
// assumes that there are no other readers or writers. Since the cached value
// can differ from the value in memory for a limited amount of time, both must
// be synced before another bus master like the DMA controller or the LTDC gets
// involved.
//
// All operations in this package refer to the data cache. The instruction
// cache won't be affected.
package cpu

import (
	"unsafe"

	"github.com/clktmr/dispflush/debug"
)

// CacheLineSize of the Cortex-M7 L1 data cache.
const CacheLineSize = 32
const cacheLineMask = ^uintptr(CacheLineSize - 1)

// Cache operations always affect a whole cache line. To avoid invalidating
// unrelated data in a cache line, pad structs with CacheLinePad at the
// beginning and end.
type CacheLinePad struct{ _ [CacheLineSize]byte }

// Cache maintains the data cache for an address range.
type Cache interface {
	// Writeback causes the cache to be written back to memory. Call this
	// before requesting another component to read from this address range.
	// If the range is currently not cached, this is a no-op.
	Writeback(addr uintptr, length int)

	// Invalidate causes the cache to be read from memory before the next
	// access. Call this after the address range was written by another
	// component. If the range is currently not cached, this is a no-op.
	Invalidate(addr uintptr, length int)

	// WritebackInvalidate writes back and then invalidates the range.
	// Call this before another component writes to an address range the
	// CPU might have written too.
	WritebackInvalidate(addr uintptr, length int)
}

// NoCache is the Cache of memory that isn't cached, e.g. a region
// configured as device memory by the MPU or any memory on the host.
type NoCache struct{}

func (NoCache) Writeback(addr uintptr, length int)           {}
func (NoCache) Invalidate(addr uintptr, length int)          {}
func (NoCache) WritebackInvalidate(addr uintptr, length int) {}

// Guard brackets every hand-off of memory between the CPU and another bus
// master.
type Guard struct {
	Cache Cache
}

// ToHardware makes the CPU's writes to p visible to other bus masters.
func (g Guard) ToHardware(p []byte) {
	if len(p) == 0 {
		return
	}
	g.cache().Writeback(SliceAddr(p), len(p))
}

// ToHardwareExclusive hands p over to another bus master that writes it.
// Dirty lines are written back first, so none can be evicted on top of the
// other master's writes. Lines shared with data outside of p keep their
// content.
func (g Guard) ToHardwareExclusive(p []byte) {
	if len(p) == 0 {
		return
	}
	g.cache().WritebackInvalidate(SliceAddr(p), len(p))
}

// ToCPU makes writes to p by other bus masters visible to the CPU. Since
// whole cache lines are discarded, p must be padded.
func (g Guard) ToCPU(p []byte) {
	if len(p) == 0 {
		return
	}
	debug.Assert(IsPadded(p), "unpadded cache invalidate")
	g.cache().Invalidate(SliceAddr(p), len(p))
}

func (g Guard) cache() Cache {
	if g.Cache == nil {
		return NoCache{}
	}
	return g.Cache
}

// SliceAddr returns the address of the first element of s.
func SliceAddr[T any](s []T) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(s)))
}

// MakePaddedSlice returns a slice that is safe for cache ops. It's start is
// aligned to CacheLineSize and the end is padded to fill the cache line. Note
// that using append() might corrupt the padding.
func MakePaddedSlice[T any](size int) []T {
	var t T
	cls := CacheLineSize / int(unsafe.Sizeof(t))
	buf := make([]T, 0, cls+size+cls)
	addr := SliceAddr(buf)
	shift := (CacheLineSize - int(addr%CacheLineSize)) % CacheLineSize / int(unsafe.Sizeof(t))
	return buf[shift : shift+size]
}

// MakePaddedSliceAligned is the same as MakePaddedSlice with extra alignment
// requirements.
func MakePaddedSliceAligned[T any](size int, align uintptr) []T {
	var t T
	if align <= CacheLineSize || align <= unsafe.Alignof(t) {
		return MakePaddedSlice[T](size)
	}

	buf := MakePaddedSlice[T](size + int(align/unsafe.Sizeof(t)))
	addr := SliceAddr(buf)
	shift := (align - addr%align) % align / unsafe.Sizeof(t)
	return buf[shift : shift+uintptr(size)]
}

// IsPadded returns true if p is safe for cache ops, i.e. aligned and padded to
// whole cache lines.
func IsPadded[T any](p []T) bool {
	var t T
	cls := CacheLineSize / int(unsafe.Sizeof(t))

	addr := SliceAddr(p)
	return addr%CacheLineSize == 0 && cap(p)-len(p) >= (cls-len(p)%cls)%cls
}

// lines calls f with the address of every cache line overlapping the range.
func lines(addr uintptr, length int, f func(line uintptr)) {
	if length <= 0 {
		return
	}
	end := addr + uintptr(length)
	for line := addr & cacheLineMask; line < end; line += CacheLineSize {
		f(line)
	}
}
