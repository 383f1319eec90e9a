// Package dma provides memory-to-memory block transfers that run
// asynchronously to the CPU.
//
// An Engine copies one block at a time and reports completion from interrupt
// context. Callers must bracket transfers with the cache maintenance of
// package cpu: the engine reads and writes memory, not the CPU's cache.
package dma

import "errors"

var (
	// ErrEngineBusy is returned if a transfer is started before the previous
	// one completed.
	ErrEngineBusy = errors.New("dma: engine busy")

	// ErrInvalidLength is returned for transfers of zero elements or more
	// elements than the engine supports in a single transfer.
	ErrInvalidLength = errors.New("dma: invalid transfer length")
)

// Engine copies blocks of fixed size elements.
type Engine interface {
	// StartAsync starts copying src to dst and returns immediately. Both
	// must have the same length, which must be a multiple of ElementSize.
	// done is called once from interrupt context after the last element
	// was written. It's never called if StartAsync returns an error.
	//
	// The engine accesses memory directly, the caller must keep src and dst
	// alive and untouched until done is called.
	StartAsync(dst, src []byte, done func()) error

	// ElementSize is the size of a single element in bytes.
	ElementSize() int

	// MaxElements is the largest n accepted by StartAsync.
	MaxElements() int
}

// elements returns the number of elements to transfer.
func elements(e Engine, dst, src []byte) (n int, err error) {
	size := e.ElementSize()
	if len(dst) != len(src) || len(src)%size != 0 {
		return 0, ErrInvalidLength
	}
	n = len(src) / size
	if n < 1 || n > e.MaxElements() {
		return 0, ErrInvalidLength
	}
	return n, nil
}
