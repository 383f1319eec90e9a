package cpu

import (
	"unsafe"

	"github.com/clktmr/dispflush/mcu/mmio"
)

// Cache maintenance operations of the System Control Block
const scbCacheBase uintptr = 0xe000_ef50

// CacheRegisters is the cache maintenance block of the Cortex-M7 System
// Control Block.
type CacheRegisters struct {
	iciallu  mmio.U32
	_        mmio.U32
	icimvau  mmio.U32
	dcimvac  mmio.U32 // invalidate by address to point of coherency
	dcisw    mmio.U32
	dccmvau  mmio.U32
	dccmvac  mmio.U32 // clean by address to point of coherency
	dccsw    mmio.U32
	dccimvac mmio.U32 // clean and invalidate by address
	dccisw   mmio.U32
}

// SCBCache points to the cache maintenance registers of the running CPU.
var SCBCache = (*CacheRegisters)(unsafe.Pointer(scbCacheBase))

// SCB implements Cache by address using the System Control Block.
type SCB struct {
	regs *CacheRegisters
}

func NewSCB(regs *CacheRegisters) *SCB {
	return &SCB{regs: regs}
}

// Stores to device memory are ordered with each other, so the maintenance
// operations complete before the caller's next register store, e.g. the one
// enabling a DMA stream.

func (c *SCB) Writeback(addr uintptr, length int) {
	lines(addr, length, func(line uintptr) {
		c.regs.dccmvac.Store(uint32(line))
	})
}

func (c *SCB) Invalidate(addr uintptr, length int) {
	lines(addr, length, func(line uintptr) {
		c.regs.dcimvac.Store(uint32(line))
	})
}

// WritebackInvalidate writes back and then invalidates the range.
func (c *SCB) WritebackInvalidate(addr uintptr, length int) {
	lines(addr, length, func(line uintptr) {
		c.regs.dccimvac.Store(uint32(line))
	})
}
