package dma

import (
	"unsafe"

	"github.com/clktmr/dispflush/mcu/mmio"
)

// DMA2 is the only controller that can do memory-to-memory transfers.
var DMA2 = (*Registers)(unsafe.Pointer(uintptr(0x4002_6400)))

// Registers of a DMA controller
type Registers struct {
	isr    [2]mmio.R32[intFlags] // LISR, HISR
	ifcr   [2]mmio.R32[intFlags] // LIFCR, HIFCR
	stream [8]streamRegisters
}

type streamRegisters struct {
	cr   mmio.R32[control]
	ndtr mmio.U32
	par  mmio.U32
	m0ar mmio.U32
	m1ar mmio.U32
	fcr  mmio.U32
}

// Interrupt flags of stream 0. The flags of the other streams are shifted
// by flagShift.
type intFlags uint32

const (
	feif  intFlags = 1 << 0 // FIFO error
	dmeif intFlags = 1 << 2 // direct mode error
	teif  intFlags = 1 << 3 // transfer error
	htif  intFlags = 1 << 4 // half transfer
	tcif  intFlags = 1 << 5 // transfer complete

	allFlags = feif | dmeif | teif | htif | tcif
)

var flagShift = [4]uint{0, 6, 16, 22}

type control uint32

const (
	crEN    control = 1 << 0
	crDMEIE control = 1 << 1
	crTEIE  control = 1 << 2
	crHTIE  control = 1 << 3
	crTCIE  control = 1 << 4
	crPINC  control = 1 << 9
	crMINC  control = 1 << 10

	crDirMemToMem control = 2 << 6
	crPSizeShift          = 11
	crMSizeShift          = 13
	crPLHigh      control = 2 << 16
)

const (
	fcrFTHFull uint32 = 3 << 0
	fcrDMDIS   uint32 = 1 << 2
)

// NDTR is 16 bits wide
const maxTransfer = 0xffff
