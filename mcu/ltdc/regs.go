package ltdc

import (
	"unsafe"

	"github.com/clktmr/dispflush/mcu/mmio"
)

// LTDC is the display controller's register block.
var LTDC = (*Registers)(unsafe.Pointer(uintptr(0x4001_6800)))

type Registers struct {
	_     [2]uint32
	sscr  mmio.U32 // synchronization size
	bpcr  mmio.U32 // back porch
	awcr  mmio.U32 // active width
	twcr  mmio.U32 // total width
	gcr   mmio.R32[gcrFlags]
	_     [2]uint32
	srcr  mmio.R32[reload]
	_     uint32
	bccr  mmio.U32 // background color
	_     uint32
	ier   mmio.U32
	isr   mmio.U32
	icr   mmio.U32
	lipcr mmio.U32
	cpsr  mmio.U32
	cdsr  mmio.U32
	_     [14]uint32
	layer [2]layerRegisters
}

type layerRegisters struct {
	cr     mmio.R32[layerFlags]
	whpcr  mmio.U32 // window horizontal position
	wvpcr  mmio.U32 // window vertical position
	ckcr   mmio.U32
	pfcr   mmio.U32 // pixel format
	cacr   mmio.U32 // constant alpha
	dccr   mmio.U32 // default color
	bfcr   mmio.U32 // blending factors
	_      [2]uint32
	cfbar  mmio.U32 // color frame buffer address
	cfblr  mmio.U32 // color frame buffer length
	cfblnr mmio.U32 // color frame buffer line number
	_      [3]uint32
	clutwr mmio.U32
	_      [15]uint32
}

type gcrFlags uint32

const (
	ltdcen gcrFlags = 1 << 0
	pcpol  gcrFlags = 1 << 28
	depol  gcrFlags = 1 << 29
	vspol  gcrFlags = 1 << 30
	hspol  gcrFlags = 1 << 31
)

type reload uint32

const (
	imr reload = 1 << 0 // immediate
	vbr reload = 1 << 1 // on vertical blanking
)

type layerFlags uint32

const (
	layerEnable layerFlags = 1 << 0
)

// Pixel formats
const (
	pfARGB8888 = 0
	pfRGB888   = 1
	pfRGB565   = 2
)

// Blending factors for constant alpha
const bfConstAlpha = 4<<8 | 5
