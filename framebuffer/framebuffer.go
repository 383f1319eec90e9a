// Package framebuffer provides the memory the display controller scans out
// from and the arithmetic to address pixels in it.
package framebuffer

import (
	"unsafe"

	"github.com/clktmr/dispflush/mcu/cpu"
)

// Alignment of allocated frame buffers. The LTDC fetches in bursts of 64
// bytes.
const Alignment = 64

// Slot is a region of memory holding exactly one frame.
type Slot struct {
	Pix      []byte
	Geometry Geometry
}

// NewSlot allocates a frame buffer on the heap. It is padded to whole cache
// lines, so the cache can be invalidated over it.
func NewSlot(g Geometry) *Slot {
	return &Slot{
		Pix:      cpu.MakePaddedSliceAligned[byte](g.Size(), Alignment),
		Geometry: g,
	}
}

// SlotAt returns a frame buffer at a fixed address, e.g. in external SDRAM
// that isn't managed by the Go runtime. The memory isn't touched.
func SlotAt(addr uintptr, g Geometry) *Slot {
	return &Slot{
		Pix:      unsafe.Slice((*byte)(unsafe.Pointer(addr)), g.Size()),
		Geometry: g,
	}
}

func (s *Slot) Addr() uintptr {
	return cpu.SliceAddr(s.Pix)
}

// Row returns the pixels of row y.
func (s *Slot) Row(y int) []byte {
	stride := s.Geometry.Stride()
	return s.Pix[y*stride : (y+1)*stride]
}

// Image returns a view of the slot for drawing. The format must match the
// slot's geometry.
func (s *Slot) Image(f Format) *Image {
	return &Image{
		Pix:    s.Pix,
		Stride: s.Geometry.Stride(),
		Rect:   s.Geometry.Bounds(),
		Format: f,
	}
}
