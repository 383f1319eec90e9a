package display

import (
	"image"

	"github.com/clktmr/dispflush/framebuffer"
	"github.com/clktmr/dispflush/mcu/cpu"
	"github.com/clktmr/dispflush/mcu/dma"
)

// partialFlush copies dirty areas into the live frame buffer. Areas spanning
// the full width are contiguous in the frame buffer and are copied in blocks
// of rows, all others one row per transfer.
type partialFlush struct {
	c      *Controller
	engine dma.Engine
	slot   *framebuffer.Slot
	block  int

	chunkDone func()
}

func newPartialFlush(c *Controller, engine dma.Engine, block int) *partialFlush {
	maxRows := engine.MaxElements() * engine.ElementSize() / c.geom.Stride()
	p := &partialFlush{
		c:      c,
		engine: engine,
		slot:   c.slots[0],
		block:  min(block, maxRows),
	}
	p.chunkDone = p.onChunkComplete
	return p
}

func (p *partialFlush) check(r image.Rectangle, src []byte) error {
	return nil
}

func (p *partialFlush) start() {
	req := &p.c.req
	req.rows = req.rect.Dy()
	req.chunkRows = 1
	if req.rect.Dx() == p.c.geom.Width {
		req.chunkRows = p.block
	}
	req.srcOff = 0
	req.dstOff = p.c.geom.Offset(req.rect.Min.Y, req.rect.Min.X)

	rowBytes := req.rect.Dx() * p.c.geom.BytesPerPixel
	p.c.guard.ToHardware(req.src[:req.rows*rowBytes])
	end := p.c.geom.Offset(req.rect.Max.Y-1, req.rect.Min.X) + rowBytes
	p.c.guard.ToHardwareExclusive(p.slot.Pix[req.dstOff:end])
	p.issue()
}

// issue starts the transfer of the next chunk.
func (p *partialFlush) issue() {
	req := &p.c.req
	req.chunk = min(req.chunkRows, req.rows)

	// A chunk of more than one row always spans the full width, so
	// its rows are contiguous in both buffers.
	n := req.chunk * req.rect.Dx() * p.c.geom.BytesPerPixel
	src := req.src[req.srcOff : req.srcOff+n]
	dst := p.slot.Pix[req.dstOff : req.dstOff+n]
	if err := p.engine.StartAsync(dst, src, p.chunkDone); err != nil {
		p.c.fail(err)
	}
}

// onChunkComplete runs in interrupt context.
func (p *partialFlush) onChunkComplete() {
	req := &p.c.req
	req.rows -= req.chunk
	req.srcOff += req.chunk * req.rect.Dx() * p.c.geom.BytesPerPixel
	req.dstOff += req.chunk * p.c.geom.Stride()

	if req.rows > 0 {
		p.issue()
		return
	}

	p.c.guard.ToCPU(p.slot.Pix)
	p.c.finish()
}

// fullSwap makes a completely rendered frame buffer the active one.
type fullSwap struct {
	c *Controller
}

func (f *fullSwap) slot(src []byte) int {
	for i, s := range f.c.slots {
		if len(src) >= len(s.Pix) && cpu.SliceAddr(src) == s.Addr() {
			return i
		}
	}
	return -1
}

func (f *fullSwap) check(r image.Rectangle, src []byte) error {
	if f.slot(src) < 0 {
		return ErrForeignBuffer
	}
	return nil
}

func (f *fullSwap) start() {
	i := f.slot(f.c.req.src)
	s := f.c.slots[i]
	f.c.guard.ToHardware(s.Pix)
	f.c.scanout.SetAddress(s.Addr())
	f.c.active.Store(int32(i))
	f.c.finish()
}
