// Package ltdc drives the LCD-TFT display controller, which continuously
// scans a frame buffer out to the panel.
package ltdc

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"periph.io/x/conn/v3/physic"

	"github.com/clktmr/dispflush/framebuffer"
)

var ErrFormat = errors.New("ltdc: unsupported pixel format")

// Timing describes the panel's signal timing in pixel clocks and lines.
type Timing struct {
	Width, Height int

	HSync, HBackPorch, HFrontPorch int
	VSync, VBackPorch, VFrontPorch int

	// Active high polarities, all signals are active low by default.
	HSyncHigh, VSyncHigh, DataEnableHigh bool
	PixelClockInverted                   bool

	PixelClock physic.Frequency
}

func (t *Timing) totalWidth() int {
	return t.HSync + t.HBackPorch + t.Width + t.HFrontPorch
}

func (t *Timing) totalHeight() int {
	return t.VSync + t.VBackPorch + t.Height + t.VFrontPorch
}

// RefreshRate returns the frame rate resulting from the pixel clock.
func (t *Timing) RefreshRate() physic.Frequency {
	pixels := physic.Frequency(t.totalWidth() * t.totalHeight())
	if pixels == 0 {
		return 0
	}
	return t.PixelClock / pixels
}

// FramePeriod returns the duration of a single frame.
func (t *Timing) FramePeriod() time.Duration {
	return t.RefreshRate().Period()
}

// Controller is the LTDC with its two layers.
type Controller struct {
	regs   *Registers
	timing Timing
	layers [2]Layer
}

func New(regs *Registers) *Controller {
	c := &Controller{regs: regs}
	for i := range c.layers {
		c.layers[i] = Layer{c: c, regs: &regs.layer[i]}
	}
	return c
}

// Configure programs the synchronization timing and enables the controller.
// The pixel clock itself must be configured in the RCC beforehand.
func (c *Controller) Configure(t Timing) {
	c.timing = t
	r := c.regs

	ahsync := uint32(t.HSync - 1)
	avsync := uint32(t.VSync - 1)
	ahbp := ahsync + uint32(t.HBackPorch)
	avbp := avsync + uint32(t.VBackPorch)
	aaw := ahbp + uint32(t.Width)
	aah := avbp + uint32(t.Height)
	totalw := aaw + uint32(t.HFrontPorch)
	totalh := aah + uint32(t.VFrontPorch)

	r.sscr.Store(ahsync<<16 | avsync)
	r.bpcr.Store(ahbp<<16 | avbp)
	r.awcr.Store(aaw<<16 | aah)
	r.twcr.Store(totalw<<16 | totalh)
	r.bccr.Store(0)

	var gcr gcrFlags
	if t.HSyncHigh {
		gcr |= hspol
	}
	if t.VSyncHigh {
		gcr |= vspol
	}
	if t.DataEnableHigh {
		gcr |= depol
	}
	if t.PixelClockInverted {
		gcr |= pcpol
	}
	r.gcr.Store(gcr | ltdcen)
}

func (c *Controller) Timing() Timing {
	return c.timing
}

// Layer returns layer n, which is 0 or 1.
func (c *Controller) Layer(n int) *Layer {
	return &c.layers[n]
}

// Layer scans out a single frame buffer.
type Layer struct {
	c    *Controller
	regs *layerRegisters
	geom framebuffer.Geometry

	// CFBAR holds only the low 32 bits, which is all there is on the
	// target but not for buffers on a 64-bit host.
	addr atomic.Uintptr
}

// Configure makes the layer scan a full screen frame buffer at base. The
// geometry must match the controller's timing and the pixel format, so the
// layer scans exactly the frame buffer that is being written.
func (l *Layer) Configure(g framebuffer.Geometry, f framebuffer.Format, base uintptr) error {
	t := &l.c.timing
	if err := g.Validate(); err != nil {
		return err
	}
	if g.Width != t.Width || g.Height != t.Height {
		return fmt.Errorf("%w: %dx%d on a %dx%d panel", framebuffer.ErrGeometry,
			g.Width, g.Height, t.Width, t.Height)
	}
	if g.BytesPerPixel != f.BytesPerPixel() {
		return fmt.Errorf("%w: %d bytes per pixel in %v", framebuffer.ErrGeometry,
			g.BytesPerPixel, f)
	}

	var pf uint32
	switch f {
	case framebuffer.ARGB8888:
		pf = pfARGB8888
	case framebuffer.RGB888:
		pf = pfRGB888
	case framebuffer.RGB565:
		pf = pfRGB565
	default:
		return fmt.Errorf("%w: %v", ErrFormat, f)
	}

	ahbp := uint32(t.HSync + t.HBackPorch - 1)
	avbp := uint32(t.VSync + t.VBackPorch - 1)
	r := l.regs
	r.whpcr.Store((ahbp+uint32(g.Width))<<16 | (ahbp + 1))
	r.wvpcr.Store((avbp+uint32(g.Height))<<16 | (avbp + 1))
	r.pfcr.Store(pf)
	r.cacr.Store(0xff)
	r.dccr.Store(0)
	r.bfcr.Store(bfConstAlpha)
	l.addr.Store(base)
	r.cfbar.Store(uint32(base))
	stride := uint32(g.Stride())
	r.cfblr.Store(stride<<16 | (stride + 7))
	r.cfblnr.Store(uint32(g.Height))
	r.cr.SetBits(layerEnable)
	l.c.regs.srcr.Store(imr)

	l.geom = g
	return nil
}

// Geometry returns the geometry the layer was configured for.
func (l *Layer) Geometry() framebuffer.Geometry {
	return l.geom
}

// SetAddress switches the scanned frame buffer. The new address takes
// effect with the next vertical blanking period, so a frame is never
// scanned from two buffers.
func (l *Layer) SetAddress(addr uintptr) {
	l.addr.Store(addr)
	l.regs.cfbar.Store(uint32(addr))
	l.c.regs.srcr.Store(vbr)
}

// Address returns the address of the scanned frame buffer.
func (l *Layer) Address() uintptr {
	return l.addr.Load()
}

// Pending reports if a new address is waiting for the vertical blanking
// period.
func (l *Layer) Pending() bool {
	return l.c.regs.srcr.LoadBits(vbr) != 0
}

// Enable or disable the layer.
func (l *Layer) Enable(on bool) {
	if on {
		l.regs.cr.SetBits(layerEnable)
	} else {
		l.regs.cr.ClearBits(layerEnable)
	}
	l.c.regs.srcr.Store(vbr)
}
