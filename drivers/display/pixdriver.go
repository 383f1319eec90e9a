package display

import (
	"image"
	"image/color"
	"image/draw"
	"time"

	"github.com/clktmr/dispflush/debug"
	swdraw "github.com/clktmr/dispflush/drivers/draw"
	"github.com/clktmr/dispflush/framebuffer"
	"github.com/clktmr/dispflush/mcu/cpu"
)

// PixDriver implements pix.Driver on top of a Controller. Drawing happens in
// memory the display controller doesn't scan, Flush makes the changes since
// the last Flush visible and blocks until they are.
type PixDriver struct {
	c      *Controller
	format framebuffer.Format

	canvas *framebuffer.Image // PartialFlush only
	buf    []byte             // packed dirty area
	write  *framebuffer.Image
	fill   image.Uniform
	dirty  image.Rectangle

	flushed chan struct{}
	signal  func()
	err     error

	start                 time.Time
	rendertime, frametime time.Duration
}

// NewPixDriver returns a driver drawing pixels in format f, which must
// match the controller's geometry.
func NewPixDriver(c *Controller, f framebuffer.Format) *PixDriver {
	debug.Assert(f.BytesPerPixel() == c.geom.BytesPerPixel, "pixel format doesn't match geometry")

	d := &PixDriver{
		c:       c,
		format:  f,
		fill:    image.Uniform{color.Black},
		flushed: make(chan struct{}, 1),
		start:   time.Now(),
	}
	d.signal = func() { d.flushed <- struct{}{} }

	switch c.Mode() {
	case PartialFlush:
		d.canvas = framebuffer.NewImage(c.geom.Bounds(), f)
		d.buf = cpu.MakePaddedSlice[byte](c.geom.Size())
		d.write = d.canvas
	case FullSwap:
		d.write = c.Standby().Image(f)
	}
	return d
}

// Image returns the image drawn to. It changes with every Flush in FullSwap
// mode.
func (d *PixDriver) Image() draw.Image {
	return d.write
}

func (d *PixDriver) SetDir(dir int) image.Rectangle {
	return d.c.geom.Bounds()
}

func (d *PixDriver) Draw(r image.Rectangle, src image.Image, sp image.Point,
	mask image.Image, mp image.Point, op draw.Op) {
	r = r.Intersect(d.write.Bounds())
	if r.Empty() {
		return
	}
	swdraw.SW(op).DrawMask(d.write, r, src, sp, mask, mp)
	d.dirty = d.dirty.Union(r)
}

func (d *PixDriver) Fill(r image.Rectangle) {
	d.Draw(r, &d.fill, image.Point{}, nil, image.Point{}, draw.Over)
}

func (d *PixDriver) SetColor(c color.Color) {
	d.fill.C = c
}

// Flush submits everything drawn since the last Flush and waits for the
// controller to complete it.
func (d *PixDriver) Flush() {
	if d.dirty.Empty() {
		return
	}
	d.rendertime = time.Since(d.start)

	var err error
	switch d.c.Mode() {
	case PartialFlush:
		err = d.flushPartial()
	case FullSwap:
		err = d.flushFull()
	}
	if err != nil {
		if d.err == nil {
			d.err = err
		}
		return
	}

	d.dirty = image.Rectangle{}
	d.frametime = time.Since(d.start)
	d.start = time.Now()
}

func (d *PixDriver) flushPartial() error {
	r := d.dirty
	src := d.canvas.Pix[d.canvas.PixOffset(r.Min.X, r.Min.Y):]
	if r.Dx() != d.canvas.Rect.Dx() {
		// Pack the rows, the controller expects them back to back.
		rowBytes := r.Dx() * d.format.BytesPerPixel()
		for y := r.Min.Y; y < r.Max.Y; y++ {
			i := d.canvas.PixOffset(r.Min.X, y)
			copy(d.buf[(y-r.Min.Y)*rowBytes:], d.canvas.Pix[i:i+rowBytes])
		}
		src = d.buf
	}

	if err := d.c.Submit(AreaOf(r), src, d.signal); err != nil {
		return err
	}
	<-d.flushed
	return nil
}

func (d *PixDriver) flushFull() error {
	if err := d.c.Submit(AreaOf(d.c.geom.Bounds()), d.write.Pix, d.signal); err != nil {
		return err
	}
	<-d.flushed

	// The new standby buffer misses what was drawn into the new active
	// buffer since the last swap.
	active := d.write
	d.write = d.c.Standby().Image(d.format)
	n := d.dirty.Dx() * d.format.BytesPerPixel()
	for y := d.dirty.Min.Y; y < d.dirty.Max.Y; y++ {
		i := active.PixOffset(d.dirty.Min.X, y)
		copy(d.write.Pix[i:i+n], active.Pix[i:i+n])
	}
	return nil
}

func (d *PixDriver) Err(clear bool) error {
	err := d.err
	if clear {
		d.err = nil
	}
	return err
}

// FPS returns the flush rate measured over the last frame.
func (d *PixDriver) FPS() float32 {
	if d.frametime == 0 {
		return 0
	}
	return 1e9 / float32(d.frametime)
}

// Duration returns the time spent drawing the last frame, excluding the
// flush.
func (d *PixDriver) Duration() time.Duration {
	return d.rendertime
}
