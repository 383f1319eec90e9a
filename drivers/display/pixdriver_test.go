package display_test

import (
	"image"
	"image/color"
	"testing"

	qt "github.com/frankban/quicktest"
	"golang.org/x/image/colornames"

	"github.com/clktmr/dispflush/drivers/display"
	"github.com/clktmr/dispflush/framebuffer"
	dftesting "github.com/clktmr/dispflush/testing"
)

func rgb(c color.Color) [3]uint32 {
	r, g, b, _ := c.RGBA()
	return [3]uint32{r >> 11, g >> 10, b >> 11} // RGB565 precision
}

func TestScreenPartial(t *testing.T) {
	c := qt.New(t)

	g := framebuffer.GeometryOf(320, 240, framebuffer.RGB565)
	ctrl, b := newPartial(t, g, 16)
	s := display.NewScreen(ctrl, framebuffer.RGB565)
	c.Assert(s.Bounds(), qt.Equals, g.Bounds())

	s.ClearBackground(colornames.Navy)
	c.Assert(s.EndDrawing(), qt.IsNil)
	c.Assert(b.DMA.Transfers(), qt.HasLen, 15)

	fb := ctrl.Active().Image(framebuffer.RGB565)
	c.Assert(rgb(fb.At(0, 0)), qt.Equals, rgb(colornames.Navy))
	c.Assert(rgb(fb.At(319, 239)), qt.Equals, rgb(colornames.Navy))

	b.DMA.Reset()
	s.SetColor(colornames.Orange)
	s.Fill(image.Rect(10, 20, 30, 25))
	c.Assert(s.EndDrawing(), qt.IsNil)
	c.Assert(b.DMA.Transfers(), qt.HasLen, 5)
	c.Assert(rgb(fb.At(10, 20)), qt.Equals, rgb(colornames.Orange))
	c.Assert(rgb(fb.At(29, 24)), qt.Equals, rgb(colornames.Orange))
	c.Assert(rgb(fb.At(30, 24)), qt.Equals, rgb(colornames.Navy))
	c.Assert(rgb(fb.At(10, 25)), qt.Equals, rgb(colornames.Navy))

	// Nothing drawn, nothing flushed
	b.DMA.Reset()
	c.Assert(s.EndDrawing(), qt.IsNil)
	c.Assert(b.DMA.Transfers(), qt.HasLen, 0)
	c.Assert(s.Driver.FPS() > 0, qt.IsTrue)
}

func TestScreenFullSwap(t *testing.T) {
	c := qt.New(t)

	g := framebuffer.GeometryOf(64, 32, framebuffer.ARGB8888)
	b := dftesting.NewBoard(t, 4)
	ctrl, err := display.New(display.Config{
		Geometry: g,
		Mode:     display.FullSwap,
		Scanout:  b.Scanout,
	})
	c.Assert(err, qt.IsNil)
	s := display.NewScreen(ctrl, framebuffer.ARGB8888)

	s.ClearBackground(colornames.White)
	c.Assert(s.EndDrawing(), qt.IsNil)
	first := ctrl.Active()
	c.Assert(b.Scanout.Address(), qt.Equals, first.Addr())

	s.SetColor(colornames.Green)
	s.Fill(image.Rect(0, 0, 8, 8))
	c.Assert(s.EndDrawing(), qt.IsNil)
	c.Assert(ctrl.Active(), qt.Not(qt.Equals), first)

	// Both buffers show the complete frame, so drawing can continue
	// incrementally.
	for _, slot := range ctrl.Buffers() {
		img := slot.Image(framebuffer.ARGB8888)
		c.Assert(img.At(4, 4), qt.Equals, color.Color(color.NRGBA{0x00, 0x80, 0x00, 0xff}))
		c.Assert(img.At(40, 20), qt.Equals, color.Color(color.NRGBA{0xff, 0xff, 0xff, 0xff}))
	}
	c.Assert(b.DMA.Transfers(), qt.HasLen, 0)
}

func TestScreenClosed(t *testing.T) {
	c := qt.New(t)

	ctrl, _ := newPartial(t, framebuffer.GeometryOf(32, 32, framebuffer.RGB565), 4)
	s := display.NewScreen(ctrl, framebuffer.RGB565)
	c.Assert(ctrl.Close(), qt.IsNil)

	s.ClearBackground(colornames.Red)
	c.Assert(s.EndDrawing(), qt.ErrorIs, display.ErrClosed)

	// The area stays dirty, so it's retried
	c.Assert(s.EndDrawing(), qt.ErrorIs, display.ErrClosed)
}
