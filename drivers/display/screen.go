package display

import (
	"image/color"

	"github.com/embeddedgo/display/pix"

	"github.com/clktmr/dispflush/framebuffer"
)

// Screen is the drawing surface of a Controller.
type Screen struct {
	*pix.Area
	Display *pix.Display
	Driver  *PixDriver
}

// NewScreen returns a screen drawing pixels of format f.
func NewScreen(c *Controller, f framebuffer.Format) *Screen {
	drv := NewPixDriver(c, f)
	disp := pix.NewDisplay(drv)
	return &Screen{
		Area:    disp.NewArea(disp.Bounds()),
		Display: disp,
		Driver:  drv,
	}
}

// ClearBackground fills the screen with the specified color.
func (s *Screen) ClearBackground(c color.Color) {
	s.SetColor(c)
	s.Fill(s.Bounds())
}

// EndDrawing makes the frame visible and reports errors from flushing it.
func (s *Screen) EndDrawing() error {
	s.Display.Flush()
	return s.Driver.Err(true)
}
