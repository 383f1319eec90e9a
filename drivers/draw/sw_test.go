package draw_test

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	qt "github.com/frankban/quicktest"
	"golang.org/x/image/colornames"

	swdraw "github.com/clktmr/dispflush/drivers/draw"
	"github.com/clktmr/dispflush/framebuffer"
)

// The fast paths must produce what image/draw produces.
func TestSWMatchesImageDraw(t *testing.T) {
	tests := map[string]struct {
		op   swdraw.SW
		r    image.Rectangle
		fill color.Color
	}{
		"opaqueOver":  {swdraw.OverSW, image.Rect(3, 2, 17, 9), colornames.Teal},
		"opaqueSrc":   {swdraw.SrcSW, image.Rect(0, 0, 24, 16), colornames.Yellow},
		"clipped":     {swdraw.SrcSW, image.Rect(-5, 10, 30, 40), colornames.Crimson},
		"singlePixel": {swdraw.OverSW, image.Rect(23, 15, 24, 16), colornames.White},
		"translucent": {swdraw.OverSW, image.Rect(1, 1, 9, 9), color.NRGBA{0xff, 0, 0, 0x80}},
		"transparent": {swdraw.SrcSW, image.Rect(1, 1, 9, 9), color.Transparent},
		"outOfBounds": {swdraw.SrcSW, image.Rect(30, 30, 40, 40), colornames.Blue},
	}
	for name, tc := range tests {
		for _, f := range []framebuffer.Format{framebuffer.RGB565, framebuffer.RGB888, framebuffer.ARGB8888} {
			t.Run(name+"/"+f.String(), func(t *testing.T) {
				c := qt.New(t)

				bounds := image.Rect(0, 0, 24, 16)
				got := framebuffer.NewImage(bounds, f)
				want := framebuffer.NewImage(bounds, f)
				for _, img := range []*framebuffer.Image{got, want} {
					draw.Draw(img, bounds, &image.Uniform{colornames.Gray}, image.Point{}, draw.Src)
				}

				src := &image.Uniform{tc.fill}
				tc.op.Draw(got, tc.r, src, image.Point{})
				draw.Draw(want, tc.r, src, image.Point{}, draw.Op(tc.op))
				c.Assert(got.Pix, qt.DeepEquals, want.Pix)
			})
		}
	}
}
