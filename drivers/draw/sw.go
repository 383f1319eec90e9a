// Package draw provides drawers for frame buffer images.
package draw

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/clktmr/dispflush/framebuffer"
)

// SW implements a software-based drawer by forwarding the calls to
// image/draw.
//
// image/draw has no optimized paths for framebuffer.Image, so every pixel
// goes through color conversion. Filling with an opaque color is the common
// case when drawing user interfaces and is done directly in the pixel
// format instead.
type SW draw.Op

const (
	OverSW = SW(draw.Over)
	SrcSW  = SW(draw.Src)
)

func (op SW) Draw(dst draw.Image, r image.Rectangle, src image.Image, sp image.Point) {
	op.DrawMask(dst, r, src, sp, nil, image.Point{})
}

func (op SW) DrawMask(dst draw.Image, r image.Rectangle, src image.Image, sp image.Point, mask image.Image, mp image.Point) {
	if fb, ok := dst.(*framebuffer.Image); ok && mask == nil {
		if u, ok := src.(*image.Uniform); ok && (op == SrcSW || opaque(u.C)) {
			fill(fb, r, u.C)
			return
		}
	}
	draw.DrawMask(dst, r, src, sp, mask, mp, draw.Op(op))
}

func opaque(c color.Color) bool {
	_, _, _, a := c.RGBA()
	return a == 0xffff
}

// fill sets the first pixel and replicates its bytes over the rectangle.
func fill(dst *framebuffer.Image, r image.Rectangle, c color.Color) {
	r = r.Intersect(dst.Rect)
	if r.Empty() {
		return
	}
	dst.Set(r.Min.X, r.Min.Y, c)

	i := dst.PixOffset(r.Min.X, r.Min.Y)
	row := dst.Pix[i : i+r.Dx()*dst.Format.BytesPerPixel()]
	for n := dst.Format.BytesPerPixel(); n < len(row); n *= 2 {
		copy(row[n:], row[:n])
	}
	for y := r.Min.Y + 1; y < r.Max.Y; y++ {
		i := dst.PixOffset(r.Min.X, y)
		copy(dst.Pix[i:i+len(row)], row)
	}
}
