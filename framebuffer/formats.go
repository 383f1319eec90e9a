package framebuffer

import (
	"fmt"
	"image"
	"image/color"

	"github.com/clktmr/dispflush/mcu/cpu"
)

// Format is the memory layout of a single pixel. All formats are stored
// little-endian, which is what the LTDC reads on a Cortex-M.
type Format uint8

const (
	ARGB8888 Format = iota + 1 // 32bit (8:8:8:8), not premultiplied
	RGB888                     // 24bit (8:8:8)
	RGB565                     // 16bit (5:6:5)
)

func (f Format) BytesPerPixel() int {
	switch f {
	case ARGB8888:
		return 4
	case RGB888:
		return 3
	case RGB565:
		return 2
	}
	return 0
}

func (f Format) ColorModel() color.Model {
	switch f {
	case ARGB8888:
		return color.NRGBAModel
	case RGB888:
		return RGB888Model
	case RGB565:
		return RGB565Model
	}
	return nil
}

func (f Format) String() string {
	switch f {
	case ARGB8888:
		return "ARGB8888"
	case RGB888:
		return "RGB888"
	case RGB565:
		return "RGB565"
	}
	return fmt.Sprintf("Format(%d)", uint8(f))
}

// RGB565Color is a pixel in RGB565 format.
type RGB565Color uint16

func (c RGB565Color) RGBA() (r, g, b, a uint32) {
	r5, g6, b5 := uint32(c>>11), uint32(c>>5)&0x3f, uint32(c)&0x1f
	r = r5<<11 | r5<<6 | r5<<1 | r5>>4
	g = g6<<10 | g6<<4 | g6>>2
	b = b5<<11 | b5<<6 | b5<<1 | b5>>4
	return r, g, b, 0xffff
}

var RGB565Model color.Model = color.ModelFunc(rgb565Model)

func rgb565Model(c color.Color) color.Color {
	if _, ok := c.(RGB565Color); ok {
		return c
	}
	r, g, b, _ := c.RGBA()
	return RGB565Color((r & 0xf800) | (g&0xfc00)>>5 | (b&0xf800)>>11)
}

// RGB888Model converts to opaque color.RGBA, dropping alpha.
var RGB888Model color.Model = color.ModelFunc(rgb888Model)

func rgb888Model(c color.Color) color.Color {
	r, g, b, _ := c.RGBA()
	return color.RGBA{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8), 0xff}
}

// Image stores pixels of a Format in a byte slice. It implements draw.Image,
// so all the drawing tools from the standard library can be used. It's slow,
// since there are no optimized paths for it in the image/draw package.
type Image struct {
	Pix    []byte
	Stride int
	Rect   image.Rectangle
	Format Format
}

// NewImage allocates an image that is safe for cache operations.
func NewImage(r image.Rectangle, f Format) *Image {
	bpp := f.BytesPerPixel()
	return &Image{
		Pix:    cpu.MakePaddedSliceAligned[byte](r.Dx()*r.Dy()*bpp, Alignment),
		Stride: bpp * r.Dx(),
		Rect:   r,
		Format: f,
	}
}

func (p *Image) ColorModel() color.Model { return p.Format.ColorModel() }

func (p *Image) Bounds() image.Rectangle {
	return p.Rect
}

func (p *Image) At(x, y int) color.Color {
	if !(image.Point{x, y}.In(p.Rect)) {
		return color.RGBA{}
	}
	i := p.PixOffset(x, y)
	s := p.Pix[i : i+p.Format.BytesPerPixel()]
	switch p.Format {
	case ARGB8888:
		return color.NRGBA{s[2], s[1], s[0], s[3]}
	case RGB888:
		return color.RGBA{s[2], s[1], s[0], 0xff}
	case RGB565:
		return RGB565Color(uint16(s[0]) | uint16(s[1])<<8)
	}
	return color.RGBA{}
}

func (p *Image) Set(x, y int, c color.Color) {
	if !(image.Point{x, y}.In(p.Rect)) {
		return
	}
	i := p.PixOffset(x, y)
	s := p.Pix[i : i+p.Format.BytesPerPixel()]
	switch p.Format {
	case ARGB8888:
		col := color.NRGBAModel.Convert(c).(color.NRGBA)
		s[0], s[1], s[2], s[3] = col.B, col.G, col.R, col.A
	case RGB888:
		col := rgb888Model(c).(color.RGBA)
		s[0], s[1], s[2] = col.B, col.G, col.R
	case RGB565:
		col := rgb565Model(c).(RGB565Color)
		s[0], s[1] = uint8(col), uint8(col>>8)
	}
}

func (p *Image) PixOffset(x, y int) int {
	return (y-p.Rect.Min.Y)*p.Stride + (x-p.Rect.Min.X)*p.Format.BytesPerPixel()
}

// SubImage returns an image representing the portion of p visible through r.
// The returned value shares pixels with the original image.
func (p *Image) SubImage(r image.Rectangle) image.Image {
	r = r.Intersect(p.Rect)
	if r.Empty() {
		return &Image{Format: p.Format}
	}
	i := p.PixOffset(r.Min.X, r.Min.Y)
	return &Image{
		Pix:    p.Pix[i:],
		Stride: p.Stride,
		Rect:   r,
		Format: p.Format,
	}
}
