package framebuffer

import (
	"errors"
	"fmt"
	"image"
)

var ErrGeometry = errors.New("framebuffer: invalid geometry")

// Geometry describes a row-major frame buffer without padding between rows.
// It must agree with what the display controller is configured to scan,
// otherwise the screen shows garbage without any error being reported.
type Geometry struct {
	Width, Height int
	BytesPerPixel int
}

// GeometryOf returns the geometry of a w×h frame buffer in format f.
func GeometryOf(w, h int, f Format) Geometry {
	return Geometry{Width: w, Height: h, BytesPerPixel: f.BytesPerPixel()}
}

func (g Geometry) Validate() error {
	if g.Width <= 0 || g.Height <= 0 {
		return fmt.Errorf("%w: size %dx%d", ErrGeometry, g.Width, g.Height)
	}
	switch g.BytesPerPixel {
	case 2, 3, 4:
	default:
		return fmt.Errorf("%w: %d bytes per pixel", ErrGeometry, g.BytesPerPixel)
	}
	return nil
}

func (g Geometry) Bounds() image.Rectangle {
	return image.Rect(0, 0, g.Width, g.Height)
}

// Stride is the distance in bytes between two rows.
func (g Geometry) Stride() int {
	return g.Width * g.BytesPerPixel
}

func (g Geometry) Size() int {
	return g.Stride() * g.Height
}

// Offset returns the offset in bytes of the pixel at row and col.
func (g Geometry) Offset(row, col int) int {
	return row*g.Stride() + col*g.BytesPerPixel
}

// Addr returns the address of the pixel at row and col in the frame buffer
// starting at base.
func (g Geometry) Addr(base uintptr, row, col int) uintptr {
	return base + uintptr(g.Offset(row, col))
}
