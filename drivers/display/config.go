package display

import (
	"errors"
	"fmt"

	"github.com/clktmr/dispflush/framebuffer"
	"github.com/clktmr/dispflush/mcu/cpu"
	"github.com/clktmr/dispflush/mcu/dma"
)

var ErrConfig = errors.New("display: invalid configuration")

// Mode selects how rendered frames reach the screen.
type Mode int

const (
	// PartialFlush copies dirty areas into a single frame buffer while it
	// is being scanned out. Requires one buffer and a transfer engine.
	PartialFlush Mode = iota
	// FullSwap renders complete frames into the standby buffer and makes
	// it the active one. Requires two buffers, no transfers are done.
	FullSwap
)

func (m Mode) String() string {
	switch m {
	case PartialFlush:
		return "partial"
	case FullSwap:
		return "full"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode returns the mode named by s, see Mode.String.
func ParseMode(s string) (Mode, error) {
	for _, m := range []Mode{PartialFlush, FullSwap} {
		if m.String() == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown mode %q", ErrConfig, s)
}

// Scanout is the display controller reading the active frame buffer.
type Scanout interface {
	SetAddress(addr uintptr)
}

// Config is fixed at initialization.
type Config struct {
	Geometry framebuffer.Geometry
	Mode     Mode

	// BlockSize is the number of rows copied per transfer when a dirty
	// area spans the full display width. It's limited to the rows a single
	// transfer can copy. Only used by PartialFlush.
	BlockSize int

	Scanout Scanout
	Engine  dma.Engine // PartialFlush only
	Cache   cpu.Cache  // nil if memory isn't cached

	// Buffers are the frame buffers to use, PartialFlush needs one and
	// FullSwap two. They are allocated if nil.
	Buffers []*framebuffer.Slot

	// Fatal is called if the transfer engine refuses a transfer. It must
	// not return, defaults to debug.Halt.
	Fatal func(error)
}

func (c *Config) buffersNeeded() int {
	if c.Mode == FullSwap {
		return 2
	}
	return 1
}

// Validate reports configuration errors, which would otherwise only show
// up on the first flush or not at all.
func (c *Config) Validate() error {
	if err := c.Geometry.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}
	if c.Scanout == nil {
		return fmt.Errorf("%w: no scanout", ErrConfig)
	}

	switch c.Mode {
	case PartialFlush:
		if c.BlockSize < 1 {
			return fmt.Errorf("%w: block size %d", ErrConfig, c.BlockSize)
		}
		if c.Engine == nil {
			return fmt.Errorf("%w: no transfer engine", ErrConfig)
		}
		size := c.Engine.ElementSize()
		if c.Geometry.BytesPerPixel%size != 0 {
			return fmt.Errorf("%w: %d bytes per pixel in %d byte elements",
				ErrConfig, c.Geometry.BytesPerPixel, size)
		}
		if n := c.Geometry.Stride() / size; n > c.Engine.MaxElements() {
			return fmt.Errorf("%w: row of %d elements exceeds transfer size",
				ErrConfig, n)
		}
	case FullSwap:
	default:
		return fmt.Errorf("%w: %v", ErrConfig, c.Mode)
	}

	if c.Buffers != nil {
		if len(c.Buffers) != c.buffersNeeded() {
			return fmt.Errorf("%w: %d buffers in %v mode", ErrConfig,
				len(c.Buffers), c.Mode)
		}
		for i, b := range c.Buffers {
			if b == nil || b.Geometry != c.Geometry || len(b.Pix) < c.Geometry.Size() {
				return fmt.Errorf("%w: buffer %d doesn't match geometry", ErrConfig, i)
			}
		}
	}
	return nil
}
