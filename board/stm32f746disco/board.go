// Package stm32f746disco wires the display pipeline to an STM32F746 board
// with a 1024x600 RGB panel on the LTDC and two frame buffers in SDRAM.
package stm32f746disco

import (
	"periph.io/x/conn/v3/physic"

	"github.com/clktmr/dispflush/debug"
	"github.com/clktmr/dispflush/drivers/display"
	"github.com/clktmr/dispflush/framebuffer"
	"github.com/clktmr/dispflush/mcu/cpu"
	"github.com/clktmr/dispflush/mcu/dma"
	"github.com/clktmr/dispflush/mcu/ltdc"
)

const (
	Width  = 1024
	Height = 600
	Format = framebuffer.RGB565

	// SDRAMBase is where the FMC maps the SDRAM bank.
	SDRAMBase uintptr = 0xd000_0000

	// BlockSize is the number of rows per DMA transfer of full width
	// areas. 60 rows of RGB565 stay below the NDTR limit and divide the
	// screen height evenly.
	BlockSize = 60
)

// Timing of the panel
var Timing = ltdc.Timing{
	Width: Width, Height: Height,
	HSync: 20, HBackPorch: 140, HFrontPorch: 160,
	VSync: 3, VBackPorch: 20, VFrontPorch: 12,
	PixelClock: 51200 * physic.KiloHertz,
}

// Board holds the peripherals used for the display.
type Board struct {
	DMA         *dma.Stream
	LTDC        *ltdc.Controller
	Cache       cpu.Cache
	FrameBuffer uintptr // first frame buffer, the second one follows

	// Fatal is called with errors the display can't recover from, by
	// default debug.Halt.
	Fatal func(error)
}

// Default is the running board. The DMA stream's interrupt must be routed
// to DMA2Stream0Handler.
var Default = &Board{
	DMA:         dma.NewStream(dma.DMA2, 0, 2),
	LTDC:        ltdc.New(ltdc.LTDC),
	Cache:       cpu.NewSCB(cpu.SCBCache),
	FrameBuffer: SDRAMBase,
}

// DMA2Stream0Handler handles the DMA2 stream 0 interrupt of the Default
// board.
func DMA2Stream0Handler() {
	Default.DMA.ISR()
}

func Geometry() framebuffer.Geometry {
	return framebuffer.GeometryOf(Width, Height, Format)
}

// Buffers returns the frame buffers needed in mode, back to back in SDRAM.
func (b *Board) Buffers(mode display.Mode) []*framebuffer.Slot {
	g := Geometry()
	slots := []*framebuffer.Slot{framebuffer.SlotAt(b.FrameBuffer, g)}
	if mode == display.FullSwap {
		slots = append(slots, framebuffer.SlotAt(b.FrameBuffer+uintptr(g.Size()), g))
	}
	return slots
}

// Config returns the display configuration for mode, scanning out on layer.
func (b *Board) Config(mode display.Mode, layer *ltdc.Layer) display.Config {
	cfg := display.Config{
		Geometry: Geometry(),
		Mode:     mode,
		Scanout:  layer,
		Cache:    b.Cache,
		Buffers:  b.Buffers(mode),
		Fatal:    b.Fatal,
	}
	if cfg.Fatal == nil {
		cfg.Fatal = debug.Halt
	}
	if mode == display.PartialFlush {
		cfg.BlockSize = BlockSize
		cfg.Engine = b.DMA
	}
	return cfg
}

// Init configures the LTDC to scan the first frame buffer on layer 0 and
// returns the display controller. The SDRAM, the pixel clock and the pins
// must be set up already.
func (b *Board) Init(mode display.Mode) (*display.Controller, error) {
	b.LTDC.Configure(Timing)
	layer := b.LTDC.Layer(0)
	if err := layer.Configure(Geometry(), Format, b.FrameBuffer); err != nil {
		return nil, err
	}
	cfg := b.Config(mode, layer)
	if cfg.Engine != nil {
		b.DMA.OnError = cfg.Fatal
	}
	return display.New(cfg)
}
