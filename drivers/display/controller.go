// Package display moves rendered pixels into the frame buffer scanned out by
// the display controller.
//
// A Controller accepts one flush request at a time. Depending on its Mode it
// either copies the dirty area into the live frame buffer using a sequence of
// DMA transfers, or makes a completely rendered frame buffer the active one.
// Either way the request's done callback is called exactly once.
package display

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync/atomic"

	"github.com/clktmr/dispflush/debug"
	"github.com/clktmr/dispflush/framebuffer"
	"github.com/clktmr/dispflush/mcu/cpu"
)

var (
	ErrBusy          = errors.New("display: flush in progress")
	ErrBounds        = errors.New("display: area out of bounds")
	ErrShortSource   = errors.New("display: source shorter than area")
	ErrNilCallback   = errors.New("display: nil done callback")
	ErrClosed        = errors.New("display: controller closed")
	ErrForeignBuffer = errors.New("display: not a frame buffer of this controller")
)

// State of a Controller
type State int32

const (
	Idle State = iota
	TransferringChunk
	Draining
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case TransferringChunk:
		return "transferring"
	case Draining:
		return "draining"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Area is a rectangle with inclusive bounds, as rendering libraries usually
// report dirty areas.
type Area struct {
	X1, Y1, X2, Y2 int
}

// AreaOf returns the area covering r, which must not be empty.
func AreaOf(r image.Rectangle) Area {
	return Area{r.Min.X, r.Min.Y, r.Max.X - 1, r.Max.Y - 1}
}

func (a Area) Rect() image.Rectangle {
	return image.Rect(a.X1, a.Y1, a.X2+1, a.Y2+1)
}

// request is the flush in progress. It's owned by whoever moved the state to
// TransferringChunk: Submit until the first transfer is started, the
// completion of the last transfer afterwards.
type request struct {
	rect image.Rectangle
	src  []byte
	done func()

	rows      int // left to copy
	chunkRows int // rows per transfer
	chunk     int // rows in the current transfer
	srcOff    int
	dstOff    int
}

// strategy implements a Mode.
type strategy interface {
	// check rejects requests the mode can't serve. It must not modify
	// any state.
	check(r image.Rectangle, src []byte) error
	// start starts serving c.req and eventually calls c.finish.
	start()
}

// Controller serializes flush requests to the frame buffer.
type Controller struct {
	geom    framebuffer.Geometry
	guard   cpu.Guard
	scanout Scanout
	slots   []*framebuffer.Slot
	active  atomic.Int32
	mode    Mode
	fatal   func(error)

	strategy strategy

	state   atomic.Int32
	enabled atomic.Bool
	closing atomic.Bool
	drained chan struct{}

	req request
}

// New returns a controller for the validated config. The first buffer is
// made the active one.
func New(cfg Config) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Controller{
		geom:    cfg.Geometry,
		guard:   cpu.Guard{Cache: cfg.Cache},
		scanout: cfg.Scanout,
		slots:   cfg.Buffers,
		mode:    cfg.Mode,
		fatal:   cfg.Fatal,
		drained: make(chan struct{}),
	}
	if c.fatal == nil {
		c.fatal = debug.Halt
	}
	if c.slots == nil {
		for range cfg.buffersNeeded() {
			c.slots = append(c.slots, framebuffer.NewSlot(cfg.Geometry))
		}
	}

	switch cfg.Mode {
	case PartialFlush:
		c.strategy = newPartialFlush(c, cfg.Engine, cfg.BlockSize)
	case FullSwap:
		c.strategy = &fullSwap{c: c}
	}

	c.enabled.Store(true)
	c.scanout.SetAddress(c.slots[0].Addr())
	return c, nil
}

// Submit starts flushing the pixels in src to the area a of the screen. src
// holds the area's rows back to back and must not be modified until done
// was called. done is called exactly once, either from the interrupt
// handler of the transfer engine or before Submit returns. It is never
// called if Submit returns an error.
//
// In FullSwap mode src must be the Pix of the standby buffer, which becomes
// the active one. The area is only checked for validity.
//
// Submit doesn't block. A second Submit before done was called fails with
// ErrBusy.
func (c *Controller) Submit(a Area, src []byte, done func()) error {
	if done == nil {
		return ErrNilCallback
	}
	r, err := c.check(a, src)
	if err != nil {
		return err
	}
	if err := c.strategy.check(r, src); err != nil {
		return err
	}

	if !c.state.CompareAndSwap(int32(Idle), int32(TransferringChunk)) {
		if c.State() == Draining {
			return ErrClosed
		}
		return ErrBusy
	}
	if c.closing.Load() {
		c.release()
		return ErrClosed
	}

	c.req = request{rect: r, src: src, done: done}
	if !c.enabled.Load() {
		c.finish()
		return nil
	}
	c.strategy.start()
	return nil
}

func (c *Controller) check(a Area, src []byte) (image.Rectangle, error) {
	if a.X1 > a.X2 || a.Y1 > a.Y2 {
		return image.Rectangle{}, fmt.Errorf("%w: inverted area %v", ErrBounds, a)
	}
	r := a.Rect()
	if !r.In(c.geom.Bounds()) {
		return image.Rectangle{}, fmt.Errorf("%w: %v not in %v", ErrBounds, r, c.geom.Bounds())
	}
	if n := r.Dx() * r.Dy() * c.geom.BytesPerPixel; len(src) < n {
		return image.Rectangle{}, fmt.Errorf("%w: %d bytes for %d", ErrShortSource, len(src), n)
	}
	return r, nil
}

// finish completes the request. It's called by whoever owns the request.
func (c *Controller) finish() {
	done := c.req.done
	c.req = request{}
	c.state.Store(int32(Idle))
	done()
	c.drainIfClosing()
}

// fail gives up on the request, leaving the controller busy forever.
func (c *Controller) fail(err error) {
	c.fatal(fmt.Errorf("display: flushing %v: %w", c.req.rect, err))
}

func (c *Controller) release() {
	c.state.Store(int32(Idle))
	c.drainIfClosing()
}

func (c *Controller) drainIfClosing() {
	if c.closing.Load() && c.state.CompareAndSwap(int32(Idle), int32(Draining)) {
		close(c.drained)
	}
}

// Drain rejects all further requests and waits for the one in progress to
// complete. It returns the context's error if it expires first, which means
// the transfer engine stalled.
func (c *Controller) Drain(ctx context.Context) error {
	c.closing.Store(true)
	c.drainIfClosing()
	select {
	case <-c.drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close drains the controller without a deadline.
func (c *Controller) Close() error {
	return c.Drain(context.Background())
}

// Enable hardware work for following requests.
func (c *Controller) Enable() {
	c.enabled.Store(true)
}

// Disable hardware work for following requests, which are completed
// immediately. A flush in progress isn't affected.
func (c *Controller) Disable() {
	c.enabled.Store(false)
}

func (c *Controller) Enabled() bool {
	return c.enabled.Load()
}

func (c *Controller) State() State {
	return State(c.state.Load())
}

// Busy reports if a flush is in progress. A controller that stays busy
// indicates a stalled transfer engine.
func (c *Controller) Busy() bool {
	return c.State() == TransferringChunk
}

func (c *Controller) Mode() Mode {
	return c.mode
}

func (c *Controller) Geometry() framebuffer.Geometry {
	return c.geom
}

// Buffers returns the frame buffers.
func (c *Controller) Buffers() []*framebuffer.Slot {
	return c.slots
}

// Active returns the frame buffer being scanned out.
func (c *Controller) Active() *framebuffer.Slot {
	return c.slots[c.active.Load()]
}

// Standby returns the frame buffer to render the next frame into in
// FullSwap mode, nil otherwise.
func (c *Controller) Standby() *framebuffer.Slot {
	if len(c.slots) < 2 {
		return nil
	}
	return c.slots[1-c.active.Load()]
}
