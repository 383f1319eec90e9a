package display_test

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/clktmr/dispflush/drivers/display"
	"github.com/clktmr/dispflush/framebuffer"
	"github.com/clktmr/dispflush/mcu/cpu"
	"github.com/clktmr/dispflush/mcu/dma"
	dftesting "github.com/clktmr/dispflush/testing"
)

func TestMain(m *testing.M) { dftesting.TestMain(m) }

var screen = framebuffer.GeometryOf(1024, 600, framebuffer.RGB565)

// doneCounter counts calls of a done callback.
type doneCounter struct {
	n  atomic.Int32
	ch chan struct{}
}

func newDone() *doneCounter {
	return &doneCounter{ch: make(chan struct{})}
}

func (d *doneCounter) done() {
	if d.n.Add(1) == 1 {
		close(d.ch)
	}
}

func (d *doneCounter) wait(t testing.TB) {
	t.Helper()
	select {
	case <-d.ch:
	case <-time.After(5 * time.Second):
		t.Fatal("done wasn't called")
	}
}

func pattern(n int) []byte {
	p := cpu.MakePaddedSlice[byte](n)
	for i := range p {
		p[i] = byte(i*7 + 1)
	}
	return p
}

func newPartial(t testing.TB, g framebuffer.Geometry, block int) (*display.Controller, *dftesting.Board) {
	b := dftesting.NewBoard(t, 2)
	c, err := display.New(display.Config{
		Geometry:  g,
		Mode:      display.PartialFlush,
		BlockSize: block,
		Scanout:   b.Scanout,
		Engine:    b.DMA,
		Cache:     b.Cache,
	})
	if err != nil {
		t.Fatal(err)
	}
	return c, b
}

func TestFullScreenBlocks(t *testing.T) {
	c := qt.New(t)

	ctrl, b := newPartial(t, screen, 60)
	src := pattern(screen.Size())
	d := newDone()
	err := ctrl.Submit(display.Area{X1: 0, Y1: 0, X2: 1023, Y2: 599}, src, d.done)
	c.Assert(err, qt.IsNil)
	d.wait(t)

	slot := ctrl.Active()
	transfers := b.DMA.Transfers()
	c.Assert(transfers, qt.HasLen, 10)
	for i, tr := range transfers {
		c.Assert(tr, qt.Equals, dma.Transfer{
			Dst: screen.Addr(slot.Addr(), i*60, 0),
			Src: cpu.SliceAddr(src) + uintptr(i*60*screen.Stride()),
			N:   60 * 1024,
		}, qt.Commentf("transfer %d", i))
	}
	c.Assert(bytes.Equal(slot.Pix[:screen.Size()], src), qt.IsTrue)
	c.Assert(d.n.Load(), qt.Equals, int32(1))
	c.Assert(ctrl.State(), qt.Equals, display.Idle)
}

func TestSingleRow(t *testing.T) {
	for _, block := range []int{1, 60, 600} {
		c := qt.New(t)

		ctrl, b := newPartial(t, screen, block)
		src := pattern(201 * 2)
		d := newDone()
		err := ctrl.Submit(display.Area{X1: 100, Y1: 50, X2: 300, Y2: 50}, src, d.done)
		c.Assert(err, qt.IsNil)
		d.wait(t)

		slot := ctrl.Active()
		c.Assert(b.DMA.Transfers(), qt.DeepEquals, []dma.Transfer{{
			Dst: screen.Addr(slot.Addr(), 50, 100),
			Src: cpu.SliceAddr(src),
			N:   201,
		}}, qt.Commentf("block size %d", block))
		off := screen.Offset(50, 100)
		c.Assert(slot.Pix[off:off+len(src)], qt.DeepEquals, src)
		c.Assert(slot.Pix[off-1], qt.Equals, byte(0))
		c.Assert(slot.Pix[off+len(src)], qt.Equals, byte(0))
	}
}

// rowsCovered returns the rows and start columns written by transfers, in
// the order they were written.
func rowsCovered(g framebuffer.Geometry, base uintptr, transfers []dma.Transfer, rowBytes int) (rows, cols []int) {
	for _, tr := range transfers {
		off := int(tr.Dst - base)
		n := tr.N * 2 / rowBytes
		for i := range n {
			rows = append(rows, off/g.Stride()+i)
			cols = append(cols, off%g.Stride()/g.BytesPerPixel)
		}
	}
	return
}

func TestCoverage(t *testing.T) {
	g := framebuffer.GeometryOf(64, 48, framebuffer.RGB565)
	tests := map[string]display.Area{
		"pixel":          {X1: 5, Y1: 7, X2: 5, Y2: 7},
		"column":         {X1: 63, Y1: 0, X2: 63, Y2: 47},
		"partialWidth":   {X1: 3, Y1: 10, X2: 40, Y2: 29},
		"fullWidthBlock": {X1: 0, Y1: 4, X2: 63, Y2: 13},
		"fullWidthRest":  {X1: 0, Y1: 0, X2: 63, Y2: 22},
		"fullWidthShort": {X1: 0, Y1: 40, X2: 63, Y2: 42},
		"fullScreen":     {X1: 0, Y1: 0, X2: 63, Y2: 47},
	}
	for name, a := range tests {
		t.Run(name, func(t *testing.T) {
			c := qt.New(t)

			ctrl, b := newPartial(t, g, 5)
			w, h := a.X2-a.X1+1, a.Y2-a.Y1+1
			src := pattern(w * h * 2)
			d := newDone()
			c.Assert(ctrl.Submit(a, src, d.done), qt.IsNil)
			d.wait(t)

			slot := ctrl.Active()
			rows, cols := rowsCovered(g, slot.Addr(), b.DMA.Transfers(), w*2)
			c.Assert(rows, qt.HasLen, h)
			for i := range h {
				c.Assert(rows[i], qt.Equals, a.Y1+i)
				c.Assert(cols[i], qt.Equals, a.X1)

				off := g.Offset(a.Y1+i, a.X1)
				c.Assert(slot.Pix[off:off+w*2], qt.DeepEquals, src[i*w*2:(i+1)*w*2])
			}

			// Nothing outside the area was written
			written := 0
			for _, p := range slot.Pix {
				if p != 0 {
					written++
				}
			}
			zeros := bytes.Count(src, []byte{0})
			c.Assert(written, qt.Equals, len(src)-zeros)
		})
	}
}

func TestBlockCount(t *testing.T) {
	g := framebuffer.GeometryOf(32, 130, framebuffer.RGB565)
	for _, block := range []int{1, 7, 60, 130, 200} {
		for _, h := range []int{1, 6, 7, 8, 59, 60, 61, 120, 130} {
			c := qt.New(t)
			comment := qt.Commentf("block %d, height %d", block, h)

			ctrl, b := newPartial(t, g, block)
			d := newDone()
			err := ctrl.Submit(display.Area{X1: 0, Y1: 0, X2: 31, Y2: h - 1}, pattern(32*h*2), d.done)
			c.Assert(err, qt.IsNil, comment)
			d.wait(t)

			want := h / block
			if h%block != 0 {
				want++
			}
			transfers := b.DMA.Transfers()
			c.Assert(transfers, qt.HasLen, want, comment)

			last := block
			if h%block != 0 {
				last = h % block
			}
			c.Assert(transfers[len(transfers)-1].N, qt.Equals, last*32, comment)
		}
	}
}

func TestBlockLimit(t *testing.T) {
	c := qt.New(t)

	// 0xffff 16-bit elements hold 63 rows of 2048 bytes.
	ctrl, b := newPartial(t, screen, 600)
	src := pattern(screen.Size())
	d := newDone()
	c.Assert(ctrl.Submit(display.AreaOf(screen.Bounds()), src, d.done), qt.IsNil)
	d.wait(t)

	transfers := b.DMA.Transfers()
	c.Assert(transfers, qt.HasLen, 10)
	for _, tr := range transfers[:9] {
		c.Assert(tr.N, qt.Equals, 63*1024)
	}
	c.Assert(transfers[9].N, qt.Equals, 33*1024)
	c.Assert(bytes.Equal(ctrl.Active().Pix[:screen.Size()], src), qt.IsTrue)
}

func TestFullSwap(t *testing.T) {
	c := qt.New(t)

	b := dftesting.NewBoard(t, 2)
	ctrl, err := display.New(display.Config{
		Geometry: screen,
		Mode:     display.FullSwap,
		Scanout:  b.Scanout,
		Cache:    b.Cache,
	})
	c.Assert(err, qt.IsNil)
	c.Assert(ctrl.Buffers(), qt.HasLen, 2)
	c.Assert(b.Scanout.Address(), qt.Equals, ctrl.Active().Addr())

	for range 3 {
		standby := ctrl.Standby()
		c.Assert(standby, qt.Not(qt.Equals), ctrl.Active())

		called := false
		err = ctrl.Submit(display.AreaOf(screen.Bounds()), standby.Pix, func() { called = true })
		c.Assert(err, qt.IsNil)
		c.Assert(called, qt.IsTrue)
		c.Assert(ctrl.Active(), qt.Equals, standby)
		c.Assert(b.Scanout.Address(), qt.Equals, standby.Addr())

		wb := b.Cache.Writebacks()
		c.Assert(wb[len(wb)-1].Contains(standby.Addr(), screen.Size()), qt.IsTrue)
	}
	c.Assert(b.Scanout.Swaps(), qt.Equals, 4)
	c.Assert(b.DMA.Transfers(), qt.HasLen, 0)
	c.Assert(ctrl.State(), qt.Equals, display.Idle)

	err = ctrl.Submit(display.AreaOf(screen.Bounds()), pattern(screen.Size()), func() {})
	c.Assert(err, qt.ErrorIs, display.ErrForeignBuffer)
}

func TestDisable(t *testing.T) {
	c := qt.New(t)

	ctrl, b := newPartial(t, screen, 60)
	a := display.Area{X1: 0, Y1: 0, X2: 1023, Y2: 119}
	src := pattern(1024 * 120 * 2)

	ctrl.Disable()
	c.Assert(ctrl.Enabled(), qt.IsFalse)
	d := newDone()
	c.Assert(ctrl.Submit(a, src, d.done), qt.IsNil)
	c.Assert(d.n.Load(), qt.Equals, int32(1))
	c.Assert(b.DMA.Transfers(), qt.HasLen, 0)
	c.Assert(ctrl.Active().Pix[0], qt.Equals, byte(0))

	ctrl.Enable()
	d = newDone()
	c.Assert(ctrl.Submit(a, src, d.done), qt.IsNil)
	d.wait(t)
	c.Assert(b.DMA.Transfers(), qt.HasLen, 2)
	c.Assert(d.n.Load(), qt.Equals, int32(1))
	c.Assert(ctrl.Active().Pix[:len(src)], qt.DeepEquals, src)
}

func TestCache(t *testing.T) {
	c := qt.New(t)

	ctrl, b := newPartial(t, screen, 60)
	src := pattern(10 * 20 * 2)
	d := newDone()
	c.Assert(ctrl.Submit(display.Area{X1: 10, Y1: 10, X2: 19, Y2: 29}, src, d.done), qt.IsNil)
	d.wait(t)

	wb := b.Cache.Writebacks()
	c.Assert(wb, qt.HasLen, 1)
	c.Assert(wb[0].Contains(cpu.SliceAddr(src), len(src)), qt.IsTrue)

	// The destination rows are handed to the engine before the first
	// transfer.
	ex := b.Cache.Exclusives()
	c.Assert(ex, qt.HasLen, 1)
	c.Assert(ex[0], qt.Equals, dftesting.Region{
		Addr:   screen.Addr(ctrl.Active().Addr(), 10, 10),
		Length: 19*screen.Stride() + 10*2,
	})
	for _, tr := range b.DMA.Transfers() {
		c.Assert(ex[0].Contains(tr.Dst, tr.N*2), qt.IsTrue)
	}

	inv := b.Cache.Invalidates()
	c.Assert(inv, qt.HasLen, 1)
	c.Assert(inv[0].Contains(ctrl.Active().Addr(), screen.Size()), qt.IsTrue)
}

func TestSubmitErrors(t *testing.T) {
	tests := map[string]struct {
		area display.Area
		src  int
		done func()
		err  error
	}{
		"invertedX":   {display.Area{X1: 10, Y1: 0, X2: 9, Y2: 0}, 100, func() {}, display.ErrBounds},
		"invertedY":   {display.Area{X1: 0, Y1: 10, X2: 0, Y2: 9}, 100, func() {}, display.ErrBounds},
		"negative":    {display.Area{X1: -1, Y1: 0, X2: 9, Y2: 0}, 100, func() {}, display.ErrBounds},
		"right":       {display.Area{X1: 1000, Y1: 0, X2: 1024, Y2: 0}, 100, func() {}, display.ErrBounds},
		"bottom":      {display.Area{X1: 0, Y1: 599, X2: 0, Y2: 600}, 100, func() {}, display.ErrBounds},
		"shortSource": {display.Area{X1: 0, Y1: 0, X2: 9, Y2: 1}, 39, func() {}, display.ErrShortSource},
		"nilDone":     {display.Area{X1: 0, Y1: 0, X2: 9, Y2: 1}, 40, nil, display.ErrNilCallback},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			c := qt.New(t)

			ctrl, b := newPartial(t, screen, 60)
			err := ctrl.Submit(tc.area, make([]byte, tc.src), tc.done)
			c.Assert(err, qt.ErrorIs, tc.err)
			c.Assert(ctrl.State(), qt.Equals, display.Idle)
			c.Assert(b.DMA.Transfers(), qt.HasLen, 0)
		})
	}
}

func TestStall(t *testing.T) {
	c := qt.New(t)

	ctrl, b := newPartial(t, screen, 60)
	b.DMA.Stall()

	d := newDone()
	src := pattern(screen.Size())
	c.Assert(ctrl.Submit(display.AreaOf(screen.Bounds()), src, d.done), qt.IsNil)
	c.Assert(ctrl.Busy(), qt.IsTrue)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	c.Assert(ctrl.Drain(ctx), qt.ErrorIs, context.DeadlineExceeded)
	c.Assert(ctrl.State(), qt.Equals, display.TransferringChunk)
	c.Assert(d.n.Load(), qt.Equals, int32(0))

	err := ctrl.Submit(display.AreaOf(screen.Bounds()), src, func() {})
	c.Assert(err, qt.ErrorIs, display.ErrBusy)

	b.DMA.Resume()
	c.Assert(ctrl.Close(), qt.IsNil)
	c.Assert(d.n.Load(), qt.Equals, int32(1))
	c.Assert(ctrl.State(), qt.Equals, display.Draining)
	c.Assert(b.DMA.Transfers(), qt.HasLen, 10)

	err = ctrl.Submit(display.AreaOf(screen.Bounds()), src, func() {})
	c.Assert(err, qt.ErrorIs, display.ErrClosed)
}

func TestCloseIdle(t *testing.T) {
	c := qt.New(t)

	ctrl, _ := newPartial(t, screen, 60)
	c.Assert(ctrl.Close(), qt.IsNil)
	c.Assert(ctrl.Close(), qt.IsNil)
	err := ctrl.Submit(display.Area{}, make([]byte, 2), func() {})
	if !errors.Is(err, display.ErrClosed) {
		t.Fatalf("expected %v, got %v", display.ErrClosed, err)
	}
}
