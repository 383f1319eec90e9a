// Package testing provides a simulated board for host tests of the display
// pipeline.
package testing

import (
	"flag"
	"os"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/clktmr/dispflush/mcu/dma"
)

var latency = flag.Duration("sim.latency", 0, "delay of every simulated DMA completion")

// TestMain can be used as TestMain to run tests with a simulated DMA
// latency set by the -sim.latency flag.
func TestMain(m *testing.M) {
	flag.Parse()
	os.Exit(m.Run())
}

// Region is a memory region passed to a cache operation.
type Region struct {
	Addr   uintptr
	Length int
}

func (r Region) Contains(addr uintptr, length int) bool {
	return addr >= r.Addr && addr+uintptr(length) <= r.Addr+uintptr(r.Length)
}

// Cache records cache maintenance without doing any.
type Cache struct {
	mtx                    sync.Mutex
	writeback, invalidate []Region
	exclusive             []Region
}

func (c *Cache) Writeback(addr uintptr, length int) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.writeback = append(c.writeback, Region{addr, length})
}

func (c *Cache) Invalidate(addr uintptr, length int) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.invalidate = append(c.invalidate, Region{addr, length})
}

func (c *Cache) WritebackInvalidate(addr uintptr, length int) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.exclusive = append(c.exclusive, Region{addr, length})
}

// Exclusives returns the regions written back and invalidated.
func (c *Cache) Exclusives() []Region {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return slices.Clone(c.exclusive)
}

func (c *Cache) Writebacks() []Region {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return slices.Clone(c.writeback)
}

func (c *Cache) Invalidates() []Region {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return slices.Clone(c.invalidate)
}

// Scanout records the frame buffer addresses a display controller was set
// to.
type Scanout struct {
	mtx   sync.Mutex
	addrs []uintptr
}

func (s *Scanout) SetAddress(addr uintptr) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.addrs = append(s.addrs, addr)
}

// Address returns the address currently scanned, 0 if none was set.
func (s *Scanout) Address() uintptr {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if len(s.addrs) == 0 {
		return 0
	}
	return s.addrs[len(s.addrs)-1]
}

// Swaps returns how often the address was set.
func (s *Scanout) Swaps() int {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return len(s.addrs)
}

// Board bundles the simulated peripherals the display pipeline needs.
type Board struct {
	DMA     *dma.Sim
	Scanout *Scanout
	Cache   *Cache
}

// NewBoard returns a board with a DMA simulator copying elements of
// elementSize bytes, like a 16 bit wide DMA stream does. The simulator is
// stopped when the test finishes.
func NewBoard(t testing.TB, elementSize int) *Board {
	sim := dma.NewSim(elementSize, 0xffff)
	sim.SetLatency(*latency)
	t.Cleanup(sim.Close)

	return &Board{
		DMA:     sim,
		Scanout: &Scanout{},
		Cache:   &Cache{},
	}
}

// Wait waits for f to report true or fails the test after timeout.
func Wait(t testing.TB, timeout time.Duration, f func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !f() {
		if time.Now().After(deadline) {
			t.Fatal("timeout")
		}
		time.Sleep(time.Millisecond)
	}
}
