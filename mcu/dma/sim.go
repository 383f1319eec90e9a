package dma

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/clktmr/dispflush/mcu/cpu"
)

// Transfer records a transfer started on a Sim.
type Transfer struct {
	Dst, Src uintptr
	N        int // elements
}

type simJob struct {
	dst, src []byte
	done     func()
}

// Sim is an Engine copying host memory. A dedicated goroutine stands in for
// the interrupt context: completions are delivered from it one at a time, in
// the order the transfers were started.
type Sim struct {
	size, max int

	busy    atomic.Bool
	jobs    chan simJob
	close   chan struct{}
	stopped chan struct{}

	mtx       sync.Mutex
	latency   time.Duration
	stalled   bool
	parked    []simJob
	transfers []Transfer
}

// NewSim returns a running simulator for elements of elementSize bytes,
// accepting at most maxElements per transfer. Call Close to stop it.
func NewSim(elementSize, maxElements int) *Sim {
	s := &Sim{
		size:    elementSize,
		max:     maxElements,
		jobs:    make(chan simJob, 1),
		close:   make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *Sim) ElementSize() int { return s.size }
func (s *Sim) MaxElements() int { return s.max }

func (s *Sim) StartAsync(dst, src []byte, done func()) error {
	n, err := elements(s, dst, src)
	if err != nil {
		return err
	}
	if !s.busy.CompareAndSwap(false, true) {
		return ErrEngineBusy
	}

	s.mtx.Lock()
	s.transfers = append(s.transfers, Transfer{
		Dst: cpu.SliceAddr(dst),
		Src: cpu.SliceAddr(src),
		N:   n,
	})
	s.mtx.Unlock()

	s.jobs <- simJob{dst, src, done}
	return nil
}

// SetLatency delays every completion by d after the copy was done.
func (s *Sim) SetLatency(d time.Duration) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.latency = d
}

// Stall holds back all further completions until Resume is called, like a
// DMA controller that never raises its interrupt.
func (s *Sim) Stall() {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.stalled = true
}

// Resume completes the transfers held back by Stall.
func (s *Sim) Resume() {
	s.mtx.Lock()
	parked := s.parked
	s.parked = nil
	s.stalled = false
	s.mtx.Unlock()

	for _, j := range parked {
		s.jobs <- j
	}
}

// Busy reports if a transfer is in progress.
func (s *Sim) Busy() bool {
	return s.busy.Load()
}

// Transfers returns all transfers started since the last call to Reset.
func (s *Sim) Transfers() []Transfer {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return slices.Clone(s.transfers)
}

// Reset clears the recorded transfers.
func (s *Sim) Reset() {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.transfers = s.transfers[:0]
}

// Close stops the simulator. Transfers still held back by Stall never
// complete.
func (s *Sim) Close() {
	close(s.close)
	<-s.stopped
}

func (s *Sim) run() {
	for {
		select {
		case <-s.close:
			close(s.stopped)
			return
		case j := <-s.jobs:
			s.mtx.Lock()
			latency, stalled := s.latency, s.stalled
			if stalled {
				s.parked = append(s.parked, j)
			}
			s.mtx.Unlock()

			if !stalled {
				s.complete(j, latency)
			}
		}
	}
}

func (s *Sim) complete(j simJob, latency time.Duration) {
	copy(j.dst, j.src)

	if latency > 0 {
		time.Sleep(latency)
	}

	s.busy.Store(false)
	if j.done != nil {
		j.done()
	}
}
