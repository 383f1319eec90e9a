package dma

import (
	"fmt"
	"sync/atomic"

	"github.com/clktmr/dispflush/debug"
	"github.com/clktmr/dispflush/mcu/cpu"
)

// Stream is a DMA stream configured for memory-to-memory transfers. It
// implements Engine.
//
// The peripheral port is the source and memory port 0 the destination, as
// mandated by the reference manual for this direction. The FIFO must be
// enabled, so elements are packed by the hardware.
type Stream struct {
	regs *Registers
	n    int
	size int

	busy atomic.Bool
	done func() // owned by whoever set busy
	errs atomic.Uint32

	// OnError is called from the ISR with the transfer error that aborted
	// a transfer, whose done is never called. Set it before the first
	// transfer.
	OnError func(error)
}

// NewStream returns stream n of the controller at regs. Element size is 1, 2
// or 4 bytes.
func NewStream(regs *Registers, n int, elementSize int) *Stream {
	debug.Assert(n >= 0 && n < len(regs.stream), "dma: invalid stream")
	switch elementSize {
	case 1, 2, 4:
	default:
		panic(fmt.Sprint("dma: unsupported element size ", elementSize))
	}
	return &Stream{regs: regs, n: n, size: elementSize}
}

func (s *Stream) ElementSize() int { return s.size }
func (s *Stream) MaxElements() int { return maxTransfer }

func (s *Stream) StartAsync(dst, src []byte, done func()) error {
	n, err := elements(s, dst, src)
	if err != nil {
		return err
	}
	if !s.busy.CompareAndSwap(false, true) {
		return ErrEngineBusy
	}
	s.done = done

	st := &s.regs.stream[s.n]
	st.cr.Store(0)
	for st.cr.LoadBits(crEN) != 0 {
		// wait for a previous transfer to be aborted
	}
	s.clearFlags(allFlags)

	st.par.Store(uint32(cpu.SliceAddr(src)))
	st.m0ar.Store(uint32(cpu.SliceAddr(dst)))
	st.ndtr.Store(uint32(n))
	st.fcr.Store(fcrDMDIS | fcrFTHFull)

	size := control(s.size >> 1) // 1, 2, 4 -> 0, 1, 2
	st.cr.Store(crDirMemToMem | crPINC | crMINC |
		size<<crPSizeShift | size<<crMSizeShift | crPLHigh |
		crTCIE | crTEIE | crDMEIE)
	st.cr.SetBits(crEN)

	return nil
}

// ISR handles the stream's interrupt. It must be installed as the
// DMA2_StreamN interrupt handler by the application.
func (s *Stream) ISR() {
	flags := s.flags()
	s.clearFlags(flags)

	if flags&(teif|dmeif|feif) != 0 {
		s.errs.Or(uint32(flags & (teif | dmeif | feif)))
	}
	if flags&teif != 0 {
		// The hardware disabled the stream. The transfer didn't complete,
		// so don't claim it did.
		s.done = nil
		s.busy.Store(false)
		if s.OnError != nil {
			s.OnError(&TransferError{Stream: s.n, flags: flags & (teif | dmeif | feif)})
		}
		return
	}
	if flags&tcif == 0 {
		return
	}

	done := s.done
	s.done = nil
	s.busy.Store(false)
	if done != nil {
		done()
	}
}

// Busy reports if a transfer is in progress.
func (s *Stream) Busy() bool {
	return s.busy.Load()
}

// Err returns the error flags seen since the last call to Err with clear
// set, or nil.
func (s *Stream) Err(clear bool) error {
	var flags intFlags
	if clear {
		flags = intFlags(s.errs.Swap(0))
	} else {
		flags = intFlags(s.errs.Load())
	}
	if flags == 0 {
		return nil
	}
	return &TransferError{Stream: s.n, flags: flags}
}

func (s *Stream) flags() intFlags {
	shift := flagShift[s.n%4]
	return (s.regs.isr[s.n/4].Load() >> shift) & allFlags
}

func (s *Stream) clearFlags(flags intFlags) {
	shift := flagShift[s.n%4]
	s.regs.ifcr[s.n/4].Store(flags << shift)
}

// TransferError reports error flags raised by a stream.
type TransferError struct {
	Stream int
	flags  intFlags
}

func (e *TransferError) Error() string {
	msg := fmt.Sprintf("dma: stream %d:", e.Stream)
	if e.flags&teif != 0 {
		msg += " transfer error"
	}
	if e.flags&dmeif != 0 {
		msg += " direct mode error"
	}
	if e.flags&feif != 0 {
		msg += " fifo error"
	}
	return msg
}
