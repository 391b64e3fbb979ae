// Package pmm contains code that manages physical memory frames.
package pmm

import (
	"math"

	"bootvoid/kernel"
	"bootvoid/kernel/mem"
)

// Frame describes a physical memory page index.
type Frame uint64

const (
	// InvalidFrame is returned by page allocators when
	// they fail to reserve the requested frame.
	InvalidFrame = Frame(math.MaxUint64)
)

// Valid returns true if this is a valid frame.
func (f Frame) Valid() bool {
	return f != InvalidFrame
}

// Address returns the physical memory address pointed to by this Frame.
func (f Frame) Address() uint64 {
	return uint64(f) << mem.PageShift
}

// FrameFromAddress returns a Frame that corresponds to the given physical
// address. Addresses that are not page-aligned are rounded down to the frame
// that contains them.
func FrameFromAddress(physAddr uint64) Frame {
	return Frame(mem.AlignDown(physAddr) >> mem.PageShift)
}

// FrameAllocator is implemented by physical frame allocators. AllocFrame
// returns a fresh, exclusively owned frame or an error if physical memory is
// exhausted.
type FrameAllocator interface {
	AllocFrame() (Frame, *kernel.Error)
}

// FrameAllocatorFn adapts a plain function to the FrameAllocator interface.
type FrameAllocatorFn func() (Frame, *kernel.Error)

// AllocFrame calls fn.
func (fn FrameAllocatorFn) AllocFrame() (Frame, *kernel.Error) {
	return fn()
}
