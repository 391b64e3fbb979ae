package pmm

import (
	"github.com/negrel/assert"

	"bootvoid/kernel"
	"bootvoid/kernel/mem"
)

var (
	errMemoryTooSmall  = &kernel.Error{Module: "pmm", Message: "physical memory must hold at least one page"}
	errOutOfRange      = &kernel.Error{Module: "pmm", Message: "physical address range is outside of reserved memory"}
	errMemoryReleased  = &kernel.Error{Module: "pmm", Message: "physical memory has been released"}
	errSlabAllocFailed = &kernel.Error{Module: "pmm", Message: "unable to reserve physical memory"}
)

// Accessor resolves an address range into the bytes backing it. Page table
// code dereferences table and page addresses exclusively through an Accessor
// so every access is bounds checked.
type Accessor interface {
	Slice(addr uint64, size mem.Size) ([]byte, *kernel.Error)
}

// Memory is a reserved, page-aligned region that stands in for the machine's
// physical memory. Physical address 0 corresponds to the first byte of the
// region and every frame is addressed by its index into the region.
type Memory struct {
	raw []byte
}

// NewMemory reserves size bytes of physical memory. The size is rounded down
// to a multiple of mem.PageSize.
func NewMemory(size mem.Size) (*Memory, *kernel.Error) {
	size = mem.Size(mem.AlignDown(uint64(size)))
	if size < mem.PageSize {
		return nil, errMemoryTooSmall
	}

	raw, err := allocSlab(size)
	if err != nil {
		return nil, err
	}

	return &Memory{raw: raw}, nil
}

// Release returns the reserved region to the host. Any further access through
// this Memory fails.
func (m *Memory) Release() *kernel.Error {
	if m.raw == nil {
		return nil
	}

	err := freeSlab(m.raw)
	m.raw = nil
	return err
}

// Size returns the size of the reserved region in bytes.
func (m *Memory) Size() mem.Size {
	return mem.Size(len(m.raw))
}

// FrameCount returns the number of frames in the reserved region.
func (m *Memory) FrameCount() uint64 {
	return uint64(len(m.raw)) >> mem.PageShift
}

// Contains returns true if frame lies inside the reserved region.
func (m *Memory) Contains(frame Frame) bool {
	return frame.Valid() && uint64(frame) < m.FrameCount()
}

// Slice returns the size bytes starting at physical address addr.
func (m *Memory) Slice(addr uint64, size mem.Size) ([]byte, *kernel.Error) {
	if m.raw == nil {
		return nil, errMemoryReleased
	}

	end := addr + uint64(size)
	if end < addr || end > uint64(len(m.raw)) {
		return nil, errOutOfRange
	}

	return m.raw[addr:end:end], nil
}

// Page returns the bytes backing frame.
func (m *Memory) Page(frame Frame) ([]byte, *kernel.Error) {
	if !frame.Valid() {
		return nil, errOutOfRange
	}

	page, err := m.Slice(frame.Address(), mem.PageSize)
	if err == nil {
		assert.Equal(len(page), int(mem.PageSize), "page slice must span exactly one page")
	}
	return page, err
}
