// Package allocator provides the physical frame allocator used while the boot
// address space is constructed.
package allocator

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/dustin/go-humanize"

	"bootvoid/kernel"
	"bootvoid/kernel/kfmt"
	"bootvoid/kernel/mem"
	"bootvoid/kernel/mem/pmm"
)

var (
	errBootAllocOutOfMemory = &kernel.Error{Module: "boot_mem_alloc", Message: "out of memory"}
)

// RegionType describes the usability of a physical memory region.
type RegionType uint32

const (
	// RegionAvailable marks memory that can be handed out by allocators.
	RegionAvailable RegionType = iota + 1

	// RegionReserved marks memory that must not be touched.
	RegionReserved
)

// String implements fmt.Stringer for RegionType.
func (t RegionType) String() string {
	switch t {
	case RegionAvailable:
		return "available"
	case RegionReserved:
		return "reserved"
	default:
		return "unknown"
	}
}

// MemoryRegion describes a physical memory region reported by the firmware
// or the machine configuration.
type MemoryRegion struct {
	PhysAddress uint64
	Length      uint64
	Type        RegionType
}

// BootMemAllocator implements a rudimentary physical memory allocator which is
// used to bootstrap the kernel.
//
// The allocator uses the supplied memory region information to detect free
// memory blocks and return the next available free frame. Allocations are
// tracked via an internal counter that contains the last allocated frame.
//
// Due to the way that the allocator works, it is not possible to free
// allocated pages.
type BootMemAllocator struct {
	regions []MemoryRegion

	// allocCount tracks the total number of allocated frames.
	allocCount uint64

	// lastAllocFrame tracks the last allocated frame number.
	lastAllocFrame pmm.Frame

	log *slog.Logger
}

// NewBootMemAllocator returns an allocator serving frames out of the
// available regions of the supplied memory map.
func NewBootMemAllocator(regions []MemoryRegion) *BootMemAllocator {
	sorted := make([]MemoryRegion, len(regions))
	copy(sorted, regions)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].PhysAddress < sorted[j].PhysAddress
	})

	return &BootMemAllocator{
		regions: sorted,
		log:     kfmt.Logger().With("src", "boot_mem_alloc"),
	}
}

// AllocFrame scans the system memory regions and reserves the next available
// free frame.
//
// AllocFrame returns an error if no more memory can be allocated.
func (alloc *BootMemAllocator) AllocFrame() (pmm.Frame, *kernel.Error) {
	var err = errBootAllocOutOfMemory

	for _, region := range alloc.regions {
		// Ignore reserved regions and regions smaller than a single page
		if region.Type != RegionAvailable || region.Length < uint64(mem.PageSize) {
			continue
		}

		// Reported addresses may not be page-aligned; round up to get
		// the start frame and round down to get the end frame
		regionStartFrame := pmm.Frame(mem.AlignUp(region.PhysAddress) >> mem.PageShift)
		regionEndFrame := pmm.Frame(mem.AlignDown(region.PhysAddress+region.Length)>>mem.PageShift) - 1
		if regionEndFrame < regionStartFrame {
			continue
		}

		// Ignore already allocated regions
		if alloc.allocCount != 0 && alloc.lastAllocFrame >= regionEndFrame {
			continue
		}

		// The last allocated frame will be either pointing to a
		// previous region or will point inside this region. In the
		// first case (or if this is the first allocation) we select
		// the start frame for this region. In the latter case we
		// select the next available frame.
		if alloc.allocCount == 0 || alloc.lastAllocFrame < regionStartFrame {
			alloc.lastAllocFrame = regionStartFrame
		} else {
			alloc.lastAllocFrame++
		}
		err = nil
		break
	}

	if err != nil {
		return pmm.InvalidFrame, errBootAllocOutOfMemory
	}

	alloc.allocCount++
	return alloc.lastAllocFrame, nil
}

// AllocCount returns the number of frames handed out so far.
func (alloc *BootMemAllocator) AllocCount() uint64 {
	return alloc.allocCount
}

// FreeMemory returns the total size of the available regions.
func (alloc *BootMemAllocator) FreeMemory() mem.Size {
	var totalFree mem.Size
	for _, region := range alloc.regions {
		if region.Type == RegionAvailable {
			totalFree += mem.Size(region.Length)
		}
	}
	return totalFree
}

// PrintMemoryMap logs the system's memory map.
func (alloc *BootMemAllocator) PrintMemoryMap() {
	alloc.log.Info("system memory map")
	for _, region := range alloc.regions {
		alloc.log.Info("region",
			"start", fmt.Sprintf("%#010x", region.PhysAddress),
			"end", fmt.Sprintf("%#010x", region.PhysAddress+region.Length),
			"size", humanize.IBytes(region.Length),
			"type", region.Type.String(),
		)
	}
	alloc.log.Info("free memory", "size", humanize.IBytes(uint64(alloc.FreeMemory())))
}
