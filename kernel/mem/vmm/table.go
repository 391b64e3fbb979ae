package vmm

import (
	"unsafe"

	"bootvoid/kernel"
	"bootvoid/kernel/mem"
	"bootvoid/kernel/mem/pmm"
)

// PageTable is a single page-sized table of page entries.
type PageTable [1 << 9]PageEntry

// tableAt returns the page table stored at physAddr. Page tables are always
// page aligned so the returned table never straddles two frames.
func tableAt(acc pmm.Accessor, physAddr uint64) (*PageTable, *kernel.Error) {
	if !mem.IsAligned(physAddr) {
		return nil, errMisalignedTable
	}

	page, err := acc.Slice(physAddr, mem.PageSize)
	if err != nil {
		return nil, err
	}

	return (*PageTable)(unsafe.Pointer(&page[0])), nil
}
