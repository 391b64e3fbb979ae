// Package mem defines the page geometry shared by the physical and virtual
// memory managers.
package mem

const (
	// PointerShift is equal to log2(size of a page table entry). The entry
	// size for the supported targets is defined as (1 << PointerShift).
	PointerShift = 3

	// PageShift is equal to log2(PageSize). This constant is used when
	// we need to convert a physical address to a page number (shift right by PageShift)
	// and vice-versa.
	PageShift = 12

	// PageSize defines the system's page size in bytes. By default it is
	// set to 4096 bytes.
	PageSize = Size(1 << PageShift)

	// PageOffsetMask selects the offset bits of an address inside its page.
	PageOffsetMask = uint64(PageSize - 1)
)

// Size represents a memory block size in bytes.
type Size uint64

// Common memory block sizes
const (
	Byte Size = 1
	Kb        = 1024 * Byte
	Mb        = 1024 * Kb
	Gb        = 1024 * Mb
)

// Pages returns the number of pages that are required for storing this size.
func (s Size) Pages() uint64 {
	pageSizeMinus1 := PageSize - 1
	return uint64((s+pageSizeMinus1)&^pageSizeMinus1) >> PageShift
}

// AlignDown rounds addr down to the start of the page that contains it.
func AlignDown(addr uint64) uint64 {
	return addr &^ PageOffsetMask
}

// AlignUp rounds addr up to the next page boundary.
func AlignUp(addr uint64) uint64 {
	return (addr + PageOffsetMask) &^ PageOffsetMask
}

// IsAligned returns true if addr lies on a page boundary.
func IsAligned(addr uint64) bool {
	return addr&PageOffsetMask == 0
}
