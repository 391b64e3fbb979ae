// Package vmm builds and walks the paging structures used to translate
// virtual addresses into physical addresses.
package vmm

import "github.com/negrel/assert"

// pageLevels is the number of paging levels supported by the MMU.
const pageLevels = 4

// Arch describes the paging geometry of a target architecture.
type Arch struct {
	Name string

	// LevelShifts holds the right shift that extracts the table index for
	// each paging level from a virtual address, starting at the root.
	LevelShifts [pageLevels]uint8

	// LevelBits is the number of virtual address bits consumed by each
	// paging level.
	LevelBits uint8

	// DirectMapOffset is the virtual address where the direct mapping of
	// physical memory starts.
	DirectMapOffset uint64
}

// ArchAMD64 describes 4-level paging on amd64.
var ArchAMD64 = Arch{
	Name:            "amd64",
	LevelShifts:     [pageLevels]uint8{39, 30, 21, 12},
	LevelBits:       9,
	DirectMapOffset: 0xB0000000,
}

// TableIndices holds one table index per paging level, root first.
type TableIndices [pageLevels]int

// EntriesPerTable returns the number of entries in each page table.
func (a Arch) EntriesPerTable() int {
	return 1 << a.LevelBits
}

// VaddrIntoIndices splits virtAddr into the table indices used at each
// paging level. The page offset bits are discarded.
func (a Arch) VaddrIntoIndices(virtAddr uint64) TableIndices {
	var (
		indices TableIndices
		mask    = uint64(1)<<a.LevelBits - 1
	)

	for level := 0; level < pageLevels; level++ {
		indices[level] = int((virtAddr >> a.LevelShifts[level]) & mask)
		assert.Less(indices[level], a.EntriesPerTable(), "table index out of range")
	}

	return indices
}

// AddrFromIndices reassembles the page-aligned virtual address selected by
// indices. The result is sign extended from the highest translated bit so
// that it is a canonical address.
func (a Arch) AddrFromIndices(indices TableIndices) uint64 {
	var virtAddr uint64
	for level := 0; level < pageLevels; level++ {
		virtAddr |= uint64(indices[level]) << a.LevelShifts[level]
	}

	topBit := uint(a.LevelShifts[0]) + uint(a.LevelBits) - 1
	if virtAddr&(1<<topBit) != 0 {
		virtAddr |= ^uint64(0) << topBit
	}

	return virtAddr
}
