package vmm

import "testing"

func TestVaddrIntoIndices(t *testing.T) {
	specs := []struct {
		virtAddr uint64
		exp      TableIndices
	}{
		{0, TableIndices{0, 0, 0, 0}},
		{0x1000, TableIndices{0, 0, 0, 1}},
		{0x1fff, TableIndices{0, 0, 0, 1}},
		{0xB0000000, TableIndices{0, 2, 384, 0}},
		{0x7fffffffffff, TableIndices{511, 511, 511, 511}},
		{0xffff800000000000, TableIndices{256, 0, 0, 0}},
		{1<<39 | 2<<30 | 3<<21 | 4<<12 | 0x123, TableIndices{1, 2, 3, 4}},
	}

	for specIndex, spec := range specs {
		if got := ArchAMD64.VaddrIntoIndices(spec.virtAddr); got != spec.exp {
			t.Errorf("[spec %d] expected indices for %#x to be %v; got %v", specIndex, spec.virtAddr, spec.exp, got)
		}
	}
}

func TestAddrFromIndicesIsInverse(t *testing.T) {
	specs := []uint64{
		0,
		0x1000,
		0xB0000000,
		0x401000,
		0x7ffffffff000,
		0xffff800000000000,
		0xfffffffffffff000,
	}

	for specIndex, virtAddr := range specs {
		if got := ArchAMD64.AddrFromIndices(ArchAMD64.VaddrIntoIndices(virtAddr)); got != virtAddr {
			t.Errorf("[spec %d] expected round-trip of %#x to return the same address; got %#x", specIndex, virtAddr, got)
		}
	}

	// exhaustively check one index per level while the others vary
	for level := 0; level < pageLevels; level++ {
		for index := 0; index < ArchAMD64.EntriesPerTable(); index++ {
			var indices TableIndices
			indices[level] = index
			indices[(level+1)%pageLevels] = ArchAMD64.EntriesPerTable() - 1 - index

			if got := ArchAMD64.VaddrIntoIndices(ArchAMD64.AddrFromIndices(indices)); got != indices {
				t.Fatalf("expected indices %v to round-trip; got %v", indices, got)
			}
		}
	}
}

func TestEntriesPerTable(t *testing.T) {
	if exp, got := len(PageTable{}), ArchAMD64.EntriesPerTable(); got != exp {
		t.Fatalf("expected EntriesPerTable() to return %d; got %d", exp, got)
	}
}
