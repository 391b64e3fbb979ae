package vmm

import (
	"log/slog"

	"bootvoid/kernel"
	"bootvoid/kernel/bitflag"
	"bootvoid/kernel/cpu"
	"bootvoid/kernel/kfmt"
	"bootvoid/kernel/mem"
	"bootvoid/kernel/mem/pmm"
)

var (
	// switchPDTFn is used by tests to observe writes to the root page
	// table register.
	switchPDTFn = cpu.SwitchPDT

	// directMapFailedFn is mocked by tests.
	directMapFailedFn = kernel.Panic

	// ErrInvalidMapping is returned when trying to lookup a virtual memory address that is not yet mapped.
	ErrInvalidMapping = &kernel.Error{Module: "vmm", Message: "virtual address does not point to a mapped physical page"}

	errMisalignedTable     = &kernel.Error{Module: "vmm", Message: "page table address is not page aligned"}
	errMisalignedOffset    = &kernel.Error{Module: "vmm", Message: "direct mapping offset is not page aligned"}
	errNoHugePageSupport   = &kernel.Error{Module: "vmm", Message: "huge pages are not supported"}
	errUnsupportedArch     = &kernel.Error{Module: "vmm", Message: "page table geometry does not match a 4 KiB page table"}
	errNotBuilt            = &kernel.Error{Module: "vmm", Message: "page hierarchy is not in the built state"}
	errRootNotDirectMapped = &kernel.Error{Module: "vmm", Message: "root page table is not covered by the direct mapping"}
	errCrossPageAccess     = &kernel.Error{Module: "vmm", Message: "virtual memory access crosses a page boundary"}
)

// State describes the lifecycle of a PageHierarchy.
type State uint8

// The states a PageHierarchy moves through. Transitions only go forward.
const (
	StateUninitialized State = iota
	StateBuilt
	StateActive
)

// String implements fmt.Stringer for State.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateBuilt:
		return "built"
	case StateActive:
		return "active"
	default:
		return "unknown"
	}
}

// Stats summarizes the paging structures owned by a PageHierarchy.
type Stats struct {
	// Tables holds the number of tables allocated at each paging level,
	// root first.
	Tables [pageLevels]uint64

	// Mappings is the number of leaf entries installed.
	Mappings uint64
}

// TableCount returns the total number of tables across all levels.
func (s Stats) TableCount() uint64 {
	var total uint64
	for _, n := range s.Tables {
		total += n
	}
	return total
}

// Option configures a PageHierarchy.
type Option func(*PageHierarchy)

// WithArch overrides the paging geometry. ArchAMD64 is used by default.
func WithArch(arch Arch) Option {
	return func(h *PageHierarchy) {
		h.arch = arch
	}
}

// WithLogger overrides the logger used by the hierarchy.
func WithLogger(log *slog.Logger) Option {
	return func(h *PageHierarchy) {
		if log != nil {
			h.log = log
		}
	}
}

// PageHierarchy owns the root page table of an address space and every table
// reachable from it. Tables live in a pmm.Memory arena and are addressed by
// their physical address inside it. A PageHierarchy is not safe for
// concurrent use.
type PageHierarchy struct {
	arch Arch
	mem  *pmm.Memory
	log  *slog.Logger

	// root references the root table. It holds the physical address of
	// the table until paging is enabled and the direct-mapped virtual
	// address afterwards.
	root      uint64
	rootFrame pmm.Frame

	directMapOffset uint64
	state           State
	stats           Stats
}

// New allocates the root table of a new address space inside m, maps a
// zeroed page at virtual address 0 and sets up the direct mapping of the
// first physPageCount physical pages at the architecture's direct mapping
// offset.
func New(alloc pmm.FrameAllocator, m *pmm.Memory, physPageCount uint64, opts ...Option) (*PageHierarchy, *kernel.Error) {
	h := &PageHierarchy{
		arch: ArchAMD64,
		mem:  m,
		log:  kfmt.Logger().With("src", "vmm"),
	}
	for _, opt := range opts {
		opt(h)
	}

	if h.arch.EntriesPerTable() != len(PageTable{}) {
		return nil, errUnsupportedArch
	}

	var rootEntry PageEntry
	if err := rootEntry.InitPage(alloc); err != nil {
		return nil, err
	}
	if err := rootEntry.Zero(m, 0); err != nil {
		return nil, err
	}
	h.rootFrame = rootEntry.Frame()
	h.root = rootEntry.Address()
	h.stats.Tables[0] = 1

	// Back the first page of the address space with a zeroed frame
	zeroTableAddr, err := h.TableAtVaddr(alloc, 0)
	if err != nil {
		return nil, err
	}
	zeroTable, err := tableAt(m, zeroTableAddr)
	if err != nil {
		return nil, err
	}

	var zeroPage PageEntry
	if err = zeroPage.InitPage(alloc); err != nil {
		return nil, err
	}
	if err = zeroPage.Zero(m, 0); err != nil {
		return nil, err
	}
	zeroTable[h.arch.VaddrIntoIndices(0)[pageLevels-1]] = zeroPage
	h.stats.Mappings++

	if err = h.InitDirectMapping(alloc, physPageCount, h.arch.DirectMapOffset); err != nil {
		return nil, err
	}

	h.state = StateBuilt
	h.log.Info("page hierarchy built",
		"arch", h.arch.Name,
		"root", h.rootFrame.Address(),
		"tables", h.stats.TableCount(),
		"mappings", h.stats.Mappings,
	)

	return h, nil
}

// Arch returns the paging geometry used by the hierarchy.
func (h *PageHierarchy) Arch() Arch {
	return h.arch
}

// State returns the current lifecycle state.
func (h *PageHierarchy) State() State {
	return h.state
}

// Root returns the reference to the root table. Before paging is enabled it
// is a physical address; afterwards it is the root's direct-mapped virtual
// address.
func (h *PageHierarchy) Root() uint64 {
	return h.root
}

// RootFrame returns the physical frame that holds the root table.
func (h *PageHierarchy) RootFrame() pmm.Frame {
	return h.rootFrame
}

// Stats returns the number of tables and mappings owned by the hierarchy.
func (h *PageHierarchy) Stats() Stats {
	return h.stats
}

// VaddrIntoIndices splits virtAddr into the table index used at each level.
func (h *PageHierarchy) VaddrIntoIndices(virtAddr uint64) TableIndices {
	return h.arch.VaddrIntoIndices(virtAddr)
}

// TableAtVaddr walks the top three paging levels for virtAddr, allocating
// and zeroing any missing table along the way, and returns the physical
// address of the last-level table. An entry is only published once the table
// it points to has been cleared.
func (h *PageHierarchy) TableAtVaddr(alloc pmm.FrameAllocator, virtAddr uint64) (uint64, *kernel.Error) {
	var (
		indices   = h.arch.VaddrIntoIndices(virtAddr)
		tableAddr = h.rootFrame.Address()
	)

	for level := 0; level < pageLevels-1; level++ {
		table, err := tableAt(h.mem, tableAddr)
		if err != nil {
			return 0, err
		}

		pte := &table[indices[level]]
		switch {
		case pte.HasFlags(FlagPresent | FlagLargePage):
			return 0, errNoHugePageSupport
		case !pte.HasFlags(FlagPresent):
			var next PageEntry
			if err = next.InitPage(alloc); err != nil {
				return 0, err
			}
			if err = next.Zero(h.mem, 0); err != nil {
				return 0, err
			}
			next.SetFlags(FlagPresent | FlagWriteEnable)

			*pte = next
			h.stats.Tables[level+1]++
		}

		tableAddr = pte.Address()
	}

	return tableAddr, nil
}

// Map installs a 4 KiB mapping from virtAddr to physAddr. Both addresses are
// rounded down to a page boundary. FlagPresent is always set.
func (h *PageHierarchy) Map(alloc pmm.FrameAllocator, virtAddr, physAddr uint64, flags bitflag.Flags16) *kernel.Error {
	tableAddr, err := h.TableAtVaddr(alloc, virtAddr)
	if err != nil {
		return err
	}

	table, err := tableAt(h.mem, tableAddr)
	if err != nil {
		return err
	}

	var leaf PageEntry
	leaf.InitPageWithPaddr(physAddr)
	leaf.SetFlags(FlagPresent | flags)

	pte := &table[h.arch.VaddrIntoIndices(virtAddr)[pageLevels-1]]
	if !pte.HasFlags(FlagPresent) {
		h.stats.Mappings++
	}
	*pte = leaf

	return nil
}

// InitDirectMapping maps the virtual address offset+i*mem.PageSize to the
// physical address i*mem.PageSize for every page index i in
// [0, pageCount-1). The leaves are marked FlagPresent|FlagWriteEnable so the
// kernel can write to physical memory through the direct mapping. The offset
// must be page aligned; a misaligned offset is a configuration bug and
// triggers kernel.Panic before any page is mapped.
func (h *PageHierarchy) InitDirectMapping(alloc pmm.FrameAllocator, pageCount, offset uint64) *kernel.Error {
	if !mem.IsAligned(offset) {
		directMapFailedFn(errMisalignedOffset)
		return errMisalignedOffset
	}

	h.directMapOffset = offset
	if pageCount == 0 {
		return nil
	}

	for i := uint64(0); i < pageCount-1; i++ {
		physAddr := i << mem.PageShift
		if err := h.Map(alloc, offset+physAddr, physAddr, FlagWriteEnable); err != nil {
			return err
		}
	}

	h.log.Debug("direct mapping established",
		"offset", offset,
		"pages", pageCount-1,
	)

	return nil
}

// EnablePaging rebases the root reference into the direct mapping and loads
// the root table's physical address into the root page table register. It
// may only be called once on a built hierarchy.
func (h *PageHierarchy) EnablePaging() *kernel.Error {
	if h.state != StateBuilt {
		return errNotBuilt
	}

	rootPhys := h.rootFrame.Address()
	if got, err := h.Translate(h.directMapOffset + rootPhys); err != nil || got != rootPhys {
		return errRootNotDirectMapped
	}

	h.root = rootPhys + h.directMapOffset
	switchPDTFn(rootPhys)
	h.state = StateActive

	h.log.Info("paging enabled", "root", h.root, "pdt", rootPhys)
	return nil
}

// PageTableWalker is invoked by Walk for the entry visited at each paging
// level. Returning false aborts the walk.
type PageTableWalker func(level int, pte PageEntry) bool

// Walk visits the entries that translate virtAddr, starting at the root. The
// walk stops after the first entry that is not present.
func (h *PageHierarchy) Walk(virtAddr uint64, walkFn PageTableWalker) *kernel.Error {
	var (
		indices   = h.arch.VaddrIntoIndices(virtAddr)
		tableAddr = h.rootFrame.Address()
	)

	for level := 0; level < pageLevels; level++ {
		table, err := tableAt(h.mem, tableAddr)
		if err != nil {
			return err
		}

		pte := table[indices[level]]
		if !walkFn(level, pte) || !pte.HasFlags(FlagPresent) {
			return nil
		}

		tableAddr = pte.Address()
	}

	return nil
}

// Lookup returns the leaf entry that maps virtAddr or ErrInvalidMapping if
// no page is mapped at that address.
func (h *PageHierarchy) Lookup(virtAddr uint64) (PageEntry, *kernel.Error) {
	var (
		leaf   PageEntry
		mapped bool
	)

	err := h.Walk(virtAddr, func(level int, pte PageEntry) bool {
		if !pte.HasFlags(FlagPresent) {
			return false
		}
		if level == pageLevels-1 {
			leaf, mapped = pte, true
		}
		return true
	})
	if err != nil {
		return 0, err
	}
	if !mapped {
		return 0, ErrInvalidMapping
	}

	return leaf, nil
}

// Translate returns the physical address that corresponds to the supplied
// virtual address or ErrInvalidMapping if the virtual address does not
// correspond to a mapped physical address.
func (h *PageHierarchy) Translate(virtAddr uint64) (uint64, *kernel.Error) {
	leaf, err := h.Lookup(virtAddr)
	if err != nil {
		return 0, err
	}

	return leaf.Address() + (virtAddr & mem.PageOffsetMask), nil
}

// Slice returns the size bytes that back the virtual address range starting
// at virtAddr. The range must not cross a page boundary.
func (h *PageHierarchy) Slice(virtAddr uint64, size mem.Size) ([]byte, *kernel.Error) {
	if size != 0 && (virtAddr&mem.PageOffsetMask)+uint64(size) > uint64(mem.PageSize) {
		return nil, errCrossPageAccess
	}

	physAddr, err := h.Translate(virtAddr)
	if err != nil {
		return nil, err
	}

	return h.mem.Slice(physAddr, size)
}
