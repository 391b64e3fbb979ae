package vmm

import (
	"bootvoid/kernel"
	"bootvoid/kernel/bitflag"
	"bootvoid/kernel/mem"
	"bootvoid/kernel/mem/pmm"
)

// Page table entry flags. Bits 0-11 of an entry hold flags; the remaining
// bits hold the physical address of the page or table the entry points to.
const (
	// FlagPresent is set when the page is available in memory and not swapped out.
	FlagPresent bitflag.Flags16 = 1 << iota

	// FlagWriteEnable is set if the page can be written to.
	FlagWriteEnable

	// FlagUserAccessible is set if user-mode processes can access this page. If
	// not set only kernel code can access this page.
	FlagUserAccessible

	// FlagWriteThrough is set if the page uses write-through caching.
	FlagWriteThrough

	// FlagCacheDisable is set if the page should not be cached.
	FlagCacheDisable

	// FlagAccessed is set by the CPU when this page is accessed.
	FlagAccessed

	// FlagWrittenTo is set by the CPU when this page is modified.
	FlagWrittenTo

	// FlagAvailable1 is free for use by the OS.
	FlagAvailable1

	// FlagLargePage is set when using huge pages.
	FlagLargePage

	// FlagAvailable2 is free for use by the OS.
	FlagAvailable2

	// FlagAvailable3 is free for use by the OS.
	FlagAvailable3

	// FlagAvailable4 is free for use by the OS.
	FlagAvailable4
)

const (
	// flagTruncateBits is the number of high-order bits of the 16-bit flag
	// register that overlap the address and are dropped by Flags.
	flagTruncateBits = bitflag.Width - mem.PageShift

	flagMask = uint64(mem.PageOffsetMask)
)

var (
	// initPageFailedFn is mocked by tests.
	initPageFailedFn = kernel.Panic
)

// PageEntry is a page table entry. The physical address and the flags share
// the same word and are only manipulated through masking accessors.
type PageEntry uint64

// FromRaw returns the entry encoded by raw.
func FromRaw(raw uint64) PageEntry {
	return PageEntry(raw)
}

// Address returns the physical address the entry points to.
func (pte PageEntry) Address() uint64 {
	return uint64(pte) &^ flagMask
}

// Frame returns the physical frame the entry points to.
func (pte PageEntry) Frame() pmm.Frame {
	return pmm.FrameFromAddress(pte.Address())
}

// Flags returns the flag bits of the entry.
func (pte PageEntry) Flags() bitflag.Flags16 {
	return bitflag.Flags16(uint16(pte)).TruncateBits(flagTruncateBits)
}

// HasFlags returns true if all of the supplied flags are set.
func (pte PageEntry) HasFlags(flags bitflag.Flags16) bool {
	return pte.Flags().Has(flags)
}

// HasAnyFlag returns true if at least one of the supplied flags is set.
func (pte PageEntry) HasAnyFlag(flags bitflag.Flags16) bool {
	return pte.Flags().HasAny(flags)
}

// SetAddress points the entry to physAddr rounded down to a page boundary.
// The flags are left untouched.
func (pte *PageEntry) SetAddress(physAddr uint64) {
	*pte = PageEntry((uint64(*pte) & flagMask) | mem.AlignDown(physAddr))
}

// SetFrame points the entry to frame.
func (pte *PageEntry) SetFrame(frame pmm.Frame) {
	pte.SetAddress(frame.Address())
}

// SetFlags replaces the flags of the entry. Flag bits beyond bit 11 are
// dropped so the address is never disturbed.
func (pte *PageEntry) SetFlags(flags bitflag.Flags16) {
	*pte = PageEntry((uint64(*pte) &^ flagMask) | uint64(flags.TruncateBits(flagTruncateBits)))
}

// ClearFlags unsets the supplied flags.
func (pte *PageEntry) ClearFlags(flags bitflag.Flags16) {
	pte.SetFlags(pte.Flags() &^ flags)
}

// RawParts returns the address and flags of the entry.
func (pte PageEntry) RawParts() (uint64, bitflag.Flags16) {
	return pte.Address(), pte.Flags()
}

// Zero clears the page located at Address()+offset. The caller must ensure
// that the page is not in use.
func (pte PageEntry) Zero(acc pmm.Accessor, offset uint64) *kernel.Error {
	page, err := acc.Slice(pte.Address()+offset, mem.PageSize)
	if err != nil {
		return err
	}

	mem.Memset(page, 0)
	return nil
}

// InitPage allocates a new frame and points the entry to it, marking it as
// present. Running out of frames at this stage is unrecoverable so allocation
// errors are handed to kernel.Panic.
func (pte *PageEntry) InitPage(alloc pmm.FrameAllocator) *kernel.Error {
	frame, err := alloc.AllocFrame()
	if err != nil {
		initPageFailedFn(err)
		return err
	}

	pte.InitPageWithFrame(frame)
	return nil
}

// InitPageWithPaddr points the entry to physAddr and marks it as present.
func (pte *PageEntry) InitPageWithPaddr(physAddr uint64) {
	*pte = 0
	pte.SetAddress(physAddr)
	pte.SetFlags(FlagPresent)
}

// InitPageWithFrame points the entry to frame and marks it as present.
func (pte *PageEntry) InitPageWithFrame(frame pmm.Frame) {
	pte.InitPageWithPaddr(frame.Address())
}
