// Package cpu emulates the control registers touched while building the
// initial address space. Boot code runs on a single hardware thread, the
// atomic register keeps tests that poke it from different goroutines honest.
package cpu

import "sync/atomic"

var (
	// cr3 holds the physical address of the active root page table.
	cr3 atomic.Uint64

	// pdtSwitches counts writes to cr3. Each write flushes the TLB.
	pdtSwitches atomic.Uint64
)

// Halt stops instruction execution. The hosted CPU has no HLT instruction so
// execution is stopped by unwinding the calling goroutine with reason.
func Halt(reason error) {
	panic(reason)
}

// SwitchPDT sets the root page table directory to point to the specified
// physical address and flushes the TLB.
func SwitchPDT(pdtPhysAddr uint64) {
	cr3.Store(pdtPhysAddr)
	pdtSwitches.Add(1)
}

// ActivePDT returns the physical address of the currently active page table.
func ActivePDT() uint64 {
	return cr3.Load()
}

// PDTSwitches returns the number of times SwitchPDT has been invoked.
func PDTSwitches() uint64 {
	return pdtSwitches.Load()
}
