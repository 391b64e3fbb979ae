//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package pmm

import (
	"unsafe"

	"bootvoid/kernel"
	"bootvoid/kernel/mem"
)

// allocSlab reserves size bytes from the Go heap and trims the allocation so
// that it starts on a page boundary.
func allocSlab(size mem.Size) ([]byte, *kernel.Error) {
	backing := make([]byte, uint64(size)+uint64(mem.PageSize))
	start := mem.AlignUp(uint64(uintptr(unsafe.Pointer(&backing[0])))) - uint64(uintptr(unsafe.Pointer(&backing[0])))
	return backing[start : start+uint64(size) : start+uint64(size)], nil
}

func freeSlab(_ []byte) *kernel.Error {
	return nil
}
