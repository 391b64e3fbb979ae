//go:build linux || darwin || freebsd || netbsd || openbsd

package pmm

import (
	"golang.org/x/sys/unix"

	"bootvoid/kernel"
	"bootvoid/kernel/kfmt"
	"bootvoid/kernel/mem"
)

const (
	slabProt = unix.PROT_READ | unix.PROT_WRITE
	slabMode = unix.MAP_ANON | unix.MAP_PRIVATE
)

// allocSlab maps an anonymous region. Anonymous mappings are page aligned
// and zero filled by the host kernel.
func allocSlab(size mem.Size) ([]byte, *kernel.Error) {
	raw, err := unix.Mmap(-1, 0, int(size), slabProt, slabMode)
	if err != nil {
		kfmt.Logger().Error("allocSlab", "src", "pmm", "size", uint64(size), "err", err)
		return nil, errSlabAllocFailed
	}
	return raw, nil
}

func freeSlab(raw []byte) *kernel.Error {
	if err := unix.Munmap(raw); err != nil {
		kfmt.Logger().Error("freeSlab", "src", "pmm", "err", err)
		return errSlabAllocFailed
	}
	return nil
}
