// Package kmain drives the boot sequence: it decodes the kernel image,
// builds the initial address space and hands control over to the kernel.
package kmain

import (
	stdelf "debug/elf"
	"log/slog"

	"github.com/dustin/go-humanize"

	"bootvoid/kernel"
	"bootvoid/kernel/driver/video/fb"
	"bootvoid/kernel/elf"
	"bootvoid/kernel/kfmt"
	"bootvoid/kernel/mem"
	"bootvoid/kernel/mem/pmm"
	"bootvoid/kernel/mem/pmm/allocator"
	"bootvoid/kernel/mem/vmm"
)

var (
	errUnsupportedImage = &kernel.Error{Module: "kmain", Message: "kernel image is not a 64-bit x86_64 executable"}
	errSegmentOverlap   = &kernel.Error{Module: "kmain", Message: "loadable segment overlaps the direct mapping"}
)

// FramebufferConfig describes a linear framebuffer located in physical memory.
type FramebufferConfig struct {
	PhysAddress  uint64
	Width        uint32
	Height       uint32
	BitsPerPixel uint16
	Pitch        uint32
	Model        fb.Model
}

// size returns the number of bytes spanned by the framebuffer.
func (c *FramebufferConfig) size() uint64 {
	pitch := uint64(c.Pitch)
	if pitch == 0 {
		pitch = uint64(c.Width) * uint64(c.BitsPerPixel>>3)
	}
	return pitch * uint64(c.Height)
}

// Config describes the machine the kernel image is booted on.
type Config struct {
	// MemorySize is the amount of physical memory to reserve.
	MemorySize mem.Size

	// Regions is the firmware memory map. When empty, all of physical
	// memory is reported as available.
	Regions []allocator.MemoryRegion

	// DirectMapOffset overrides the virtual address where physical memory
	// is mapped. Zero selects the architecture default.
	DirectMapOffset uint64

	// Framebuffer is optional.
	Framebuffer *FramebufferConfig
}

// Handoff describes the state passed to the kernel once paging is enabled.
type Handoff struct {
	Entry     uint64
	Info      *elf.Info
	Segments  []elf.Segment
	Memory    *pmm.Memory
	Hierarchy *vmm.PageHierarchy
	Stats     vmm.Stats

	// Framebuffer is nil unless one was configured.
	Framebuffer *fb.FrameBuf
}

// Release returns the physical memory reserved for the boot attempt.
func (h *Handoff) Release() *kernel.Error {
	return h.Memory.Release()
}

// Boot decodes image, builds the boot address space inside a freshly
// reserved physical memory region, maps the image's loadable segments and
// enables paging.
func Boot(image []byte, cfg Config) (*Handoff, *kernel.Error) {
	log := kfmt.Logger().With("src", "kmain")

	info, err := elf.Decode(image)
	if err != nil {
		return nil, err
	}
	if info.Class != elf.Class64 || info.Machine != elf.ArchX86_64 {
		return nil, errUnsupportedImage
	}

	log.Info("kernel image decoded",
		"type", info.Type,
		"arch", info.Machine,
		"entry", info.Program.Entry,
		"size", humanize.IBytes(uint64(len(image))),
		"digest", info.Digest(),
	)

	segments, err := info.Segments()
	if err != nil {
		return nil, err
	}

	physMem, err := pmm.NewMemory(cfg.MemorySize)
	if err != nil {
		return nil, err
	}

	handoff, err := boot(log, info, segments, physMem, cfg)
	if err != nil {
		_ = physMem.Release()
		return nil, err
	}

	return handoff, nil
}

func boot(log *slog.Logger, info *elf.Info, segments []elf.Segment, physMem *pmm.Memory, cfg Config) (*Handoff, *kernel.Error) {
	regions := cfg.Regions
	if len(regions) == 0 {
		regions = []allocator.MemoryRegion{
			{PhysAddress: 0, Length: uint64(physMem.Size()), Type: allocator.RegionAvailable},
		}
	}

	regions = clampRegions(regions, physMem.Size())
	if cfg.Framebuffer != nil {
		fbStart := cfg.Framebuffer.PhysAddress
		regions = reserveRange(regions, mem.AlignDown(fbStart), mem.AlignUp(fbStart+cfg.Framebuffer.size()))
	}

	alloc := allocator.NewBootMemAllocator(regions)
	alloc.PrintMemoryMap()

	arch := vmm.ArchAMD64
	if cfg.DirectMapOffset != 0 {
		arch.DirectMapOffset = cfg.DirectMapOffset
	}

	hierarchy, err := vmm.New(alloc, physMem, physMem.FrameCount(), vmm.WithArch(arch))
	if err != nil {
		return nil, err
	}

	directMapEnd := arch.DirectMapOffset + uint64(physMem.Size())
	for _, seg := range segments {
		if seg.Type != stdelf.PT_LOAD || seg.MemSize == 0 {
			continue
		}
		if seg.VirtAddr < directMapEnd && seg.VirtAddr+seg.MemSize > arch.DirectMapOffset {
			return nil, errSegmentOverlap
		}
		if err = loadSegment(hierarchy, alloc, physMem, info.Image, seg); err != nil {
			return nil, err
		}

		log.Info("segment loaded",
			"vaddr", seg.VirtAddr,
			"size", humanize.IBytes(seg.MemSize),
			"flags", seg.Flags,
		)
	}

	var frameBuf *fb.FrameBuf
	if cfg.Framebuffer != nil {
		if frameBuf, err = initFramebuffer(physMem, cfg.Framebuffer); err != nil {
			return nil, err
		}
		drawSplash(frameBuf, info)
	}

	if err = hierarchy.EnablePaging(); err != nil {
		return nil, err
	}

	log.Info("handing off to kernel",
		"entry", info.Program.Entry,
		"frames", alloc.AllocCount(),
		"tables", hierarchy.Stats().TableCount(),
	)

	return &Handoff{
		Entry:       info.Program.Entry,
		Info:        info,
		Segments:    segments,
		Memory:      physMem,
		Hierarchy:   hierarchy,
		Stats:       hierarchy.Stats(),
		Framebuffer: frameBuf,
	}, nil
}

// clampRegions drops the parts of the memory map that lie beyond the
// reserved physical memory.
func clampRegions(regions []allocator.MemoryRegion, size mem.Size) []allocator.MemoryRegion {
	clamped := make([]allocator.MemoryRegion, 0, len(regions))
	for _, region := range regions {
		if region.PhysAddress >= uint64(size) {
			continue
		}
		if end := region.PhysAddress + region.Length; end > uint64(size) || end < region.PhysAddress {
			region.Length = uint64(size) - region.PhysAddress
		}
		clamped = append(clamped, region)
	}
	return clamped
}

// reserveRange marks the physical range [start, end) as reserved, splitting
// any available region that overlaps it.
func reserveRange(regions []allocator.MemoryRegion, start, end uint64) []allocator.MemoryRegion {
	out := make([]allocator.MemoryRegion, 0, len(regions)+2)
	for _, region := range regions {
		regionEnd := region.PhysAddress + region.Length
		if region.Type != allocator.RegionAvailable || regionEnd <= start || region.PhysAddress >= end {
			out = append(out, region)
			continue
		}

		if region.PhysAddress < start {
			out = append(out, allocator.MemoryRegion{PhysAddress: region.PhysAddress, Length: start - region.PhysAddress, Type: allocator.RegionAvailable})
		}
		if regionEnd > end {
			out = append(out, allocator.MemoryRegion{PhysAddress: end, Length: regionEnd - end, Type: allocator.RegionAvailable})
		}
	}

	return append(out, allocator.MemoryRegion{PhysAddress: start, Length: end - start, Type: allocator.RegionReserved})
}

// loadSegment copies seg into physical frames and maps them at the segment's
// virtual address. A page already mapped by a previous segment is reused and
// stays writable if either segment is writable. The part of the segment that
// is not backed by the image is left zeroed.
func loadSegment(h *vmm.PageHierarchy, alloc pmm.FrameAllocator, physMem *pmm.Memory, image []byte, seg elf.Segment) *kernel.Error {
	data, err := seg.Data(image)
	if err != nil {
		return err
	}

	flags := vmm.FlagPresent
	if seg.Flags&stdelf.PF_W != 0 {
		flags |= vmm.FlagWriteEnable
	}

	segStart, segEnd := seg.VirtAddr, seg.VirtAddr+seg.MemSize
	for page := mem.AlignDown(segStart); page < segEnd; page += uint64(mem.PageSize) {
		var (
			physAddr  uint64
			pageFlags = flags
			fresh     bool
		)

		leaf, err := h.Lookup(page)
		switch err {
		case nil:
			physAddr = leaf.Address()
			if leaf.HasFlags(vmm.FlagWriteEnable) {
				pageFlags |= vmm.FlagWriteEnable
			}
		case vmm.ErrInvalidMapping:
			frame, allocErr := alloc.AllocFrame()
			if allocErr != nil {
				kernel.Panic(allocErr)
				return allocErr
			}
			physAddr, fresh = frame.Address(), true
		default:
			return err
		}

		contents, err := physMem.Slice(physAddr, mem.PageSize)
		if err != nil {
			return err
		}
		if fresh {
			mem.Memset(contents, 0)
		}

		// Copy the part of the file image that overlaps this page
		copyStart, copyEnd := max(page, segStart), min(page+uint64(mem.PageSize), segStart+uint64(len(data)))
		if copyStart < copyEnd {
			copy(contents[copyStart-page:], data[copyStart-segStart:copyEnd-segStart])
		}

		if err = h.Map(alloc, page, physAddr, pageFlags); err != nil {
			return err
		}
	}

	return nil
}

func initFramebuffer(physMem *pmm.Memory, cfg *FramebufferConfig) (*fb.FrameBuf, *kernel.Error) {
	mode := fb.Mode{
		BitsPerPixel: cfg.BitsPerPixel,
		Width:        cfg.Width,
		Height:       cfg.Height,
		Pitch:        cfg.Pitch,
	}

	buf, err := physMem.Slice(cfg.PhysAddress, mem.Size(cfg.size()))
	if err != nil {
		return nil, err
	}

	return fb.New(buf, cfg.Model, mode)
}

// Kmain boots image and returns the handoff state. Boot failures are
// unrecoverable and are reported through kernel.Panic.
func Kmain(image []byte, cfg Config) *Handoff {
	handoff, err := Boot(image, cfg)
	if err != nil {
		kernel.Panic(err)
		return nil
	}

	return handoff
}
