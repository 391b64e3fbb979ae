package elf

import (
	stdelf "debug/elf"
	"encoding/binary"

	"github.com/cespare/xxhash"

	"bootvoid/kernel"
)

var (
	errTableOutOfBounds = &kernel.Error{Module: "elf", Message: "header table lies outside of the image"}
	errBadEntrySize     = &kernel.Error{Module: "elf", Message: "program header entry size does not match the width class"}
)

// ProgramInfo locates the program header table of an image.
type ProgramInfo struct {
	// Entry is the virtual address control is transferred to.
	Entry      uint64
	Offset     uint64
	EntrySize  uint64
	EntryCount uint64
}

// SectionInfo locates the section header table of an image.
type SectionInfo struct {
	Offset     uint64
	EntrySize  uint64
	EntryCount uint64

	// NameTableIndex is the index of the section holding section names.
	NameTableIndex uint64
}

// Info is the decoded file header of an ELF image. Offsets and sizes are
// widened to 64 bits for both width classes.
type Info struct {
	Class         Class
	Endianness    Endianness
	HeaderVersion uint8
	ABI           uint8
	ABIVersion    uint8
	Type          ObjectType
	Machine       Architecture
	Version       uint32
	Flags         uint32
	HeaderSize    uint16
	Program       ProgramInfo
	Section       SectionInfo

	// Image is the buffer the header was decoded from. It is borrowed from
	// the caller and never copied.
	Image []byte
}

// Digest returns the xxhash of the whole image.
func (info *Info) Digest() uint64 {
	return xxhash.Sum64(info.Image)
}

// ProgramHeaderTable returns the bytes of the program header table.
func (info *Info) ProgramHeaderTable() ([]byte, *kernel.Error) {
	return info.table(info.Program.Offset, info.Program.EntrySize, info.Program.EntryCount)
}

// SectionHeaderTable returns the bytes of the section header table.
func (info *Info) SectionHeaderTable() ([]byte, *kernel.Error) {
	return info.table(info.Section.Offset, info.Section.EntrySize, info.Section.EntryCount)
}

func (info *Info) table(offset, entrySize, count uint64) ([]byte, *kernel.Error) {
	size := entrySize * count
	end := offset + size
	if (entrySize != 0 && size/entrySize != count) || end < offset || end > uint64(len(info.Image)) {
		return nil, errTableOutOfBounds
	}

	return info.Image[offset:end:end], nil
}

// Segment describes an entry of the program header table.
type Segment struct {
	Type     stdelf.ProgType
	Flags    stdelf.ProgFlag
	Offset   uint64
	VirtAddr uint64
	PhysAddr uint64
	FileSize uint64
	MemSize  uint64
	Align    uint64
}

// Data returns the file-backed bytes of the segment.
func (s Segment) Data(image []byte) ([]byte, *kernel.Error) {
	end := s.Offset + s.FileSize
	if end < s.Offset || end > uint64(len(image)) {
		return nil, errTableOutOfBounds
	}
	return image[s.Offset:end:end], nil
}

// Segments decodes the program header table.
func (info *Info) Segments() ([]Segment, *kernel.Error) {
	if info.Program.EntryCount == 0 {
		return nil, nil
	}

	table, err := info.ProgramHeaderTable()
	if err != nil {
		return nil, err
	}

	var (
		order    = info.Endianness.ByteOrder()
		segments = make([]Segment, 0, info.Program.EntryCount)
	)

	switch info.Class {
	case Class32:
		var ph stdelf.Prog32
		if info.Program.EntrySize < uint64(binary.Size(ph)) {
			return nil, errBadEntrySize
		}
		for off := uint64(0); off < uint64(len(table)); off += info.Program.EntrySize {
			if _, decErr := binary.Decode(table[off:], order, &ph); decErr != nil {
				return nil, errTableOutOfBounds
			}
			segments = append(segments, Segment{
				Type:     stdelf.ProgType(ph.Type),
				Flags:    stdelf.ProgFlag(ph.Flags),
				Offset:   uint64(ph.Off),
				VirtAddr: uint64(ph.Vaddr),
				PhysAddr: uint64(ph.Paddr),
				FileSize: uint64(ph.Filesz),
				MemSize:  uint64(ph.Memsz),
				Align:    uint64(ph.Align),
			})
		}
	default:
		var ph stdelf.Prog64
		if info.Program.EntrySize < uint64(binary.Size(ph)) {
			return nil, errBadEntrySize
		}
		for off := uint64(0); off < uint64(len(table)); off += info.Program.EntrySize {
			if _, decErr := binary.Decode(table[off:], order, &ph); decErr != nil {
				return nil, errTableOutOfBounds
			}
			segments = append(segments, Segment{
				Type:     stdelf.ProgType(ph.Type),
				Flags:    stdelf.ProgFlag(ph.Flags),
				Offset:   ph.Off,
				VirtAddr: ph.Vaddr,
				PhysAddr: ph.Paddr,
				FileSize: ph.Filesz,
				MemSize:  ph.Memsz,
				Align:    ph.Align,
			})
		}
	}

	return segments, nil
}
