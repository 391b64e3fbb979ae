package elf

import (
	"bytes"
	stdelf "debug/elf"
	"encoding/binary"

	"bootvoid/kernel"
)

var (
	// ErrNotAnObjectFile is returned when the image does not start with the ELF magic.
	ErrNotAnObjectFile = &kernel.Error{Module: "elf", Message: "image is not an ELF object file"}

	// ErrUnsupportedWidthClass is returned for images that are neither 32-bit nor 64-bit.
	ErrUnsupportedWidthClass = &kernel.Error{Module: "elf", Message: "unsupported ELF width class"}

	// ErrUnsupportedEndianness is returned for images that are neither little nor big endian.
	ErrUnsupportedEndianness = &kernel.Error{Module: "elf", Message: "unsupported ELF byte order"}

	// ErrTruncatedHeader is returned when the image ends before the file header does.
	ErrTruncatedHeader = &kernel.Error{Module: "elf", Message: "image is too short to hold an ELF header"}
)

// headerPrefix is the part of the file header shared by both width classes.
type headerPrefix struct {
	Magic         [4]byte
	Class         uint8
	Data          uint8
	HeaderVersion uint8
	ABI           uint8
	ABIVersion    uint8
	_             [7]byte
	Type          uint16
	Machine       uint16
	Version       uint32
}

// headerMiddle holds the pointer-sized fields whose width depends on the
// class of the image.
type headerMiddle interface {
	entry() uint64
	programHeaderOffset() uint64
	sectionHeaderOffset() uint64
}

type headerMiddle32 struct {
	Entry uint32
	PhOff uint32
	ShOff uint32
}

func (m *headerMiddle32) entry() uint64               { return uint64(m.Entry) }
func (m *headerMiddle32) programHeaderOffset() uint64 { return uint64(m.PhOff) }
func (m *headerMiddle32) sectionHeaderOffset() uint64 { return uint64(m.ShOff) }

type headerMiddle64 struct {
	Entry uint64
	PhOff uint64
	ShOff uint64
}

func (m *headerMiddle64) entry() uint64               { return m.Entry }
func (m *headerMiddle64) programHeaderOffset() uint64 { return m.PhOff }
func (m *headerMiddle64) sectionHeaderOffset() uint64 { return m.ShOff }

// headerSuffix is the part of the file header that follows the
// pointer-sized fields.
type headerSuffix struct {
	Flags     uint32
	EhSize    uint16
	PhEntSize uint16
	PhNum     uint16
	ShEntSize uint16
	ShNum     uint16
	ShStrNdx  uint16
}

var (
	prefixSize   = binary.Size(headerPrefix{})
	middle32Size = binary.Size(headerMiddle32{})
	middle64Size = binary.Size(headerMiddle64{})
	suffixSize   = binary.Size(headerSuffix{})
)

// HeaderSize returns the size of the file header for the width class c or 0
// if c is not supported.
func HeaderSize(c Class) int {
	switch c {
	case Class32:
		return prefixSize + middle32Size + suffixSize
	case Class64:
		return prefixSize + middle64Size + suffixSize
	default:
		return 0
	}
}

// Decode parses the file header at the start of image. The returned Info
// borrows image; the caller must keep it alive and unmodified for as long as
// the Info is in use. Decode never returns a partially populated Info.
func Decode(image []byte) (*Info, *kernel.Error) {
	if len(image) < len(stdelf.ELFMAG) || !bytes.Equal(image[:len(stdelf.ELFMAG)], []byte(stdelf.ELFMAG)) {
		return nil, ErrNotAnObjectFile
	}

	if len(image) <= int(stdelf.EI_DATA) {
		return nil, ErrTruncatedHeader
	}

	var (
		class  = Class(image[stdelf.EI_CLASS])
		endian = Endianness(image[stdelf.EI_DATA])
		middle headerMiddle
	)

	switch class {
	case Class32:
		middle = &headerMiddle32{}
	case Class64:
		middle = &headerMiddle64{}
	default:
		return nil, ErrUnsupportedWidthClass
	}

	if endian != LittleEndian && endian != BigEndian {
		return nil, ErrUnsupportedEndianness
	}

	if len(image) < HeaderSize(class) {
		return nil, ErrTruncatedHeader
	}

	var (
		order        = endian.ByteOrder()
		prefix       headerPrefix
		suffix       headerSuffix
		suffixOffset = prefixSize + binary.Size(middle)
	)

	if _, err := binary.Decode(image, order, &prefix); err != nil {
		return nil, ErrTruncatedHeader
	}
	if _, err := binary.Decode(image[prefixSize:], order, middle); err != nil {
		return nil, ErrTruncatedHeader
	}
	if _, err := binary.Decode(image[suffixOffset:], order, &suffix); err != nil {
		return nil, ErrTruncatedHeader
	}

	return &Info{
		Class:         class,
		Endianness:    endian,
		HeaderVersion: prefix.HeaderVersion,
		ABI:           prefix.ABI,
		ABIVersion:    prefix.ABIVersion,
		Type:          ObjectType(prefix.Type),
		Machine:       Architecture(prefix.Machine),
		Version:       prefix.Version,
		Flags:         suffix.Flags,
		HeaderSize:    suffix.EhSize,
		Program: ProgramInfo{
			Entry:      middle.entry(),
			Offset:     middle.programHeaderOffset(),
			EntrySize:  uint64(suffix.PhEntSize),
			EntryCount: uint64(suffix.PhNum),
		},
		Section: SectionInfo{
			Offset:         middle.sectionHeaderOffset(),
			EntrySize:      uint64(suffix.ShEntSize),
			EntryCount:     uint64(suffix.ShNum),
			NameTableIndex: uint64(suffix.ShStrNdx),
		},
		Image: image,
	}, nil
}
