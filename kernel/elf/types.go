// Package elf decodes the file header of ELF executable images.
//
// Multi-byte fields are decoded in the byte order declared by the image
// rather than the host's native order, so big-endian images decode
// faithfully on little-endian hosts and vice versa.
package elf

import (
	stdelf "debug/elf"
	"encoding/binary"
	"fmt"
)

// Class is the width class of an object file.
type Class uint8

// Supported width classes.
const (
	Class32 = Class(stdelf.ELFCLASS32)
	Class64 = Class(stdelf.ELFCLASS64)
)

// String implements fmt.Stringer for Class.
func (c Class) String() string {
	switch c {
	case Class32:
		return "32-bit"
	case Class64:
		return "64-bit"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// Endianness is the byte order used by multi-byte header fields.
type Endianness uint8

// Supported byte orders.
const (
	LittleEndian = Endianness(stdelf.ELFDATA2LSB)
	BigEndian    = Endianness(stdelf.ELFDATA2MSB)
)

// String implements fmt.Stringer for Endianness.
func (e Endianness) String() string {
	switch e {
	case LittleEndian:
		return "little-endian"
	case BigEndian:
		return "big-endian"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(e))
	}
}

// ByteOrder returns the binary.ByteOrder for e.
func (e Endianness) ByteOrder() binary.ByteOrder {
	if e == BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// ObjectType describes the kind of object file. Values without a defined
// constant are preserved as-is.
type ObjectType uint16

// Recognized object types.
const (
	TypeUnspecified = ObjectType(stdelf.ET_NONE)
	TypeRelocatable = ObjectType(stdelf.ET_REL)
	TypeExecutable  = ObjectType(stdelf.ET_EXEC)
	TypeShared      = ObjectType(stdelf.ET_DYN)
	TypeCore        = ObjectType(stdelf.ET_CORE)
)

var objectTypeNames = map[ObjectType]string{
	TypeUnspecified: "unspecified",
	TypeRelocatable: "relocatable",
	TypeExecutable:  "executable",
	TypeShared:      "shared",
	TypeCore:        "core",
}

// Known returns true if t is one of the recognized object types.
func (t ObjectType) Known() bool {
	_, ok := objectTypeNames[t]
	return ok
}

// String implements fmt.Stringer for ObjectType.
func (t ObjectType) String() string {
	if name, ok := objectTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%#x)", uint16(t))
}

// Architecture is the target instruction set of an object file. Values
// without a defined constant are preserved as-is.
type Architecture uint16

// Recognized architectures.
const (
	ArchSparc     = Architecture(stdelf.EM_SPARC)
	ArchX86       = Architecture(stdelf.EM_386)
	ArchMIPS      = Architecture(stdelf.EM_MIPS)
	ArchPowerPC   = Architecture(stdelf.EM_PPC)
	ArchARM       = Architecture(stdelf.EM_ARM)
	ArchSuperH    = Architecture(stdelf.EM_SH)
	ArchItanium64 = Architecture(stdelf.EM_IA_64)
	ArchX86_64    = Architecture(stdelf.EM_X86_64)
	ArchAArch64   = Architecture(stdelf.EM_AARCH64)
	ArchRISCV     = Architecture(stdelf.EM_RISCV)
)

var architectureNames = map[Architecture]string{
	ArchSparc:     "sparc",
	ArchX86:       "x86",
	ArchMIPS:      "mips",
	ArchPowerPC:   "powerpc",
	ArchARM:       "arm",
	ArchSuperH:    "superh",
	ArchItanium64: "ia64",
	ArchX86_64:    "x86_64",
	ArchAArch64:   "aarch64",
	ArchRISCV:     "riscv",
}

// Known returns true if a is one of the recognized architectures.
func (a Architecture) Known() bool {
	_, ok := architectureNames[a]
	return ok
}

// String implements fmt.Stringer for Architecture.
func (a Architecture) String() string {
	if name, ok := architectureNames[a]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%#x)", uint16(a))
}
