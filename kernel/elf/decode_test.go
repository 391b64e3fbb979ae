package elf

import (
	"bytes"
	stdelf "debug/elf"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testHeader describes the fields written by buildImage.
type testHeader struct {
	class   Class
	endian  Endianness
	typ     ObjectType
	machine Architecture
	entry   uint64
	phOff   uint64
	shOff   uint64
	flags   uint32
	phEnt   uint16
	phNum   uint16
	shEnt   uint16
	shNum   uint16
	shStr   uint16
}

func buildImage(t *testing.T, h testHeader) []byte {
	t.Helper()

	var (
		buf   bytes.Buffer
		order = h.endian.ByteOrder()
		write = func(v interface{}) {
			require.NoError(t, binary.Write(&buf, order, v))
		}
	)

	buf.WriteString(stdelf.ELFMAG)
	buf.Write([]byte{byte(h.class), byte(h.endian), byte(stdelf.EV_CURRENT), byte(stdelf.ELFOSABI_LINUX), 0})
	buf.Write(make([]byte, 7))
	write(uint16(h.typ))
	write(uint16(h.machine))
	write(uint32(stdelf.EV_CURRENT))

	if h.class == Class32 {
		write([]uint32{uint32(h.entry), uint32(h.phOff), uint32(h.shOff)})
	} else {
		write([]uint64{h.entry, h.phOff, h.shOff})
	}

	write(h.flags)
	write(uint16(HeaderSize(h.class)))
	write([]uint16{h.phEnt, h.phNum, h.shEnt, h.shNum, h.shStr})

	return buf.Bytes()
}

func TestDecodeExecutable64(t *testing.T) {
	image := buildImage(t, testHeader{
		class:   Class64,
		endian:  LittleEndian,
		typ:     TypeExecutable,
		machine: ArchX86_64,
		entry:   0x401000,
		phOff:   64,
		shOff:   0x3a98,
		phEnt:   56,
		phNum:   0,
		shEnt:   64,
		shNum:   12,
		shStr:   11,
	})
	require.Len(t, image, 64)

	info, err := Decode(image)
	require.Nil(t, err)

	assert.Equal(t, Class64, info.Class)
	assert.Equal(t, LittleEndian, info.Endianness)
	assert.Equal(t, TypeExecutable, info.Type)
	assert.Equal(t, ArchX86_64, info.Machine)
	assert.Equal(t, uint64(0x401000), info.Program.Entry)
	assert.Equal(t, uint64(64), info.Program.Offset)
	assert.Equal(t, uint64(56), info.Program.EntrySize)
	assert.Equal(t, uint64(0x3a98), info.Section.Offset)
	assert.Equal(t, uint64(64), info.Section.EntrySize)
	assert.Equal(t, uint64(12), info.Section.EntryCount)
	assert.Equal(t, uint64(11), info.Section.NameTableIndex)
	assert.Equal(t, uint8(stdelf.EV_CURRENT), info.HeaderVersion)
	assert.Equal(t, uint8(stdelf.ELFOSABI_LINUX), info.ABI)
	assert.Equal(t, uint16(64), info.HeaderSize)

	// The image is borrowed, not copied
	assert.Same(t, &image[0], &info.Image[0])
}

func TestDecodeOffsetsRoundTrip(t *testing.T) {
	specs := []struct {
		phOff, shOff uint64
	}{
		{0, 0},
		{64, 0x1000},
		{0xffffffff, 0x100000000},
		{0x7fffffffffffffff, 0xfffffffffffffff0},
	}

	for specIndex, spec := range specs {
		for _, endian := range []Endianness{LittleEndian, BigEndian} {
			info, err := Decode(buildImage(t, testHeader{
				class:   Class64,
				endian:  endian,
				typ:     TypeShared,
				machine: ArchAArch64,
				phOff:   spec.phOff,
				shOff:   spec.shOff,
			}))
			require.Nil(t, err, "spec %d", specIndex)

			assert.Equal(t, spec.phOff, info.Program.Offset, "[spec %d] %s", specIndex, endian)
			assert.Equal(t, spec.shOff, info.Section.Offset, "[spec %d] %s", specIndex, endian)
			assert.Equal(t, ArchAArch64, info.Machine, "[spec %d] %s", specIndex, endian)
		}
	}
}

func TestDecode32BitWidening(t *testing.T) {
	for _, endian := range []Endianness{LittleEndian, BigEndian} {
		image := buildImage(t, testHeader{
			class:   Class32,
			endian:  endian,
			typ:     TypeExecutable,
			machine: ArchX86,
			entry:   0xc0100000,
			phOff:   52,
			shOff:   0xffffffff,
			flags:   0x5000400,
			phEnt:   32,
			phNum:   3,
			shEnt:   40,
			shNum:   7,
			shStr:   6,
		})
		require.Len(t, image, 52)

		info, err := Decode(image)
		require.Nil(t, err)

		assert.Equal(t, Class32, info.Class)
		assert.Equal(t, endian, info.Endianness)
		assert.Equal(t, uint64(0xc0100000), info.Program.Entry)
		assert.Equal(t, uint64(52), info.Program.Offset)
		assert.Equal(t, uint64(0xffffffff), info.Section.Offset)
		assert.Equal(t, uint64(32), info.Program.EntrySize)
		assert.Equal(t, uint64(3), info.Program.EntryCount)
		assert.Equal(t, uint64(6), info.Section.NameTableIndex)
		assert.Equal(t, uint32(0x5000400), info.Flags)
		assert.Equal(t, uint16(52), info.HeaderSize)
	}
}

func TestDecodeUnknownValuesPreserved(t *testing.T) {
	info, err := Decode(buildImage(t, testHeader{
		class:   Class64,
		endian:  LittleEndian,
		typ:     ObjectType(0xfe00),
		machine: Architecture(0x1234),
	}))
	require.Nil(t, err)

	assert.False(t, info.Type.Known())
	assert.Equal(t, ObjectType(0xfe00), info.Type)
	assert.False(t, info.Machine.Known())
	assert.Equal(t, Architecture(0x1234), info.Machine)
	assert.Equal(t, "unknown(0x1234)", info.Machine.String())
}

func TestDecodeErrors(t *testing.T) {
	valid := buildImage(t, testHeader{class: Class64, endian: LittleEndian, typ: TypeExecutable, machine: ArchX86_64})

	corrupt := func(index int, value byte) []byte {
		image := append([]byte(nil), valid...)
		image[index] = value
		return image
	}

	specs := []struct {
		descr  string
		image  []byte
		expErr error
	}{
		{"empty", nil, ErrNotAnObjectFile},
		{"short magic", []byte{0x7f, 'E'}, ErrNotAnObjectFile},
		{"bad magic", corrupt(1, 'X'), ErrNotAnObjectFile},
		{"magic only", []byte(stdelf.ELFMAG), ErrTruncatedHeader},
		{"class none", corrupt(stdelf.EI_CLASS, 0), ErrUnsupportedWidthClass},
		{"class 3", corrupt(stdelf.EI_CLASS, 3), ErrUnsupportedWidthClass},
		{"data none", corrupt(stdelf.EI_DATA, 0), ErrUnsupportedEndianness},
		{"data 3", corrupt(stdelf.EI_DATA, 3), ErrUnsupportedEndianness},
		{"truncated 64-bit header", valid[:63], ErrTruncatedHeader},
		{"64-bit header marked as 32-bit", corrupt(stdelf.EI_CLASS, byte(Class32))[:40], ErrTruncatedHeader},
	}

	for _, spec := range specs {
		t.Run(spec.descr, func(t *testing.T) {
			info, err := Decode(spec.image)
			assert.Nil(t, info)
			if assert.NotNil(t, err) {
				assert.Equal(t, spec.expErr, err)
			}
		})
	}
}

func TestHeaderSize(t *testing.T) {
	assert.Equal(t, 52, HeaderSize(Class32))
	assert.Equal(t, 64, HeaderSize(Class64))
	assert.Equal(t, 0, HeaderSize(Class(0)))

	// The suffix starts right after the width-dependent pointer fields
	assert.Equal(t, 24+12, prefixSize+middle32Size)
	assert.Equal(t, 24+24, prefixSize+middle64Size)
}

func TestStringers(t *testing.T) {
	assert.Equal(t, "64-bit", Class64.String())
	assert.Equal(t, "32-bit", Class32.String())
	assert.Equal(t, "unknown(9)", Class(9).String())
	assert.Equal(t, "big-endian", BigEndian.String())
	assert.Equal(t, "little-endian", LittleEndian.String())
	assert.Equal(t, "executable", TypeExecutable.String())
	assert.Equal(t, "core", TypeCore.String())
	assert.Equal(t, "x86_64", ArchX86_64.String())
	assert.Equal(t, "riscv", ArchRISCV.String())
	assert.True(t, ArchItanium64.Known())
}
