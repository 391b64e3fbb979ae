package main

import (
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"

	"bootvoid/kernel/elf"
)

func readImage(path string) (*elf.Info, error) {
	image, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading kernel image")
	}

	info, kerr := elf.Decode(image)
	if kerr != nil {
		return nil, errors.Wrapf(kerr, "decoding %s", path)
	}
	return info, nil
}

// inspect prints the decoded file header and program headers of the image
// at path.
func inspect(out io.Writer, path string) error {
	info, err := readImage(path)
	if err != nil {
		return err
	}

	header := tablewriter.NewWriter(out)
	header.SetHeader([]string{"Field", "Value"})
	header.AppendBulk([][]string{
		{"Class", info.Class.String()},
		{"Endianness", info.Endianness.String()},
		{"Type", info.Type.String()},
		{"Machine", info.Machine.String()},
		{"ABI", fmt.Sprintf("%d (version %d)", info.ABI, info.ABIVersion)},
		{"Entry", fmt.Sprintf("%#x", info.Program.Entry)},
		{"Program headers", fmt.Sprintf("%d x %d bytes at %#x", info.Program.EntryCount, info.Program.EntrySize, info.Program.Offset)},
		{"Section headers", fmt.Sprintf("%d x %d bytes at %#x", info.Section.EntryCount, info.Section.EntrySize, info.Section.Offset)},
		{"Section names", fmt.Sprintf("%d", info.Section.NameTableIndex)},
		{"Flags", fmt.Sprintf("%#x", info.Flags)},
		{"Size", humanize.IBytes(uint64(len(info.Image)))},
		{"Digest", fmt.Sprintf("%016x", info.Digest())},
	})
	header.Render()

	segments, kerr := info.Segments()
	if kerr != nil {
		return errors.Wrap(kerr, "decoding program headers")
	}
	if len(segments) == 0 {
		return nil
	}

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Type", "Flags", "Offset", "VirtAddr", "FileSize", "MemSize", "Align"})
	for _, seg := range segments {
		table.Append([]string{
			seg.Type.String(),
			seg.Flags.String(),
			fmt.Sprintf("%#x", seg.Offset),
			fmt.Sprintf("%#x", seg.VirtAddr),
			humanize.IBytes(seg.FileSize),
			humanize.IBytes(seg.MemSize),
			fmt.Sprintf("%#x", seg.Align),
		})
	}
	table.Render()

	return nil
}
