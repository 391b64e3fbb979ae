package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bootvoid/kernel/driver/video/fb"
	"bootvoid/kernel/kmain"
	"bootvoid/kernel/mem"
	"bootvoid/kernel/mem/pmm/allocator"
)

const qemuMachine = `
memory: 128MiB
direct_map_offset: 0xC0000000
log_level: debug
regions:
  - start: 0x0
    length: 0x9fc00
    type: available
  - start: 0x9fc00
    length: 1KiB
    type: reserved
  - start: 0x100000
    length: 0x7ee0000
framebuffer:
  address: 0xfd000000
  width: 1024
  height: 768
  model: bgr
`

func TestParseConfig(t *testing.T) {
	machine, err := parseConfig([]byte(qemuMachine))
	require.NoError(t, err)

	level, err := machine.logLevel(slog.LevelInfo)
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)

	bootCfg, err := machine.bootConfig("")
	require.NoError(t, err)

	assert.Equal(t, kmain.Config{
		MemorySize:      128 * mem.Mb,
		DirectMapOffset: 0xC0000000,
		Regions: []allocator.MemoryRegion{
			{PhysAddress: 0, Length: 0x9fc00, Type: allocator.RegionAvailable},
			{PhysAddress: 0x9fc00, Length: 1024, Type: allocator.RegionReserved},
			{PhysAddress: 0x100000, Length: 0x7ee0000, Type: allocator.RegionAvailable},
		},
		Framebuffer: &kmain.FramebufferConfig{
			PhysAddress:  0xfd000000,
			Width:        1024,
			Height:       768,
			BitsPerPixel: 32,
			Model:        fb.ModelBGR,
		},
	}, bootCfg)

	bootCfg, err = machine.bootConfig("2MiB")
	require.NoError(t, err)
	assert.Equal(t, 2*mem.Mb, bootCfg.MemorySize)
}

func TestDefaultConfig(t *testing.T) {
	machine, err := loadConfig("")
	require.NoError(t, err)

	level, err := machine.logLevel(slog.LevelWarn)
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)

	bootCfg, err := machine.bootConfig("")
	require.NoError(t, err)
	assert.Equal(t, 128*mem.Mb, bootCfg.MemorySize)
	assert.Empty(t, bootCfg.Regions)
	assert.Nil(t, bootCfg.Framebuffer)
}

func TestConfigErrors(t *testing.T) {
	specs := []struct {
		descr string
		yaml  string
	}{
		{"bad memory", "memory: lots"},
		{"bad region length", "regions:\n  - start: 0\n    length: huge\n"},
		{"bad region type", "regions:\n  - start: 0\n    length: 4096\n    type: acpi\n"},
		{"bad pixel model", "framebuffer:\n  width: 8\n  height: 8\n  model: cmyk\n"},
	}

	for _, spec := range specs {
		t.Run(spec.descr, func(t *testing.T) {
			machine, err := parseConfig([]byte(spec.yaml))
			require.NoError(t, err)

			_, err = machine.bootConfig("")
			assert.Error(t, err)
		})
	}

	_, err := parseConfig([]byte("regions: {"))
	assert.Error(t, err)

	machine, err := parseConfig([]byte("log_level: loud"))
	require.NoError(t, err)
	_, err = machine.logLevel(slog.LevelInfo)
	assert.Error(t, err)

	_, err = loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, os.IsNotExist(errorsCause(err)))
}

func TestParseSize(t *testing.T) {
	specs := []struct {
		in  string
		exp uint64
	}{
		{"4096", 4096},
		{"0x1000", 4096},
		{" 64MiB ", 64 << 20},
		{"1 GiB", 1 << 30},
		{"2MB", 2000000},
	}

	for _, spec := range specs {
		got, err := parseSize(spec.in)
		require.NoError(t, err, spec.in)
		assert.Equal(t, spec.exp, got, spec.in)
	}
}
