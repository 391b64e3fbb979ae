package main

import (
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"bootvoid/kernel/driver/video/fb"
	"bootvoid/kernel/kmain"
	"bootvoid/kernel/mem"
	"bootvoid/kernel/mem/pmm/allocator"
)

const defaultMemorySize = "128MiB"

// machineConfig is the YAML description of the simulated machine.
type machineConfig struct {
	Memory          string             `yaml:"memory"`
	DirectMapOffset uint64             `yaml:"direct_map_offset"`
	LogLevel        string             `yaml:"log_level"`
	Regions         []regionConfig     `yaml:"regions"`
	Framebuffer     *framebufferConfig `yaml:"framebuffer"`
}

type regionConfig struct {
	Start  uint64 `yaml:"start"`
	Length string `yaml:"length"`
	Type   string `yaml:"type"`
}

type framebufferConfig struct {
	Address uint64 `yaml:"address"`
	Width   uint32 `yaml:"width"`
	Height  uint32 `yaml:"height"`
	BPP     uint16 `yaml:"bpp"`
	Pitch   uint32 `yaml:"pitch"`
	Model   string `yaml:"model"`
}

// loadConfig reads a machine description from path. An empty path yields
// the default machine.
func loadConfig(path string) (*machineConfig, error) {
	if path == "" {
		return &machineConfig{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading machine config")
	}

	return parseConfig(data)
}

func parseConfig(data []byte) (*machineConfig, error) {
	var cfg machineConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "parsing machine config")
	}
	return &cfg, nil
}

// parseSize accepts plain or 0x-prefixed byte counts as well as
// human-readable sizes such as "128MiB".
func parseSize(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseUint(s, 0, 64); err == nil {
		return v, nil
	}

	v, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid size %q", s)
	}
	return v, nil
}

// logLevel returns the configured log level or fallback if none is set.
func (c *machineConfig) logLevel(fallback slog.Level) (slog.Level, error) {
	if c.LogLevel == "" {
		return fallback, nil
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return fallback, errors.Wrap(err, "invalid log level")
	}
	return level, nil
}

// bootConfig converts the machine description into the boot parameters.
// A non-empty memoryOverride replaces the configured memory size.
func (c *machineConfig) bootConfig(memoryOverride string) (kmain.Config, error) {
	memory := c.Memory
	if memoryOverride != "" {
		memory = memoryOverride
	}
	if memory == "" {
		memory = defaultMemorySize
	}

	size, err := parseSize(memory)
	if err != nil {
		return kmain.Config{}, errors.Wrap(err, "memory")
	}

	out := kmain.Config{
		MemorySize:      mem.Size(size),
		DirectMapOffset: c.DirectMapOffset,
	}

	for i, region := range c.Regions {
		length, err := parseSize(region.Length)
		if err != nil {
			return kmain.Config{}, errors.Wrapf(err, "region %d", i)
		}

		var typ allocator.RegionType
		switch strings.ToLower(region.Type) {
		case "", "available":
			typ = allocator.RegionAvailable
		case "reserved":
			typ = allocator.RegionReserved
		default:
			return kmain.Config{}, errors.Errorf("region %d: unknown region type %q", i, region.Type)
		}

		out.Regions = append(out.Regions, allocator.MemoryRegion{
			PhysAddress: region.Start,
			Length:      length,
			Type:        typ,
		})
	}

	if c.Framebuffer != nil {
		var model fb.Model
		switch strings.ToLower(c.Framebuffer.Model) {
		case "", "rgb":
			model = fb.ModelRGB
		case "bgr":
			model = fb.ModelBGR
		default:
			return kmain.Config{}, errors.Errorf("framebuffer: unknown pixel model %q", c.Framebuffer.Model)
		}

		bpp := c.Framebuffer.BPP
		if bpp == 0 {
			bpp = 32
		}

		out.Framebuffer = &kmain.FramebufferConfig{
			PhysAddress:  c.Framebuffer.Address,
			Width:        c.Framebuffer.Width,
			Height:       c.Framebuffer.Height,
			BitsPerPixel: bpp,
			Pitch:        c.Framebuffer.Pitch,
			Model:        model,
		}
	}

	return out, nil
}
