// Package fb provides access to a linear framebuffer handed over by the
// firmware.
package fb

import (
	"image"
	"image/color"

	"bootvoid/kernel"
)

var (
	errOutOfBounds     = &kernel.Error{Module: "fb", Message: "pixel coordinates are outside of the framebuffer"}
	errUnsupportedMode = &kernel.Error{Module: "fb", Message: "unsupported framebuffer mode"}
)

// Model describes the order of the color channels inside a pixel.
type Model uint8

// Supported pixel models.
const (
	ModelRGB Model = iota
	ModelBGR
)

// String implements fmt.Stringer for Model.
func (m Model) String() string {
	if m == ModelBGR {
		return "bgr"
	}
	return "rgb"
}

// Mode describes the geometry of the framebuffer.
type Mode struct {
	BitsPerPixel uint16
	Width        uint32
	Height       uint32

	// Pitch is the size of a row in bytes. When zero, rows are assumed to
	// be tightly packed.
	Pitch uint32
}

// FrameBuf is a linear framebuffer with 24 or 32 bits per pixel.
type FrameBuf struct {
	Buffer []byte
	Model  Model
	Mode   Mode
}

// New returns a FrameBuf over buf after checking that buf can hold every
// pixel described by mode.
func New(buf []byte, model Model, mode Mode) (*FrameBuf, *kernel.Error) {
	if mode.BitsPerPixel != 24 && mode.BitsPerPixel != 32 {
		return nil, errUnsupportedMode
	}

	fb := &FrameBuf{Buffer: buf, Model: model, Mode: mode}
	if uint64(fb.pitch())*uint64(mode.Height) > uint64(len(buf)) {
		return nil, errUnsupportedMode
	}

	return fb, nil
}

func (fb *FrameBuf) pitch() uint32 {
	if fb.Mode.Pitch != 0 {
		return fb.Mode.Pitch
	}
	return fb.Mode.Width * uint32(fb.Mode.BitsPerPixel>>3)
}

// offset returns the linear offset into the framebuffer that corresponds to
// the pixel at (x,y).
func (fb *FrameBuf) offset(x, y uint32) uint32 {
	return (y * fb.pitch()) + (x * uint32(fb.Mode.BitsPerPixel) >> 3)
}

// SetPixel stores the raw pixel value at (x,y). Only the low
// BitsPerPixel bits of value are written.
func (fb *FrameBuf) SetPixel(value uint32, x, y uint32) *kernel.Error {
	if x >= fb.Mode.Width || y >= fb.Mode.Height {
		return errOutOfBounds
	}

	off := fb.offset(x, y)
	for i := uint32(0); i < uint32(fb.Mode.BitsPerPixel>>3); i++ {
		fb.Buffer[off+i] = byte(value >> (i * 8))
	}

	return nil
}

// Pixel returns the raw pixel value at (x,y).
func (fb *FrameBuf) Pixel(x, y uint32) (uint32, *kernel.Error) {
	if x >= fb.Mode.Width || y >= fb.Mode.Height {
		return 0, errOutOfBounds
	}

	var (
		off   = fb.offset(x, y)
		value uint32
	)
	for i := uint32(0); i < uint32(fb.Mode.BitsPerPixel>>3); i++ {
		value |= uint32(fb.Buffer[off+i]) << (i * 8)
	}

	return value, nil
}

// Pack converts c into a raw pixel value for the framebuffer's model.
func (fb *FrameBuf) Pack(c color.Color) uint32 {
	rgba := color.RGBAModel.Convert(c).(color.RGBA)
	if fb.Model == ModelBGR {
		return uint32(rgba.B)<<16 | uint32(rgba.G)<<8 | uint32(rgba.R)
	}
	return uint32(rgba.R)<<16 | uint32(rgba.G)<<8 | uint32(rgba.B)
}

// Unpack converts a raw pixel value into an opaque color.
func (fb *FrameBuf) Unpack(value uint32) color.RGBA {
	hi, mid, lo := uint8(value>>16), uint8(value>>8), uint8(value)
	if fb.Model == ModelBGR {
		return color.RGBA{R: lo, G: mid, B: hi, A: 0xff}
	}
	return color.RGBA{R: hi, G: mid, B: lo, A: 0xff}
}

// ColorModel implements image.Image.
func (fb *FrameBuf) ColorModel() color.Model {
	return color.RGBAModel
}

// Bounds implements image.Image.
func (fb *FrameBuf) Bounds() image.Rectangle {
	return image.Rect(0, 0, int(fb.Mode.Width), int(fb.Mode.Height))
}

// At implements image.Image. Pixels outside the framebuffer read as
// transparent black.
func (fb *FrameBuf) At(x, y int) color.Color {
	if x < 0 || y < 0 {
		return color.RGBA{}
	}

	value, err := fb.Pixel(uint32(x), uint32(y))
	if err != nil {
		return color.RGBA{}
	}
	return fb.Unpack(value)
}

// Set implements draw.Image. Writes outside the framebuffer are ignored.
func (fb *FrameBuf) Set(x, y int, c color.Color) {
	if x < 0 || y < 0 {
		return
	}
	_ = fb.SetPixel(fb.Pack(c), uint32(x), uint32(y))
}
