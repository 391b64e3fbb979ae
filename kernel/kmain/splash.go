package kmain

import (
	"image"
	"image/draw"

	"github.com/fogleman/gg"

	"bootvoid/kernel/driver/video/fb"
	"bootvoid/kernel/elf"
)

// drawSplash renders the boot splash into an off-screen gg context and
// copies it to the framebuffer.
func drawSplash(frameBuf *fb.FrameBuf, info *elf.Info) {
	bounds := frameBuf.Bounds()
	w, h := float64(bounds.Dx()), float64(bounds.Dy())

	dc := gg.NewContext(bounds.Dx(), bounds.Dy())
	dc.SetRGB(0.05, 0.05, 0.1)
	dc.Clear()

	dc.SetRGB(1, 0, 0)
	dc.SetLineWidth(6)
	dc.DrawCircle(w/2, h/2, h/4)
	dc.Stroke()

	dc.SetRGB(1, 1, 1)
	dc.DrawStringAnchored("bootvoid: "+info.Machine.String(), w/2, h/2, 0.5, 0.5)

	draw.Draw(frameBuf, bounds, dc.Image(), image.Point{}, draw.Src)
}
