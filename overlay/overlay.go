// Package overlay composites detection boxes and labels onto the
// mirrored video frame.
package overlay

import (
	"fmt"
	"image"
	"image/color"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/openbench/labscan/models"
)

const (
	lineWidth = 2.0
	fontSize  = 14.0
	labelPad  = 3.0
)

// palette cycles per class id so adjacent classes get distinct boxes.
var palette = []color.RGBA{
	{R: 0x2e, G: 0xcc, B: 0x71, A: 0xff},
	{R: 0xe6, G: 0x7e, B: 0x22, A: 0xff},
	{R: 0x34, G: 0x98, B: 0xdb, A: 0xff},
	{R: 0xe7, G: 0x4c, B: 0x3c, A: 0xff},
	{R: 0x9b, G: 0x59, B: 0xb6, A: 0xff},
	{R: 0xf1, G: 0xc4, B: 0x0f, A: 0xff},
}

// Renderer draws detection overlays with a fixed font face.
type Renderer struct {
	face font.Face
}

// NewRenderer parses the bundled font once and returns a renderer.
func NewRenderer() (*Renderer, error) {
	f, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	return &Renderer{
		face: truetype.NewFace(f, &truetype.Options{Size: fontSize}),
	}, nil
}

// MirrorX re-mirrors a box x-coordinate so it lines up with a
// horizontally mirrored frame. Applying it twice yields the original
// coordinate.
func MirrorX(x, boxWidth, displayWidth int) int {
	return displayWidth - x - boxWidth
}

// Render draws the detection set onto a copy of the (already mirrored)
// frame. Detection coordinates are in unmirrored display space, so each
// box x is re-mirrored before drawing; y, width, and height are
// unaffected.
func (r *Renderer) Render(frame image.Image, dets []models.Detection) image.Image {
	if len(dets) == 0 {
		return frame
	}

	dc := gg.NewContextForImage(frame)
	dc.SetFontFace(r.face)
	displayW := frame.Bounds().Dx()

	for _, det := range dets {
		c := palette[det.ClassID%len(palette)]
		x := float64(MirrorX(det.Box.Min.X, det.Box.Dx(), displayW))
		y := float64(det.Box.Min.Y)
		w := float64(det.Box.Dx())
		h := float64(det.Box.Dy())

		dc.SetColor(c)
		dc.SetLineWidth(lineWidth)
		dc.DrawRectangle(x, y, w, h)
		dc.Stroke()

		label := fmt.Sprintf("%s %.1f%%", det.ClassName, det.Confidence*100)
		labelW, labelH := dc.MeasureString(label)
		labelW += 2 * labelPad
		labelH += 2 * labelPad

		ly := labelY(y, labelH)
		dc.DrawRectangle(x, ly, labelW, labelH)
		dc.Fill()

		dc.SetColor(color.White)
		dc.DrawString(label, x+labelPad, ly+labelH-labelPad)
	}

	return dc.Image()
}

// labelY places the label background above the box, or just inside it
// when the box sits too close to the top edge.
func labelY(boxY, labelH float64) float64 {
	if boxY-labelH < 0 {
		return boxY
	}
	return boxY - labelH
}
