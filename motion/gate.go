// Package motion implements the brightness heuristic that decides when
// the scanner is worth waking up. Sampling is pure; baseline storage
// belongs to the caller.
package motion

import (
	"image"
	"math"
)

// sampleGrid is the fixed downsample resolution for brightness
// sampling. Coarse on purpose: the gate needs a cheap scalar signal,
// not an accurate image.
const sampleGrid = 100

// Baseline is the previous brightness sample, or unset. The zero value
// is unset; the gate reports no motion until a baseline exists.
type Baseline struct {
	luma float64
	ok   bool
}

// NewBaseline wraps a brightness sample as a set baseline.
func NewBaseline(luma float64) Baseline {
	return Baseline{luma: luma, ok: true}
}

// Valid reports whether a previous sample exists.
func (b Baseline) Valid() bool { return b.ok }

// Value returns the stored brightness; only meaningful when Valid.
func (b Baseline) Value() float64 { return b.luma }

// Sample computes the mean luma of a centered square region covering
// roiFraction of the smaller frame dimension, downsampled to a
// sampleGrid x sampleGrid grid. Luma is the weighted sum
// 0.299R + 0.587G + 0.114B over 8-bit samples.
func Sample(img image.Image, roiFraction float64) float64 {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return 0
	}

	minDim := w
	if h < minDim {
		minDim = h
	}
	side := int(float64(minDim) * roiFraction)
	if side < 1 {
		side = 1
	}
	x0 := bounds.Min.X + (w-side)/2
	y0 := bounds.Min.Y + (h-side)/2

	var sum float64
	for gy := 0; gy < sampleGrid; gy++ {
		for gx := 0; gx < sampleGrid; gx++ {
			sx := x0 + gx*side/sampleGrid
			sy := y0 + gy*side/sampleGrid
			r, g, b, _ := img.At(sx, sy).RGBA()
			sum += 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
		}
	}

	return sum / (sampleGrid * sampleGrid)
}

// HasMotion compares the current brightness against the previous
// baseline. An unset baseline never reports motion, so the first sample
// after a reset only seeds the comparison.
func HasMotion(current float64, previous Baseline, threshold float64) bool {
	if !previous.Valid() {
		return false
	}
	return math.Abs(current-previous.Value()) > threshold
}
