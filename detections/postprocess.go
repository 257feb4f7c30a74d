package detections

import (
	"fmt"
	"image"

	"github.com/openbench/labscan/models"
)

// Postprocess decodes the raw model output into display-space
// detections. The output is candidates-major: four parallel coordinate
// arrays of length numCandidates (center-x, center-y, width, height)
// followed by numClasses per-class confidence arrays, so element
// (4+class)*numCandidates + candidate addresses one score.
//
// For each candidate the class with maximum confidence wins, ties going
// to the lowest class index. Candidates survive only when the winning
// confidence strictly exceeds threshold. Coordinates are converted from
// center form to top-left origin, scaled from model input space to
// display space, and clamped to the display bounds. No non-max
// suppression is applied; overlapping boxes for one object may both be
// emitted.
func Postprocess(raw []float32, numCandidates, numClasses, displayW, displayH, inputSize int, threshold float32, classes []string) []models.Detection {
	detections := make([]models.Detection, 0, 32)

	for i := 0; i < numCandidates; i++ {
		bestClass := 0
		bestConf := raw[4*numCandidates+i]
		for c := 1; c < numClasses; c++ {
			conf := raw[(4+c)*numCandidates+i]
			if conf > bestConf {
				bestConf = conf
				bestClass = c
			}
		}
		if bestConf <= threshold {
			continue
		}

		box := decodeBox(
			raw[i],
			raw[numCandidates+i],
			raw[2*numCandidates+i],
			raw[3*numCandidates+i],
			displayW, displayH, inputSize,
		)

		detections = append(detections, models.Detection{
			ClassID:    bestClass,
			ClassName:  className(classes, bestClass),
			Confidence: bestConf,
			Box:        box,
		})
	}

	return detections
}

// decodeBox converts one candidate from center coordinates in model
// input space to a clamped top-left rectangle in display space.
func decodeBox(cx, cy, w, h float32, displayW, displayH, inputSize int) image.Rectangle {
	scaleX := float32(displayW) / float32(inputSize)
	scaleY := float32(displayH) / float32(inputSize)

	x1 := (cx - w/2) * scaleX
	y1 := (cy - h/2) * scaleY
	x2 := (cx + w/2) * scaleX
	y2 := (cy + h/2) * scaleY

	return image.Rect(
		int(clamp(x1, 0, float32(displayW))),
		int(clamp(y1, 0, float32(displayH))),
		int(clamp(x2, 0, float32(displayW))),
		int(clamp(y2, 0, float32(displayH))),
	)
}

func className(classes []string, id int) string {
	if id >= 0 && id < len(classes) {
		return classes[id]
	}
	return fmt.Sprintf("class %d", id)
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
