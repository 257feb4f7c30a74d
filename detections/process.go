package detections

import (
	"fmt"
	"image"
	"time"

	"github.com/openbench/labscan/models"
)

// ProcessFrame runs one full inference cycle on a frame: preprocess
// into a pooled input buffer, execute the session, decode the output
// into display-space detections. Timings are filled in when non-nil.
func ProcessFrame(sess *Session, img image.Image, displayW, displayH int, threshold float32, classes []string, timings *models.ScanTimings) ([]models.Detection, error) {
	startTotal := time.Now()

	buf := GetInputBuffer()
	defer PutInputBuffer(buf)

	start := time.Now()
	if err := Preprocess(img, buf); err != nil {
		return nil, fmt.Errorf("prepare input buffer: %w", err)
	}
	if timings != nil {
		timings.Preprocess = time.Since(start)
	}

	start = time.Now()
	raw, err := sess.Run(buf)
	if err != nil {
		return nil, err
	}
	if timings != nil {
		timings.Inference = time.Since(start)
	}

	start = time.Now()
	dets := Postprocess(raw, NumCandidates, sess.NumClasses(), displayW, displayH, InputSize, threshold, classes)
	if timings != nil {
		timings.Postprocess = time.Since(start)
		timings.Total = time.Since(startTotal)
	}

	return dets, nil
}
