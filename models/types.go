package models

import (
	"image"
	"time"
)

// Detection is one decoded bounding box in display pixel coordinates.
// A detection set is replaced wholesale after each completed inference
// cycle; individual detections are never mutated.
type Detection struct {
	ClassID    int
	ClassName  string
	Confidence float32
	Box        image.Rectangle
}

// ScanTimings records per-cycle durations for debug logging.
type ScanTimings struct {
	Preprocess  time.Duration
	Inference   time.Duration
	Postprocess time.Duration
	Total       time.Duration
}
