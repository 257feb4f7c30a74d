package detections

import (
	"fmt"
	"image"
	"runtime"
	"sync"

	"github.com/disintegration/imaging"
)

var bufferPool = sync.Pool{
	New: func() interface{} {
		return make([]float32, InputSize*InputSize*3)
	},
}

// GetInputBuffer returns a pooled buffer sized for one input tensor.
func GetInputBuffer() []float32 {
	return bufferPool.Get().([]float32)
}

// PutInputBuffer returns a buffer obtained from GetInputBuffer.
func PutInputBuffer(buf []float32) {
	bufferPool.Put(buf)
}

// Preprocess resizes img to InputSize x InputSize, drops alpha, and
// writes the pixels into dst in channel-planar order (all red values,
// then all green, then all blue), each scaled from 0-255 to 0.0-1.0.
// The layout must match the model's trained input contract exactly.
func Preprocess(img image.Image, dst []float32) error {
	if len(dst) != InputSize*InputSize*3 {
		return fmt.Errorf("destination buffer length %d, want %d", len(dst), InputSize*InputSize*3)
	}

	resized := imaging.Resize(img, InputSize, InputSize, imaging.Lanczos)
	channelSize := InputSize * InputSize

	// Split rows across workers; each worker owns a disjoint stripe.
	numWorkers := runtime.NumCPU()
	if numWorkers > InputSize {
		numWorkers = InputSize
	}
	rowsPerWorker := InputSize / numWorkers
	var wg sync.WaitGroup

	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		startY := w * rowsPerWorker
		endY := startY + rowsPerWorker
		if w == numWorkers-1 {
			endY = InputSize
		}

		go func(startY, endY int) {
			defer wg.Done()
			for y := startY; y < endY; y++ {
				offset := y * InputSize
				for x := 0; x < InputSize; x++ {
					i := offset + x
					r, g, b, _ := resized.At(x, y).RGBA()
					dst[i] = float32(r>>8) / 255.0
					dst[channelSize+i] = float32(g>>8) / 255.0
					dst[channelSize*2+i] = float32(b>>8) / 255.0
				}
			}
		}(startY, endY)
	}

	wg.Wait()
	return nil
}
