// Package camera adapts a gocv capture device to the frame source
// contract the scan pipeline consumes.
package camera

import (
	"errors"
	"fmt"
	"image"
	"strconv"
	"sync"

	"gocv.io/x/gocv"
)

// ErrNotReady is returned by Read until the first frame has decoded,
// and by all reads after Close. Callers treat it as "skip this
// iteration", not as a failure.
var ErrNotReady = errors.New("camera: no frame available")

// FrameSource is a live image source with dimensions that are unknown
// until the stream negotiates a format and may change afterwards.
// Implementations are used from a single goroutine.
type FrameSource interface {
	Read() (image.Image, error)
	Ready() bool
	Dimensions() (width, height int)
	Close() error
}

// Source wraps a gocv video capture as a FrameSource.
type Source struct {
	mu     sync.Mutex
	cap    *gocv.VideoCapture
	mat    gocv.Mat
	ready  bool
	closed bool
	width  int
	height int
}

// Open acquires the capture device. The device string is either a
// numeric device id ("0") or a path/stream URL. Acquisition may be
// denied or fail when no device exists.
func Open(device string) (*Source, error) {
	var (
		cap *gocv.VideoCapture
		err error
	)
	if id, convErr := strconv.Atoi(device); convErr == nil {
		cap, err = gocv.VideoCaptureDevice(id)
	} else {
		cap, err = gocv.OpenVideoCapture(device)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to open capture device %q: %w", device, err)
	}
	if !cap.IsOpened() {
		cap.Close()
		return nil, fmt.Errorf("capture device %q is not opened", device)
	}

	return &Source{
		cap: cap,
		mat: gocv.NewMat(),
	}, nil
}

// Read decodes the next frame. The negotiated resolution is re-read on
// every frame rather than cached at open time.
func (s *Source) Read() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrNotReady
	}
	if ok := s.cap.Read(&s.mat); !ok || s.mat.Empty() {
		return nil, ErrNotReady
	}

	img, err := s.mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}

	s.width = s.mat.Cols()
	s.height = s.mat.Rows()
	s.ready = true
	return img, nil
}

// Ready reports whether at least one frame has decoded.
func (s *Source) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// Dimensions returns the most recently decoded frame size. Valid only
// once Ready reports true.
func (s *Source) Dimensions() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width, s.height
}

// Close stops hardware capture. Idempotent.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.ready = false

	if err := s.mat.Close(); err != nil {
		s.cap.Close()
		return err
	}
	return s.cap.Close()
}
