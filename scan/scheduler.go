package scan

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"log"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/disintegration/imaging"
	uatomic "go.uber.org/atomic"

	"github.com/openbench/labscan/camera"
	"github.com/openbench/labscan/models"
	"github.com/openbench/labscan/motion"
	"github.com/openbench/labscan/overlay"
)

const jpegQuality = 80

// InferFunc runs one inference cycle on a frame and returns detections
// in display space. It may be slow and may fail; both only cost the
// current throttle window.
type InferFunc func(frame image.Image, displayW, displayH int) ([]models.Detection, error)

// Config carries the scheduler cadences.
type Config struct {
	// InferenceInterval is the minimum spacing between inference starts.
	InferenceInterval time.Duration
	// RenderInterval paces the video render loop.
	RenderInterval time.Duration
	// MotionInterval paces motion-gate sampling while idle.
	MotionInterval time.Duration
	// ROIFraction is the share of the smaller frame dimension the
	// motion gate samples.
	ROIFraction float64
}

// Scheduler owns the continuous render loop and the idle-time motion
// loop. Every render iteration draws the mirrored frame with the latest
// detections regardless of inference progress; inference runs only
// while scanning, throttled to InferenceInterval with at most one call
// in flight. A slow or hung inference delays the next inference
// attempt, never the video draw.
type Scheduler struct {
	src      camera.FrameSource
	ctrl     *Controller
	renderer *overlay.Renderer
	infer    InferFunc
	clk      clock.Clock
	cfg      Config
	metrics  *Metrics

	inFlight  uatomic.Bool
	lastStart time.Time // touched only by the render goroutine

	frame frameBuffer

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler wires the loop around a frame source, the mode
// controller, and an inference function.
func NewScheduler(src camera.FrameSource, ctrl *Controller, renderer *overlay.Renderer, infer InferFunc, clk clock.Clock, cfg Config) *Scheduler {
	return &Scheduler{
		src:      src,
		ctrl:     ctrl,
		renderer: renderer,
		infer:    infer,
		clk:      clk,
		cfg:      cfg,
		metrics:  &Metrics{},
		frame:    frameBuffer{notify: make(chan struct{})},
	}
}

// Metrics exposes the pipeline counters.
func (s *Scheduler) Metrics() *Metrics {
	return s.metrics
}

// Start launches the render and motion loops.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.renderLoop(ctx)
	}()
	go func() {
		defer s.wg.Done()
		s.motionLoop(ctx)
	}()
}

// Stop cancels both loops and waits for them, including any in-flight
// inference goroutine, to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// WaitFrame blocks until a frame newer than lastSeq is published and
// returns its JPEG encoding. Used by the MJPEG stream handler.
func (s *Scheduler) WaitFrame(ctx context.Context, lastSeq uint64) ([]byte, uint64, error) {
	return s.frame.wait(ctx, lastSeq)
}

func (s *Scheduler) renderLoop(ctx context.Context) {
	ticker := s.clk.Ticker(s.cfg.RenderInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		s.renderOnce()
	}
}

// renderOnce is one loop iteration: draw the mirrored video frame with
// the last known detection set, then opportunistically start inference.
// The frame publish always precedes the inference attempt, so a stalled
// model call cannot hold up the video.
func (s *Scheduler) renderOnce() {
	frame, err := s.src.Read()
	if err != nil {
		// Not-ready frames are a render skip, retried next tick.
		if !errors.Is(err, camera.ErrNotReady) {
			log.Printf("read frame: %v", err)
		}
		s.metrics.frameSkipped()
		return
	}
	displayW, displayH := s.src.Dimensions()

	mirrored := imaging.FlipH(frame)
	composed := s.renderer.Render(mirrored, s.ctrl.Detections())

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, composed, &jpeg.Options{Quality: jpegQuality}); err != nil {
		log.Printf("encode frame: %v", err)
		s.metrics.frameSkipped()
		return
	}
	s.frame.publish(buf.Bytes())
	s.metrics.frameRendered()

	if s.ctrl.Mode() == ModeScanning {
		s.maybeInfer(frame, displayW, displayH)
	}
}

// maybeInfer starts an inference cycle when the throttle window has
// passed and no call is in flight. A second request inside the window
// is dropped, never queued.
func (s *Scheduler) maybeInfer(frame image.Image, displayW, displayH int) {
	if s.infer == nil {
		return
	}

	now := s.clk.Now()
	if !s.lastStart.IsZero() && now.Sub(s.lastStart) < s.cfg.InferenceInterval {
		s.metrics.inferenceThrottled()
		return
	}
	if !s.inFlight.CompareAndSwap(false, true) {
		s.metrics.inferenceThrottled()
		return
	}
	s.lastStart = now

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.inFlight.Store(false)

		start := time.Now()
		dets, err := s.infer(frame, displayW, displayH)
		if err != nil {
			// Swallowed: the next throttle window retries.
			log.Printf("inference failed: %v", err)
			s.metrics.inferenceFailed()
			return
		}
		if s.ctrl.PublishDetections(dets) {
			s.metrics.inferenceCompleted(time.Since(start))
		}
	}()
}

// motionLoop samples the motion gate at its own fixed cadence,
// independent of the render rate, and only while idle.
func (s *Scheduler) motionLoop(ctx context.Context) {
	ticker := s.clk.Ticker(s.cfg.MotionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if s.ctrl.Mode() != ModeIdle {
			continue
		}
		frame, err := s.src.Read()
		if err != nil {
			continue
		}
		s.metrics.motionSampled()
		s.ctrl.ObserveBrightness(motion.Sample(frame, s.cfg.ROIFraction))
	}
}

// frameBuffer holds the latest published JPEG frame and wakes stream
// subscribers when it changes.
type frameBuffer struct {
	mu     sync.Mutex
	data   []byte
	seq    uint64
	notify chan struct{}
}

func (f *frameBuffer) publish(data []byte) {
	f.mu.Lock()
	f.data = data
	f.seq++
	close(f.notify)
	f.notify = make(chan struct{})
	f.mu.Unlock()
}

func (f *frameBuffer) wait(ctx context.Context, lastSeq uint64) ([]byte, uint64, error) {
	for {
		f.mu.Lock()
		if f.seq > lastSeq {
			data, seq := f.data, f.seq
			f.mu.Unlock()
			return data, seq, nil
		}
		ch := f.notify
		f.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, 0, ctx.Err()
		case <-ch:
		}
	}
}
