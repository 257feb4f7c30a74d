package scan

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	uatomic "go.uber.org/atomic"

	"github.com/openbench/labscan/camera"
	"github.com/openbench/labscan/models"
	"github.com/openbench/labscan/overlay"
)

type fakeSource struct {
	img image.Image
	err error
}

func (f *fakeSource) Read() (image.Image, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.img, nil
}

func (f *fakeSource) Ready() bool { return f.err == nil }

func (f *fakeSource) Dimensions() (int, int) {
	b := f.img.Bounds()
	return b.Dx(), b.Dy()
}

func (f *fakeSource) Close() error { return nil }

func testFrame(w, h int) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 64, A: 255})
		}
	}
	return img
}

func newTestScheduler(t *testing.T, src camera.FrameSource, infer InferFunc, interval time.Duration) (*Scheduler, *Controller, *clock.Mock) {
	t.Helper()
	mock := clock.NewMock()
	ctrl := NewController(mock, time.Minute, 15)
	t.Cleanup(ctrl.Stop)

	renderer, err := overlay.NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}

	cfg := Config{
		InferenceInterval: interval,
		RenderInterval:    33 * time.Millisecond,
		MotionInterval:    500 * time.Millisecond,
		ROIFraction:       0.5,
	}
	return NewScheduler(src, ctrl, renderer, infer, mock, cfg), ctrl, mock
}

func TestAtMostOneInferenceInFlight(t *testing.T) {
	src := &fakeSource{img: testFrame(64, 48)}
	calls := uatomic.NewInt32(0)
	block := make(chan struct{})
	infer := func(_ image.Image, _, _ int) ([]models.Detection, error) {
		calls.Inc()
		<-block
		return nil, nil
	}

	s, ctrl, _ := newTestScheduler(t, src, infer, 0)
	ctrl.Trigger("manual")

	frame, _ := src.Read()
	s.maybeInfer(frame, 64, 48)
	s.maybeInfer(frame, 64, 48) // dropped, not queued

	if got := calls.Load(); got != 1 {
		t.Errorf("inference calls = %d, want 1", got)
	}
	close(block)
	s.wg.Wait()
}

func TestInferenceThrottleWindow(t *testing.T) {
	src := &fakeSource{img: testFrame(64, 48)}
	calls := uatomic.NewInt32(0)
	done := make(chan struct{}, 4)
	infer := func(_ image.Image, _, _ int) ([]models.Detection, error) {
		calls.Inc()
		done <- struct{}{}
		return nil, nil
	}

	s, ctrl, mock := newTestScheduler(t, src, infer, time.Second)
	ctrl.Trigger("manual")
	frame, _ := src.Read()

	s.maybeInfer(frame, 64, 48)
	<-done
	s.wg.Wait()

	s.maybeInfer(frame, 64, 48) // inside the window: dropped
	if got := calls.Load(); got != 1 {
		t.Fatalf("inference calls inside window = %d, want 1", got)
	}

	mock.Add(time.Second)
	s.maybeInfer(frame, 64, 48)
	<-done
	s.wg.Wait()
	if got := calls.Load(); got != 2 {
		t.Errorf("inference calls after window = %d, want 2", got)
	}
	if throttled := s.Metrics().Snapshot().InferencesThrottled; throttled != 1 {
		t.Errorf("throttled count = %d, want 1", throttled)
	}
}

func TestFailedInferenceIsSwallowed(t *testing.T) {
	src := &fakeSource{img: testFrame(64, 48)}
	done := make(chan struct{}, 1)
	infer := func(_ image.Image, _, _ int) ([]models.Detection, error) {
		defer func() { done <- struct{}{} }()
		return nil, context.DeadlineExceeded
	}

	s, ctrl, _ := newTestScheduler(t, src, infer, 0)
	ctrl.Trigger("manual")
	frame, _ := src.Read()

	s.maybeInfer(frame, 64, 48)
	<-done
	s.wg.Wait()

	snap := s.Metrics().Snapshot()
	if snap.InferenceFailures != 1 {
		t.Errorf("failure count = %d, want 1", snap.InferenceFailures)
	}
	if len(ctrl.Detections()) != 0 {
		t.Error("failed inference changed the detection set")
	}
}

func TestRenderOncePublishesJPEG(t *testing.T) {
	src := &fakeSource{img: testFrame(64, 48)}
	s, _, _ := newTestScheduler(t, src, nil, time.Second)

	s.renderOnce()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	frame, seq, err := s.WaitFrame(ctx, 0)
	if err != nil {
		t.Fatalf("WaitFrame: %v", err)
	}
	if seq != 1 {
		t.Errorf("seq = %d, want 1", seq)
	}
	if !bytes.HasPrefix(frame, []byte{0xff, 0xd8}) {
		t.Error("published frame is not a JPEG")
	}
	if s.Metrics().Snapshot().FramesRendered != 1 {
		t.Error("frame render not counted")
	}
}

func TestRenderSkipsWhenFrameNotReady(t *testing.T) {
	src := &fakeSource{img: testFrame(64, 48), err: camera.ErrNotReady}
	s, _, _ := newTestScheduler(t, src, nil, time.Second)

	s.renderOnce()

	snap := s.Metrics().Snapshot()
	if snap.FramesSkipped != 1 || snap.FramesRendered != 0 {
		t.Errorf("skipped=%d rendered=%d, want 1/0", snap.FramesSkipped, snap.FramesRendered)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, _, err := s.WaitFrame(ctx, 0); err == nil {
		t.Error("a frame was published for a not-ready source")
	}
}

func TestIdleModeRunsNoInference(t *testing.T) {
	src := &fakeSource{img: testFrame(64, 48)}
	calls := uatomic.NewInt32(0)
	infer := func(_ image.Image, _, _ int) ([]models.Detection, error) {
		calls.Inc()
		return nil, nil
	}

	s, _, _ := newTestScheduler(t, src, infer, 0)
	// Controller stays idle: renderOnce must draw but never infer.
	s.renderOnce()
	s.wg.Wait()

	if got := calls.Load(); got != 0 {
		t.Errorf("inference calls while idle = %d, want 0", got)
	}
}
