package scan

import (
	"log"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	uatomic "go.uber.org/atomic"

	"github.com/openbench/labscan/models"
	"github.com/openbench/labscan/motion"
)

// Mode is the pipeline's cross-frame state. Exactly one component, the
// Controller, transitions it; everything else reads it or requests a
// transition.
type Mode int

const (
	// ModeIdle watches for motion and runs no inference.
	ModeIdle Mode = iota
	// ModeScanning runs throttled inference until the deadline expires.
	ModeScanning
)

func (m Mode) String() string {
	if m == ModeScanning {
		return "scanning"
	}
	return "idle"
}

// Controller is the mode state machine. Idle -> Scanning is triggered
// by motion or a manual request; Scanning -> Idle only by deadline
// expiry, on a timer independent of the render loop. Re-triggering
// while scanning replaces the pending deadline rather than stacking a
// second one.
type Controller struct {
	mu              sync.Mutex
	clk             clock.Clock
	scanFor         time.Duration
	motionThreshold float64

	mode     Mode
	deadline time.Time
	timer    *clock.Timer
	baseline motion.Baseline
	stopped  bool

	dets uatomic.Pointer[[]models.Detection]
}

// NewController builds an idle controller. The clock is injected so
// deadline behavior is testable against a mock.
func NewController(clk clock.Clock, scanFor time.Duration, motionThreshold float64) *Controller {
	return &Controller{
		clk:             clk,
		scanFor:         scanFor,
		motionThreshold: motionThreshold,
	}
}

// Mode returns the current mode.
func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// Deadline returns the scan deadline; ok is false while idle.
func (c *Controller) Deadline() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deadline, c.mode == ModeScanning
}

// Detections returns the most recent detection set. The set is replaced
// atomically per completed inference cycle, so readers never observe a
// partial result.
func (c *Controller) Detections() []models.Detection {
	if p := c.dets.Load(); p != nil {
		return *p
	}
	return nil
}

// Trigger requests Idle -> Scanning. On entry the detection set is
// cleared and the deadline armed; while already scanning the deadline
// is reset instead.
func (c *Controller) Trigger(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return
	}

	c.deadline = c.clk.Now().Add(c.scanFor)
	if c.mode == ModeScanning {
		c.timer.Reset(c.scanFor)
		return
	}

	c.mode = ModeScanning
	c.dets.Store(nil)
	if c.timer == nil {
		c.timer = c.clk.AfterFunc(c.scanFor, c.expire)
	} else {
		c.timer.Reset(c.scanFor)
	}
	log.Printf("scan started (%s), deadline in %v", reason, c.scanFor)
}

// ObserveBrightness feeds one motion-gate sample. The baseline is owned
// here so it can be reset on mode transitions; sampling itself stays a
// pure function. Returns whether the sample triggered a scan.
func (c *Controller) ObserveBrightness(luma float64) bool {
	c.mu.Lock()
	if c.stopped || c.mode != ModeIdle {
		c.mu.Unlock()
		return false
	}
	moved := motion.HasMotion(luma, c.baseline, c.motionThreshold)
	c.baseline = motion.NewBaseline(luma)
	c.mu.Unlock()

	if moved {
		c.Trigger("motion")
	}
	return moved
}

// PublishDetections atomically replaces the detection set. A result
// arriving after the scan window closed is discarded, so an in-flight
// inference that outlives its scan never resurrects stale boxes.
func (c *Controller) PublishDetections(dets []models.Detection) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mode != ModeScanning {
		return false
	}
	c.dets.Store(&dets)
	return true
}

// expire is the deadline callback: Scanning -> Idle, fresh baseline,
// empty detection set.
func (c *Controller) expire() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mode != ModeScanning {
		return
	}
	// A re-trigger can extend the deadline while this callback is
	// already queued; timer.Reset cannot recall it. Re-arm for the
	// remaining window instead of ending the scan early.
	if remaining := c.deadline.Sub(c.clk.Now()); remaining > 0 {
		c.timer.Reset(remaining)
		return
	}
	c.mode = ModeIdle
	c.deadline = time.Time{}
	c.baseline = motion.Baseline{}
	c.dets.Store(nil)
	log.Printf("scan window expired, back to idle")
}

// Stop cancels the pending deadline timer and freezes the machine.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopped = true
	if c.timer != nil {
		c.timer.Stop()
	}
}
