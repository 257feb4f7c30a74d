package scan

import (
	"sync"
	"time"
)

// Metrics counts pipeline activity for the /metrics endpoint.
type Metrics struct {
	mu                  sync.RWMutex
	framesRendered      int64
	framesSkipped       int64
	inferences          int64
	inferenceFailures   int64
	inferencesThrottled int64
	motionSamples       int64
	lastInference       time.Duration
}

// Snapshot is a consistent copy of the counters.
type Snapshot struct {
	FramesRendered      int64         `json:"frames_rendered"`
	FramesSkipped       int64         `json:"frames_skipped"`
	Inferences          int64         `json:"inferences"`
	InferenceFailures   int64         `json:"inference_failures"`
	InferencesThrottled int64         `json:"inferences_throttled"`
	MotionSamples       int64         `json:"motion_samples"`
	LastInference       time.Duration `json:"last_inference_ns"`
}

// Snapshot returns the current counter values.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{
		FramesRendered:      m.framesRendered,
		FramesSkipped:       m.framesSkipped,
		Inferences:          m.inferences,
		InferenceFailures:   m.inferenceFailures,
		InferencesThrottled: m.inferencesThrottled,
		MotionSamples:       m.motionSamples,
		LastInference:       m.lastInference,
	}
}

func (m *Metrics) frameRendered() {
	m.mu.Lock()
	m.framesRendered++
	m.mu.Unlock()
}

func (m *Metrics) frameSkipped() {
	m.mu.Lock()
	m.framesSkipped++
	m.mu.Unlock()
}

func (m *Metrics) inferenceCompleted(d time.Duration) {
	m.mu.Lock()
	m.inferences++
	m.lastInference = d
	m.mu.Unlock()
}

func (m *Metrics) inferenceFailed() {
	m.mu.Lock()
	m.inferenceFailures++
	m.mu.Unlock()
}

func (m *Metrics) inferenceThrottled() {
	m.mu.Lock()
	m.inferencesThrottled++
	m.mu.Unlock()
}

func (m *Metrics) motionSampled() {
	m.mu.Lock()
	m.motionSamples++
	m.mu.Unlock()
}
