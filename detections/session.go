package detections

import (
	"fmt"
	"runtime"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// Session wraps a long-lived ONNX runtime session with its pre-bound
// input and output tensors. It is created once after startup and reused
// for every inference cycle; Run serializes callers so the tensors are
// never written concurrently.
type Session struct {
	mu         sync.Mutex
	session    *ort.AdvancedSession
	input      *ort.Tensor[float32]
	output     *ort.Tensor[float32]
	numClasses int
}

// NewSession builds an inference session for a detection model whose
// input is one float32 tensor [1, 3, InputSize, InputSize] named
// "images" and whose output is [1, 4+numClasses, NumCandidates] named
// "output0".
func NewSession(modelPath string, numClasses int) (*Session, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("error creating session options: %w", err)
	}
	defer options.Destroy()

	options.SetIntraOpNumThreads(runtime.NumCPU())
	options.SetInterOpNumThreads(runtime.NumCPU())

	inputShape := ort.NewShape(1, 3, InputSize, InputSize)
	outputShape := ort.NewShape(1, int64(4+numClasses), NumCandidates)

	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("error creating input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("error creating output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{"images"},
		[]string{"output0"},
		[]ort.ArbitraryTensor{inputTensor},
		[]ort.ArbitraryTensor{outputTensor},
		options,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("error creating session: %w", err)
	}

	return &Session{
		session:    session,
		input:      inputTensor,
		output:     outputTensor,
		numClasses: numClasses,
	}, nil
}

// NumClasses reports the class count the output tensor was shaped for.
func (s *Session) NumClasses() int {
	return s.numClasses
}

// Run copies input into the bound input tensor, executes the model, and
// returns a copy of the flat output so callers can hold the result
// across later Run calls.
func (s *Session) Run(input []float32) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := s.input.GetData()
	if len(input) != len(data) {
		return nil, fmt.Errorf("input length %d does not match tensor length %d", len(input), len(data))
	}
	copy(data, input)

	if err := s.session.Run(); err != nil {
		return nil, fmt.Errorf("model inference: %w", err)
	}

	out := s.output.GetData()
	result := make([]float32, len(out))
	copy(result, out)
	return result, nil
}

// Destroy releases the session and both tensors.
func (s *Session) Destroy() {
	if s.session != nil {
		s.session.Destroy()
	}
	if s.input != nil {
		s.input.Destroy()
	}
	if s.output != nil {
		s.output.Destroy()
	}
}
