package detections

const (
	// InputSize is the side length of the square model input tensor.
	InputSize = 640
	// NumCandidates is the number of raw box proposals in the model output.
	NumCandidates = 8400
	// DefaultConfThreshold filters candidates whose winning class
	// confidence does not strictly exceed it.
	DefaultConfThreshold = 0.25
)
