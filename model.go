package speechseg

import (
	"bytes"
	"errors"
)

var (
	ErrModelNotReady = errors.New("model not initialized")
	ErrModelReleased = errors.New("model released")
	ErrFrameSize     = errors.New("frame size does not match model")
	ErrSampleRate    = errors.New("unsupported sample rate")

	// ErrAlreadyInitialized is returned when a loaded model is asked to load
	// a different handle. The loaded model stays usable.
	ErrAlreadyInitialized = errors.New("model already initialized with another handle")
)

// RecurrentState is the opaque memory a stateful model carries between
// frames. It is passed by value into Infer and replaced by the returned state.
type RecurrentState []float32

// ModelHandle locates model weights: either a file path or in-memory bytes.
// Data takes precedence when both are set.
type ModelHandle struct {
	Path string
	Data []byte
}

// Same reports whether h and o refer to the same weights.
func (h ModelHandle) Same(o ModelHandle) bool {
	if len(h.Data) > 0 || len(o.Data) > 0 {
		return bytes.Equal(h.Data, o.Data)
	}
	return h.Path == o.Path
}

// ProbabilityModel turns a frame into a speech probability. Implementations
// are called from a single goroutine.
type ProbabilityModel interface {
	// Initialize acquires model resources. Infer fails with ErrModelNotReady
	// until it succeeds. Repeating it with the same handle is a no-op; a
	// different handle returns ErrAlreadyInitialized.
	Initialize(h ModelHandle) error

	// NewState returns a zeroed recurrent state.
	NewState() RecurrentState

	// Infer returns the speech probability in [0, 1] for frame and the state
	// to pass with the next frame.
	Infer(frame Frame, sampleRate int, state RecurrentState) (float64, RecurrentState, error)

	// Release frees model resources. Calling it more than once is safe.
	Release() error
}
