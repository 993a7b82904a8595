// Package mock provides test doubles for speechseg.
//
// Model returns scripted probabilities in order and records every call, so a
// Detector can be driven through exact state machine sequences without ONNX:
//
//	m := &mock.Model{Probabilities: []float64{0.1, 0.9, 0.9, 0.2}}
//	det, _ := speechseg.New(cfg, m, sink)
//	_ = det.Initialize(speechseg.ModelHandle{Path: "unused"})
//
// Sink records delivered events.
package mock

import (
	"sync"

	speechseg "github.com/cortexswarm/speech-segment-go"
)

// StateSize is the length of the RecurrentState returned by Model.NewState.
const StateSize = 4

// InferCall records a single invocation of Model.Infer.
type InferCall struct {
	Frame      speechseg.Frame
	SampleRate int
	State      speechseg.RecurrentState
}

// Model is a mock implementation of speechseg.ProbabilityModel.
type Model struct {
	mu sync.Mutex

	// Probabilities are returned one per Infer call. Once exhausted, Default
	// is returned.
	Probabilities []float64
	Default       float64

	// InitializeErr, if non-nil, is returned by every Initialize call.
	InitializeErr error

	// InferErr, if non-nil, is returned by Infer calls whose index (0-based,
	// counting every call) is in InferErrAt, or by every call when
	// InferErrAt is empty.
	InferErr   error
	InferErrAt []int

	// ReleaseErr, if non-nil, is returned by Release.
	ReleaseErr error

	// --- Call records ---

	InitializeCalls  []speechseg.ModelHandle
	InferCalls       []InferCall
	NewStateCount    int
	ReleaseCallCount int

	next int
}

// Initialize records the call and returns InitializeErr.
func (m *Model) Initialize(h speechseg.ModelHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InitializeCalls = append(m.InitializeCalls, h)
	return m.InitializeErr
}

// NewState returns a zeroed state of StateSize.
func (m *Model) NewState() speechseg.RecurrentState {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.NewStateCount++
	return make(speechseg.RecurrentState, StateSize)
}

// Infer records the call and returns the next scripted probability. The
// returned state has its first element incremented, so tests can see that
// state is threaded from call to call.
func (m *Model) Infer(frame speechseg.Frame, sampleRate int, state speechseg.RecurrentState) (float64, speechseg.RecurrentState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	call := len(m.InferCalls)
	m.InferCalls = append(m.InferCalls, InferCall{
		Frame:      frame,
		SampleRate: sampleRate,
		State:      append(speechseg.RecurrentState(nil), state...),
	})
	if m.InferErr != nil && m.failsAt(call) {
		return 0, state, m.InferErr
	}
	p := m.Default
	if m.next < len(m.Probabilities) {
		p = m.Probabilities[m.next]
	}
	m.next++
	next := append(speechseg.RecurrentState(nil), state...)
	if len(next) > 0 {
		next[0]++
	}
	return p, next, nil
}

func (m *Model) failsAt(call int) bool {
	if len(m.InferErrAt) == 0 {
		return true
	}
	for _, i := range m.InferErrAt {
		if i == call {
			return true
		}
	}
	return false
}

// Release records the call and returns ReleaseErr.
func (m *Model) Release() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReleaseCallCount++
	return m.ReleaseErr
}

// Rewind restarts the probability script from the beginning and clears
// recorded calls.
func (m *Model) Rewind() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next = 0
	m.InitializeCalls = nil
	m.InferCalls = nil
	m.NewStateCount = 0
	m.ReleaseCallCount = 0
}

// Ensure Model implements speechseg.ProbabilityModel at compile time.
var _ speechseg.ProbabilityModel = (*Model)(nil)

// Sink records every event it receives.
type Sink struct {
	mu     sync.Mutex
	Events []speechseg.Event
}

// HandleEvent appends ev.
func (s *Sink) HandleEvent(ev speechseg.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Events = append(s.Events, ev)
}

// Kinds returns the kinds of the recorded events in order.
func (s *Sink) Kinds() []speechseg.EventKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	kinds := make([]speechseg.EventKind, len(s.Events))
	for i, ev := range s.Events {
		kinds[i] = ev.Kind
	}
	return kinds
}

// Ensure Sink implements speechseg.EventSink at compile time.
var _ speechseg.EventSink = (*Sink)(nil)
