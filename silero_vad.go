package speechseg

import (
	"errors"
	"fmt"

	ort "github.com/yalue/onnxruntime_go"
)

// sileroLSTMSize is the length of the (2, 1, 128) state tensor.
const sileroLSTMSize = 2 * 1 * 128

// SileroConfig configures a SileroModel.
type SileroConfig struct {
	SampleRate   int // 8000 or 16000
	FrameSamples int // 256 at 8 kHz, 512 at 16 kHz for Silero v5

	// RuntimeLibraryPath is the ONNX Runtime shared library. When empty, a
	// bundled library under data/ or lib/ is used if present.
	RuntimeLibraryPath string
}

// SileroModel runs Silero VAD through ONNX Runtime. Not safe for concurrent use.
//
// Its RecurrentState holds the LSTM state followed by the trailing context
// samples of the previous input, so a zeroed state is a full model reset.
type SileroModel struct {
	cfg         SileroConfig
	contextSize int

	session  *ort.AdvancedSession
	input    *ort.Tensor[float32] // (1, context+frame)
	state    *ort.Tensor[float32] // (2, 1, 128)
	sr       *ort.Tensor[int64]   // (1,)
	output   *ort.Tensor[float32] // (1, 1) speech prob
	stateOut *ort.Tensor[float32] // (2, 1, 128) new state

	handle       ModelHandle
	holdsRuntime bool
	released     bool
}

// NewSileroModel validates cfg. No ONNX resources are acquired until Initialize.
func NewSileroModel(cfg SileroConfig) (*SileroModel, error) {
	ctx, err := sileroContextSize(cfg.SampleRate)
	if err != nil {
		return nil, err
	}
	if cfg.FrameSamples <= 0 {
		return nil, fmt.Errorf("silero: %w: %d samples", ErrFrameSize, cfg.FrameSamples)
	}
	return &SileroModel{cfg: cfg, contextSize: ctx}, nil
}

func sileroContextSize(sampleRate int) (int, error) {
	switch sampleRate {
	case 16000:
		return 64, nil
	case 8000:
		return 32, nil
	default:
		return 0, fmt.Errorf("silero: %w: %d (must be 8000 or 16000)", ErrSampleRate, sampleRate)
	}
}

// Initialize acquires the runtime, creates tensors and the session. A failed
// Initialize leaves nothing allocated and may be retried.
func (m *SileroModel) Initialize(h ModelHandle) error {
	if m.released {
		return ErrModelReleased
	}
	if m.session != nil {
		if m.handle.Same(h) {
			return nil
		}
		return fmt.Errorf("silero: %w", ErrAlreadyInitialized)
	}
	if h.Path == "" && len(h.Data) == 0 {
		return errors.New("silero: model handle has neither path nor data")
	}
	if err := acquireRuntime(m.cfg.RuntimeLibraryPath); err != nil {
		return err
	}
	m.holdsRuntime = true
	if err := m.createSession(h); err != nil {
		return errors.Join(err, m.destroy())
	}
	m.handle = h
	return nil
}

func (m *SileroModel) createSession(h ModelHandle) error {
	var err error
	inputLen := int64(m.contextSize + m.cfg.FrameSamples)
	if m.input, err = ort.NewTensor(ort.NewShape(1, inputLen), make([]float32, inputLen)); err != nil {
		return fmt.Errorf("silero: input tensor: %w", err)
	}
	if m.state, err = ort.NewTensor(ort.NewShape(2, 1, 128), make([]float32, sileroLSTMSize)); err != nil {
		return fmt.Errorf("silero: state tensor: %w", err)
	}
	if m.sr, err = ort.NewTensor(ort.NewShape(1), []int64{int64(m.cfg.SampleRate)}); err != nil {
		return fmt.Errorf("silero: sr tensor: %w", err)
	}
	if m.output, err = ort.NewEmptyTensor[float32](ort.NewShape(1, 1)); err != nil {
		return fmt.Errorf("silero: output tensor: %w", err)
	}
	if m.stateOut, err = ort.NewEmptyTensor[float32](ort.NewShape(2, 1, 128)); err != nil {
		return fmt.Errorf("silero: stateN tensor: %w", err)
	}

	inputNames := []string{"input", "state", "sr"}
	outputNames := []string{"output", "stateN"}
	inputs := []ort.Value{m.input, m.state, m.sr}
	outputs := []ort.Value{m.output, m.stateOut}
	if len(h.Data) > 0 {
		m.session, err = ort.NewAdvancedSessionWithONNXData(h.Data, inputNames, outputNames, inputs, outputs, nil)
	} else {
		m.session, err = ort.NewAdvancedSession(h.Path, inputNames, outputNames, inputs, outputs, nil)
	}
	if err != nil {
		return fmt.Errorf("silero: create session: %w", err)
	}
	return nil
}

// NewState returns a zeroed LSTM state plus context.
func (m *SileroModel) NewState() RecurrentState {
	return make(RecurrentState, sileroLSTMSize+m.contextSize)
}

// Infer runs one frame. A state of the wrong length is treated as zeroed.
func (m *SileroModel) Infer(frame Frame, sampleRate int, state RecurrentState) (float64, RecurrentState, error) {
	if m.released {
		return 0, state, ErrModelReleased
	}
	if m.session == nil {
		return 0, state, ErrModelNotReady
	}
	if sampleRate != m.cfg.SampleRate {
		return 0, state, fmt.Errorf("silero: %w: got %d, session built for %d", ErrSampleRate, sampleRate, m.cfg.SampleRate)
	}
	if len(frame) != m.cfg.FrameSamples {
		return 0, state, fmt.Errorf("silero: %w: got %d, want %d", ErrFrameSize, len(frame), m.cfg.FrameSamples)
	}
	if len(state) != sileroLSTMSize+m.contextSize {
		state = m.NewState()
	}

	inputData := m.input.GetData()
	copy(inputData[:m.contextSize], state[sileroLSTMSize:])
	copy(inputData[m.contextSize:], frame)
	copy(m.state.GetData(), state[:sileroLSTMSize])

	if err := m.session.Run(); err != nil {
		return 0, state, fmt.Errorf("silero: inference: %w", err)
	}

	next := make(RecurrentState, len(state))
	copy(next[:sileroLSTMSize], m.stateOut.GetData())
	copy(next[sileroLSTMSize:], inputData[len(inputData)-m.contextSize:])
	return float64(m.output.GetData()[0]), next, nil
}

// Release destroys the session and tensors and drops the runtime reference.
func (m *SileroModel) Release() error {
	if m.released {
		return nil
	}
	m.released = true
	return m.destroy()
}

func (m *SileroModel) destroy() error {
	var errs []error
	if m.session != nil {
		errs = append(errs, m.session.Destroy())
		m.session = nil
	}
	if m.input != nil {
		errs = append(errs, m.input.Destroy())
	}
	if m.state != nil {
		errs = append(errs, m.state.Destroy())
	}
	if m.sr != nil {
		errs = append(errs, m.sr.Destroy())
	}
	if m.output != nil {
		errs = append(errs, m.output.Destroy())
	}
	if m.stateOut != nil {
		errs = append(errs, m.stateOut.Destroy())
	}
	m.input, m.state, m.sr, m.output, m.stateOut = nil, nil, nil, nil, nil
	if m.holdsRuntime {
		m.holdsRuntime = false
		errs = append(errs, releaseRuntime())
	}
	return errors.Join(errs...)
}
