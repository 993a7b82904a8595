// Package speechseg segments a stream of 16-bit mono PCM into speech
// segments using a frame-level speech probability model.
package speechseg

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrInitialization wraps model initialization failures.
var ErrInitialization = errors.New("model initialization failed")

// Option configures a Detector.
type Option func(*Detector)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(d *Detector) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithFrameObserver registers fn to be called with every frame and its
// probability after segmentation has processed it.
func WithFrameObserver(fn func(frame Frame, probability float64)) Option {
	return func(d *Detector) { d.observer = fn }
}

// Detector feeds raw PCM through a FrameBuffer, a ProbabilityModel and a
// Segmenter, delivering events to a single sink. It is single-threaded and
// not goroutine-safe; the caller must serialize Ingest and lifecycle methods.
type Detector struct {
	cfg      Config
	model    ProbabilityModel
	sink     EventSink
	logger   *slog.Logger
	observer func(Frame, float64)

	frames    *FrameBuffer
	segmenter *Segmenter
	state     RecurrentState

	ready     bool
	listening bool
	closed    bool
}

// New validates cfg and wires the pipeline. The model is not initialized;
// call Initialize and then Start before feeding audio. A nil sink discards events.
func New(cfg Config, model ProbabilityModel, sink EventSink, opts ...Option) (*Detector, error) {
	if model == nil {
		return nil, errors.New("speechseg: model is required")
	}
	seg, err := NewSegmenter(cfg)
	if err != nil {
		return nil, err
	}
	if sink == nil {
		sink = discardSink{}
	}
	d := &Detector{
		cfg:       cfg,
		model:     model,
		sink:      sink,
		logger:    slog.Default(),
		segmenter: seg,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.frames, err = NewFrameBuffer(cfg.FrameSamples, d.processFrame)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// Initialize loads the model. Failure is reported both as an EventError and
// as the returned error; frames are dropped until a later Initialize succeeds.
// On a ready detector, repeating the same handle only zeroes the recurrent
// state, and a different handle returns ErrAlreadyInitialized with the
// detector left running. After Close it returns ErrModelReleased and, like
// every other method, emits nothing.
func (d *Detector) Initialize(h ModelHandle) error {
	if d.closed {
		return ErrModelReleased
	}
	err := d.model.Initialize(h)
	if d.ready && errors.Is(err, ErrAlreadyInitialized) {
		d.logger.Warn("speechseg: model already loaded, handle ignored", "error", err)
		return err
	}
	if err != nil {
		d.ready = false
		err = fmt.Errorf("%w: %w", ErrInitialization, err)
		d.logger.Error("speechseg: model initialization failed", "error", err)
		d.sink.HandleEvent(errorEvent(err))
		return err
	}
	d.state = d.model.NewState()
	d.ready = true
	d.logger.Debug("speechseg: model ready",
		"sampleRate", d.cfg.SampleRate,
		"frameSamples", d.cfg.FrameSamples,
	)
	return nil
}

// Start begins processing ingested audio.
func (d *Detector) Start() {
	if d.closed {
		return
	}
	d.listening = true
	d.logger.Debug("speechseg: listening started")
}

// Pause stops processing. When ForceEndOnExternalPause is set, an open
// segment that has reached MinSpeechFrames is submitted first. Partially
// buffered bytes are discarded.
func (d *Detector) Pause() {
	if d.closed || !d.listening {
		return
	}
	if d.cfg.ForceEndOnExternalPause {
		d.ForceEnd()
	}
	d.listening = false
	d.frames.Clear()
	d.logger.Debug("speechseg: listening stopped")
}

// Ingest accepts 16-bit little-endian mono PCM in chunks of any size. Every
// complete frame is processed, and its events delivered, before Ingest returns.
func (d *Detector) Ingest(b []byte) {
	if d.closed || !d.listening {
		return
	}
	d.frames.Ingest(b)
}

// Write implements io.Writer on top of Ingest. It never fails.
func (d *Detector) Write(p []byte) (int, error) {
	d.Ingest(p)
	return len(p), nil
}

func (d *Detector) processFrame(frame Frame) {
	if d.closed || !d.listening {
		return
	}
	if !d.ready {
		d.logger.Debug("speechseg: model not ready, frame skipped")
		return
	}
	p, state, err := d.model.Infer(frame, d.cfg.SampleRate, d.state)
	if err != nil {
		d.logger.Warn("speechseg: inference failed, frame dropped", "error", err)
		d.sink.HandleEvent(errorEvent(err))
		return
	}
	d.state = state
	if ev, ok := d.segmenter.Process(frame, p); ok {
		d.emit(ev)
	}
	if d.observer != nil {
		d.observer(frame, p)
	}
}

// ForceEnd submits the open segment immediately if it has reached
// MinSpeechFrames. Otherwise nothing happens and the segment stays open.
func (d *Detector) ForceEnd() {
	if d.closed {
		return
	}
	ev, ok := d.segmenter.ForceEnd()
	if !ok {
		if st := d.segmenter.State(); st.Speaking {
			d.logger.Debug("speechseg: force end ignored below minimum speech",
				"positiveFrames", st.PositiveFrameCount,
				"minSpeechFrames", d.cfg.MinSpeechFrames,
			)
		}
		return
	}
	d.emit(ev)
}

// Reset discards any open segment without an event, clears buffered audio
// and zeroes the model state. Sessions are not closed.
func (d *Detector) Reset() {
	if d.closed {
		return
	}
	d.segmenter.Reset()
	d.frames.Clear()
	d.state = d.model.NewState()
}

// Speaking reports whether a segment is open.
func (d *Detector) Speaking() bool {
	return d.segmenter.State().Speaking
}

// State returns a snapshot of the segmentation state.
func (d *Detector) State() SegmenterState {
	return d.segmenter.State()
}

// Close pauses the detector and releases the model. The detector must not be
// used after Close; repeated calls return nil.
func (d *Detector) Close() error {
	if d.closed {
		return nil
	}
	d.Pause()
	d.closed = true
	d.ready = false
	return d.model.Release()
}

func (d *Detector) emit(ev Event) {
	switch ev.Kind {
	case EventSpeechEnd:
		d.logger.Debug("speechseg: speech end", "timestamp", ev.Timestamp, "bytes", len(ev.Audio))
	default:
		d.logger.Debug("speechseg: "+ev.Kind.String(), "timestamp", ev.Timestamp)
	}
	d.sink.HandleEvent(ev)
}
