package speechseg

// SegmenterState is a snapshot of the segmentation state machine.
type SegmenterState struct {
	Speaking           bool
	RedemptionCounter  int
	PositiveFrameCount int
	SampleIndex        int
	PreSpeechFrames    int
	SpeechFrames       int
}

// Segmenter is the frame-level speech segmentation state machine. Pure logic;
// no model, no sink. Each call returns at most one event.
type Segmenter struct {
	cfg Config

	preSpeech *frameRing
	speech    []Frame

	speaking           bool
	redemptionCounter  int
	positiveFrameCount int
	sampleIndex        int
}

// NewSegmenter validates cfg and returns an idle segmenter.
func NewSegmenter(cfg Config) (*Segmenter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Segmenter{
		cfg:       cfg,
		preSpeech: newFrameRing(cfg.PreSpeechPadFrames),
	}, nil
}

// Process advances the stream by one frame with speech probability p.
func (s *Segmenter) Process(frame Frame, p float64) (Event, bool) {
	s.sampleIndex += s.cfg.FrameSamples

	switch {
	case p >= s.cfg.PositiveSpeechThreshold:
		s.redemptionCounter = 0
		s.positiveFrameCount++
		if !s.speaking {
			s.speaking = true
			s.speech = s.preSpeech.drainInto(s.speech)
			s.speech = append(s.speech, frame)
			return Event{Kind: EventSpeechStart, Timestamp: s.timestamp()}, true
		}
		s.speech = append(s.speech, frame)

	case !s.speaking:
		s.preSpeech.push(frame)

	case p < s.cfg.NegativeSpeechThreshold:
		s.redemptionCounter++
		if s.redemptionCounter >= s.cfg.RedemptionFrames {
			return s.terminate(), true
		}
		s.speech = append(s.speech, frame)

	default:
		// Ambiguous band keeps the segment alive.
		s.redemptionCounter = 0
		s.speech = append(s.speech, frame)
	}
	return Event{}, false
}

// ForceEnd submits the in-progress segment without waiting for redemption.
// It does nothing while idle or when fewer than MinSpeechFrames positive
// frames have been seen; in that case the segment stays open.
func (s *Segmenter) ForceEnd() (Event, bool) {
	if !s.speaking || s.positiveFrameCount < s.cfg.MinSpeechFrames {
		return Event{}, false
	}
	ev := s.terminate()
	s.preSpeech.clear()
	return ev, true
}

// Reset returns the segmenter to its initial state, discarding any open
// segment without an event.
func (s *Segmenter) Reset() {
	s.endSegment()
	s.sampleIndex = 0
	s.preSpeech.clear()
}

// State returns a snapshot of the current state.
func (s *Segmenter) State() SegmenterState {
	return SegmenterState{
		Speaking:           s.speaking,
		RedemptionCounter:  s.redemptionCounter,
		PositiveFrameCount: s.positiveFrameCount,
		SampleIndex:        s.sampleIndex,
		PreSpeechFrames:    s.preSpeech.size(),
		SpeechFrames:       len(s.speech),
	}
}

func (s *Segmenter) terminate() Event {
	ev := Event{Kind: EventMisfire, Timestamp: s.timestamp()}
	if s.positiveFrameCount >= s.cfg.MinSpeechFrames {
		ev.Kind = EventSpeechEnd
		ev.Audio = encodePCM16(s.speech)
	}
	s.endSegment()
	return ev
}

func (s *Segmenter) endSegment() {
	s.speaking = false
	s.redemptionCounter = 0
	s.positiveFrameCount = 0
	s.speech = nil
}

func (s *Segmenter) timestamp() float64 {
	return float64(s.sampleIndex) / float64(s.cfg.SampleRate)
}
