package speechseg

// EventKind enumerates the events a Detector emits.
type EventKind int

const (
	// EventSpeechStart fires on the first frame at or above the positive threshold.
	EventSpeechStart EventKind = iota
	// EventSpeechEnd carries the audio of a completed segment.
	EventSpeechEnd
	// EventMisfire reports a segment that ended before MinSpeechFrames positive frames.
	EventMisfire
	// EventError reports model initialization or inference failures.
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventSpeechStart:
		return "speech_start"
	case EventSpeechEnd:
		return "speech_end"
	case EventMisfire:
		return "misfire"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is a single segmentation event.
type Event struct {
	Kind EventKind

	// Timestamp is the stream position in seconds at the end of the frame
	// that caused the event. Zero for EventError.
	Timestamp float64

	// Audio is 16-bit little-endian mono PCM, set only for EventSpeechEnd.
	// The slice is owned by the receiver.
	Audio []byte

	Err     error
	Message string
}

// EventSink receives events synchronously from the goroutine that feeds audio.
// A slow sink slows the pipeline.
type EventSink interface {
	HandleEvent(Event)
}

// SinkFunc adapts a function to EventSink.
type SinkFunc func(Event)

// HandleEvent calls f(ev).
func (f SinkFunc) HandleEvent(ev Event) { f(ev) }

// Callbacks is an EventSink that dispatches per event kind. All fields are
// optional (nil is allowed).
type Callbacks struct {
	OnSpeechStart func(timestamp float64)
	// OnSpeechEnd receives the segment audio; the slice is not reused by the detector.
	OnSpeechEnd func(timestamp float64, audio []byte)
	OnMisfire   func(timestamp float64)
	OnError     func(err error)
}

// HandleEvent implements EventSink.
func (c Callbacks) HandleEvent(ev Event) {
	switch ev.Kind {
	case EventSpeechStart:
		if c.OnSpeechStart != nil {
			c.OnSpeechStart(ev.Timestamp)
		}
	case EventSpeechEnd:
		if c.OnSpeechEnd != nil {
			c.OnSpeechEnd(ev.Timestamp, ev.Audio)
		}
	case EventMisfire:
		if c.OnMisfire != nil {
			c.OnMisfire(ev.Timestamp)
		}
	case EventError:
		if c.OnError != nil {
			c.OnError(ev.Err)
		}
	}
}

type discardSink struct{}

func (discardSink) HandleEvent(Event) {}

func errorEvent(err error) Event {
	return Event{Kind: EventError, Err: err, Message: err.Error()}
}
