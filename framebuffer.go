package speechseg

import (
	"encoding/binary"
	"errors"
	"math"
)

// Frame is a fixed-length block of normalized samples in [-1, 1]. A frame is
// never modified after it is produced.
type Frame []float32

// FrameBuffer accumulates 16-bit little-endian PCM bytes and slices them into
// frames of a fixed sample count. It is not safe for concurrent use, but emit
// may call back into Ingest or Clear.
type FrameBuffer struct {
	frameBytes int
	pending    []byte
	off        int // start of the first unemitted byte in pending
	emit       func(Frame)
}

// NewFrameBuffer returns a buffer that calls emit for every complete frame,
// in arrival order, before Ingest returns.
func NewFrameBuffer(frameSamples int, emit func(Frame)) (*FrameBuffer, error) {
	if frameSamples <= 0 {
		return nil, errors.New("frame buffer: frameSamples must be > 0")
	}
	if emit == nil {
		return nil, errors.New("frame buffer: emit is required")
	}
	return &FrameBuffer{
		frameBytes: frameSamples * 2,
		pending:    make([]byte, 0, frameSamples*4),
		emit:       emit,
	}, nil
}

// Ingest appends b and emits every complete frame. Bytes short of a frame stay
// buffered for the next call.
func (fb *FrameBuffer) Ingest(b []byte) {
	fb.pending = append(fb.pending, b...)
	for len(fb.pending)-fb.off >= fb.frameBytes {
		frame := decodeFrame(fb.pending[fb.off : fb.off+fb.frameBytes])
		fb.off += fb.frameBytes
		fb.emit(frame)
	}
	if fb.off > 0 {
		n := copy(fb.pending, fb.pending[fb.off:])
		fb.pending = fb.pending[:n]
		fb.off = 0
	}
}

// Write implements io.Writer. It never fails.
func (fb *FrameBuffer) Write(p []byte) (int, error) {
	fb.Ingest(p)
	return len(p), nil
}

// Buffered returns the number of bytes waiting for a complete frame.
func (fb *FrameBuffer) Buffered() int {
	return len(fb.pending) - fb.off
}

// Clear drops everything not yet emitted. Called from emit, it also drops the
// remaining frames of the chunk being ingested.
func (fb *FrameBuffer) Clear() {
	fb.pending = fb.pending[:0]
	fb.off = 0
}

func decodeFrame(b []byte) Frame {
	frame := make(Frame, len(b)/2)
	for i := range frame {
		frame[i] = float32(int16(binary.LittleEndian.Uint16(b[i*2:]))) / 32768.0
	}
	return frame
}

// encodePCM16 concatenates frames into a new 16-bit little-endian buffer.
func encodePCM16(frames []Frame) []byte {
	total := 0
	for _, f := range frames {
		total += len(f)
	}
	out := make([]byte, total*2)
	i := 0
	for _, f := range frames {
		for _, s := range f {
			v := math.Round(math.Max(-32768, math.Min(32767, float64(s)*32767)))
			binary.LittleEndian.PutUint16(out[i:], uint16(int16(v)))
			i += 2
		}
	}
	return out
}
