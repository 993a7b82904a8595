package commands

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	resampling "github.com/tphakala/go-audio-resampling"
	"github.com/youpy/go-wav"
	"github.com/zaf/g711"

	speechseg "github.com/cortexswarm/speech-segment-go"
)

// Raw input encodings accepted by the file command.
const (
	EncodingPCM16 = "pcm16"
	EncodingULaw  = "ulaw"
	EncodingALaw  = "alaw"
)

// rawDecoder converts one chunk of headerless input to 16-bit LE PCM.
type rawDecoder func([]byte) []byte

// decoderFor also returns the input width in bytes per sample.
func decoderFor(encoding string) (rawDecoder, int, error) {
	switch encoding {
	case EncodingPCM16:
		return func(b []byte) []byte { return b }, 2, nil
	case EncodingULaw:
		return g711.DecodeUlaw, 1, nil
	case EncodingALaw:
		return g711.DecodeAlaw, 1, nil
	default:
		return nil, 0, fmt.Errorf("unknown encoding %q (want %s, %s or %s)", encoding, EncodingPCM16, EncodingULaw, EncodingALaw)
	}
}

// wavStream yields mono 16-bit LE PCM from a WAV file, downmixing stereo.
type wavStream struct {
	r          *wav.Reader
	channels   int
	bits       int
	sampleRate int
}

func newWAVStream(r interface {
	io.Reader
	io.ReaderAt
}) (*wavStream, error) {
	wr := wav.NewReader(r)
	format, err := wr.Format()
	if err != nil {
		return nil, fmt.Errorf("WAV format: %w", err)
	}
	channels := int(format.NumChannels)
	if channels < 1 || channels > 2 {
		return nil, fmt.Errorf("WAV: only mono or stereo supported, got %d channels", channels)
	}
	return &wavStream{
		r:          wr,
		channels:   channels,
		bits:       int(format.BitsPerSample),
		sampleRate: int(format.SampleRate),
	}, nil
}

// next returns up to n samples as PCM bytes, or io.EOF.
func (s *wavStream) next(n int) ([]byte, error) {
	samples, err := s.r.ReadSamples(uint32(n))
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, io.EOF
	}
	out := make([]byte, 2*len(samples))
	for i, smp := range samples {
		var v int
		if s.channels == 1 {
			v = s.value(smp, 0)
		} else {
			v = (s.value(smp, 0) + s.value(smp, 1)) / 2
		}
		binary.LittleEndian.PutUint16(out[2*i:], uint16(int16(v)))
	}
	return out, nil
}

func (s *wavStream) value(smp wav.Sample, ch uint) int {
	if s.bits == 16 {
		// go-wav Sample.Values holds the raw 16-bit PCM value
		return smp.Values[ch]
	}
	v := math.Round(s.r.FloatValue(smp, ch) * 32768)
	return int(max(-32768, min(32767, v)))
}

// resampled converts the PCM produced by src from inRate to outRate. The
// resampler's delayed tail is flushed into the chunk that reports io.EOF.
func resampled(src pcmSource, inRate, outRate int) (pcmSource, error) {
	rs, err := resampling.New(&resampling.Config{
		InputRate:  float64(inRate),
		OutputRate: float64(outRate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("create resampler: %w", err)
	}
	flushed := false
	return func(n int) ([]byte, error) {
		if flushed {
			return nil, io.EOF
		}
		chunk, err := src(n)
		if err != nil && err != io.EOF {
			return nil, err
		}
		var b []byte
		if len(chunk) > 0 {
			in := make([]float64, len(chunk)/2)
			for i := range in {
				in[i] = float64(int16(binary.LittleEndian.Uint16(chunk[2*i:]))) / 32768
			}
			out, perr := rs.Process(in)
			if perr != nil {
				return nil, fmt.Errorf("resample: %w", perr)
			}
			b = appendPCM16(b, out)
		}
		if err == io.EOF {
			flushed = true
			tail, ferr := rs.Flush()
			if ferr != nil {
				return nil, fmt.Errorf("resample flush: %w", ferr)
			}
			b = appendPCM16(b, tail)
		}
		return b, err
	}, nil
}

func appendPCM16(b []byte, samples []float64) []byte {
	for _, v := range samples {
		v = max(-32768, min(32767, math.Round(v*32768)))
		b = binary.LittleEndian.AppendUint16(b, uint16(int16(v)))
	}
	return b
}

// writeWAV writes mono 16-bit LE PCM as a WAV file.
func writeWAV(path string, pcm []byte, sampleRate int) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()

	samples := make([]wav.Sample, len(pcm)/2)
	for i := range samples {
		samples[i] = wav.Sample{Values: [2]int{int(int16(binary.LittleEndian.Uint16(pcm[2*i:]))), 0}}
	}
	w := wav.NewWriter(f, uint32(len(samples)), 1, uint32(sampleRate), 16)
	return w.WriteSamples(samples)
}

// segmentWriter logs detector events and saves each completed segment.
// An empty dir disables saving.
type segmentWriter struct {
	dir        string
	sampleRate int
	segments   int
	misfires   int
}

func (w *segmentWriter) HandleEvent(ev speechseg.Event) {
	switch ev.Kind {
	case speechseg.EventSpeechStart:
		logger.Info("speech start", "t", fmt.Sprintf("%.3fs", ev.Timestamp))
	case speechseg.EventMisfire:
		w.misfires++
		logger.Info("misfire", "t", fmt.Sprintf("%.3fs", ev.Timestamp))
	case speechseg.EventError:
		logger.Error("detector error", "error", ev.Err)
	case speechseg.EventSpeechEnd:
		w.segments++
		dur := float64(len(ev.Audio)/2) / float64(w.sampleRate)
		if w.dir == "" {
			logger.Info("speech end", "t", fmt.Sprintf("%.3fs", ev.Timestamp), "duration", fmt.Sprintf("%.2fs", dur))
			return
		}
		path := filepath.Join(w.dir, fmt.Sprintf("segment_%03d.wav", w.segments))
		if err := writeWAV(path, ev.Audio, w.sampleRate); err != nil {
			logger.Error("write segment", "path", path, "error", err)
			return
		}
		logger.Info("speech end", "t", fmt.Sprintf("%.3fs", ev.Timestamp), "duration", fmt.Sprintf("%.2fs", dur), "path", path)
	}
}
