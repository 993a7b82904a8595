package commands

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/youpy/go-wav"

	speechseg "github.com/cortexswarm/speech-segment-go"
)

func pcm(samples ...int16) []byte {
	b := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(b[2*i:], uint16(s))
	}
	return b
}

func TestDecoderFor(t *testing.T) {
	t.Parallel()
	tests := []struct {
		encoding  string
		wantWidth int
	}{
		{EncodingPCM16, 2},
		{EncodingULaw, 1},
		{EncodingALaw, 1},
	}
	for _, tt := range tests {
		t.Run(tt.encoding, func(t *testing.T) {
			t.Parallel()
			decode, width, err := decoderFor(tt.encoding)
			if err != nil {
				t.Fatalf("decoderFor: %v", err)
			}
			if width != tt.wantWidth {
				t.Errorf("width = %d, want %d", width, tt.wantWidth)
			}
			in := []byte{0x10, 0x20, 0x30, 0x40}
			out := decode(in)
			if want := len(in) / width * 2; len(out) != want {
				t.Errorf("decoded %d bytes, want %d", len(out), want)
			}
		})
	}

	if _, _, err := decoderFor("flac"); err == nil {
		t.Error("expected error for unknown encoding")
	}
}

func TestDecoderFor_ULawSilence(t *testing.T) {
	t.Parallel()
	decode, _, err := decoderFor(EncodingULaw)
	if err != nil {
		t.Fatal(err)
	}
	// 0xFF is mu-law zero.
	if got := decode([]byte{0xFF, 0xFF}); !bytes.Equal(got, pcm(0, 0)) {
		t.Errorf("decode(0xFF 0xFF) = %v, want silence", got)
	}
}

func TestRawSource_Chunks(t *testing.T) {
	t.Parallel()
	decode, width, _ := decoderFor(EncodingPCM16)
	src := rawSource(bytes.NewReader(pcm(1, 2, 3, 4, 5)), decode, width)

	var sizes []int
	var all []byte
	for {
		chunk, err := src(4)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("src: %v", err)
		}
		sizes = append(sizes, len(chunk))
		all = append(all, chunk...)
	}
	if want := []int{4, 4, 2}; !slices.Equal(sizes, want) {
		t.Errorf("chunk sizes = %v, want %v", sizes, want)
	}
	if !bytes.Equal(all, pcm(1, 2, 3, 4, 5)) {
		t.Error("chunks do not reassemble the input")
	}
}

func TestRawSource_G711ChunkSize(t *testing.T) {
	t.Parallel()
	decode, width, _ := decoderFor(EncodingALaw)
	src := rawSource(bytes.NewReader(make([]byte, 6)), decode, width)
	chunk, err := src(8)
	if err != nil {
		t.Fatalf("src: %v", err)
	}
	// 8 PCM bytes is 4 samples, read as 4 A-law bytes.
	if len(chunk) != 8 {
		t.Errorf("chunk = %d bytes, want 8", len(chunk))
	}
}

func TestWAV_WriteThenStream(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "seg.wav")
	want := pcm(0, 1000, -1000, 32767, -32768)
	if err := writeWAV(path, want, 16000); err != nil {
		t.Fatalf("writeWAV: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	ws, err := newWAVStream(f)
	if err != nil {
		t.Fatalf("newWAVStream: %v", err)
	}
	if ws.sampleRate != 16000 || ws.channels != 1 || ws.bits != 16 {
		t.Fatalf("format = %d Hz, %d ch, %d bits", ws.sampleRate, ws.channels, ws.bits)
	}
	got, err := ws.next(64)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("samples = %v, want %v", got, want)
	}
	if _, err := ws.next(64); !errors.Is(err, io.EOF) {
		t.Errorf("next after end = %v, want io.EOF", err)
	}
}

func TestWAVStream_StereoDownmix(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	samples := []wav.Sample{
		{Values: [2]int{1000, 3000}},
		{Values: [2]int{-2000, 0}},
	}
	w := wav.NewWriter(&buf, uint32(len(samples)), 2, 8000, 16)
	if err := w.WriteSamples(samples); err != nil {
		t.Fatalf("WriteSamples: %v", err)
	}

	ws, err := newWAVStream(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("newWAVStream: %v", err)
	}
	got, err := ws.next(16)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if want := pcm(2000, -1000); !bytes.Equal(got, want) {
		t.Errorf("downmix = %v, want %v", got, want)
	}
}

func TestSegmentWriter(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	w := &segmentWriter{dir: dir, sampleRate: 16000}

	w.HandleEvent(speechseg.Event{Kind: speechseg.EventSpeechStart, Timestamp: 0.1})
	w.HandleEvent(speechseg.Event{Kind: speechseg.EventMisfire, Timestamp: 0.2})
	w.HandleEvent(speechseg.Event{Kind: speechseg.EventSpeechEnd, Timestamp: 1.5, Audio: pcm(1, 2, 3)})
	w.HandleEvent(speechseg.Event{Kind: speechseg.EventSpeechEnd, Timestamp: 3.0, Audio: pcm(4)})

	if w.segments != 2 || w.misfires != 1 {
		t.Errorf("segments/misfires = %d/%d, want 2/1", w.segments, w.misfires)
	}
	for _, name := range []string{"segment_001.wav", "segment_002.wav"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}
}

func TestResampled_Length(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name            string
		inRate, outRate int
		inSamples       int
		nonSilent       bool
	}{
		{"16k to 8k silence", 16000, 8000, 1600, false},
		{"8k to 16k silence", 8000, 16000, 8000, false},
		{"8k to 16k tone", 8000, 16000, 8000, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			in := make([]int16, tt.inSamples)
			if tt.nonSilent {
				for i := range in {
					in[i] = int16(8000 * math.Sin(2*math.Pi*440*float64(i)/float64(tt.inRate)))
				}
			}
			decode, width, _ := decoderFor(EncodingPCM16)
			src, err := resampled(rawSource(bytes.NewReader(pcm(in...)), decode, width), tt.inRate, tt.outRate)
			if err != nil {
				t.Fatalf("resampled: %v", err)
			}

			total := 0
			for {
				chunk, err := src(640)
				if !tt.nonSilent {
					for i := 0; i+1 < len(chunk); i += 2 {
						if v := int16(binary.LittleEndian.Uint16(chunk[i:])); v != 0 {
							t.Fatalf("sample %d = %d, want silence", (total+i)/2, v)
						}
					}
				}
				total += len(chunk)
				if errors.Is(err, io.EOF) {
					break
				}
				if err != nil {
					t.Fatalf("src: %v", err)
				}
			}
			if _, err := src(640); !errors.Is(err, io.EOF) {
				t.Errorf("read after end = %v, want io.EOF", err)
			}

			want := tt.inSamples * tt.outRate / tt.inRate
			got := total / 2
			if tol := want/50 + 4; got < want-tol || got > want+tol {
				t.Errorf("resampled %d samples to %d, want %d +/- %d", tt.inSamples, got, want, tol)
			}
		})
	}
}
