package speechseg_test

import (
	"errors"
	"os"
	"testing"

	speechseg "github.com/cortexswarm/speech-segment-go"
)

func TestNewSileroModel_Validation(t *testing.T) {
	t.Parallel()
	if _, err := speechseg.NewSileroModel(speechseg.SileroConfig{SampleRate: 44100, FrameSamples: 512}); !errors.Is(err, speechseg.ErrSampleRate) {
		t.Errorf("44.1 kHz: err = %v, want ErrSampleRate", err)
	}
	if _, err := speechseg.NewSileroModel(speechseg.SileroConfig{SampleRate: 16000}); !errors.Is(err, speechseg.ErrFrameSize) {
		t.Errorf("zero frame: err = %v, want ErrFrameSize", err)
	}
}

func TestSileroModel_Lifecycle(t *testing.T) {
	t.Parallel()
	m, err := speechseg.NewSileroModel(speechseg.SileroConfig{SampleRate: 8000, FrameSamples: 256})
	if err != nil {
		t.Fatal(err)
	}
	if n := len(m.NewState()); n != 256+32 {
		t.Errorf("NewState length = %d, want %d", n, 256+32)
	}
	if _, _, err := m.Infer(make(speechseg.Frame, 256), 8000, m.NewState()); !errors.Is(err, speechseg.ErrModelNotReady) {
		t.Errorf("Infer before Initialize = %v, want ErrModelNotReady", err)
	}
	if err := m.Initialize(speechseg.ModelHandle{}); err == nil {
		t.Error("Initialize with empty handle succeeded")
	}
	if err := m.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := m.Release(); err != nil {
		t.Fatalf("second Release: %v", err)
	}
	if err := m.Initialize(speechseg.ModelHandle{Path: "silero_vad.onnx"}); !errors.Is(err, speechseg.ErrModelReleased) {
		t.Errorf("Initialize after Release = %v, want ErrModelReleased", err)
	}
}

func TestModelHandle_Same(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		a, b speechseg.ModelHandle
		want bool
	}{
		{"same path", speechseg.ModelHandle{Path: "a.onnx"}, speechseg.ModelHandle{Path: "a.onnx"}, true},
		{"different path", speechseg.ModelHandle{Path: "a.onnx"}, speechseg.ModelHandle{Path: "b.onnx"}, false},
		{"same data", speechseg.ModelHandle{Data: []byte{1, 2}}, speechseg.ModelHandle{Path: "x", Data: []byte{1, 2}}, true},
		{"different data", speechseg.ModelHandle{Data: []byte{1, 2}}, speechseg.ModelHandle{Data: []byte{1, 3}}, false},
		{"data against path", speechseg.ModelHandle{Data: []byte{1}}, speechseg.ModelHandle{Path: "a.onnx"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.a.Same(tt.b); got != tt.want {
				t.Errorf("Same = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestSileroModel_Silence runs the real model when SILERO_MODEL_PATH points
// at silero_vad.onnx and the ONNX Runtime library can be found.
func TestSileroModel_Silence(t *testing.T) {
	modelPath := os.Getenv("SILERO_MODEL_PATH")
	if modelPath == "" {
		t.Skip("SILERO_MODEL_PATH not set")
	}
	m, err := speechseg.NewSileroModel(speechseg.SileroConfig{
		SampleRate:         16000,
		FrameSamples:       512,
		RuntimeLibraryPath: os.Getenv("ONNXRUNTIME_LIB_PATH"),
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = m.Release() })
	if err := m.Initialize(speechseg.ModelHandle{Path: modelPath}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := m.Initialize(speechseg.ModelHandle{Path: modelPath}); err != nil {
		t.Errorf("Initialize with the same handle: %v", err)
	}
	if err := m.Initialize(speechseg.ModelHandle{Path: modelPath + ".other"}); !errors.Is(err, speechseg.ErrAlreadyInitialized) {
		t.Errorf("Initialize with another handle = %v, want ErrAlreadyInitialized", err)
	}

	state := m.NewState()
	for i := 0; i < 10; i++ {
		var p float64
		p, state, err = m.Infer(make(speechseg.Frame, 512), 16000, state)
		if err != nil {
			t.Fatalf("Infer %d: %v", i, err)
		}
		if p < 0 || p > 1 {
			t.Fatalf("probability %v out of range", p)
		}
		if p >= 0.5 {
			t.Errorf("frame %d: silence scored %v", i, p)
		}
		if len(state) != len(m.NewState()) {
			t.Fatalf("state length changed to %d", len(state))
		}
	}

	if _, _, err := m.Infer(make(speechseg.Frame, 100), 16000, state); !errors.Is(err, speechseg.ErrFrameSize) {
		t.Errorf("short frame: err = %v, want ErrFrameSize", err)
	}
	if _, _, err := m.Infer(make(speechseg.Frame, 512), 8000, state); !errors.Is(err, speechseg.ErrSampleRate) {
		t.Errorf("wrong rate: err = %v, want ErrSampleRate", err)
	}
}
