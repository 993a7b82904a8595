package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	speechseg "github.com/cortexswarm/speech-segment-go"
)

// Config is the CLI configuration file.
//
//	vad:
//	  positive_speech_threshold: 0.5
//	  negative_speech_threshold: 0.35
//	  frame_samples: 512
//	  sample_rate: 16000
//	timing:
//	  redemption_ms: 600
//	model:
//	  path: data/silero_vad.onnx
type Config struct {
	VAD    speechseg.Config `yaml:"vad"`
	Timing TimingConfig     `yaml:"timing"`
	Model  ModelConfig      `yaml:"model"`
}

// TimingConfig expresses frame counts as durations. Non-zero values override
// the matching vad field, rounded up to whole frames.
type TimingConfig struct {
	PreSpeechPadMs int `yaml:"pre_speech_pad_ms"`
	RedemptionMs   int `yaml:"redemption_ms"`
	MinSpeechMs    int `yaml:"min_speech_ms"`
}

// ModelConfig locates the Silero model and the ONNX Runtime library.
type ModelConfig struct {
	Path           string `yaml:"path"`
	RuntimeLibrary string `yaml:"runtime_library"`
}

func defaultConfig() *Config {
	return &Config{
		VAD:   speechseg.DefaultConfig(),
		Model: ModelConfig{Path: filepath.Join("data", "silero_vad.onnx")},
	}
}

// loadConfig reads path, or returns the defaults when path is empty.
func loadConfig(path string) (*Config, error) {
	if path == "" {
		cfg := defaultConfig()
		return cfg, cfg.VAD.Validate()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := loadConfigFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// loadConfigFromReader decodes YAML over the defaults and validates the result.
func loadConfigFromReader(r io.Reader) (*Config, error) {
	cfg := defaultConfig()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	cfg.applyTiming()
	if err := cfg.VAD.Validate(); err != nil {
		return nil, err
	}
	if cfg.Model.Path == "" {
		return nil, fmt.Errorf("config: model.path is required")
	}
	return cfg, nil
}

func (c *Config) applyTiming() {
	frames := func(ms int) int { return speechseg.FramesFor(ms, c.VAD.FrameSamples, c.VAD.SampleRate) }
	if c.Timing.PreSpeechPadMs > 0 {
		c.VAD.PreSpeechPadFrames = frames(c.Timing.PreSpeechPadMs)
	}
	if c.Timing.RedemptionMs > 0 {
		c.VAD.RedemptionFrames = frames(c.Timing.RedemptionMs)
	}
	if c.Timing.MinSpeechMs > 0 {
		c.VAD.MinSpeechFrames = frames(c.Timing.MinSpeechMs)
	}
}
