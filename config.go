package speechseg

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is wrapped by every error returned from Config.Validate.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds the segmentation parameters. All counts are in frames.
type Config struct {
	PositiveSpeechThreshold float64 `yaml:"positive_speech_threshold"` // p >= this is speech (e.g. 0.5)
	NegativeSpeechThreshold float64 `yaml:"negative_speech_threshold"` // p < this is silence (e.g. 0.35)
	RedemptionFrames        int     `yaml:"redemption_frames"`         // silent frames tolerated before ending speech
	PreSpeechPadFrames      int     `yaml:"pre_speech_pad_frames"`     // frames kept before speech onset
	MinSpeechFrames         int     `yaml:"min_speech_frames"`         // positive frames required for a segment
	FrameSamples            int     `yaml:"frame_samples"`             // samples per frame (512 for Silero v5 at 16 kHz)
	SampleRate              int     `yaml:"sample_rate"`

	// ForceEndOnExternalPause makes Detector.Pause submit an in-progress
	// segment instead of silently dropping it.
	ForceEndOnExternalPause bool `yaml:"force_end_on_external_pause"`
}

// DefaultConfig returns the Silero v5 defaults for 16 kHz audio.
func DefaultConfig() Config {
	return Config{
		PositiveSpeechThreshold: 0.5,
		NegativeSpeechThreshold: 0.35,
		RedemptionFrames:        8,
		PreSpeechPadFrames:      1,
		MinSpeechFrames:         3,
		FrameSamples:            512,
		SampleRate:              16000,
	}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch {
	case c.PositiveSpeechThreshold <= 0 || c.PositiveSpeechThreshold > 1:
		return invalidConfig("PositiveSpeechThreshold must be in (0, 1], got %v", c.PositiveSpeechThreshold)
	case c.NegativeSpeechThreshold < 0 || c.NegativeSpeechThreshold >= 1:
		return invalidConfig("NegativeSpeechThreshold must be in [0, 1), got %v", c.NegativeSpeechThreshold)
	case c.NegativeSpeechThreshold >= c.PositiveSpeechThreshold:
		return invalidConfig("NegativeSpeechThreshold (%v) must be below PositiveSpeechThreshold (%v)",
			c.NegativeSpeechThreshold, c.PositiveSpeechThreshold)
	case c.RedemptionFrames < 0:
		return invalidConfig("RedemptionFrames must be >= 0")
	case c.PreSpeechPadFrames < 0:
		return invalidConfig("PreSpeechPadFrames must be >= 0")
	case c.MinSpeechFrames < 1:
		return invalidConfig("MinSpeechFrames must be >= 1")
	case c.FrameSamples <= 0:
		return invalidConfig("FrameSamples must be > 0")
	case c.SampleRate <= 0:
		return invalidConfig("SampleRate must be > 0")
	}
	return nil
}

func invalidConfig(format string, args ...any) error {
	return fmt.Errorf("config: %w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// FramesFor converts a duration in milliseconds to a frame count, rounding up.
func FramesFor(ms, frameSamples, sampleRate int) int {
	return ceilDiv(ms*sampleRate, frameSamples*1000)
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return 0
	}
	return (a + b - 1) / b
}
