package commands

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	speechseg "github.com/cortexswarm/speech-segment-go"
)

var (
	// Global flags
	configPath string
	verbose    bool

	logger = slog.Default()
)

var rootCmd = &cobra.Command{
	Use:   "speechseg",
	Short: "Voice activity segmentation with Silero VAD",
	Long: `speechseg - split audio into speech segments.

Audio is cut into frames, scored by Silero VAD and segmented with
threshold hysteresis, a redemption window, pre-speech padding and a
minimum speech length. Completed segments are written as WAV files.

Examples:
  # Segment a 16 kHz mono WAV file
  speechseg file meeting.wav --out segments

  # Segment 8 kHz mu-law telephone audio with a custom config
  speechseg -c telephony.yaml file call.ulaw --encoding ulaw

  # Live microphone
  speechseg mic --out segments`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// openDetector builds a Silero-backed detector and loads the model.
func openDetector(cfg *Config, sink speechseg.EventSink) (*speechseg.Detector, error) {
	model, err := speechseg.NewSileroModel(speechseg.SileroConfig{
		SampleRate:         cfg.VAD.SampleRate,
		FrameSamples:       cfg.VAD.FrameSamples,
		RuntimeLibraryPath: cfg.Model.RuntimeLibrary,
	})
	if err != nil {
		return nil, err
	}
	det, err := speechseg.New(cfg.VAD, model, sink, speechseg.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	if err := det.Initialize(speechseg.ModelHandle{Path: cfg.Model.Path}); err != nil {
		_ = det.Close()
		return nil, err
	}
	return det, nil
}
