package commands

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/gen2brain/malgo"
	"github.com/spf13/cobra"
)

var micOutDir string

var micCmd = &cobra.Command{
	Use:   "mic",
	Short: "Segment speech from the default microphone",
	Long: `Capture 16-bit mono audio from the default input device at the configured
sample rate and segment it live. Press Enter or Ctrl+C to stop; a segment
in progress is submitted when vad.force_end_on_external_pause is set.`,
	Args: cobra.NoArgs,
	RunE: runMic,
}

func init() {
	micCmd.Flags().StringVarP(&micOutDir, "out", "o", "", "directory for segment WAV files (empty only logs)")
	rootCmd.AddCommand(micCmd)
}

func runMic(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if micOutDir != "" {
		if err := os.MkdirAll(micOutDir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("malgo init: %w", err)
	}
	defer func() {
		_ = mctx.Uninit()
		mctx.Free()
	}()

	sink := &segmentWriter{dir: micOutDir, sampleRate: cfg.VAD.SampleRate}
	det, err := openDetector(cfg, sink)
	if err != nil {
		return err
	}

	// PCM chunks copied out of the capture callback for the ingest goroutine
	chunkCh := make(chan []byte, 64)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		det.Start()
		for chunk := range chunkCh {
			det.Ingest(chunk)
		}
	}()

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = uint32(cfg.VAD.SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	var dropped atomic.Int64
	onRecvFrames := func(_, pSample []byte, framecount uint32) {
		n := int(framecount) * 2
		if n == 0 || n > len(pSample) {
			return
		}
		chunk := make([]byte, n)
		copy(chunk, pSample[:n])
		select {
		case chunkCh <- chunk:
		default:
			dropped.Add(1)
		}
	}

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onRecvFrames})
	if err != nil {
		close(chunkCh)
		wg.Wait()
		_ = det.Close()
		return fmt.Errorf("init device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		close(chunkCh)
		wg.Wait()
		_ = det.Close()
		return fmt.Errorf("device start: %w", err)
	}

	go func() {
		_, _ = bufio.NewReader(os.Stdin).ReadString('\n')
		stop()
	}()

	logger.Info("capturing from default microphone, press Enter to stop", "sample_rate", cfg.VAD.SampleRate)
	<-ctx.Done()

	// The device must be stopped before the channel closes.
	device.Uninit()
	close(chunkCh)
	wg.Wait()

	det.Pause()
	if n := dropped.Load(); n > 0 {
		logger.Warn("capture chunks dropped", "count", n)
	}
	logger.Info("stopped", "segments", sink.segments, "misfires", sink.misfires)
	return det.Close()
}
