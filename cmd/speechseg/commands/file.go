package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	speechseg "github.com/cortexswarm/speech-segment-go"
)

var (
	fileOutDir     string
	fileEncoding   string
	fileChunkBytes int
	fileResample   bool
	fileInputRate  int
)

var fileCmd = &cobra.Command{
	Use:   "file <input>",
	Short: "Segment speech in an audio file",
	Long: `Segment speech in a WAV file or headerless audio.

WAV input may be mono or stereo (downmixed). Headerless input is read with
--encoding (pcm16, ulaw or alaw) at --input-rate. The input sample rate
must match vad.sample_rate unless --resample is given.

Each completed segment is written to --out as segment_NNN.wav.`,
	Args: cobra.ExactArgs(1),
	RunE: runFile,
}

func init() {
	fileCmd.Flags().StringVarP(&fileOutDir, "out", "o", "output", "directory for segment WAV files (empty disables writing)")
	fileCmd.Flags().StringVarP(&fileEncoding, "encoding", "e", "", "headerless input encoding: pcm16, ulaw or alaw (default: WAV by extension, else pcm16)")
	fileCmd.Flags().IntVar(&fileChunkBytes, "chunk-bytes", 4096, "bytes fed to the detector per call")
	fileCmd.Flags().BoolVar(&fileResample, "resample", false, "convert input at another sample rate to vad.sample_rate")
	fileCmd.Flags().IntVar(&fileInputRate, "input-rate", 0, "sample rate of headerless input (default vad.sample_rate)")
	rootCmd.AddCommand(fileCmd)
}

func runFile(cmd *cobra.Command, args []string) error {
	if fileChunkBytes < 2 {
		return fmt.Errorf("--chunk-bytes must be >= 2")
	}
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	src, rate, err := openSource(f, args[0], fileEncoding, fileInputRate)
	if err != nil {
		return err
	}
	if rate == 0 {
		rate = cfg.VAD.SampleRate
	}
	if rate != cfg.VAD.SampleRate {
		if !fileResample {
			return fmt.Errorf("input sample rate %d does not match configured %d (use --resample)", rate, cfg.VAD.SampleRate)
		}
		logger.Info("resampling input", "from", rate, "to", cfg.VAD.SampleRate)
		if src, err = resampled(src, rate, cfg.VAD.SampleRate); err != nil {
			return err
		}
	}

	if fileOutDir != "" {
		if err := os.MkdirAll(fileOutDir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	sink := &segmentWriter{dir: fileOutDir, sampleRate: cfg.VAD.SampleRate}
	det, err := openDetector(cfg, sink)
	if err != nil {
		return err
	}

	det.Start()
	if err := feed(det, src, fileChunkBytes); err != nil {
		_ = det.Close()
		return fmt.Errorf("read %s: %w", args[0], err)
	}
	// End of stream counts as an external pause.
	det.Pause()
	if err := det.Close(); err != nil {
		return err
	}

	logger.Info("done", "input", args[0], "segments", sink.segments, "misfires", sink.misfires)
	return nil
}

// pcmSource yields chunks of 16-bit LE mono PCM until io.EOF.
type pcmSource func(chunkBytes int) ([]byte, error)

// openSource also returns the input sample rate: the WAV header rate, or
// rawRate for headerless input.
func openSource(f *os.File, name, encoding string, rawRate int) (pcmSource, int, error) {
	if encoding == "" && strings.EqualFold(filepath.Ext(name), ".wav") {
		ws, err := newWAVStream(f)
		if err != nil {
			return nil, 0, err
		}
		return func(n int) ([]byte, error) { return ws.next(n / 2) }, ws.sampleRate, nil
	}
	if encoding == "" {
		encoding = EncodingPCM16
	}
	decode, width, err := decoderFor(encoding)
	if err != nil {
		return nil, 0, err
	}
	return rawSource(f, decode, width), rawRate, nil
}

// rawSource reads headerless input of width bytes per sample, sized so each
// decoded chunk holds about n PCM bytes.
func rawSource(r io.Reader, decode rawDecoder, width int) pcmSource {
	return func(n int) ([]byte, error) {
		buf := make([]byte, max(1, n/2*width))
		m, err := io.ReadFull(r, buf)
		if m > 0 {
			return decode(buf[:m]), nil
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			err = io.EOF
		}
		return nil, err
	}
}

func feed(det *speechseg.Detector, src pcmSource, chunkBytes int) error {
	for {
		chunk, err := src(chunkBytes)
		if len(chunk) > 0 {
			det.Ingest(chunk)
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
