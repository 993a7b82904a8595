// Command speechseg segments speech in audio files or live microphone input.
//
// Usage:
//
//	speechseg [--config vad.yaml] file <input.wav|input.raw> [--out dir]
//	speechseg [--config vad.yaml] mic [--out dir]
//
// Models are loaded from data/silero_vad.onnx unless the config says
// otherwise. The ONNX Runtime library is looked up under data/ and
// lib/<GOOS>_<GOARCH>/ when model.runtime_library is empty.
package main

import (
	"fmt"
	"os"

	"github.com/cortexswarm/speech-segment-go/cmd/speechseg/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
