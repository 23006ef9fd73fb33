// Command framecheck generates QR-coded test videos and checks scanned
// videos for lost, duplicated and reordered frames.
//
// Usage:
//
//	framecheck generate [flags] <num_frames> [output_path]
//	framecheck scan [flags] <input_video>
//	framecheck report [run_id]
//	framecheck serve [--addr host:port]
//	framecheck preflight
//	framecheck version
//
// Exit codes:
//   - 0: success
//   - 1: failure (missing sync frame, empty input, I/O, missing ffmpeg)
//   - 2: invalid argument
//   - 3: anomalous frame records with --strict
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/zsiec/framecheck/internal/command"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := command.New(command.Options{}).Run(ctx, os.Args)
	stop()
	os.Exit(code)
}
