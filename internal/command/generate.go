package command

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	apperrors "github.com/zsiec/framecheck/internal/errors"
	"github.com/zsiec/framecheck/internal/pipeline"
	"github.com/zsiec/framecheck/internal/render"
	"github.com/zsiec/framecheck/internal/sequence"
)

func (a *App) generateCommand() *cli.Command {
	return &cli.Command{
		Name:         "generate",
		Usage:        "Write a video with one QR-coded frame record per frame",
		ArgsUsage:    "<num_frames> [output_path]",
		OnUsageError: usageError,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "scramble",
				Usage: "Number of random swaps between non-sync frames (0..num_frames)",
			},
			&cli.IntFlag{
				Name:  "delete-random",
				Usage: "Number of frames to drop at random, sync frame included (0..num_frames)",
			},
			&cli.StringSliceFlag{
				Name:  "swap",
				Usage: "Swap two playback positions, as i:j (repeatable)",
			},
			&cli.Uint64Flag{
				Name:  "seed",
				Usage: "Random seed for --scramble and --delete-random (0 picks one)",
			},
			&cli.Float64Flag{
				Name:  "fps",
				Usage: "Output frame rate (default from config)",
			},
			&cli.BoolFlag{
				Name:  "keep-frames",
				Usage: "Keep the rendered frame images after the video is written",
			},
		},
		Action: a.generateAction,
	}
}

func (a *App) generateAction(c *cli.Context) (err error) {
	start := time.Now()
	defer func() { observe("generate", start, err) }()

	req, err := a.generateRequest(c)
	if err != nil {
		return err
	}

	log := a.commandLogger("generate")

	renderer := a.opts.Renderer
	if renderer == nil {
		level, err := render.ParseRecoveryLevel(a.cfg.QR.Recovery)
		if err != nil {
			return apperrors.NewInvalidArgumentError("%v", err)
		}
		renderer = render.NewQRRenderer(a.cfg.Video.Width, a.cfg.Video.Height, level)
	}

	gen := pipeline.NewGenerator(a.cfg, renderer, a.opts.Create, log)
	if err := gen.Validate(req); err != nil {
		return err
	}

	if err := a.requireTools(c.Context, log, a.cfg.Video.Codec); err != nil {
		return err
	}

	result, err := gen.Run(c.Context, req)
	if err != nil {
		return err
	}

	w := c.App.Writer
	if result.VideoWritten {
		fmt.Fprintf(w, "Wrote %d frames to %s\n", result.FramesWritten, result.OutputPath)
	} else {
		fmt.Fprintf(w, "All %d frames were deleted, no video written to %s\n", req.TotalFrames, result.OutputPath)
	}
	fmt.Fprintf(w, "Seed: %d\n", result.Seed)
	for _, s := range result.Swaps {
		fmt.Fprintf(w, "Switched frames %d and %d\n", s.A, s.B)
	}
	if len(result.Deleted) > 0 {
		fmt.Fprintf(w, "Deleted positions: %s\n", joinInts(result.Deleted))
	}
	if result.FrameDir != "" {
		fmt.Fprintf(w, "Frames kept in %s (%d files)\n", result.FrameDir, len(result.FrameFiles))
	}
	return nil
}

// generateRequest reads positional arguments and flags. Range checks are
// left to the generator.
func (a *App) generateRequest(c *cli.Context) (pipeline.GenerateRequest, error) {
	var req pipeline.GenerateRequest

	args := c.Args().Slice()
	if len(args) == 0 {
		return req, apperrors.NewInvalidArgumentError("missing required argument num_frames")
	}
	for _, arg := range args {
		if strings.HasPrefix(arg, "-") && len(arg) > 1 {
			if _, err := strconv.Atoi(arg); err != nil {
				return req, apperrors.NewInvalidArgumentError(
					"flag %s must come before <num_frames> [output_path]", arg)
			}
		}
	}
	if len(args) > 2 {
		return req, apperrors.NewInvalidArgumentError("unexpected argument %q", args[2])
	}

	n, err := strconv.Atoi(args[0])
	if err != nil {
		return req, apperrors.NewInvalidArgumentError("num_frames must be an integer, got %q", args[0])
	}
	req.TotalFrames = n

	req.OutputPath = a.cfg.Generate.DefaultOutput
	if len(args) == 2 {
		req.OutputPath = args[1]
	}

	req.Scramble = c.Int("scramble")
	req.DeleteRandom = c.Int("delete-random")
	req.FPS = c.Float64("fps")
	req.KeepFrames = c.Bool("keep-frames") || a.cfg.Generate.KeepFrames

	req.Seed = a.cfg.Generate.Seed
	if c.IsSet("seed") {
		req.Seed = c.Uint64("seed")
	}

	for _, raw := range c.StringSlice("swap") {
		s, err := parseSwap(raw)
		if err != nil {
			return req, err
		}
		req.Swaps = append(req.Swaps, s)
	}

	return req, nil
}

func parseSwap(raw string) (sequence.Swap, error) {
	left, right, ok := strings.Cut(raw, ":")
	if !ok {
		return sequence.Swap{}, apperrors.NewInvalidArgumentError("swap %q must be written as i:j", raw)
	}
	i, err1 := strconv.Atoi(strings.TrimSpace(left))
	j, err2 := strconv.Atoi(strings.TrimSpace(right))
	if err1 != nil || err2 != nil {
		return sequence.Swap{}, apperrors.NewInvalidArgumentError("swap %q must name two integer positions", raw)
	}
	return sequence.Swap{A: i, B: j}, nil
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ", ")
}
