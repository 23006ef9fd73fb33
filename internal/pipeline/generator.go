// Package pipeline wires the sequence, rendering, video and reconciliation
// packages into the two runs the CLI exposes: generating a test video and
// scanning one back.
package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/zsiec/framecheck/internal/config"
	apperrors "github.com/zsiec/framecheck/internal/errors"
	"github.com/zsiec/framecheck/internal/logger"
	"github.com/zsiec/framecheck/internal/metrics"
	"github.com/zsiec/framecheck/internal/payload"
	"github.com/zsiec/framecheck/internal/render"
	"github.com/zsiec/framecheck/internal/sequence"
	"github.com/zsiec/framecheck/internal/video"
)

// GenerateRequest describes one test video.
type GenerateRequest struct {
	TotalFrames  int
	OutputPath   string
	Scramble     int
	DeleteRandom int
	Swaps        []sequence.Swap
	Seed         uint64  // 0 picks one from the clock
	FPS          float64 // 0 uses the configured rate
	KeepFrames   bool
}

// GenerateResult describes what was written.
type GenerateResult struct {
	RunID         string          `json:"run_id"`
	OutputPath    string          `json:"output_path"`
	Seed          uint64          `json:"seed"`
	FramesWritten int             `json:"frames_written"`
	VideoWritten  bool            `json:"video_written"`
	Swaps         []sequence.Swap `json:"swaps,omitempty"`
	Deleted       []int           `json:"deleted_positions,omitempty"`
	FrameDir      string          `json:"frame_dir,omitempty"`
	FrameFiles    []string        `json:"frame_files,omitempty"`
	Duration      time.Duration   `json:"-"`
}

// Generator renders a frame sequence into a video.
type Generator struct {
	renderer render.Renderer
	create   video.Creator
	video    config.VideoConfig
	workDir  string
	logger   logger.Logger
	newRunID func() string
}

// NewGenerator creates a generator writing frames of cfg.Video's geometry,
// with scratch files under cfg.Generate.WorkDir.
func NewGenerator(cfg *config.Config, renderer render.Renderer, create video.Creator, log logger.Logger) *Generator {
	return &Generator{
		renderer: renderer,
		create:   create,
		video:    cfg.Video,
		workDir:  cfg.Generate.WorkDir,
		logger:   logger.WithComponent(log, "generator"),
		newRunID: uuid.NewString,
	}
}

// Validate checks req without touching the filesystem.
func (g *Generator) Validate(req GenerateRequest) error {
	if req.TotalFrames <= 0 {
		return apperrors.NewInvalidArgumentError("num_frames must be a positive integer, got %d", req.TotalFrames)
	}
	if req.Scramble < 0 || req.Scramble > req.TotalFrames {
		return apperrors.NewInvalidArgumentError(
			"scramble must be within [0, %d], got %d", req.TotalFrames, req.Scramble)
	}
	if req.DeleteRandom < 0 || req.DeleteRandom > req.TotalFrames {
		return apperrors.NewInvalidArgumentError(
			"delete_random must be within [0, %d], got %d", req.TotalFrames, req.DeleteRandom)
	}
	if req.OutputPath == "" {
		return apperrors.NewInvalidArgumentError("output path must not be empty")
	}
	if req.FPS < 0 {
		return apperrors.NewInvalidArgumentError("fps must be positive, got %g", req.FPS)
	}
	return nil
}

// Run builds the sequence, damages it as requested and writes the video.
// Argument errors are returned before anything touches the filesystem.
func (g *Generator) Run(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	start := time.Now()

	if err := g.Validate(req); err != nil {
		return nil, err
	}

	runID := g.newRunID()
	log := g.logger.WithField("run_id", runID)

	rng, seed := sequence.NewRand(req.Seed)
	result := &GenerateResult{
		RunID:      runID,
		OutputPath: req.OutputPath,
		Seed:       seed,
	}

	seq, err := g.buildSequence(req, rng, log, result)
	if err != nil {
		return nil, err
	}

	if len(seq) == 0 {
		return g.skipVideo(req, result, log, start)
	}

	fps := req.FPS
	if fps == 0 {
		fps = g.video.FPS
	}

	log.WithFields(map[string]interface{}{
		"total_frames": req.TotalFrames,
		"frames":       len(seq),
		"seed":         seed,
		"fps":          fps,
		"output":       req.OutputPath,
	}).Info("Generating QR video")

	store, err := video.NewFrameStore(filepath.Join(g.workDir, runID), req.KeepFrames)
	if err != nil {
		return nil, apperrors.WrapIOError(err, "failed to prepare frame directory")
	}
	defer func() {
		if rerr := store.Release(); rerr != nil {
			log.WithError(rerr).Warn("Failed to remove frame directory")
		}
	}()
	if req.KeepFrames {
		result.FrameDir = store.Dir()
	}

	if err := g.renderFrames(ctx, seq, store, log); err != nil {
		return nil, err
	}
	if req.KeepFrames {
		if result.FrameFiles, err = store.Files(); err != nil {
			return nil, apperrors.WrapIOError(err, "failed to list kept frames")
		}
	}

	n, err := g.writeVideo(ctx, store, req.OutputPath, fps)
	if err != nil {
		if rmErr := os.Remove(req.OutputPath); rmErr != nil && !os.IsNotExist(rmErr) {
			log.WithError(rmErr).Warn("Failed to remove partial output")
		}
		return nil, err
	}

	result.FramesWritten = n
	result.VideoWritten = true
	result.Duration = time.Since(start)
	log.WithFields(map[string]interface{}{
		"frames_written": n,
		"duration":       result.Duration,
	}).Info("QR video written")

	return result, nil
}

// skipVideo handles a sequence emptied by deletion. A container needs at
// least one frame, so no video is written and any previous output at the
// path is removed so it cannot be scanned by mistake.
func (g *Generator) skipVideo(req GenerateRequest, result *GenerateResult, log logger.Logger, start time.Time) (*GenerateResult, error) {
	err := os.Remove(req.OutputPath)
	switch {
	case err == nil:
		log.WithField("output", req.OutputPath).Warn("Removed previous output video")
	case !os.IsNotExist(err):
		return nil, apperrors.WrapIOError(err, "failed to remove previous output video")
	}

	result.Duration = time.Since(start)
	log.WithFields(map[string]interface{}{
		"total_frames": req.TotalFrames,
		"deleted":      len(result.Deleted),
	}).Warn("Every frame was deleted, no video written")
	return result, nil
}

// buildSequence applies explicit swaps, then random swaps, then deletions.
func (g *Generator) buildSequence(req GenerateRequest, rng sequence.Source, log logger.Logger, result *GenerateResult) (sequence.Sequence, error) {
	seq, err := sequence.Generate(req.TotalFrames)
	if err != nil {
		return nil, err
	}
	metrics.AddFramesGenerated(len(seq))

	if len(req.Swaps) > 0 {
		if seq, err = sequence.ApplySwaps(seq, req.Swaps); err != nil {
			return nil, err
		}
		for _, s := range req.Swaps {
			log.Infof("Switching frames %d and %d", s.A, s.B)
			metrics.IncrementTransform("swap")
		}
		result.Swaps = append(result.Swaps, req.Swaps...)
	}

	if req.Scramble > 0 {
		var swaps []sequence.Swap
		if seq, swaps, err = sequence.Shuffle(seq, req.Scramble, rng, log); err != nil {
			return nil, err
		}
		for range swaps {
			metrics.IncrementTransform("swap")
		}
		result.Swaps = append(result.Swaps, swaps...)
	}

	if req.DeleteRandom > 0 {
		if seq, result.Deleted, err = sequence.DeleteRandom(seq, req.DeleteRandom, rng, log); err != nil {
			return nil, err
		}
		for range result.Deleted {
			metrics.IncrementTransform("delete")
		}
	}

	return seq, nil
}

func (g *Generator) renderFrames(ctx context.Context, seq sequence.Sequence, store *video.FrameStore, log logger.Logger) error {
	frameLog := logger.NewFrameLogger(log)

	for i, p := range seq {
		if err := ctx.Err(); err != nil {
			return err
		}

		img, err := g.renderer.Render(payload.Encode(p))
		if err != nil {
			return apperrors.WrapInternalError(err, "failed to render frame").
				WithDetails(map[string]interface{}{"position": i, "payload": p.String()})
		}

		path, err := store.Put(img)
		if err != nil {
			return apperrors.WrapIOError(err, "failed to store frame")
		}

		metrics.IncrementFramesRendered()
		frameLog.DebugWithCategory(logger.CategoryFrameRender, "Rendered frame", map[string]interface{}{
			"position": i,
			"payload":  p.String(),
			"path":     path,
		})
	}
	return nil
}

func (g *Generator) writeVideo(ctx context.Context, store *video.FrameStore, output string, fps float64) (int, error) {
	if dir := filepath.Dir(output); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return 0, apperrors.WrapIOError(err, "failed to create output directory")
		}
	}

	w, err := g.create(output, video.WriterOptions{
		Width:   g.video.Width,
		Height:  g.video.Height,
		FPS:     fps,
		Codec:   g.video.Codec,
		Quality: g.video.Quality,
	})
	if err != nil {
		return 0, apperrors.WrapIOError(err, "failed to create output video")
	}

	n, err := video.Assemble(ctx, store, w)
	if cerr := w.Close(); err == nil && cerr != nil {
		err = cerr
	}
	if err != nil {
		if ctx.Err() != nil {
			return n, err
		}
		return n, apperrors.WrapIOError(err, "failed to write output video")
	}
	return n, nil
}
