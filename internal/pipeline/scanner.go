package pipeline

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/zsiec/framecheck/internal/errors"
	"github.com/zsiec/framecheck/internal/logger"
	"github.com/zsiec/framecheck/internal/metrics"
	"github.com/zsiec/framecheck/internal/payload"
	"github.com/zsiec/framecheck/internal/reconcile"
	"github.com/zsiec/framecheck/internal/render"
	"github.com/zsiec/framecheck/internal/report"
	"github.com/zsiec/framecheck/internal/video"
)

// payload error reason for frames the QR reader itself rejected
const reasonScanError = "scan_error"

// ScanResult is the outcome of scanning one video.
type ScanResult struct {
	RunID         string
	Input         string
	FramesScanned int
	DecodeErrors  int
	Observed      []payload.Payload
	Report        *reconcile.Report
	ScannedAt     time.Time
	Duration      time.Duration
}

// Summary packages the result for rendering or publishing.
func (r *ScanResult) Summary() *report.Summary {
	return &report.Summary{
		RunID:         r.RunID,
		Input:         r.Input,
		ScannedAt:     r.ScannedAt,
		FramesScanned: r.FramesScanned,
		DecodeErrors:  r.DecodeErrors,
		Report:        *r.Report,
	}
}

// Scanner reads a video frame by frame and reconciles the payloads it finds.
type Scanner struct {
	open     video.Opener
	scanner  render.Scanner
	limits   reconcile.Options
	logger   logger.Logger
	newRunID func() string
	now      func() time.Time
}

// NewScanner creates a scanner.
func NewScanner(open video.Opener, scanner render.Scanner, log logger.Logger) *Scanner {
	return &Scanner{
		open:     open,
		scanner:  scanner,
		logger:   logger.WithComponent(log, "scanner"),
		newRunID: uuid.NewString,
		now:      time.Now,
	}
}

// WithMaxTotalFrames bounds the frame count a scanned sync record may declare.
// 0 keeps reconcile.DefaultMaxTotalFrames.
func (s *Scanner) WithMaxTotalFrames(n int) *Scanner {
	s.limits.MaxTotalFrames = n
	return s
}

// Run scans path. Frames that cannot be read or decoded are logged, counted
// and skipped. EmptyInput and MissingSyncFrame abort the analysis.
func (s *Scanner) Run(ctx context.Context, path string) (*ScanResult, error) {
	start := time.Now()

	if path == "" {
		return nil, apperrors.NewInvalidArgumentError("input video path must not be empty")
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, apperrors.NewInvalidArgumentError("input video %s does not exist", path)
	}
	if info.IsDir() {
		return nil, apperrors.NewInvalidArgumentError("input video %s is a directory", path)
	}

	result := &ScanResult{
		RunID:     s.newRunID(),
		Input:     path,
		ScannedAt: s.now().UTC(),
	}
	log := s.logger.WithFields(map[string]interface{}{"run_id": result.RunID, "input": path})
	log.Info("Scanning QR video")

	if err := s.collect(ctx, path, result, log); err != nil {
		return nil, err
	}

	rep, err := reconcile.ReconcileWith(result.Observed, s.limits)
	if err != nil {
		log.WithError(err).Error("Reconciliation aborted")
		return nil, err
	}
	result.Report = rep
	result.Duration = time.Since(start)

	metrics.SetReconciliation(rep.ExpectedTotalFrames, len(rep.Missing), len(rep.OutOfOrder))
	for _, a := range rep.Anomalies {
		metrics.IncrementAnomaly(string(a.Kind))
		log.WithFields(map[string]interface{}{
			"kind":        a.Kind,
			"position":    a.Position,
			"frame_index": a.FrameIndex,
		}).Warn("Anomalous frame record")
	}

	log.WithFields(map[string]interface{}{
		"frames_scanned": result.FramesScanned,
		"decode_errors":  result.DecodeErrors,
		"expected":       rep.ExpectedTotalFrames,
		"missing":        len(rep.Missing),
		"out_of_order":   len(rep.OutOfOrder),
		"anomalies":      len(rep.Anomalies),
		"duration":       result.Duration,
	}).Info("Scan complete")

	return result, nil
}

func (s *Scanner) collect(ctx context.Context, path string, result *ScanResult, log logger.Logger) error {
	r, err := s.open(path)
	if err != nil {
		return apperrors.WrapIOError(err, "failed to open input video")
	}
	defer r.Close()

	frameLog := logger.NewFrameLogger(log)

	for r.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}

		frame := result.FramesScanned
		result.FramesScanned++

		codes, err := s.scanner.Scan(r.Frame())
		if err != nil {
			result.DecodeErrors++
			metrics.RecordFrameScanned(0)
			metrics.IncrementPayloadError(reasonScanError)
			frameLog.WarnWithCategory(logger.CategoryPayloadError, "Unreadable QR code", map[string]interface{}{
				"frame": frame,
				"error": err.Error(),
			})
			continue
		}
		metrics.RecordFrameScanned(len(codes))

		if len(codes) == 0 {
			frameLog.DebugWithCategory(logger.CategoryFrameScan, "No QR code in frame", map[string]interface{}{
				"frame": frame,
			})
		}

		for _, data := range codes {
			p, err := payload.Decode(data)
			if err != nil {
				result.DecodeErrors++
				reason := string(payload.Malformed)
				var de *payload.DecodeError
				if errors.As(err, &de) {
					reason = string(de.Reason)
				}
				metrics.IncrementPayloadError(reason)
				frameLog.WarnWithCategory(logger.CategoryPayloadError, "Skipping undecodable payload", map[string]interface{}{
					"frame":  frame,
					"reason": reason,
					"data":   string(data),
				})
				continue
			}

			metrics.IncrementPayloadDecoded()
			result.Observed = append(result.Observed, p)
			frameLog.DebugWithCategory(logger.CategoryFrameScan, "Decoded payload", map[string]interface{}{
				"frame":   frame,
				"payload": p.String(),
			})
		}
	}

	if err := r.Err(); err != nil {
		return apperrors.WrapIOError(err, "failed to read input video")
	}
	return nil
}
