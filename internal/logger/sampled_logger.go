package logger

import (
	"github.com/sirupsen/logrus"
)

// SampledLogger rate-limits high-volume per-frame log categories by count.
// A category logs its first burst messages and then every Nth message after that.
type SampledLogger struct {
	base     Logger
	samplers map[string]*LogSampler
}

// LogSampler handles sampling for a specific log category
type LogSampler struct {
	name  string
	burst int64
	every int64

	total   int64
	sampled int64
	dropped int64
}

// SamplerStats holds statistics for a log sampler
type SamplerStats struct {
	Name            string `json:"name"`
	TotalMessages   int64  `json:"total_messages"`
	SampledMessages int64  `json:"sampled_messages"`
	DroppedMessages int64  `json:"dropped_messages"`
}

// Per-frame log categories
const (
	CategoryFrameScan    = "frame_scan"
	CategoryPayloadError = "payload_error"
	CategoryFrameRender  = "frame_render"
)

// NewSampledLogger creates a new sampled logger
func NewSampledLogger(base Logger) *SampledLogger {
	return &SampledLogger{
		base:     base,
		samplers: make(map[string]*LogSampler),
	}
}

// NewFrameLogger creates a sampled logger pre-configured for per-frame events.
func NewFrameLogger(base Logger) *SampledLogger {
	return NewSampledLogger(base).
		WithSampler(CategoryFrameScan, 10, 100).
		WithSampler(CategoryFrameRender, 10, 100).
		// Decode failures are the interesting ones; keep more of them
		WithSampler(CategoryPayloadError, 25, 10)
}

// WithSampler adds a sampler configuration for a specific category
func (s *SampledLogger) WithSampler(name string, burst, every int) *SampledLogger {
	if every < 1 {
		every = 1
	}
	s.samplers[name] = &LogSampler{
		name:  name,
		burst: int64(burst),
		every: int64(every),
	}
	return s
}

func (s *SampledLogger) shouldLog(category string) bool {
	sampler, exists := s.samplers[category]
	if !exists {
		return true
	}

	sampler.total++
	if sampler.total <= sampler.burst || (sampler.total-sampler.burst)%sampler.every == 0 {
		sampler.sampled++
		return true
	}

	sampler.dropped++
	return false
}

// CategoryLog logs msg at level if the category sampler lets it through.
func (s *SampledLogger) CategoryLog(level logrus.Level, category, msg string, fields map[string]interface{}) {
	if !s.shouldLog(category) {
		return
	}

	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["category"] = category
	if sampler, ok := s.samplers[category]; ok && sampler.dropped > 0 {
		fields["_sampling_dropped"] = sampler.dropped
	}
	s.base.WithFields(fields).Log(level, msg)
}

// DebugWithCategory logs a sampled debug message.
func (s *SampledLogger) DebugWithCategory(category, msg string, fields map[string]interface{}) {
	s.CategoryLog(logrus.DebugLevel, category, msg, fields)
}

// WarnWithCategory logs a sampled warning message.
func (s *SampledLogger) WarnWithCategory(category, msg string, fields map[string]interface{}) {
	s.CategoryLog(logrus.WarnLevel, category, msg, fields)
}

// GetSamplerStats returns statistics for all samplers
func (s *SampledLogger) GetSamplerStats() map[string]SamplerStats {
	stats := make(map[string]SamplerStats, len(s.samplers))
	for name, sampler := range s.samplers {
		stats[name] = SamplerStats{
			Name:            name,
			TotalMessages:   sampler.total,
			SampledMessages: sampler.sampled,
			DroppedMessages: sampler.dropped,
		}
	}
	return stats
}

// Implement Logger interface for SampledLogger
func (s *SampledLogger) WithFields(fields map[string]interface{}) Logger {
	return &SampledLogger{base: s.base.WithFields(fields), samplers: s.samplers}
}

func (s *SampledLogger) WithField(key string, value interface{}) Logger {
	return &SampledLogger{base: s.base.WithField(key, value), samplers: s.samplers}
}

func (s *SampledLogger) WithError(err error) Logger {
	return &SampledLogger{base: s.base.WithError(err), samplers: s.samplers}
}

func (s *SampledLogger) Debug(args ...interface{})                   { s.base.Debug(args...) }
func (s *SampledLogger) Info(args ...interface{})                    { s.base.Info(args...) }
func (s *SampledLogger) Warn(args ...interface{})                    { s.base.Warn(args...) }
func (s *SampledLogger) Error(args ...interface{})                   { s.base.Error(args...) }
func (s *SampledLogger) Log(level logrus.Level, args ...interface{}) { s.base.Log(level, args...) }
func (s *SampledLogger) Debugf(format string, args ...interface{})   { s.base.Debugf(format, args...) }
func (s *SampledLogger) Infof(format string, args ...interface{})    { s.base.Infof(format, args...) }
func (s *SampledLogger) Warnf(format string, args ...interface{})    { s.base.Warnf(format, args...) }
func (s *SampledLogger) Errorf(format string, args ...interface{})   { s.base.Errorf(format, args...) }
