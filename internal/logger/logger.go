package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/natefinch/lumberjack"
	"github.com/sirupsen/logrus"

	"github.com/zsiec/framecheck/internal/config"
	"github.com/zsiec/framecheck/pkg/version"
)

// Logger is the structured logging surface the rest of framecheck depends on.
type Logger interface {
	WithFields(fields map[string]interface{}) Logger
	WithField(key string, value interface{}) Logger
	WithError(err error) Logger
	Debug(args ...interface{})
	Info(args ...interface{})
	Warn(args ...interface{})
	Error(args ...interface{})
	Log(level logrus.Level, args ...interface{})
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Fields is a type alias for logrus.Fields for convenience
type Fields = logrus.Fields

// LogrusAdapter implements Logger on a logrus entry.
type LogrusAdapter struct {
	entry *logrus.Entry
}

func NewLogrusAdapter(entry *logrus.Entry) Logger {
	return &LogrusAdapter{entry: entry}
}

func (l *LogrusAdapter) WithFields(fields map[string]interface{}) Logger {
	return &LogrusAdapter{entry: l.entry.WithFields(fields)}
}

func (l *LogrusAdapter) WithField(key string, value interface{}) Logger {
	return &LogrusAdapter{entry: l.entry.WithField(key, value)}
}

func (l *LogrusAdapter) WithError(err error) Logger {
	return &LogrusAdapter{entry: l.entry.WithError(err)}
}

func (l *LogrusAdapter) Debug(args ...interface{})                   { l.entry.Debug(args...) }
func (l *LogrusAdapter) Info(args ...interface{})                    { l.entry.Info(args...) }
func (l *LogrusAdapter) Warn(args ...interface{})                    { l.entry.Warn(args...) }
func (l *LogrusAdapter) Error(args ...interface{})                   { l.entry.Error(args...) }
func (l *LogrusAdapter) Log(level logrus.Level, args ...interface{}) { l.entry.Log(level, args...) }
func (l *LogrusAdapter) Debugf(format string, args ...interface{})   { l.entry.Debugf(format, args...) }
func (l *LogrusAdapter) Infof(format string, args ...interface{})    { l.entry.Infof(format, args...) }
func (l *LogrusAdapter) Warnf(format string, args ...interface{})    { l.entry.Warnf(format, args...) }
func (l *LogrusAdapter) Errorf(format string, args ...interface{})   { l.entry.Errorf(format, args...) }

// New builds the process logger from cfg. Output is stdout, stderr or a
// file path rotated by lumberjack.
func New(cfg *config.LoggingConfig) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	out, err := output(cfg)
	if err != nil {
		return nil, err
	}

	log := logrus.New()
	log.SetLevel(level)
	log.SetFormatter(formatter(cfg.Format))
	log.SetOutput(out)
	return log, nil
}

func formatter(format string) logrus.Formatter {
	if format == "json" {
		return &logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime: "timestamp",
				logrus.FieldKeyMsg:  "message",
			},
		}
	}
	return &logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05.000",
	}
}

func output(cfg *config.LoggingConfig) (io.Writer, error) {
	switch cfg.Output {
	case "stdout":
		return os.Stdout, nil
	case "stderr", "":
		return os.Stderr, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Output), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	return &lumberjack.Logger{
		Filename:   cfg.Output,
		MaxSize:    cfg.MaxSize, // megabytes
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge, // days
		Compress:   true,
	}, nil
}

// ForCommand returns a Logger carrying the service, version and command fields.
// The pipelines add run_id once they have allocated one.
func ForCommand(logger *logrus.Logger, command string) Logger {
	return NewLogrusAdapter(logger.WithFields(logrus.Fields{
		"service": "framecheck",
		"version": version.GetInfo().Version,
		"command": command,
	}))
}

// WithComponent creates a logger with component field.
func WithComponent(log Logger, component string) Logger {
	return log.WithField("component", component)
}
