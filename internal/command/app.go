// Package command builds the framecheck command line: generate, scan, report,
// serve, preflight and version.
package command

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/zsiec/framecheck/internal/config"
	apperrors "github.com/zsiec/framecheck/internal/errors"
	"github.com/zsiec/framecheck/internal/logger"
	"github.com/zsiec/framecheck/internal/metrics"
	"github.com/zsiec/framecheck/internal/render"
	"github.com/zsiec/framecheck/internal/video"
	"github.com/zsiec/framecheck/pkg/version"
)

// Options replaces the adapters and streams an App runs with. Zero fields
// use the ffmpeg and QR implementations and the process's stdout/stderr.
type Options struct {
	Stdout   io.Writer
	Stderr   io.Writer
	Create   video.Creator
	Open     video.Opener
	Renderer render.Renderer
	Scanner  render.Scanner
}

// App is one invocation of the command line.
type App struct {
	opts Options
	cfg  *config.Config
	log  *logrus.Logger
}

// New creates an App.
func New(opts Options) *App {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Create == nil {
		opts.Create = video.Create
	}
	if opts.Open == nil {
		opts.Open = video.Open
	}
	return &App{opts: opts}
}

// Run executes args (including the program name) and returns the process
// exit code. Errors are printed to stdout as "Error: <message>".
func (a *App) Run(ctx context.Context, args []string) int {
	code := apperrors.ExitOK
	handled := false

	app := a.build()
	app.ExitErrHandler = func(_ *cli.Context, err error) {
		if err == nil || handled {
			return
		}
		handled = true
		code = a.errorHandler().HandleError(err)
	}

	if err := app.RunContext(ctx, args); err != nil && !handled {
		code = a.errorHandler().HandleError(err)
	}
	return code
}

func (a *App) build() *cli.App {
	return &cli.App{
		Name:            "framecheck",
		Usage:           "Generate QR-coded test videos and check scanned videos for lost or reordered frames",
		Version:         version.GetInfo().Short(),
		Writer:          a.opts.Stdout,
		ErrWriter:       a.opts.Stderr,
		HideHelpCommand: true,
		OnUsageError:    usageError,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML configuration file",
				EnvVars: []string{"FRAMECHECK_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level: debug, info, warn, error",
			},
		},
		Before: a.setup,
		After:  a.finish,
		Commands: []*cli.Command{
			a.generateCommand(),
			a.scanCommand(),
			a.reportCommand(),
			a.serveCommand(),
			a.preflightCommand(),
			versionCommand(),
		},
	}
}

// usageError turns flag parsing failures into argument errors.
func usageError(_ *cli.Context, err error, _ bool) error {
	return apperrors.NewInvalidArgumentError("%v", err)
}

func (a *App) setup(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return apperrors.NewInvalidArgumentError("%v", err)
	}

	if level := c.String("log-level"); level != "" {
		cfg.Logging.Level = level
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return apperrors.NewInvalidArgumentError("%v", err)
	}
	if cfg.Logging.Output == "stderr" {
		log.SetOutput(a.opts.Stderr)
	}

	a.cfg = cfg
	a.log = log
	return nil
}

// finish writes the metrics textfile. Failures are logged only.
func (a *App) finish(_ *cli.Context) error {
	if a.cfg == nil {
		return nil
	}
	if err := metrics.WriteTextfile(a.cfg.Metrics.Textfile); err != nil {
		a.log.WithError(err).Warn("Failed to write metrics")
	}
	return nil
}

func (a *App) errorHandler() *apperrors.ErrorHandler {
	log := a.log
	if log == nil {
		log = logrus.New()
		log.SetOutput(a.opts.Stderr)
	}
	return apperrors.NewErrorHandler(log, a.opts.Stdout)
}

func (a *App) commandLogger(command string) logger.Logger {
	return logger.ForCommand(a.log, command)
}

// observe records a command's duration under the outcome err implies.
func observe(command string, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
		if appErr, ok := apperrors.GetAppError(err); ok {
			outcome = string(appErr.Type)
		}
	}
	metrics.ObserveRun(command, outcome, time.Since(start))
}

func (a *App) redisClient() *redis.Client {
	rc := a.cfg.Report.Redis
	return redis.NewClient(&redis.Options{
		Addr:         rc.Addr,
		Password:     rc.Password,
		DB:           rc.DB,
		DialTimeout:  a.redisTimeout(),
		ReadTimeout:  a.redisTimeout(),
		WriteTimeout: a.redisTimeout(),
	})
}

func (a *App) redisTimeout() time.Duration {
	if t := a.cfg.Report.Redis.Timeout; t > 0 {
		return t
	}
	return 3 * time.Second
}
