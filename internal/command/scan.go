package command

import (
	"context"
	"errors"
	"time"

	"github.com/urfave/cli/v2"

	apperrors "github.com/zsiec/framecheck/internal/errors"
	"github.com/zsiec/framecheck/internal/logger"
	"github.com/zsiec/framecheck/internal/pipeline"
	"github.com/zsiec/framecheck/internal/render"
	"github.com/zsiec/framecheck/internal/report"
)

func (a *App) scanCommand() *cli.Command {
	return &cli.Command{
		Name:         "scan",
		Usage:        "Scan a QR video and report missing and out-of-order frames",
		ArgsUsage:    "<input_video>",
		OnUsageError: usageError,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: text, json, yaml (default from config)",
			},
			&cli.BoolFlag{
				Name:  "strict",
				Usage: "Fail with exit status 3 when duplicate, out-of-range or extra sync records are seen",
			},
		},
		Action: a.scanAction,
	}
}

func (a *App) scanAction(c *cli.Context) (err error) {
	start := time.Now()
	defer func() { observe("scan", start, err) }()

	args := c.Args().Slice()
	if len(args) == 0 {
		return apperrors.NewInvalidArgumentError("missing required argument input_video")
	}
	if len(args) > 1 {
		return apperrors.NewInvalidArgumentError("unexpected argument %q", args[1])
	}

	formatName := a.cfg.Scan.Format
	if c.IsSet("format") {
		formatName = c.String("format")
	}
	format, err := report.ParseFormat(formatName)
	if err != nil {
		return apperrors.NewInvalidArgumentError("%v", err)
	}

	log := a.commandLogger("scan")
	if err := a.requireTools(c.Context, log); err != nil {
		return err
	}

	scanner := a.opts.Scanner
	if scanner == nil {
		scanner = render.NewQRScanner(a.cfg.Scan.TryHarder)
	}

	result, err := pipeline.NewScanner(a.opts.Open, scanner, log).
		WithMaxTotalFrames(a.cfg.Scan.MaxTotalFrames).
		Run(c.Context, args[0])
	if err != nil {
		return err
	}

	summary := result.Summary()
	if err := report.Write(c.App.Writer, summary, format); err != nil {
		return apperrors.WrapIOError(err, "failed to write report")
	}

	a.publish(c.Context, summary, log)

	if a.cfg.Scan.Strict || c.Bool("strict") {
		return result.Report.Err()
	}
	return nil
}

// publish stores the summary when a report store is configured. Failures
// never change the verdict.
func (a *App) publish(ctx context.Context, summary *report.Summary, log logger.Logger) {
	rc := a.cfg.Report.Redis
	if rc.Addr == "" {
		return
	}

	client := a.redisClient()
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, a.redisTimeout())
	defer cancel()

	store := report.NewRedisStore(client, rc.KeyPrefix, rc.TTL)
	if err := store.Save(ctx, summary); err != nil {
		log.WithError(err).Warn("Failed to publish report")
		return
	}
	log.WithField("run_id", summary.RunID).Info("Report published")
}

func (a *App) reportCommand() *cli.Command {
	return &cli.Command{
		Name:         "report",
		Usage:        "Show a published scan report, the latest one by default",
		ArgsUsage:    "[run_id]",
		OnUsageError: usageError,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: text, json, yaml (default from config)",
			},
		},
		Action: a.reportAction,
	}
}

func (a *App) reportAction(c *cli.Context) error {
	rc := a.cfg.Report.Redis
	if rc.Addr == "" {
		return apperrors.NewInvalidArgumentError("no report store configured (set report.redis.addr)")
	}

	formatName := a.cfg.Scan.Format
	if c.IsSet("format") {
		formatName = c.String("format")
	}
	format, err := report.ParseFormat(formatName)
	if err != nil {
		return apperrors.NewInvalidArgumentError("%v", err)
	}

	client := a.redisClient()
	defer client.Close()

	ctx, cancel := context.WithTimeout(c.Context, a.redisTimeout())
	defer cancel()

	store := report.NewRedisStore(client, rc.KeyPrefix, rc.TTL)

	var summary *report.Summary
	if runID := c.Args().First(); runID != "" {
		summary, err = store.Get(ctx, runID)
	} else {
		summary, err = store.Latest(ctx)
	}
	if errors.Is(err, report.ErrNotFound) {
		return apperrors.NewInvalidArgumentError("no published report found")
	}
	if err != nil {
		return apperrors.WrapIOError(err, "failed to read report store")
	}

	if err := report.Write(c.App.Writer, summary, format); err != nil {
		return apperrors.WrapIOError(err, "failed to write report")
	}
	return nil
}
