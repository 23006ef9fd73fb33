package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	apperrors "github.com/zsiec/framecheck/internal/errors"
	"github.com/zsiec/framecheck/internal/health"
	"github.com/zsiec/framecheck/internal/logger"
	"github.com/zsiec/framecheck/internal/report"
	"github.com/zsiec/framecheck/pkg/version"
)

func (a *App) preflightCommand() *cli.Command {
	return &cli.Command{
		Name:         "preflight",
		Usage:        "Check that ffmpeg, ffprobe and the report store are usable",
		OnUsageError: usageError,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: text, json, yaml",
				Value:   "text",
			},
		},
		Action: a.preflightAction,
	}
}

type preflightResult struct {
	Status health.Status   `json:"status" yaml:"status"`
	Checks []*health.Check `json:"checks" yaml:"checks"`
}

func (a *App) preflightAction(c *cli.Context) error {
	format, err := report.ParseFormat(c.String("format"))
	if err != nil {
		return apperrors.NewInvalidArgumentError("%v", err)
	}

	log := a.commandLogger("preflight")
	m := a.toolChecks(log, a.cfg.Video.Codec)
	if a.cfg.Report.Redis.Addr != "" {
		client := a.redisClient()
		defer client.Close()
		m.RegisterOptional(health.NewRedisChecker(client, a.cfg.Report.Redis.KeyPrefix))
	}

	results := m.RunChecks(c.Context)
	res := preflightResult{Status: health.OverallStatus(results), Checks: results}

	if err := writePreflight(c.App.Writer, res, format); err != nil {
		return apperrors.WrapIOError(err, "failed to write preflight result")
	}

	if failed := health.FirstFailure(results); failed != nil {
		return apperrors.NewDependencyMissingError(failed.Name, errors.New(failed.Message))
	}
	return nil
}

func writePreflight(w io.Writer, res preflightResult, format report.Format) error {
	switch format {
	case report.FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	case report.FormatYAML:
		return yaml.NewEncoder(w).Encode(res)
	}

	r := lipgloss.NewRenderer(w)
	styles := map[health.Status]lipgloss.Style{
		health.StatusOK:       r.NewStyle().Foreground(lipgloss.Color("10")),
		health.StatusDegraded: r.NewStyle().Foreground(lipgloss.Color("11")),
		health.StatusDown:     r.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
	}

	for _, check := range res.Checks {
		status := styles[check.Status].Render(fmt.Sprintf("%-8s", check.Status))
		line := fmt.Sprintf("%-8s %s", check.Name, status)
		if check.Message != "" {
			line += " " + check.Message
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "Overall: %s\n", styles[res.Status].Render(string(res.Status)))
	return err
}

// toolChecks registers the ffmpeg and ffprobe checks. Vidio needs both.
func (a *App) toolChecks(log logger.Logger, encoders ...string) *health.Manager {
	pf := a.cfg.Preflight
	m := health.NewManager(log, pf.Timeout)
	m.Register(health.NewFFmpegChecker(pf.FFmpegPath, pf.Timeout, encoders...))
	m.Register(health.NewFFprobeChecker(pf.FFprobePath, pf.Timeout))
	return m
}

// requireTools fails fast when preflight is enabled and a tool is missing.
func (a *App) requireTools(ctx context.Context, log logger.Logger, encoders ...string) error {
	if !a.cfg.Preflight.Enabled {
		return nil
	}

	results := a.toolChecks(log, encoders...).RunChecks(ctx)
	if failed := health.FirstFailure(results); failed != nil {
		return apperrors.NewDependencyMissingError(failed.Name, errors.New(failed.Message))
	}
	return nil
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:         "version",
		Usage:        "Show version information",
		OnUsageError: usageError,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: text, json",
				Value:   "text",
			},
		},
		Action: func(c *cli.Context) error {
			info := version.GetInfo()
			if c.String("format") == "json" {
				enc := json.NewEncoder(c.App.Writer)
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}
			_, err := fmt.Fprintln(c.App.Writer, info.String())
			return err
		},
	}
}
