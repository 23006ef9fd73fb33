package command

import (
	"github.com/urfave/cli/v2"

	apperrors "github.com/zsiec/framecheck/internal/errors"
	"github.com/zsiec/framecheck/internal/health"
	"github.com/zsiec/framecheck/internal/report"
	"github.com/zsiec/framecheck/internal/server"
)

func (a *App) serveCommand() *cli.Command {
	return &cli.Command{
		Name:         "serve",
		Usage:        "Serve published reports, health and metrics over HTTP",
		OnUsageError: usageError,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (default from config)",
			},
		},
		Action: a.serveAction,
	}
}

// serveAction runs until the command context is cancelled.
func (a *App) serveAction(c *cli.Context) error {
	rc := a.cfg.Report.Redis
	if rc.Addr == "" {
		return apperrors.NewInvalidArgumentError("no report store configured (set report.redis.addr)")
	}
	if c.Args().Len() > 0 {
		return apperrors.NewInvalidArgumentError("unexpected argument %q", c.Args().First())
	}

	srvCfg := a.cfg.Server
	if c.IsSet("addr") {
		srvCfg.Addr = c.String("addr")
	}

	log := a.commandLogger("serve")

	client := a.redisClient()
	defer client.Close()

	// The server only reads reports, so ffmpeg is not a requirement here.
	mgr := health.NewManager(log, a.cfg.Preflight.Timeout)
	mgr.Register(health.NewRedisChecker(client, rc.KeyPrefix))
	mgr.RegisterOptional(health.NewFFmpegChecker(a.cfg.Preflight.FFmpegPath, a.cfg.Preflight.Timeout))

	store := report.NewRedisStore(client, rc.KeyPrefix, rc.TTL)
	return server.New(&srvCfg, a.log, store, mgr).Start(c.Context)
}
