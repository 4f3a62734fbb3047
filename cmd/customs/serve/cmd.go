package serve

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/jonwraymond/customs/config"
	"github.com/jonwraymond/customs/internal/cmdflags"
	"github.com/jonwraymond/customs/internal/httpserver"
	"github.com/jonwraymond/customs/internal/logutil"
	"github.com/jonwraymond/customs/internal/server"
)

func Cmd() *cli.Command {
	var configPath string
	var pretty bool
	var addr string
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the customs HTTP server",
		Flags: []cli.Flag{
			cmdflags.Config(&configPath),
			cmdflags.Pretty(&pretty),
			&cli.StringFlag{
				Name:        "bind",
				Usage:       "Address to bind, overrides server.addr",
				Destination: &addr,
			},
		},
		Action: func(ctx *cli.Context) error {
			cfg, err := config.Load(ctx.Context, configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			logger := logutil.New(os.Stderr, cfg.Observability.Logging.Level, pretty)
			if pretty {
				cfg.Observability.Logging.Writer = zerolog.ConsoleWriter{Out: os.Stderr}
			}
			appCtx := logutil.WithLogger(ctx.Context, logger)

			srv, err := server.New(appCtx, cfg, server.Options{})
			if err != nil {
				return err
			}
			defer func() {
				if err := srv.Close(context.WithoutCancel(ctx.Context)); err != nil {
					logger.Error().Err(err).Msg("Unable to release resources")
				}
			}()

			return httpserver.Serve(appCtx, httpserver.Config{
				Addr:            cfg.Server.Addr,
				ReadTimeout:     cfg.Server.ReadTimeout,
				WriteTimeout:    cfg.Server.WriteTimeout,
				ShutdownTimeout: cfg.Server.ShutdownTimeout,
			}, srv.Handler())
		},
	}
}
