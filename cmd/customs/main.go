package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/jonwraymond/customs/cmd/customs/serve"
	"github.com/jonwraymond/customs/cmd/customs/token"
	"github.com/jonwraymond/customs/cmd/customs/totp"
	"github.com/jonwraymond/customs/cmd/customs/users"
)

func main() {
	app := &cli.App{
		Name:  "customs",
		Usage: "Authentication gateway for HTTP services",
		Commands: []*cli.Command{
			serve.Cmd(),
			users.Cmd(),
			token.Cmd(),
			totp.Cmd(),
		},
	}
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	err := app.RunContext(ctx, os.Args)
	if err != nil {
		log.Error().Err(err).Msg("Application failed")
		os.Exit(1)
	}
}
