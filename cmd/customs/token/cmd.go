package token

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/jonwraymond/customs/auth"
	"github.com/jonwraymond/customs/config"
	"github.com/jonwraymond/customs/internal/cmdflags"
	"github.com/jonwraymond/customs/internal/server"
)

func Cmd() *cli.Command {
	var configPath string
	var cfg *config.Config
	return &cli.Command{
		Name:  "token",
		Usage: "Sign and inspect bearer tokens with the configured key",
		Flags: []cli.Flag{
			cmdflags.Config(&configPath),
		},
		Before: func(ctx *cli.Context) error {
			var err error
			cfg, err = config.Load(ctx.Context, configPath)
			return err
		},
		Subcommands: []*cli.Command{
			signCmd(&cfg),
			verifyCmd(&cfg),
		},
	}
}

func codec(cfg *config.Config) (*auth.TokenCodec, error) {
	var keys *auth.JWKSKeyProvider
	if cfg.Token.JWKSURL != "" {
		keys = auth.NewJWKSKeyProvider(auth.JWKSConfig{URL: cfg.Token.JWKSURL})
	}
	return server.NewTokenCodec(cfg.Token, keys)
}

func signCmd(cfg **config.Config) *cli.Command {
	var subject string
	var claims cli.StringSlice
	return &cli.Command{
		Name:  "sign",
		Usage: "Print a token for the given user",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "id",
				Aliases:     []string{"u", "user"},
				Usage:       "Identity id carried by the token",
				Destination: &subject,
				Required:    true,
			},
			&cli.StringSliceFlag{
				Name:        "claim",
				Usage:       "Extra identity field as key=value, may be repeated",
				Destination: &claims,
			},
		},
		Action: func(ctx *cli.Context) error {
			c, err := codec(*cfg)
			if err != nil {
				return err
			}
			id := auth.Identity{"id": subject}
			for _, kv := range claims.Value() {
				k, v, ok := strings.Cut(kv, "=")
				if !ok || k == "" {
					return fmt.Errorf("invalid claim %q, expected key=value", kv)
				}
				id[k] = v
			}
			signed, err := c.Sign(ctx.Context, id)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(ctx.App.Writer, signed)
			return err
		},
	}
}

func verifyCmd(cfg **config.Config) *cli.Command {
	return &cli.Command{
		Name:      "verify",
		Usage:     "Verify a token and print the identity it carries (token is read from stdin when not given)",
		ArgsUsage: "[token]",
		Action: func(ctx *cli.Context) error {
			raw := ctx.Args().First()
			if raw == "" {
				sc := bufio.NewScanner(os.Stdin)
				if !sc.Scan() {
					if err := sc.Err(); err != nil {
						return err
					}
				}
				raw = strings.TrimSpace(sc.Text())
			}
			if raw == "" {
				return errors.New("missing token")
			}

			c, err := codec(*cfg)
			if err != nil {
				return err
			}
			id, err := c.Verify(ctx.Context, raw)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(ctx.App.Writer)
			enc.SetIndent("", "  ")
			return enc.Encode(id)
		},
	}
}
