package totp

import (
	"fmt"
	"os"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/urfave/cli/v2"

	"github.com/jonwraymond/customs/auth"
)

func Cmd() *cli.Command {
	return &cli.Command{
		Name:  "totp",
		Usage: "Work with time-based one-time passwords",
		Subcommands: []*cli.Command{
			enrollCmd(),
			codeCmd(),
		},
	}
}

func enrollCmd() *cli.Command {
	issuer := "customs"
	var account string
	var qrPath string
	return &cli.Command{
		Name:  "enroll",
		Usage: "Generate a new secret and provisioning URL",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "issuer",
				Usage:       "Issuer shown by authenticator apps",
				Destination: &issuer,
				Value:       issuer,
			},
			&cli.StringFlag{
				Name:        "account",
				Aliases:     []string{"u", "user"},
				Usage:       "Account name shown by authenticator apps",
				Destination: &account,
				Required:    true,
			},
			&cli.StringFlag{
				Name:        "qr",
				Usage:       "Write the provisioning URL as a PNG QR code to this file",
				Destination: &qrPath,
			},
		},
		Action: func(ctx *cli.Context) error {
			enrollment, err := auth.GenerateTOTPSecret(issuer, account)
			if err != nil {
				return err
			}
			if qrPath != "" {
				png, err := enrollment.QRCode(256, 256)
				if err != nil {
					return err
				}
				if err := os.WriteFile(qrPath, png, 0o600); err != nil {
					return err
				}
			}
			_, err = fmt.Fprintf(ctx.App.Writer, "secret: %s\nurl: %s\n", enrollment.Secret(), enrollment.URL())
			return err
		},
	}
}

func codeCmd() *cli.Command {
	var secret string
	return &cli.Command{
		Name:  "code",
		Usage: "Print the current code for a secret",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "secret",
				Usage:       "Base32 secret",
				EnvVars:     []string{"CUSTOMS_TOTP_SECRET"},
				Destination: &secret,
				Required:    true,
			},
		},
		Action: func(ctx *cli.Context) error {
			code, err := totp.GenerateCode(secret, time.Now())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(ctx.App.Writer, code)
			return err
		},
	}
}
