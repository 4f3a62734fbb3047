package users

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/jonwraymond/customs/config"
	"github.com/jonwraymond/customs/internal/cmdflags"
	"github.com/jonwraymond/customs/internal/userstore"
)

func Cmd() *cli.Command {
	var configPath string
	var store *userstore.Store
	return &cli.Command{
		Name:  "users",
		Usage: "Manage the user database",
		Flags: []cli.Flag{
			cmdflags.Config(&configPath),
		},
		Before: func(ctx *cli.Context) error {
			cfg, err := config.Load(ctx.Context, configPath)
			if err != nil {
				return err
			}
			store, err = userstore.Open(ctx.Context, cfg.Users.Database, userstore.Options{})
			return err
		},
		After: func(*cli.Context) error {
			if store == nil {
				return nil
			}
			return store.Close()
		},
		Subcommands: []*cli.Command{
			addCmd(&store),
			passwdCmd(&store),
			apikeyCmd(&store),
			revokeCmd(&store),
		},
	}
}

func readPassword() (string, error) {
	sc := bufio.NewScanner(os.Stdin)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return "", err
		}
	}
	password := strings.TrimSpace(sc.Text())
	if len(password) == 0 {
		return "", errors.New("missing password from stdin")
	}
	return password, nil
}

func usernameFlag(out *string) cli.Flag {
	return &cli.StringFlag{
		Name:        "username",
		Aliases:     []string{"u", "user"},
		Usage:       "Name of the user",
		Destination: out,
		Required:    true,
	}
}

func addCmd(store **userstore.Store) *cli.Command {
	var username string
	var email string
	return &cli.Command{
		Name:  "add",
		Usage: "Register a new user (password is read from stdin)",
		Flags: []cli.Flag{
			usernameFlag(&username),
			&cli.StringFlag{
				Name:        "email",
				Usage:       "Email address of the user",
				Destination: &email,
			},
		},
		Action: func(ctx *cli.Context) error {
			password, err := readPassword()
			if err != nil {
				return err
			}
			u, err := (*store).AddUser(ctx.Context, username, password, email)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(ctx.App.Writer, "created user %s\n", u.Username)
			return err
		},
	}
}

func passwdCmd(store **userstore.Store) *cli.Command {
	var username string
	return &cli.Command{
		Name:  "passwd",
		Usage: "Replace a user's password (password is read from stdin)",
		Flags: []cli.Flag{usernameFlag(&username)},
		Action: func(ctx *cli.Context) error {
			password, err := readPassword()
			if err != nil {
				return err
			}
			return (*store).SetPassword(ctx.Context, username, password)
		},
	}
}

func apikeyCmd(store **userstore.Store) *cli.Command {
	var username string
	var ttl time.Duration
	return &cli.Command{
		Name:  "apikey",
		Usage: "Issue an API key for a user. The key is printed once and only its hash is stored",
		Flags: []cli.Flag{
			usernameFlag(&username),
			&cli.DurationFlag{
				Name:        "ttl",
				Usage:       "Key lifetime, 0 never expires",
				Destination: &ttl,
			},
		},
		Action: func(ctx *cli.Context) error {
			id, key, err := (*store).AddAPIKey(ctx.Context, username, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(ctx.App.Writer, "id: %s\nkey: %s\n", id, key)
			return err
		},
	}
}

func revokeCmd(store **userstore.Store) *cli.Command {
	var id string
	return &cli.Command{
		Name:  "revoke",
		Usage: "Revoke an API key by id",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "id",
				Usage:       "Key id printed by apikey",
				Destination: &id,
				Required:    true,
			},
		},
		Action: func(ctx *cli.Context) error {
			return (*store).RevokeAPIKey(ctx.Context, id)
		},
	}
}
