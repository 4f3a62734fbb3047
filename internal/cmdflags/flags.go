// Package cmdflags holds flags shared by the customs subcommands.
package cmdflags

import (
	"github.com/urfave/cli/v2"
)

// Config points at the YAML configuration file. When empty, the loader
// falls back to $CUSTOMS_CONFIG and then ./customs.yaml.
func Config(out *string) cli.Flag {
	return &cli.StringFlag{
		Name:        "config",
		Aliases:     []string{"c"},
		Usage:       "Path to the configuration file",
		Destination: out,
		Value:       *out,
	}
}

// Pretty switches logs to the human friendly console format.
func Pretty(out *bool) cli.Flag {
	return &cli.BoolFlag{
		Name:        "pretty",
		Usage:       "Write human readable logs instead of JSON",
		Destination: out,
		Value:       *out,
	}
}
