// Package command provides the config commands.
package command

import (
	"fmt"
	"io"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/usagemesh-go/internal/cli/output"
	"github.com/yndnr/usagemesh-go/internal/infra/confloader"
	serverconfig "github.com/yndnr/usagemesh-go/internal/server/config"
)

// ConfigCommand returns the config subcommand group.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Configuration",
		Subcommands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Show the effective CLI settings",
				Action: configShow,
			},
			{
				Name:      "validate",
				Usage:     "Validate a usagemesh-server configuration file",
				ArgsUsage: "FILE",
				Action:    configValidate,
			},
		},
	}
}

func configShow(c *cli.Context) error {
	flags := ParseGlobalFlags(c)
	view := map[string]string{
		"config":  flags.Config,
		"server":  flags.Server,
		"output":  flags.Output,
		"timeout": flags.Timeout.String(),
	}
	return render(c, view, func(w io.Writer) error {
		return output.KeyValues{
			{Key: "Profile", Value: flags.Config},
			{Key: "Server", Value: flags.Server},
			{Key: "Output", Value: flags.Output},
			{Key: "Timeout", Value: flags.Timeout},
		}.Table().Render(w)
	})
}

// configValidate loads FILE the way usagemesh-server does (defaults, file,
// USAGEMESH_ environment) and runs the server's validation.
func configValidate(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return fmt.Errorf("configuration file required")
	}

	cfg := serverconfig.Default()
	loader := confloader.NewLoader(confloader.WithConfigFile(path))
	if err := loader.Load(cfg); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	if err := serverconfig.Verify(cfg); err != nil {
		return fmt.Errorf("%s is invalid:\n%w", path, err)
	}
	printf(c, "%s is valid\n", path)
	if keys := loader.KeysFrom(confloader.SourceEnv); len(keys) > 0 {
		printf(c, "overridden by environment: %s\n", strings.Join(keys, ", "))
	}
	return nil
}
