// Package command provides the CLI application and its shared flags.
package command

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/usagemesh-go/internal/cli/config"
	"github.com/yndnr/usagemesh-go/internal/cli/connection"
	"github.com/yndnr/usagemesh-go/internal/cli/output"
	"github.com/yndnr/usagemesh-go/internal/infra/buildinfo"
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "usagemesh-cli",
		Usage:   "usagemesh command-line tool",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Before:  applyProfile,
		Commands: []*cli.Command{
			UsageCommand(),
			StatsCommand(),
			ClusterCommand(),
			LicenseCommand(),
			SystemCommand(),
			ConfigCommand(),
		},
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "usagemesh-server HTTP address",
			EnvVars: []string{"USAGEMESH_SERVER"},
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
			EnvVars: []string{"USAGEMESH_OUTPUT"},
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Request timeout",
		},
		&cli.StringFlag{
			Name:    "config",
			Usage:   "CLI profile file",
			EnvVars: []string{"USAGEMESH_CLI_CONFIG"},
			Value:   config.DefaultConfigPath(),
		},
	}
}

// applyProfile fills the global flags the user left unset from the profile.
func applyProfile(c *cli.Context) error {
	profile, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if !c.IsSet("server") {
		if err := c.Set("server", profile.Server); err != nil {
			return err
		}
	}
	if !c.IsSet("output") {
		if err := c.Set("output", profile.Output); err != nil {
			return err
		}
	}
	if !c.IsSet("timeout") {
		if err := c.Set("timeout", profile.Timeout.String()); err != nil {
			return err
		}
	}
	return nil
}

// GlobalFlags defines flags available to all commands.
type GlobalFlags struct {
	Server  string
	Output  string
	Timeout time.Duration
	Config  string
}

// ParseGlobalFlags extracts global flags from context.
func ParseGlobalFlags(c *cli.Context) *GlobalFlags {
	return &GlobalFlags{
		Server:  c.String("server"),
		Output:  c.String("output"),
		Timeout: c.Duration("timeout"),
		Config:  c.String("config"),
	}
}

// newClient returns an HTTP client for the configured server.
func newClient(c *cli.Context) *connection.HTTPClient {
	flags := ParseGlobalFlags(c)
	return connection.NewHTTPClient(flags.Server, flags.Timeout)
}

// requestContext bounds a command's requests by the timeout flag.
func requestContext(c *cli.Context) (context.Context, context.CancelFunc) {
	timeout := c.Duration("timeout")
	if timeout <= 0 {
		timeout = connection.DefaultTimeout
	}
	return context.WithTimeout(c.Context, timeout)
}

// render writes view as JSON or YAML, or calls table for the table format.
func render(c *cli.Context, view any, table func(w io.Writer) error) error {
	format, err := output.ParseFormat(c.String("output"))
	if err != nil {
		return err
	}
	if format == output.FormatTable {
		return table(c.App.Writer)
	}
	return output.NewFormatter(format).Format(c.App.Writer, view)
}

// printf writes to the app's output.
func printf(c *cli.Context, format string, args ...any) {
	fmt.Fprintf(c.App.Writer, format, args...)
}
