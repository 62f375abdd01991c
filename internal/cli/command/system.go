// Package command provides the system commands.
package command

import (
	"fmt"
	"io"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/usagemesh-go/internal/cli/output"
	"github.com/yndnr/usagemesh-go/internal/server/httpserver/handler"
	"github.com/yndnr/usagemesh-go/internal/server/localserver"
)

// SystemCommand returns the system subcommand group.
func SystemCommand() *cli.Command {
	return &cli.Command{
		Name:    "system",
		Aliases: []string{"sys"},
		Usage:   "Server status",
		Subcommands: []*cli.Command{
			{
				Name:   "status",
				Usage:  "Show server status summary",
				Action: systemStatus,
			},
			{
				Name:   "health",
				Usage:  "Check server health",
				Action: systemHealth,
			},
			{
				Name:   "reload-license",
				Usage:  "Re-read the license file (local socket only)",
				Action: localAction("/local/v1/license/reload"),
			},
			{
				Name:   "checkpoint",
				Usage:  "Save the node's counters now (local socket only)",
				Action: localAction("/local/v1/checkpoint"),
			},
			{
				Name:   "shutdown",
				Usage:  "Stop the server gracefully (local socket only)",
				Action: localAction("/local/v1/shutdown"),
			},
		},
	}
}

func systemStatus(c *cli.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	var sum handler.StatusSummary
	if err := newClient(c).GetJSON(ctx, "/admin/v1/status/summary", &sum); err != nil {
		return err
	}
	return render(c, sum, func(w io.Writer) error {
		return output.KeyValues{
			{Key: "Node", Value: sum.NodeID},
			{Key: "Version", Value: sum.Version},
			{Key: "Commit", Value: sum.Commit},
			{Key: "Go", Value: sum.GoVersion},
			{Key: "Feature", Value: sum.Feature},
			{Key: "Available", Value: sum.Available},
			{Key: "Enabled", Value: sum.Enabled},
			{Key: "Licensed", Value: sum.Licensed},
			{Key: "Members", Value: sum.Members},
			{Key: "Local paths", Value: sum.LocalPaths},
			{Key: "Started", Value: sum.StartedAt},
			{Key: "Uptime", Value: time.Duration(sum.UptimeSeconds) * time.Second},
		}.Table().Render(w)
	})
}

func systemHealth(c *cli.Context) error {
	client := newClient(c)
	ctx, cancel := requestContext(c)
	defer cancel()

	var result handler.ProbeResponse
	if err := client.GetJSON(ctx, "/health", &result); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return render(c, result, func(w io.Writer) error {
		if result.Status == "healthy" {
			_, err := fmt.Fprintf(w, "Server is healthy\n  Target: %s\n  Node:   %s\n  Uptime: %s\n",
				client.BaseURL(), output.FormatValue(result.NodeID), time.Duration(result.UptimeSec)*time.Second)
			return err
		}
		_, err := fmt.Fprintf(w, "Server is unhealthy: %s\n", result.Status)
		return err
	})
}

// localAction posts to a management endpoint of the local socket.
func localAction(path string) cli.ActionFunc {
	return func(c *cli.Context) error {
		client := newClient(c)
		if !client.IsLocal() {
			return fmt.Errorf("%s needs the local socket: use --server unix:///path/to/usagemesh.sock", c.Command.Name)
		}
		ctx, cancel := requestContext(c)
		defer cancel()

		var resp localserver.ActionResponse
		if err := client.PostJSON(ctx, path, nil, &resp); err != nil {
			return err
		}
		return render(c, resp, func(w io.Writer) error {
			_, err := fmt.Fprintf(w, "%s: done\n", resp.Action)
			return err
		})
	}
}
