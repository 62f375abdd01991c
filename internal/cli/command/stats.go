// Package command provides the stats commands.
package command

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/usagemesh-go/internal/cli/output"
	"github.com/yndnr/usagemesh-go/internal/server/httpserver/handler"
)

// StatsCommand returns the stats subcommand group.
func StatsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Node-local counters",
		Subcommands: []*cli.Command{
			{
				Name:      "record",
				Usage:     "Record counters on the connected node",
				ArgsUsage: "PATH=N ...",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:  "timing",
						Usage: "Timing sample as PATH=VALUE (repeatable)",
					},
					&cli.StringSliceFlag{
						Name:  "feature",
						Usage: "Query feature used (repeatable)",
					},
					&cli.StringFlag{
						Name:  "query",
						Usage: "Record one query from this client (rest, cli, jdbc, odbc, canvas)",
					},
					&cli.BoolFlag{
						Name:  "paging",
						Usage: "The recorded query used paging",
					},
					&cli.BoolFlag{
						Name:  "failed",
						Usage: "The recorded query failed",
					},
				},
				Action: statsRecord,
			},
			{
				Name:   "local",
				Usage:  "Show the connected node's counters",
				Action: statsLocal,
			},
		},
	}
}

func statsRecord(c *cli.Context) error {
	counters, err := parseAssignments(c.Args().Slice())
	if err != nil {
		return err
	}
	timings, err := parseAssignments(c.StringSlice("timing"))
	if err != nil {
		return err
	}

	req := handler.RecordStatsRequest{
		Counters: counters,
		Timings:  timings,
		Features: c.StringSlice("feature"),
	}
	if client := c.String("query"); client != "" {
		req.Queries = []handler.QueryRecord{{
			Client: client,
			Paging: c.Bool("paging"),
			Failed: c.Bool("failed"),
		}}
	}
	if len(req.Counters)+len(req.Timings)+len(req.Features)+len(req.Queries) == 0 {
		return fmt.Errorf("nothing to record: pass PATH=N arguments, --timing, --feature or --query")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	var resp handler.RecordStatsResponse
	if err := newClient(c).PostJSON(ctx, "/stats/v1/record", req, &resp); err != nil {
		return err
	}
	return render(c, resp, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "Recorded %d entries (%d paths on node)\n", resp.Recorded, resp.Paths)
		return err
	})
}

func statsLocal(c *cli.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	var resp handler.LocalStatsResponse
	if err := newClient(c).GetJSON(ctx, "/stats/v1/local", &resp); err != nil {
		return err
	}

	return render(c, resp, func(w io.Writer) error {
		if _, err := fmt.Fprintf(w, "Node: %s\n\n", output.FormatValue(resp.NodeID)); err != nil {
			return err
		}
		return output.CounterTable(resp.Stats.Flatten()).Render(w)
	})
}

// parseAssignments parses PATH=N pairs. Repeated paths are summed.
func parseAssignments(args []string) (map[string]int64, error) {
	if len(args) == 0 {
		return nil, nil
	}
	out := make(map[string]int64, len(args))
	for _, arg := range args {
		path, value, ok := strings.Cut(arg, "=")
		if !ok || path == "" {
			return nil, fmt.Errorf("invalid assignment %q: want PATH=N", arg)
		}
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value in %q: %w", arg, err)
		}
		out[path] += n
	}
	return out, nil
}
