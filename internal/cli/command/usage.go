// Package command provides the usage command.
package command

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/usagemesh-go/internal/cli/output"
	"github.com/yndnr/usagemesh-go/internal/core/domain"
	"github.com/yndnr/usagemesh-go/internal/server/httpserver/handler"
)

// UsageCommand returns the usage command.
func UsageCommand() *cli.Command {
	return &cli.Command{
		Name:  "usage",
		Usage: "Show the cluster-wide usage report",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "feature",
				Usage: "Feature to report (must match the server's feature)",
			},
			&cli.StringFlag{
				Name:  "path",
				Usage: "Only show the stats under this dotted path (e.g. queries.rest)",
			},
		},
		Action: usageAction,
	}
}

func usageAction(c *cli.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	path := "/usage/v1"
	if f := c.String("feature"); f != "" {
		path += "?feature=" + url.QueryEscape(f)
	}

	var resp handler.UsageResponse
	if err := newClient(c).GetJSON(ctx, path, &resp); err != nil {
		return err
	}

	prefix := c.String("path")
	if prefix != "" {
		sub, ok := resp.Stats.Lookup(strings.Split(prefix, domain.PathSeparator)...)
		if !ok {
			return fmt.Errorf("no usage recorded under %q", prefix)
		}
		resp.Stats = sub
	}

	return render(c, resp, func(w io.Writer) error {
		if err := (output.KeyValues{
			{Key: "Feature", Value: resp.Feature},
			{Key: "Available", Value: resp.Available},
			{Key: "Enabled", Value: resp.Enabled},
		}).Table().Render(w); err != nil {
			return err
		}
		flat := flattenUnder(resp.Stats, prefix)
		if len(flat) == 0 {
			return nil
		}
		if _, err := io.WriteString(w, "\n"); err != nil {
			return err
		}
		return output.CounterTable(flat).Render(w)
	})
}

// flattenUnder flattens t, a subtree found at prefix, back into full paths.
func flattenUnder(t domain.Tree, prefix string) map[string]int64 {
	if t.IsLeaf() {
		return map[string]int64{prefix: t.Value()}
	}
	flat := t.Flatten()
	if prefix == "" {
		return flat
	}
	out := make(map[string]int64, len(flat))
	for k, v := range flat {
		if k == "" {
			out[prefix] = v
			continue
		}
		out[prefix+domain.PathSeparator+k] = v
	}
	return out
}
