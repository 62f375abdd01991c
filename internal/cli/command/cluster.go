// Package command provides the cluster commands.
package command

import (
	"io"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/usagemesh-go/internal/cli/output"
	"github.com/yndnr/usagemesh-go/internal/server/httpserver/handler"
)

// ClusterCommand returns the cluster subcommand group.
func ClusterCommand() *cli.Command {
	return &cli.Command{
		Name:  "cluster",
		Usage: "Cluster membership",
		Subcommands: []*cli.Command{
			{
				Name:   "nodes",
				Usage:  "List the nodes a usage query asks",
				Action: clusterNodes,
			},
		},
	}
}

func clusterNodes(c *cli.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	var resp handler.ClusterNodesResponse
	if err := newClient(c).GetJSON(ctx, "/admin/v1/cluster/nodes", &resp); err != nil {
		return err
	}
	return render(c, resp, func(w io.Writer) error {
		t := output.NewTable("NODE", "RPC ADDR", "LOCAL")
		for _, m := range resp.Members {
			t.AddRow(m.NodeID, output.FormatValue(m.RPCAddr), output.FormatValue(m.Local))
		}
		return t.Render(w)
	})
}
