// Package command provides the usagemesh-cli command tree.
//
// It uses urfave/cli/v2. Remote commands talk to usagemesh-server over its
// HTTP API; license issue/inspect and config validate run locally.
package command
