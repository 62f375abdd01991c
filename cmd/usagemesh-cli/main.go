// Package main provides the entry point for usagemesh-cli.
package main

import (
	"fmt"
	"os"

	"github.com/yndnr/usagemesh-go/internal/cli/command"
)

func main() {
	if err := command.App().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
