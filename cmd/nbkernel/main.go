// Package main is the entry point for the nbkernel notebook tool.
package main

import (
	"context"
	"os"

	"github.com/bengtfrost/nbkernel/internal/cli"
)

func main() {
	os.Exit(cli.Run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}
