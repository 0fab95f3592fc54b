package main

import (
	"context"
	"os"

	"scrbridge/internal/cli"
	"scrbridge/internal/core"
)

func main() {
	os.Exit(cli.Run(context.Background(), core.ToolDirect, os.Args[1:], os.Stdout, os.Stderr))
}
