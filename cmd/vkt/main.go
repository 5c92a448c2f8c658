// Command vkt contributes files to a GitCode, GitLab
// or GitHub repository through its HTTP API, without
// a local clone.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/byte4ever/vkt/cli"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(
		context.Background(), os.Interrupt, syscall.SIGTERM,
	)
	defer stop()

	return cli.Execute(ctx, cli.Env{}, os.Args[1:])
}
