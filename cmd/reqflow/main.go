// Command reqflow sends HTTP requests from the command line.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/adamwoolhether/reqflow/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()

	os.Exit(code)
}
