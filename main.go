package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/kyleking/energy-expert/cmd"
)

var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Execute(ctx, os.Args, version); err != nil {
		cmd.PrintError(os.Stderr, err)
		return 1
	}

	return 0
}
