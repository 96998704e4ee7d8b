// Package main provides the statedict CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/born-ml/statedict/cmd/statedict/app"
)

// Version information populated at build time.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	application := app.New(version, commit, date)
	if err := application.Execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}
