// Command gapfill-server runs the gap-fill HTTP API.
package main

import (
	"context"
	"fmt"
	"os"

	"meterfill/internal/app"
	"meterfill/internal/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "gapfill-server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx := context.Background()
	application, err := app.New(ctx, *cfg)
	if err != nil {
		return err
	}

	return application.Run(ctx)
}
