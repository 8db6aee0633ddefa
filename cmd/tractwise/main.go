// Package main provides the entry point for the tractwise pipeline.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/do/v2"

	"github.com/tractwise/tractwise/internal/app"
	"github.com/tractwise/tractwise/internal/di"
	"github.com/tractwise/tractwise/internal/di/providers"
	"github.com/tractwise/tractwise/internal/logger"
)

func main() {
	injector := di.NewContainer()

	a, err := do.Invoke[*app.App](injector)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}

	log := do.MustInvoke[*logger.Logger](injector)

	// A batch run, but still interruptible: SIGINT cancels cleanly
	// instead of leaving a half-written database.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runErr := a.Run(ctx)

	if storeHandle, err := do.Invoke[*providers.StoreHandle](injector); err == nil {
		if err := storeHandle.Shutdown(); err != nil {
			log.Error("Failed to close results store", "error", err)
		}
	}
	if err := injector.Shutdown(); err != nil {
		log.Error("Shutdown error", "error", err)
	}

	if runErr != nil {
		log.WithError(runErr).Error("Run failed")
		os.Exit(1)
	}
}
