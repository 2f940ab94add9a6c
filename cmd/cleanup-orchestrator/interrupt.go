package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/felixgeelhaar/cleanup-orchestrator/internal/ports"
)

// exit is os.Exit, replaced in tests.
var exit = os.Exit

// handleInterrupts returns a context cancelled on SIGINT or SIGTERM. An
// interrupted run is logged and exits 1 right away; it is not rolled back.
func handleInterrupts(ctx context.Context, logger ports.Logger) (context.Context, func()) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	ctx, cancel := context.WithCancel(ctx)
	go watchInterrupts(ctx, sigs, logger, cancel)
	return ctx, func() {
		signal.Stop(sigs)
		cancel()
	}
}

func watchInterrupts(ctx context.Context, sigs <-chan os.Signal, logger ports.Logger, cancel context.CancelFunc) {
	select {
	case sig := <-sigs:
		logger.Error(ctx, "interrupted", ports.F("signal", sig.String()))
		// Cancelling kills running tools before the process goes away.
		cancel()
		exit(1)
	case <-ctx.Done():
	}
}
