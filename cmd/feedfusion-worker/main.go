// Command feedfusion-worker is a scale-out task consumer: it registers
// every task/delivery consumer feedfusion-server does but never schedules
// the cron triggers, so any number of worker replicas can run alongside
// one feedfusion-server without firing duplicate ticks.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/vavlxxx/feedfusion/internal/app"
)

func main() {
	configPath := os.Getenv("FEEDFUSION_CONFIG")

	a, err := app.New(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize app: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.RegisterConsumers(ctx); err != nil {
		a.Logger.Fatal().Err(err).Msg("failed to register consumers")
	}

	a.Logger.Info().Msg("feedfusion-worker ready")

	if err := a.Run(ctx); err != nil && ctx.Err() == nil {
		a.Logger.Error().Err(err).Msg("app run exited with error")
	}

	a.Logger.Info().Msg("feedfusion-worker stopped")
}
