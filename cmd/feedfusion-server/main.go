// Command feedfusion-server is the primary feedfusion process: it runs
// the cron schedule (parse_rss, check_subs, check_for_uncategorized_news,
// retrain_model) alongside every task consumer and the delivery queue
// consumer. Run feedfusion-worker as additional replicas to scale task
// processing without duplicating the schedule.
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

	if err := a.RegisterScheduledTasks(); err != nil {
		a.Logger.Fatal().Err(err).Msg("failed to register scheduled tasks")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.RegisterConsumers(ctx); err != nil {
		a.Logger.Fatal().Err(err).Msg("failed to register consumers")
	}

	a.Logger.Info().Msg("feedfusion-server ready")

	if err := a.Run(ctx); err != nil && ctx.Err() == nil {
		a.Logger.Error().Err(err).Msg("app run exited with error")
	}

	a.Logger.Info().Msg("feedfusion-server stopped")
}
