// Package app wires every feedfusion component into one process: the
// Durable Store, Work Broker, Delivery Queue, and the poller/ingest/
// fanout/delivery/classifier/dataset services built on top of them.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vavlxxx/feedfusion/internal/broker"
	"github.com/vavlxxx/feedfusion/internal/common"
	"github.com/vavlxxx/feedfusion/internal/interfaces"
	"github.com/vavlxxx/feedfusion/internal/queue"
	"github.com/vavlxxx/feedfusion/internal/searchindex"
	"github.com/vavlxxx/feedfusion/internal/services/classifier"
	"github.com/vavlxxx/feedfusion/internal/services/dataset"
	"github.com/vavlxxx/feedfusion/internal/services/delivery"
	"github.com/vavlxxx/feedfusion/internal/services/fanout"
	"github.com/vavlxxx/feedfusion/internal/services/ingest"
	"github.com/vavlxxx/feedfusion/internal/services/poller"
	"github.com/vavlxxx/feedfusion/internal/storage/postgres"
	"github.com/vavlxxx/feedfusion/internal/telegram"
)

// App holds every initialized component. It is the shared core used by
// both cmd/feedfusion-server and cmd/feedfusion-worker.
type App struct {
	Config *common.Config
	Logger *common.Logger

	Store interfaces.Store
	Queue interfaces.DeliveryQueue

	Broker interfaces.Broker

	SearchIndex interfaces.SearchIndex
	Transport   interfaces.ChatTransport

	Poller     *poller.Poller
	Ingest     *ingest.Writer
	Fanout     *fanout.Planner
	Delivery   *delivery.Consumer
	Classifier *classifier.Loop
	Dataset    *dataset.Service

	StartupTime time.Time
}

func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// New loads configuration, opens the store and delivery-queue connections
// (the work broker dials lazily on first use), and builds every service.
// Classifier and its ModelStore are left to the
// caller to attach via WithClassifier, since the model backend is an
// external concern this module only defines the invocation contract for.
func New(configPath string) (*App, error) {
	startupStart := time.Now()

	binDir := getBinaryDir()
	if configPath == "" {
		configPath = os.Getenv("FEEDFUSION_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(binDir, "feedfusion.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/feedfusion.toml"
		}
	}

	config, err := common.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := common.NewLoggerFromConfig(config.Logging)

	ctx := context.Background()

	store, err := postgres.Open(ctx, config.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("open durable store: %w", err)
	}

	wrk := broker.New(config.Broker.URL, logger)

	dq, err := queue.Dial(config.Queue.URL)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("dial delivery queue: %w", err)
	}

	var searchIdx interfaces.SearchIndex
	if config.Search.Enabled {
		idx, err := searchindex.New(config.Search.Addresses, config.Search.IndexName, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("search index unavailable, continuing without it")
		} else {
			searchIdx = idx
		}
	}

	var transport interfaces.ChatTransport
	if config.Telegram.BotToken != "" {
		t, err := telegram.New(config.Telegram.BotToken)
		if err != nil {
			logger.Warn().Err(err).Msg("telegram transport unavailable, delivery consumer will not start")
		} else {
			transport = t
		}
	}

	a := &App{
		Config:      config,
		Logger:      logger,
		Store:       store,
		Queue:       dq,
		Broker:      wrk,
		SearchIndex: searchIdx,
		Transport:   transport,
		Poller:      poller.New(store, wrk, config.Feeds, logger),
		Ingest:      ingest.New(store, wrk, searchIdx, logger),
		Fanout:      fanout.New(store, dq, config.Queue.TelegramQueue, logger),
		Dataset:     dataset.New(store, wrk),
		StartupTime: startupStart,
	}
	if transport != nil {
		a.Delivery = delivery.New(transport, config.Queue.GetSendTimeout(), logger)
	}

	logger.Info().Str("startup", time.Since(startupStart).String()).Msg("app initialized")
	return a, nil
}

// WithClassifier attaches the classifier loop. Separate from New because
// the model backend (interfaces.Classifier) is supplied by the caller —
// this module only defines the invocation contract.
func (a *App) WithClassifier(c interfaces.Classifier, modelStore interfaces.ModelStore) {
	a.Classifier = classifier.New(a.Store, a.Broker, c, modelStore, a.Config.ML, a.Logger)
}

// RegisterScheduledTasks wires the broker's cron schedule per config.
func (a *App) RegisterScheduledTasks() error {
	if err := a.Broker.Schedule(a.Config.Broker.ParseRSSCron, "parse_rss", func() any { return struct{}{} }); err != nil {
		return fmt.Errorf("schedule parse_rss: %w", err)
	}
	if a.Config.Broker.EnableSubsCheck {
		if err := a.Broker.Schedule(a.Config.Broker.CheckSubsCron, "check_subs", func() any { return struct{}{} }); err != nil {
			return fmt.Errorf("schedule check_subs: %w", err)
		}
	}
	if a.Classifier == nil {
		return nil
	}
	if a.Config.Broker.EnableMLAutocategorization {
		if err := a.Broker.Schedule(a.Config.Broker.CheckUncategorizedCron, "check_for_uncategorized_news", func() any { return struct{}{} }); err != nil {
			return fmt.Errorf("schedule check_for_uncategorized_news: %w", err)
		}
	}
	if a.Config.Broker.EnableMLAutotrain {
		if err := a.Broker.Schedule(a.Config.Broker.RetrainCron, "retrain_model", func() any { return struct{}{} }); err != nil {
			return fmt.Errorf("schedule retrain_model: %w", err)
		}
	}
	return nil
}

// RegisterConsumers wires every task handler to the broker and starts the
// Delivery Queue consumer when a chat transport is configured.
func (a *App) RegisterConsumers(ctx context.Context) error {
	if err := a.Broker.Consume("parse_rss", a.Poller.Run); err != nil {
		return err
	}
	if err := a.Broker.Consume("process_news", a.Ingest.HandleProcessNews); err != nil {
		return err
	}
	if err := a.Broker.Consume("check_subs", a.Fanout.Run); err != nil {
		return err
	}
	if err := a.Broker.Consume("upload_training_dataset", a.Dataset.HandleUploadTrainingDataset); err != nil {
		return err
	}
	if a.Classifier != nil {
		if err := a.Broker.Consume("check_for_uncategorized_news", a.Classifier.HandleCheckUncategorized); err != nil {
			return err
		}
		if err := a.Broker.Consume("categorize_uncategorized_news", a.Classifier.HandleCategorize); err != nil {
			return err
		}
		if err := a.Broker.Consume("retrain_model", func(ctx context.Context, _ []byte) error {
			return a.Classifier.TriggerRetrain(ctx)
		}); err != nil {
			return err
		}
		if err := a.Broker.Consume("retrain_model_worker", a.Classifier.HandleRetrainWorker); err != nil {
			return err
		}
	}
	if a.Delivery != nil {
		// Queue.Consume blocks until ctx is cancelled, so it runs in its
		// own goroutine; otherwise the broker's cron scheduler and task
		// consumers started by a.Run below would never start.
		go func() {
			if err := a.Queue.Consume(ctx, a.Config.Queue.TelegramQueue, a.Delivery.Handle); err != nil && ctx.Err() == nil {
				a.Logger.Error().Err(err).Msg("delivery queue consumer stopped")
			}
		}()
	}
	return nil
}

// Run starts the broker dispatch loop and blocks until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	return a.Broker.Run(ctx)
}

// Close releases every held resource.
func (a *App) Close() {
	if a.Broker != nil {
		if err := a.Broker.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("broker close failed")
		}
	}
	if a.Queue != nil {
		if err := a.Queue.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("delivery queue close failed")
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("store close failed")
		}
	}
}
