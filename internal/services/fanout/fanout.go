// Package fanout implements the fan-out planner: on each
// check_subs tick, walk every subscription's unseen news and publish one
// Delivery Message per item, advancing the watermark only after the
// whole batch for that subscription is handed to the Delivery Queue.
package fanout

import (
	"context"
	"fmt"

	"github.com/vavlxxx/feedfusion/internal/common"
	"github.com/vavlxxx/feedfusion/internal/interfaces"
	"github.com/vavlxxx/feedfusion/internal/models"
)

// Planner walks subscriptions and publishes Delivery Messages.
type Planner struct {
	store     interfaces.Store
	queue     interfaces.DeliveryQueue
	queueName string
	logger    *common.Logger
}

// New builds a Planner publishing to queueName on queue.
func New(store interfaces.Store, queue interfaces.DeliveryQueue, queueName string, logger *common.Logger) *Planner {
	return &Planner{store: store, queue: queue, queueName: queueName, logger: logger}
}

// Run handles one check_subs tick. The subscription list is read in one
// unit-of-work; each subscription's publish-then-advance then runs and
// commits in its own unit-of-work, so a failure on one subscription rolls
// back only that subscription's watermark.
func (p *Planner) Run(ctx context.Context, _ []byte) error {
	uow, err := p.store.Begin(ctx)
	if err != nil {
		return err
	}

	subs, users, err := uow.Subscriptions().GetAllWithUser(ctx)
	if err != nil {
		_ = uow.Rollback(ctx)
		return err
	}
	if err := uow.Commit(ctx); err != nil {
		return err
	}

	for _, sub := range subs {
		subUow, err := p.store.Begin(ctx)
		if err != nil {
			return err
		}
		if err := p.fanOutOne(ctx, subUow, sub, users); err != nil {
			_ = subUow.Rollback(ctx)
			p.logger.Error().Err(err).Int64("subscription_id", sub.ID).Msg("fan-out failed for subscription, skipping")
			continue
		}
		if err := subUow.Commit(ctx); err != nil {
			p.logger.Error().Err(err).Int64("subscription_id", sub.ID).Msg("fan-out commit failed for subscription")
		}
	}
	return nil
}

// fanOutOne publishes every unseen item for sub in ascending id order and
// advances the watermark once the whole batch has been published. A
// publish failure mid-batch leaves last_news_id untouched, so the next
// tick re-publishes a prefix — tolerated because duplicate chat
// deliveries are acceptable while duplicate DB state is not.
func (p *Planner) fanOutOne(ctx context.Context, uow interfaces.UnitOfWork, sub *models.Subscription, users map[int64]*models.TelegramUser) error {
	user, ok := users[sub.UserID]
	if !ok || user.TelegramID == "" {
		return nil
	}

	items, err := uow.News().GetRecent(ctx, sub.ChannelID, sub.LastNewsID, 0, 0, true)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}

	var maxID int64
	for _, item := range items {
		msg := &models.DeliveryMessage{
			SubscriptionID: sub.ID,
			TelegramID:     user.TelegramID,
			ChannelID:      sub.ChannelID,
			News:           *item,
		}
		headers := map[string]any{models.HeaderRetries: int32(0)}
		if err := p.queue.Publish(ctx, p.queueName, msg, headers); err != nil {
			return fmt.Errorf("publish news %d for subscription %d: %w", item.ID, sub.ID, err)
		}
		if item.ID > maxID {
			maxID = item.ID
		}
	}

	return uow.Subscriptions().Edit(ctx, sub.ID, map[string]any{"last_news_id": maxID}, true)
}
