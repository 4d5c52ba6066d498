// Package broker implements the work broker: a durable
// AMQP task queue with at-least-once periodic dispatch via a cron-style
// scheduler, and prefetch=1 / late-ack worker consumption.
//
// Grounded on the services/jobmanager watcher+processor-pool
// loop shape (safeGo panic recovery, ticker-driven scanning, graceful
// shutdown via context+WaitGroup), generalized from one DB-poll loop to N
// independently cron-scheduled tasks over AMQP.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/robfig/cron/v3"

	"github.com/vavlxxx/feedfusion/internal/apperrors"
	"github.com/vavlxxx/feedfusion/internal/common"
	"github.com/vavlxxx/feedfusion/internal/interfaces"
)

// Broker is the AMQP-backed implementation of interfaces.Broker.
type Broker struct {
	url    string
	logger *common.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel

	cron      *cron.Cron
	consumers []consumerReg

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

type consumerReg struct {
	taskName string
	handler  func(ctx context.Context, payload []byte) error
}

// New dials the broker lazily — the first Enqueue/Run call establishes the
// connection so a transient startup race doesn't crash the process.
func New(url string, logger *common.Logger) *Broker {
	return &Broker{
		url:    url,
		logger: logger,
		cron:   cron.New(),
	}
}

func (b *Broker) ensureChannel() (*amqp.Channel, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.ch != nil && !b.ch.IsClosed() {
		return b.ch, nil
	}

	conn, err := amqp.Dial(b.url)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrBrokerUnavailable, err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: %v", apperrors.ErrBrokerUnavailable, err)
	}
	// prefetch=1, late-ack — mirrors the
	// original's worker_prefetch_multiplier=1 / task_acks_late=True.
	if err := ch.Qos(1, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("%w: %v", apperrors.ErrBrokerUnavailable, err)
	}

	b.conn = conn
	b.ch = ch
	return ch, nil
}

// Enqueue submits a best-effort task.
func (b *Broker) Enqueue(ctx context.Context, taskName string, payload any) error {
	ch, err := b.ensureChannel()
	if err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal task %s payload: %w", taskName, err)
	}

	if err := ch.QueueDeclare(taskName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("%w: declare queue %s: %v", apperrors.ErrBrokerUnavailable, taskName, err)
	}

	err = ch.PublishWithContext(ctx, "", taskName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("%w: publish task %s: %v", apperrors.ErrBrokerUnavailable, taskName, err)
	}
	return nil
}

// Schedule registers a cron-triggered periodic Enqueue of taskName. payload is invoked at each tick so callers can build a
// fresh body (e.g. an empty trigger struct).
func (b *Broker) Schedule(cronExpr, taskName string, payload func() any) error {
	_, err := b.cron.AddFunc(cronExpr, func() {
		ctx := context.Background()
		if err := b.Enqueue(ctx, taskName, payload()); err != nil {
			b.logger.Error().Err(err).Str("task", taskName).Msg("scheduled enqueue failed")
		}
	})
	if err != nil {
		return fmt.Errorf("schedule %s (%s): %w", taskName, cronExpr, err)
	}
	return nil
}

// Consume registers a prefetch=1, late-ack handler for taskName.
func (b *Broker) Consume(taskName string, handler func(ctx context.Context, payload []byte) error) error {
	b.consumers = append(b.consumers, consumerReg{taskName: taskName, handler: handler})
	return nil
}

// Run starts the cron scheduler and every registered consumer, blocking
// until ctx is cancelled.
func (b *Broker) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel

	b.cron.Start()

	for _, reg := range b.consumers {
		reg := reg
		ch, err := b.ensureChannel()
		if err != nil {
			cancel()
			return err
		}
		if err := ch.QueueDeclare(reg.taskName, true, false, false, false, nil); err != nil {
			cancel()
			return fmt.Errorf("%w: declare queue %s: %v", apperrors.ErrBrokerUnavailable, reg.taskName, err)
		}
		deliveries, err := ch.Consume(reg.taskName, "", false, false, false, false, nil)
		if err != nil {
			cancel()
			return fmt.Errorf("%w: consume %s: %v", apperrors.ErrBrokerUnavailable, reg.taskName, err)
		}

		b.wg.Add(1)
		go b.safeConsumeLoop(runCtx, reg, deliveries)
	}

	<-runCtx.Done()
	b.wg.Wait()
	return nil
}

// safeConsumeLoop processes deliveries for one task, recovering from a
// handler panic the way jobmanager.safeGo does, so one bad
// task never takes down the whole worker process.
func (b *Broker) safeConsumeLoop(ctx context.Context, reg consumerReg, deliveries <-chan amqp.Delivery) {
	defer b.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			b.handleDelivery(ctx, reg, d)
		}
	}
}

func (b *Broker) handleDelivery(ctx context.Context, reg consumerReg, d amqp.Delivery) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().Str("task", reg.taskName).Interface("panic", r).Msg("task handler panicked")
			_ = d.Nack(false, true)
		}
	}()

	if err := reg.handler(ctx, d.Body); err != nil {
		b.logger.Error().Err(err).Str("task", reg.taskName).Msg("task handler failed, redelivering")
		_ = d.Nack(false, true)
		return
	}
	_ = d.Ack(false)
}

// Close stops the scheduler and releases the AMQP connection.
func (b *Broker) Close() error {
	if b.cancel != nil {
		b.cancel()
	}
	b.cron.Stop()

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ch != nil {
		b.ch.Close()
	}
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}

var _ interfaces.Broker = (*Broker)(nil)
