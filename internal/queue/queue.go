// Package queue implements the delivery queue: a durable
// AMQP FIFO with per-message header metadata, a primary queue and a
// ".dead" sibling, manual acknowledgement, and re-publish-with-modified-
// headers as the only retry mechanism — there is no broker-level TTL/DLX
// binding; retry and dead-lettering are entirely in-band.
package queue

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/vavlxxx/feedfusion/internal/apperrors"
	"github.com/vavlxxx/feedfusion/internal/interfaces"
	"github.com/vavlxxx/feedfusion/internal/models"
)

// Queue is the AMQP-backed implementation of interfaces.DeliveryQueue.
type Queue struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

// Dial connects to the broker URL and declares nothing yet — queues are
// declared lazily per-name on first Publish/Consume, mirroring the
// original's RMQPublisher/RMQTelegramNewsConsumer split.
func Dial(url string) (*Queue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrBrokerUnavailable, err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: %v", apperrors.ErrBrokerUnavailable, err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("%w: %v", apperrors.ErrBrokerUnavailable, err)
	}
	return &Queue{conn: conn, ch: ch}, nil
}

func (q *Queue) declare(name string) error {
	_, err := q.ch.QueueDeclare(name, true, false, false, false, nil)
	return err
}

// Publish sends msg with headers to the named queue, persistent delivery
// mode.
func (q *Queue) Publish(ctx context.Context, queueName string, msg *models.DeliveryMessage, headers map[string]any) error {
	if err := q.declare(queueName); err != nil {
		return fmt.Errorf("%w: declare %s: %v", apperrors.ErrBrokerUnavailable, queueName, err)
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal delivery message: %w", err)
	}

	err = q.ch.PublishWithContext(ctx, "", queueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Headers:      amqp.Table(headers),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("%w: publish to %s: %v", apperrors.ErrBrokerUnavailable, queueName, err)
	}
	return nil
}

// Consume registers a manual-ack handler for queueName, prefetch 1.
func (q *Queue) Consume(ctx context.Context, queueName string, handler interfaces.DeliveryHandler) error {
	if err := q.declare(queueName); err != nil {
		return fmt.Errorf("%w: declare %s: %v", apperrors.ErrBrokerUnavailable, queueName, err)
	}

	deliveries, err := q.ch.Consume(queueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("%w: consume %s: %v", apperrors.ErrBrokerUnavailable, queueName, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			delivery := &amqpDelivery{q: q, queueName: queueName, raw: d}
			if err := handler(ctx, delivery); err != nil {
				// handler is expected to ack/requeue/dead-letter itself;
				// a returned error here means it couldn't even do that —
				// nack without requeue so it doesn't loop forever outside
				// the in-band retry counter.
				_ = d.Nack(false, false)
			}
		}
	}
}

func (q *Queue) Close() error {
	if q.ch != nil {
		q.ch.Close()
	}
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}

// amqpDelivery implements interfaces.Delivery over one amqp.Delivery.
type amqpDelivery struct {
	q         *Queue
	queueName string
	raw       amqp.Delivery
}

func (d *amqpDelivery) Body() []byte { return d.raw.Body }

func (d *amqpDelivery) Headers() map[string]any {
	return map[string]any(d.raw.Headers)
}

func (d *amqpDelivery) Ack() error {
	return d.raw.Ack(false)
}

// Requeue republishes to the same queue with newHeaders and acks the
// original. There is no NACK-with-requeue; retries are
// explicit re-publishes so the retry count is visible and bounded."
func (d *amqpDelivery) Requeue(ctx context.Context, newHeaders map[string]any) error {
	err := d.q.ch.PublishWithContext(ctx, "", d.queueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Headers:      amqp.Table(newHeaders),
		Body:         d.raw.Body,
	})
	if err != nil {
		return fmt.Errorf("%w: requeue to %s: %v", apperrors.ErrBrokerUnavailable, d.queueName, err)
	}
	return d.raw.Ack(false)
}

// DeadLetter publishes to the queue's .dead sibling with newHeaders and
// acks the original.
func (d *amqpDelivery) DeadLetter(ctx context.Context, newHeaders map[string]any) error {
	deadQueue := d.queueName + ".dead"
	if err := d.q.declare(deadQueue); err != nil {
		return fmt.Errorf("%w: declare %s: %v", apperrors.ErrBrokerUnavailable, deadQueue, err)
	}
	err := d.q.ch.PublishWithContext(ctx, "", deadQueue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Headers:      amqp.Table(newHeaders),
		Body:         d.raw.Body,
	})
	if err != nil {
		return fmt.Errorf("%w: dead-letter to %s: %v", apperrors.ErrBrokerUnavailable, deadQueue, err)
	}
	return d.raw.Ack(false)
}

var _ interfaces.DeliveryQueue = (*Queue)(nil)
var _ interfaces.Delivery = (*amqpDelivery)(nil)
