// Package delivery implements the delivery consumer: for
// each message on the Delivery Queue, send to the chat transport and
// ack, re-publish with an incremented retry counter, or dead-letter.
package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/vavlxxx/feedfusion/internal/common"
	"github.com/vavlxxx/feedfusion/internal/interfaces"
	"github.com/vavlxxx/feedfusion/internal/models"
)

// Consumer sends Delivery Messages to the chat transport.
type Consumer struct {
	transport   interfaces.ChatTransport
	sendTimeout time.Duration
	logger      *common.Logger
}

// New builds a Consumer sending through transport with sendTimeout as the
// per-message wall-clock bound (~20s default).
func New(transport interfaces.ChatTransport, sendTimeout time.Duration, logger *common.Logger) *Consumer {
	return &Consumer{transport: transport, sendTimeout: sendTimeout, logger: logger}
}

// Handle implements interfaces.DeliveryHandler, the state machine this
// package runs for every delivery: decode → send → acked / re-queued /
// dead-lettered.
func (c *Consumer) Handle(ctx context.Context, d interfaces.Delivery) error {
	var msg models.DeliveryMessage
	if err := json.Unmarshal(d.Body(), &msg); err != nil {
		c.logger.Error().Err(err).Msg("delivery message decode failed, dead-lettering")
		return d.DeadLetter(ctx, map[string]any{models.HeaderErrorReason: "invalid_json"})
	}

	sendCtx, cancel := context.WithTimeout(ctx, c.sendTimeout)
	defer cancel()

	sendErr := c.send(sendCtx, &msg)
	if sendErr == nil {
		jitterSleep()
		return d.Ack()
	}

	return c.retryOrDeadLetter(ctx, d, sendErr)
}

func (c *Consumer) send(ctx context.Context, msg *models.DeliveryMessage) error {
	news := msg.News
	caption := fmt.Sprintf("<b>%s</b>\n%s\n\n%s", news.Title, news.Summary, news.Link)
	if news.Image != "" {
		return c.transport.SendPhoto(ctx, msg.TelegramID, news.Image, caption)
	}
	return c.transport.SendText(ctx, msg.TelegramID, caption)
}

// jitterSleep is the 0.5-1.5s rate-limit hygiene pause after a successful
// send.
func jitterSleep() {
	time.Sleep(500*time.Millisecond + time.Duration(rand.Int63n(int64(time.Second)))) //nolint:gosec
}

// telegramSendFailedReason is the stable x-error-reason token for any send
// failure, regardless of the underlying transport error text.
const telegramSendFailedReason = "telegram_send_failed"

func (c *Consumer) retryOrDeadLetter(ctx context.Context, d interfaces.Delivery, sendErr error) error {
	retries := headerRetries(d.Headers())
	c.logger.Error().Err(sendErr).Int("retries", retries).Msg("delivery send failed")

	if retries < models.MaxProcessingRetries {
		newHeaders := map[string]any{
			models.HeaderRetries:     int32(retries + 1),
			models.HeaderErrorReason: telegramSendFailedReason,
		}
		return d.Requeue(ctx, newHeaders)
	}

	newHeaders := map[string]any{
		models.HeaderRetries:     int32(retries),
		models.HeaderErrorReason: telegramSendFailedReason,
	}
	return d.DeadLetter(ctx, newHeaders)
}

// headerRetries reads x-retries off the AMQP header table, tolerating the
// several integer shapes amqp091-go may hand back (int32 on the wire,
// int/int64 from a hand-built test header map).
func headerRetries(headers map[string]any) int {
	v, ok := headers[models.HeaderRetries]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case int32:
		return int(n)
	case int64:
		return int(n)
	case int:
		return n
	default:
		return 0
	}
}
