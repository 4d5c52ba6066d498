package models

// DeliveryMessage is the transient payload carried on the Delivery Queue.
// It is never persisted in the Durable Store — ownership passes from the
// Fan-out Planner to whichever Delivery Consumer holds the AMQP delivery
// until it is acked or dead-lettered.
type DeliveryMessage struct {
	SubscriptionID int64 `json:"subscription_id"`
	TelegramID     string `json:"telegram_id"`
	ChannelID      int64  `json:"channel_id"`
	News           News   `json:"news"`
}

// Delivery header names carried on the AMQP message.
const (
	HeaderRetries     = "x-retries"
	HeaderErrorReason = "x-error-reason"

	// MaxProcessingRetries bounds in-band delivery retries before a message
	// is dead-lettered.
	MaxProcessingRetries = 5
)
