package models

import "time"

// Subscription binds a user to a channel with a delivery watermark.
// LastNewsID names the highest News id already dispatched for this subscription.
type Subscription struct {
	ID          int64     `gorm:"primaryKey" json:"id"`
	UserID      int64     `gorm:"not null;uniqueIndex:idx_subscription_user_channel" json:"user_id"`
	ChannelID   int64     `gorm:"not null;uniqueIndex:idx_subscription_user_channel" json:"channel_id"`
	LastNewsID  int64     `gorm:"not null;default:0" json:"last_news_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Subscription) TableName() string { return "subscriptions" }

// TelegramUser is the minimal user projection the fan-out planner needs
// joined onto a Subscription — a user without a chat id cannot receive
// delivery messages.
type TelegramUser struct {
	ID         int64  `gorm:"primaryKey" json:"id"`
	TelegramID string `json:"telegram_id,omitempty"`
}

func (TelegramUser) TableName() string { return "users" }
