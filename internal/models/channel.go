package models

import "time"

// Channel is a registered syndication feed source.
type Channel struct {
	ID          int64     `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"not null" json:"title"`
	Link        string    `gorm:"uniqueIndex;not null" json:"link"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Channel) TableName() string { return "channels" }
