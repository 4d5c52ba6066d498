package models

import "time"

// News is one ingested feed item, deduplicated by ContentHash.
type News struct {
	ID          int64     `gorm:"primaryKey" json:"id"`
	ChannelID   int64     `gorm:"not null;index" json:"channel_id"`
	Link        string    `gorm:"not null" json:"link"`
	Title       string    `gorm:"not null" json:"title"`
	Summary     string    `json:"summary,omitempty"`
	Source      string    `json:"source,omitempty"`
	Image       string    `json:"image,omitempty"`
	Published   time.Time `gorm:"not null" json:"published"`
	ContentHash string    `gorm:"uniqueIndex;not null;size:64" json:"content_hash"`
	Category    *string   `json:"category,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (News) TableName() string { return "news" }

// Uncategorized reports whether this item still lacks a category label.
func (n News) Uncategorized() bool {
	return n.Category == nil || *n.Category == ""
}
