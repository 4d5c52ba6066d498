package models

import "time"

// DenormalizedSample is a (title, summary?, category) training example.
type DenormalizedSample struct {
	ID             int64     `gorm:"primaryKey" json:"id"`
	Title          string    `gorm:"not null" json:"title"`
	Summary        string    `json:"summary,omitempty"`
	Category       string    `gorm:"not null" json:"category"`
	UsedInTraining bool      `gorm:"not null;default:false;index" json:"used_in_training"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (DenormalizedSample) TableName() string { return "denormalized_samples" }
