package models

import "time"

// TrainingJob is one classifier training run. At most one row per ModelDir
// may have InProgress=true — enforced by a conditional unique index
// (see internal/storage/postgres/migrations).
type TrainingJob struct {
	ID          int64             `gorm:"primaryKey" json:"id"`
	ModelDir    string            `gorm:"not null;index" json:"model_dir"`
	Device      string            `json:"device,omitempty"`
	Config      map[string]any    `gorm:"serializer:json" json:"config,omitempty"`
	Metrics     map[string]any    `gorm:"serializer:json" json:"metrics,omitempty"`
	InProgress  bool              `gorm:"not null;default:false" json:"in_progress"`
	Details     string            `json:"details,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

func (TrainingJob) TableName() string { return "classification_trainings" }
