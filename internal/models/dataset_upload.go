package models

import "time"

// DatasetUpload is the status record of a bulk CSV sample import.
type DatasetUpload struct {
	ID          int64     `gorm:"primaryKey" json:"id"`
	Uploads     int       `gorm:"not null;default:0;check:uploads >= 0" json:"uploads"`
	Errors      int       `gorm:"not null;default:0;check:errors >= 0" json:"errors"`
	IsCompleted bool      `gorm:"not null;default:false" json:"is_completed"`
	Details     []string  `gorm:"serializer:json" json:"details,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (DatasetUpload) TableName() string { return "dataset_uploads" }
