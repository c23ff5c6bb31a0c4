package store

import (
	"time"

	"gorm.io/datatypes"
)

// DocumentModel is the GORM row holding one persisted value.
type DocumentModel struct {
	Key       string         `gorm:"primaryKey;size:128"`
	Value     datatypes.JSON `gorm:"type:jsonb;not null"`
	SizeBytes int64          `gorm:"not null"`
	UpdatedAt time.Time      `gorm:"not null"`
}

func (DocumentModel) TableName() string { return "quotecards_documents" }
