package models

import "time"

type BatchJob struct {
	ID                string  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	RunID             *string `gorm:"type:text"`
	SourcePath        string  `gorm:"type:text;not null"`
	Status            string  `gorm:"type:text;not null"`
	ProgressProcessed int64   `gorm:"not null;default:0"`
	ProgressTotal     int64   `gorm:"not null;default:0"`
	CreatedCount      int64   `gorm:"not null;default:0"`
	ExistingCount     int64   `gorm:"not null;default:0"`
	FailedCount       int64   `gorm:"not null;default:0"`
	Report            *string `gorm:"type:jsonb"`
	Attempts          int     `gorm:"not null;default:0"`
	MaxAttempts       int     `gorm:"not null;default:5"`
	ErrorMessage      *string `gorm:"type:text"`
	HeartbeatAt       *time.Time
	LeaseExpiresAt    *time.Time
	StartedAt         *time.Time
	FinishedAt        *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (BatchJob) TableName() string {
	return "provisioning_batch_jobs"
}
