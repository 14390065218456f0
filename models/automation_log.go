package models

import "time"

type JobType string

const (
	JobScheduledSend     JobType = "scheduled_send"
	JobCleanup           JobType = "cleanup"
	JobStatsUpdate       JobType = "stats_update"
	JobWebhookProcessing JobType = "webhook_processing"
)

type JobStatus string

const (
	JobStarted   JobStatus = "started"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// AutomationLog records one run of a background maintenance job
type AutomationLog struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	JobName      string     `gorm:"not null;size:255" json:"job_name"`
	JobType      JobType    `gorm:"type:varchar(30);not null;index" json:"job_type"`
	Status       JobStatus  `gorm:"type:varchar(20);not null;index" json:"status"`
	Details      JSONMap    `gorm:"serializer:json" json:"details"`
	ErrorMessage string     `gorm:"type:text" json:"error_message"`
	StartedAt    time.Time  `gorm:"not null;index" json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at"`
	CreatedAt    time.Time  `json:"created_at"`
}
