package report

import (
	"time"

	"gorm.io/datatypes"
)

type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// Period is the inclusive YYYY-MM-DD date range a report covers.
type Period struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Job tracks one asynchronous report generation. Report, PeriodStart/End and
// Error are only written together with the terminal status.
type Job struct {
	ID string `gorm:"primaryKey;size:26"` // ULID length

	UserID   uint64                      `gorm:"not null;index;index:uniq_report_job_idempo,unique,priority:1"`
	EntryIDs datatypes.JSONSlice[string] `gorm:"not null"`

	IdempotencyKey *string `gorm:"type:varchar(128);index:uniq_report_job_idempo,unique,priority:2"`

	Status   JobStatus `gorm:"type:varchar(16);index;not null"`
	Attempts int       `gorm:"not null;default:0"`

	// Filled when completed
	Report      *string `gorm:"type:text"`
	PeriodStart *string `gorm:"type:varchar(10)"`
	PeriodEnd   *string `gorm:"type:varchar(10)"`

	// Filled when failed
	Error *string `gorm:"type:text"`

	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

func (Job) TableName() string { return "report_generation_jobs" }

func (j *Job) Period() *Period {
	if j.PeriodStart == nil || j.PeriodEnd == nil {
		return nil
	}
	return &Period{Start: *j.PeriodStart, End: *j.PeriodEnd}
}
