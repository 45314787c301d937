package task

import (
	"time"

	"gorm.io/gorm"
)

type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusPaused     Status = "paused"
	StatusCompleted  Status = "completed"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

type Task struct {
	ID        string         `gorm:"primaryKey;size:26" json:"id"`
	UserID    uint64         `gorm:"index;not null" json:"-"`
	Name      string         `gorm:"size:255;not null" json:"name"`
	DueDate   *string        `gorm:"type:varchar(10);index" json:"due_date"`
	Priority  Priority       `gorm:"type:varchar(8);not null;default:medium" json:"priority"`
	Status    Status         `gorm:"type:varchar(16);index;not null;default:todo" json:"status"`
	Completed bool           `gorm:"index;not null;default:false" json:"completed"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Task) TableName() string { return "tasks" }
