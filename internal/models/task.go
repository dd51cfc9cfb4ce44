package models

import (
	"time"
)

type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusInProgress TaskStatus = "in_progress"
	StatusCompleted  TaskStatus = "completed"
)

var TaskStatuses = []TaskStatus{StatusPending, StatusInProgress, StatusCompleted}

func (s TaskStatus) Valid() bool {
	for _, status := range TaskStatuses {
		if s == status {
			return true
		}
	}
	return false
}

type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
)

var TaskPriorities = []TaskPriority{PriorityLow, PriorityMedium, PriorityHigh}

func (p TaskPriority) Valid() bool {
	for _, priority := range TaskPriorities {
		if p == priority {
			return true
		}
	}
	return false
}

type Task struct {
	ID          int64        `json:"id" gorm:"primaryKey;autoIncrement"`
	Title       string       `json:"title" gorm:"not null"`
	Description string       `json:"description"`
	Status      TaskStatus   `json:"status" gorm:"type:varchar(16);not null;default:'pending';index"`
	Priority    TaskPriority `json:"priority" gorm:"type:varchar(16);not null;default:'medium';index"`
	UserID      int64        `json:"user_id" gorm:"not null;index"`
	CreatedAt   time.Time    `json:"created_at" gorm:"index"`
	UpdatedAt   time.Time    `json:"updated_at"`

	// Filled from the owner join on reads.
	Username  string `json:"username,omitempty" gorm:"->;-:migration"`
	UserEmail string `json:"user_email,omitempty" gorm:"->;-:migration"`

	Owner *User `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

type NewTask struct {
	Title       string       `json:"title" yaml:"title"`
	Description string       `json:"description" yaml:"description"`
	Status      TaskStatus   `json:"status" yaml:"status"`
	Priority    TaskPriority `json:"priority" yaml:"priority"`
	UserID      int64        `json:"-" yaml:"-"`
}

type Page struct {
	Limit  int
	Offset int
}

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 100
)

// Normalize applies the listing defaults: limit 50, offset 0.
func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

type TaskFilter struct {
	Status   TaskStatus
	Priority TaskPriority
	UserID   *int64
	Page     Page
}

type TaskStats struct {
	Total      int64                  `json:"total"`
	ByStatus   map[TaskStatus]int64   `json:"by_status"`
	ByPriority map[TaskPriority]int64 `json:"by_priority"`
}

func NewTaskStats() *TaskStats {
	stats := &TaskStats{
		ByStatus:   make(map[TaskStatus]int64, len(TaskStatuses)),
		ByPriority: make(map[TaskPriority]int64, len(TaskPriorities)),
	}
	for _, s := range TaskStatuses {
		stats.ByStatus[s] = 0
	}
	for _, p := range TaskPriorities {
		stats.ByPriority[p] = 0
	}
	return stats
}
