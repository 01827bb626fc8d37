package models

import (
	"time"

	"github.com/google/uuid"
)

// TaskStatus values.
const (
	TaskStatusPending = "pending"
	TaskStatusDone    = "done"
)

// Task is a to-do item created from chat.
type Task struct {
	ID          uuid.UUID  `json:"id"`
	OrgID       string     `json:"org_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Assignee    string     `json:"assignee,omitempty"`
	CreatedBy   string     `json:"created_by,omitempty"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
