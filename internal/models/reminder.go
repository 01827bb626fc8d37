package models

import (
	"time"

	"github.com/google/uuid"
)

// Reminder is a scheduled push to a chat target.
type Reminder struct {
	ID        uuid.UUID  `json:"id"`
	OrgID     string     `json:"org_id"`
	Topic     string     `json:"topic"`
	RemindAt  time.Time  `json:"remind_at"`
	Daily     bool       `json:"daily"`
	SentAt    *time.Time `json:"sent_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
