package models

import (
	"time"

	"github.com/google/uuid"
)

// Message is a stored chat line, kept for summaries.
type Message struct {
	ID        uuid.UUID `json:"id"`
	OrgID     string    `json:"org_id"`
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}
