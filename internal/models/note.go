package models

import (
	"time"

	"github.com/google/uuid"
)

// Note kinds.
const (
	NoteTypeAgreement      = "agreement"
	NoteTypeResponsibility = "responsibility"
	NoteTypeGeneral        = "general"
)

// Note is a saved memory (agreement, responsibility or free text).
type Note struct {
	ID        uuid.UUID `json:"id"`
	OrgID     string    `json:"org_id"`
	Text      string    `json:"text"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}
