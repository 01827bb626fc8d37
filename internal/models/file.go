package models

import (
	"time"

	"github.com/google/uuid"
)

// StoredFile is an uploaded media object.
type StoredFile struct {
	ID          uuid.UUID `json:"id"`
	OrgID       string    `json:"org_id"`
	Filename    string    `json:"filename"`
	ObjectKey   string    `json:"object_key"`
	ContentType string    `json:"content_type"`
	MediaType   string    `json:"media_type"`
	SizeBytes   int64     `json:"size_bytes"`
	CreatedAt   time.Time `json:"created_at"`
}
