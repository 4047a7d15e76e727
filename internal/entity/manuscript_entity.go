package entity

import (
	"time"

	"github.com/google/uuid"
)

// Manuscript is one uploaded document. EncodedBytes may be stripped by the
// persistence gateway under storage pressure; a record without it is
// preview-only and cannot re-ground a conversation until re-uploaded.
type Manuscript struct {
	Id           uuid.UUID `json:"id"`
	DisplayName  string    `json:"display_name"`
	EncodedBytes string    `json:"encoded_bytes,omitempty"`
	CreatedAt    time.Time `json:"created_at"`

	// PreviewHandle is a process-local uploads path, never persisted.
	PreviewHandle string `json:"-"`
}

func (m *Manuscript) Resumable() bool {
	return m.EncodedBytes != ""
}
