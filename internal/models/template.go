// internal/models/template.go
package models

import "time"

// MessageTemplate is a reusable content seed. Copying its content into a
// Message creates an independent snapshot; later template edits never reach
// messages authored from it.
type MessageTemplate struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Content     string      `json:"content"`
	Type        MessageType `json:"type"`
	CreatedBy   string      `json:"createdBy"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`

	Version int64 `json:"-"`
}
