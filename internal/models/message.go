// internal/models/message.go
package models

import "time"

// MessageType classifies the content of an authored message.
type MessageType string

const (
	TypeAnnouncement  MessageType = "announcement"
	TypeEvent         MessageType = "event"
	TypeSystem        MessageType = "system"
	TypeProductUpdate MessageType = "product_update"
	TypeEngagement    MessageType = "engagement"
)

// Valid reports whether t is a member of the closed type enumeration.
func (t MessageType) Valid() bool {
	switch t {
	case TypeAnnouncement, TypeEvent, TypeSystem, TypeProductUpdate, TypeEngagement:
		return true
	}
	return false
}

// MessageStatus is the lifecycle state of a message.
type MessageStatus string

const (
	StatusDraft     MessageStatus = "draft"
	StatusScheduled MessageStatus = "scheduled"
	StatusSent      MessageStatus = "sent"
)

// TargetAll is the target descriptor sentinel meaning every active user.
const TargetAll = "all"

// Message is the unit of broadcast intent. Content and target are immutable
// once Status is Sent; only OpenRate and OpenedBy may still change.
type Message struct {
	ID            string        `json:"id"`
	Title         string        `json:"title"`
	Content       string        `json:"content"`
	Type          MessageType   `json:"type"`
	Target        string        `json:"target"`
	Status        MessageStatus `json:"status"`
	DateScheduled *time.Time    `json:"dateScheduled,omitempty"`
	DeliveryRate  *float64      `json:"deliveryRate,omitempty"`
	OpenRate      *float64      `json:"openRate,omitempty"`
	OpenedBy      []string      `json:"openedBy,omitempty"`
	CreatedBy     string        `json:"createdBy"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`

	// Version is the optimistic-concurrency token maintained by the store.
	Version int64 `json:"-"`
}

// Opened reports whether recipientID is already in OpenedBy.
func (m *Message) Opened(recipientID string) bool {
	for _, id := range m.OpenedBy {
		if id == recipientID {
			return true
		}
	}
	return false
}
