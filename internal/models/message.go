package models

import (
	"time"

	"github.com/google/uuid"
)

type MessageStatus string

const (
	MessageSent      MessageStatus = "sent"
	MessageDelivered MessageStatus = "delivered"
	MessageRead      MessageStatus = "read"
)

func (s MessageStatus) rank() int {
	switch s {
	case MessageSent:
		return 1
	case MessageDelivered:
		return 2
	case MessageRead:
		return 3
	default:
		return 0
	}
}

// CanAdvanceTo reports whether moving from s to next keeps the status monotonic.
// Skipping delivered is allowed; staying put or going back is not.
func (s MessageStatus) CanAdvanceTo(next MessageStatus) bool {
	return next.rank() > s.rank()
}

// Before lists the statuses that may transition to s.
func (s MessageStatus) Before() []MessageStatus {
	var out []MessageStatus
	for _, st := range []MessageStatus{MessageSent, MessageDelivered, MessageRead} {
		if st.CanAdvanceTo(s) {
			out = append(out, st)
		}
	}
	return out
}

type Message struct {
	ID             uuid.UUID     `json:"_id"`
	ConversationID uuid.UUID     `json:"conversationId"`
	SenderID       uuid.UUID     `json:"senderId"`
	Sender         *UserSummary  `json:"sender,omitempty"`
	Content        string        `json:"content"`
	Status         MessageStatus `json:"status"`
	CreatedAt      time.Time     `json:"createdAt"`
}
