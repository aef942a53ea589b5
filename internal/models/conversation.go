package models

import (
	"bytes"
	"time"

	"github.com/google/uuid"
)

type Conversation struct {
	ID            uuid.UUID  `json:"_id"`
	UserLow       uuid.UUID  `json:"-"`
	UserHigh      uuid.UUID  `json:"-"`
	IsGroup       bool       `json:"isGroup"`
	LastMessageID *uuid.UUID `json:"lastMessage,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// Participants returns both members of the conversation.
func (c *Conversation) Participants() []uuid.UUID {
	return []uuid.UUID{c.UserLow, c.UserHigh}
}

// Has reports whether userID is a participant.
func (c *Conversation) Has(userID uuid.UUID) bool {
	return c.UserLow == userID || c.UserHigh == userID
}

// Other returns the participant that is not userID.
func (c *Conversation) Other(userID uuid.UUID) uuid.UUID {
	if c.UserLow == userID {
		return c.UserHigh
	}
	return c.UserLow
}

// OrderedPair normalizes an unordered pair so it can be used as a unique key.
func OrderedPair(a, b uuid.UUID) (low, high uuid.UUID) {
	if bytes.Compare(a[:], b[:]) <= 0 {
		return a, b
	}
	return b, a
}

// ConversationSummary is a conversation as listed for one of its participants.
type ConversationSummary struct {
	Conversation
	Friend      UserSummary `json:"friend"`
	LastMessage *Message    `json:"lastMessageDetail,omitempty"`
	UnreadCount int         `json:"unreadCount"`
}
