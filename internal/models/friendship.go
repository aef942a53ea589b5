package models

import (
	"time"

	"github.com/google/uuid"
)

type FriendRequestStatus string

const (
	FriendRequestPending  FriendRequestStatus = "pending"
	FriendRequestAccepted FriendRequestStatus = "accepted"
	FriendRequestRejected FriendRequestStatus = "rejected"
)

// IsDecision reports whether s is a valid terminal resolution.
func (s FriendRequestStatus) IsDecision() bool {
	return s == FriendRequestAccepted || s == FriendRequestRejected
}

type FriendRequest struct {
	ID         uuid.UUID           `json:"_id"`
	FromUserID uuid.UUID           `json:"fromUserId"`
	ToUserID   uuid.UUID           `json:"toUserId"`
	Status     FriendRequestStatus `json:"status"`
	CreatedAt  time.Time           `json:"createdAt"`
	UpdatedAt  time.Time           `json:"updatedAt"`
}

// Involves reports whether userID is either party of the request.
func (r *FriendRequest) Involves(userID uuid.UUID) bool {
	return r.FromUserID == userID || r.ToUserID == userID
}

// FriendRequestView is a request with its parties resolved, as pushed to clients.
type FriendRequestView struct {
	FriendRequest
	From           *UserSummary `json:"from,omitempty"`
	To             *UserSummary `json:"to,omitempty"`
	ConversationID *uuid.UUID   `json:"conversationId,omitempty"`
}
