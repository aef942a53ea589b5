package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/skillswap/internal/models"
)

// Notifier pushes one event to a user's live connection. It returns false when
// the user is offline or the push could not be queued; callers never retry.
type Notifier interface {
	Notify(userID uuid.UUID, event string, payload any) bool
}

// PresenceChecker reports whether a user currently holds a live connection.
type PresenceChecker interface {
	IsOnline(userID uuid.UUID) bool
}

// EventPublisher mirrors domain events to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, key string, payload any) error
}

// UserServiceInterface defines the contract for the user reads the realtime core needs.
type UserServiceInterface interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	AreFriends(ctx context.Context, userID, otherUserID uuid.UUID) (bool, error)
	ListFriends(ctx context.Context, userID uuid.UUID) ([]models.Friend, error)
}

// SessionServiceInterface resolves session tokens issued by the account service.
type SessionServiceInterface interface {
	ValidateSession(ctx context.Context, token string) (*models.User, error)
}

// FriendRequestServiceInterface defines the friend request workflow.
type FriendRequestServiceInterface interface {
	Send(ctx context.Context, fromUserID, toUserID uuid.UUID) (*models.FriendRequestView, error)
	Resolve(ctx context.Context, requestID uuid.UUID, decision models.FriendRequestStatus) (*models.FriendRequestView, error)
	Cancel(ctx context.Context, userID, requestID uuid.UUID) error
	ListPending(ctx context.Context, userID uuid.UUID) ([]models.FriendRequestView, error)
	ListSent(ctx context.Context, userID uuid.UUID) ([]models.FriendRequestView, error)
}

// ConversationServiceInterface defines conversation reads.
type ConversationServiceInterface interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.ConversationSummary, error)
}

// MessageServiceInterface defines the message pipeline.
type MessageServiceInterface interface {
	Send(ctx context.Context, fromUserID, toUserID uuid.UUID, content string) (*models.Message, error)
	MarkDelivered(ctx context.Context, messageID uuid.UUID) (*models.Message, error)
	History(ctx context.Context, userID, friendID uuid.UUID) (*models.Conversation, []models.Message, error)
}

// ReceiptServiceInterface defines read-receipt tracking.
type ReceiptServiceInterface interface {
	MarkOne(ctx context.Context, messageID, readerID uuid.UUID) (*models.Message, error)
	MarkConversationRead(ctx context.Context, conversationID, readerID uuid.UUID) (int, error)
	UnreadCount(ctx context.Context, userID uuid.UUID, conversationID *uuid.UUID) (int, error)
}

type nopNotifier struct{}

func (nopNotifier) Notify(uuid.UUID, string, any) bool { return false }

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, string, any) error { return nil }

type offline struct{}

func (offline) IsOnline(uuid.UUID) bool { return false }
