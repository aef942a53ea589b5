package services

import (
	"context"

	"github.com/HammerMeetNail/skillswap/internal/logging"
)

// Routing keys for domain events mirrored to the broker.
const (
	KeyFriendRequestCreated  = "friend_request.created"
	KeyFriendRequestAccepted = "friend_request.accepted"
	KeyFriendRequestRejected = "friend_request.rejected"
	KeyMessageSent           = "message.sent"
	KeyMessageRead           = "message.read"
)

// publish mirrors a committed change. Broker failures never fail the operation.
func publish(ctx context.Context, p EventPublisher, key string, payload any) {
	if err := p.Publish(ctx, key, payload); err != nil {
		logging.Warn("Failed to publish domain event", logging.Fields{
			"key":   key,
			"error": err.Error(),
		})
	}
}
