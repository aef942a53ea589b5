package ws

import (
	"errors"

	"github.com/HammerMeetNail/skillswap/internal/services"
)

var clientMessages = []struct {
	err error
	msg string
}{
	{services.ErrDuplicateRequest, "Request already pending"},
	{services.ErrFriendRequestNotFound, "Request not found"},
	{services.ErrAlreadyProcessed, "Request already processed"},
	{services.ErrAlreadyFriends, "You are already friends"},
	{services.ErrNotFriends, "You can only chat with friends"},
	{services.ErrNoConversation, "No conversation found"},
	{services.ErrMessageNotFound, "Message not found"},
	{services.ErrConversationNotFound, "Conversation not found"},
	{services.ErrUserNotFound, "User not found. Please refresh and try again."},
}

// clientMessage turns err into the text sent to the initiator. Storage
// failures are reported as fallback without internal detail.
func clientMessage(err error, fallback string) string {
	var verr *services.ValidationError
	if errors.As(err, &verr) {
		return verr.Error()
	}
	for _, m := range clientMessages {
		if errors.Is(err, m.err) {
			return m.msg
		}
	}
	if fallback == "" {
		return "Internal server error"
	}
	return fallback
}

// isClientError reports whether err is caused by the request rather than the server.
func isClientError(err error) bool {
	if errors.Is(err, services.ErrValidation) {
		return true
	}
	for _, m := range clientMessages {
		if errors.Is(err, m.err) {
			return true
		}
	}
	return false
}
