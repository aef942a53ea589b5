package services

import (
	"errors"
	"fmt"
)

var (
	ErrValidation            = errors.New("validation failed")
	ErrUserNotFound          = errors.New("user not found")
	ErrFriendRequestNotFound = errors.New("friend request not found")
	ErrMessageNotFound       = errors.New("message not found")
	ErrConversationNotFound  = errors.New("conversation not found")
	ErrDuplicateRequest      = errors.New("request already pending")
	ErrAlreadyProcessed      = errors.New("request already processed")
	ErrAlreadyFriends        = errors.New("users are already friends")
	ErrNotFriends            = errors.New("you can only chat with friends")
	ErrNoConversation        = errors.New("no conversation found")

	// errConversationRace marks a lost insert race; it is recovered by re-reading and never returned.
	errConversationRace = errors.New("conversation created concurrently")
)

// ValidationError reports a missing or malformed input field. It matches ErrValidation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsNotFound reports whether err is one of the unknown-id errors.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrFriendRequestNotFound) ||
		errors.Is(err, ErrMessageNotFound) ||
		errors.Is(err, ErrConversationNotFound)
}
