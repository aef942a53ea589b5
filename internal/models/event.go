package models

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Inbound event names.
const (
	EventRegisterUser        = "registerUser"
	EventSendFriendRequest   = "sendFriendRequest"
	EventUpdateFriendRequest = "updateFriendRequest"
	EventSendMessage         = "sendMessage"
	EventMessageDelivered    = "messageDelivered"
	EventMarkMessageAsRead   = "markMessageAsRead"
	EventMarkMessagesAsRead  = "markMessagesAsRead"
)

// Outbound event names.
const (
	EventFriendRequestSent     = "friendRequestSent"
	EventFriendRequestError    = "friendRequestError"
	EventNewFriendRequest      = "newFriendRequest"
	EventFriendRequestUpdated  = "friendRequestUpdated"
	EventFriendRequestAccepted = "friendRequestAccepted"
	EventFriendRequestRejected = "friendRequestRejected"
	EventMessageSent           = "messageSent"
	EventReceiveMessage        = "receiveMessage"
	EventChatError             = "chatError"
	EventMessageStatusUpdate   = "messageStatusUpdate"
	EventMessagesRead          = "messagesRead"
	EventMessagesMarkedAsRead  = "messagesMarkedAsRead"
	EventError                 = "error"
)

// Event is a single frame on the realtime connection in either direction.
type Event struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewEvent marshals data into an Event.
func NewEvent(name string, data any) (Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, err
	}
	return Event{Name: name, Data: raw}, nil
}

type ErrorPayload struct {
	Message string `json:"message"`
}

type MessageStatusUpdate struct {
	MessageID uuid.UUID     `json:"messageId"`
	Status    MessageStatus `json:"status"`
}

type MessagesRead struct {
	MessageIDs []uuid.UUID `json:"messageIds"`
	ReadBy     uuid.UUID   `json:"readBy"`
}

type MessagesMarkedAsRead struct {
	ConversationID *uuid.UUID `json:"conversationId,omitempty"`
	FriendID       uuid.UUID  `json:"friendId"`
	Count          int        `json:"count"`
}
