package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/skillswap/internal/logging"
	"github.com/HammerMeetNail/skillswap/internal/models"
	"github.com/HammerMeetNail/skillswap/internal/services"
)

type ChatHandler struct {
	users         services.UserServiceInterface
	conversations services.ConversationServiceInterface
	messages      services.MessageServiceInterface
	receipts      services.ReceiptServiceInterface
}

func NewChatHandler(
	users services.UserServiceInterface,
	conversations services.ConversationServiceInterface,
	messages services.MessageServiceInterface,
	receipts services.ReceiptServiceInterface,
) *ChatHandler {
	return &ChatHandler{
		users:         users,
		conversations: conversations,
		messages:      messages,
		receipts:      receipts,
	}
}

type ConversationListResponse struct {
	Conversations []models.ConversationSummary `json:"conversations"`
}

type HistoryResponse struct {
	Conversation *models.Conversation `json:"conversation"`
	Messages     []models.Message     `json:"messages"`
}

type UnreadCountResponse struct {
	Count int `json:"count"`
}

func (h *ChatHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	conversations, err := h.conversations.ListForUser(r.Context(), user.ID)
	if err != nil {
		logging.Error("Error listing conversations", logging.Fields{"user_id": user.ID.String(), "error": err.Error()})
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if conversations == nil {
		conversations = []models.ConversationSummary{}
	}

	writeJSON(w, http.StatusOK, ConversationListResponse{Conversations: conversations})
}

// History returns the messages exchanged with a friend, oldest first.
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	friendID, err := parsePathID(r, "friendId")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid friend ID")
		return
	}

	friends, err := h.users.AreFriends(r.Context(), user.ID, friendID)
	if errors.Is(err, services.ErrUserNotFound) {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		logging.Error("Error checking friendship", logging.Fields{"user_id": user.ID.String(), "error": err.Error()})
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if !friends {
		writeError(w, http.StatusForbidden, "You can only chat with friends")
		return
	}

	conv, messages, err := h.messages.History(r.Context(), user.ID, friendID)
	if err != nil {
		logging.Error("Error loading chat history", logging.Fields{"user_id": user.ID.String(), "error": err.Error()})
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}

	writeJSON(w, http.StatusOK, HistoryResponse{Conversation: conv, Messages: messages})
}

// UnreadCount returns the total unread count, or the count for one
// conversation when the path carries a conversation id.
func (h *ChatHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	var conversationID *uuid.UUID
	if raw := r.PathValue("conversationId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid conversation ID")
			return
		}
		conv, err := h.conversations.GetByID(r.Context(), id)
		if errors.Is(err, services.ErrConversationNotFound) || (err == nil && !conv.Has(user.ID)) {
			writeError(w, http.StatusNotFound, "Conversation not found")
			return
		}
		if err != nil {
			logging.Error("Error loading conversation", logging.Fields{"conversation_id": id.String(), "error": err.Error()})
			writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		conversationID = &id
	}

	count, err := h.receipts.UnreadCount(r.Context(), user.ID, conversationID)
	if err != nil {
		logging.Error("Error counting unread messages", logging.Fields{"user_id": user.ID.String(), "error": err.Error()})
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, UnreadCountResponse{Count: count})
}
