package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/skillswap/internal/models"
)

type mockUserService struct {
	GetByIDFunc     func(ctx context.Context, id uuid.UUID) (*models.User, error)
	AreFriendsFunc  func(ctx context.Context, userID, otherUserID uuid.UUID) (bool, error)
	ListFriendsFunc func(ctx context.Context, userID uuid.UUID) ([]models.Friend, error)
}

func (m *mockUserService) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return &models.User{ID: id}, nil
}

func (m *mockUserService) AreFriends(ctx context.Context, userID, otherUserID uuid.UUID) (bool, error) {
	if m.AreFriendsFunc != nil {
		return m.AreFriendsFunc(ctx, userID, otherUserID)
	}
	return true, nil
}

func (m *mockUserService) ListFriends(ctx context.Context, userID uuid.UUID) ([]models.Friend, error) {
	if m.ListFriendsFunc != nil {
		return m.ListFriendsFunc(ctx, userID)
	}
	return nil, nil
}

type mockFriendRequestService struct {
	CancelFunc      func(ctx context.Context, userID, requestID uuid.UUID) error
	ListPendingFunc func(ctx context.Context, userID uuid.UUID) ([]models.FriendRequestView, error)
	ListSentFunc    func(ctx context.Context, userID uuid.UUID) ([]models.FriendRequestView, error)
}

func (m *mockFriendRequestService) Send(ctx context.Context, fromUserID, toUserID uuid.UUID) (*models.FriendRequestView, error) {
	panic("Send is served by the websocket gateway")
}

func (m *mockFriendRequestService) Resolve(ctx context.Context, requestID uuid.UUID, decision models.FriendRequestStatus) (*models.FriendRequestView, error) {
	panic("Resolve is served by the websocket gateway")
}

func (m *mockFriendRequestService) Cancel(ctx context.Context, userID, requestID uuid.UUID) error {
	if m.CancelFunc != nil {
		return m.CancelFunc(ctx, userID, requestID)
	}
	return nil
}

func (m *mockFriendRequestService) ListPending(ctx context.Context, userID uuid.UUID) ([]models.FriendRequestView, error) {
	if m.ListPendingFunc != nil {
		return m.ListPendingFunc(ctx, userID)
	}
	return []models.FriendRequestView{}, nil
}

func (m *mockFriendRequestService) ListSent(ctx context.Context, userID uuid.UUID) ([]models.FriendRequestView, error) {
	if m.ListSentFunc != nil {
		return m.ListSentFunc(ctx, userID)
	}
	return []models.FriendRequestView{}, nil
}

type mockConversationService struct {
	GetByIDFunc     func(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
	ListForUserFunc func(ctx context.Context, userID uuid.UUID) ([]models.ConversationSummary, error)
}

func (m *mockConversationService) GetByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	return m.GetByIDFunc(ctx, id)
}

func (m *mockConversationService) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.ConversationSummary, error) {
	if m.ListForUserFunc != nil {
		return m.ListForUserFunc(ctx, userID)
	}
	return nil, nil
}

type mockMessageService struct {
	HistoryFunc func(ctx context.Context, userID, friendID uuid.UUID) (*models.Conversation, []models.Message, error)
}

func (m *mockMessageService) Send(ctx context.Context, fromUserID, toUserID uuid.UUID, content string) (*models.Message, error) {
	panic("Send is served by the websocket gateway")
}

func (m *mockMessageService) MarkDelivered(ctx context.Context, messageID uuid.UUID) (*models.Message, error) {
	panic("MarkDelivered is served by the websocket gateway")
}

func (m *mockMessageService) History(ctx context.Context, userID, friendID uuid.UUID) (*models.Conversation, []models.Message, error) {
	return m.HistoryFunc(ctx, userID, friendID)
}

type mockReceiptService struct {
	UnreadCountFunc func(ctx context.Context, userID uuid.UUID, conversationID *uuid.UUID) (int, error)
}

func (m *mockReceiptService) MarkOne(ctx context.Context, messageID, readerID uuid.UUID) (*models.Message, error) {
	panic("MarkOne is served by the websocket gateway")
}

func (m *mockReceiptService) MarkConversationRead(ctx context.Context, conversationID, readerID uuid.UUID) (int, error) {
	panic("MarkConversationRead is served by the websocket gateway")
}

func (m *mockReceiptService) UnreadCount(ctx context.Context, userID uuid.UUID, conversationID *uuid.UUID) (int, error) {
	return m.UnreadCountFunc(ctx, userID, conversationID)
}

// authedRequest builds a request carrying user in its context.
func authedRequest(method, target string, user *models.User) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	if user != nil {
		req = req.WithContext(SetUserInContext(req.Context(), user))
	}
	return req
}

func assertErrorResponse(t *testing.T, rr *httptest.ResponseRecorder, status int, message string) {
	t.Helper()
	if rr.Code != status {
		t.Fatalf("expected status %d, got %d", status, rr.Code)
	}
	if ct := rr.Result().Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("expected content type application/json, got %q", ct)
	}

	var response ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if response.Error != message {
		t.Fatalf("expected error %q, got %q", message, response.Error)
	}
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), dst); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
}
