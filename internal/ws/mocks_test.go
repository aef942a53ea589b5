package ws

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/skillswap/internal/logging"
	"github.com/HammerMeetNail/skillswap/internal/models"
)

type mockFriendRequestService struct {
	SendFunc        func(ctx context.Context, fromUserID, toUserID uuid.UUID) (*models.FriendRequestView, error)
	ResolveFunc     func(ctx context.Context, requestID uuid.UUID, decision models.FriendRequestStatus) (*models.FriendRequestView, error)
	CancelFunc      func(ctx context.Context, userID, requestID uuid.UUID) error
	ListPendingFunc func(ctx context.Context, userID uuid.UUID) ([]models.FriendRequestView, error)
	ListSentFunc    func(ctx context.Context, userID uuid.UUID) ([]models.FriendRequestView, error)
}

func (m *mockFriendRequestService) Send(ctx context.Context, fromUserID, toUserID uuid.UUID) (*models.FriendRequestView, error) {
	return m.SendFunc(ctx, fromUserID, toUserID)
}

func (m *mockFriendRequestService) Resolve(ctx context.Context, requestID uuid.UUID, decision models.FriendRequestStatus) (*models.FriendRequestView, error) {
	return m.ResolveFunc(ctx, requestID, decision)
}

func (m *mockFriendRequestService) Cancel(ctx context.Context, userID, requestID uuid.UUID) error {
	return m.CancelFunc(ctx, userID, requestID)
}

func (m *mockFriendRequestService) ListPending(ctx context.Context, userID uuid.UUID) ([]models.FriendRequestView, error) {
	return m.ListPendingFunc(ctx, userID)
}

func (m *mockFriendRequestService) ListSent(ctx context.Context, userID uuid.UUID) ([]models.FriendRequestView, error) {
	return m.ListSentFunc(ctx, userID)
}

type mockMessageService struct {
	SendFunc          func(ctx context.Context, fromUserID, toUserID uuid.UUID, content string) (*models.Message, error)
	MarkDeliveredFunc func(ctx context.Context, messageID uuid.UUID) (*models.Message, error)
	HistoryFunc       func(ctx context.Context, userID, friendID uuid.UUID) (*models.Conversation, []models.Message, error)
}

func (m *mockMessageService) Send(ctx context.Context, fromUserID, toUserID uuid.UUID, content string) (*models.Message, error) {
	return m.SendFunc(ctx, fromUserID, toUserID, content)
}

func (m *mockMessageService) MarkDelivered(ctx context.Context, messageID uuid.UUID) (*models.Message, error) {
	return m.MarkDeliveredFunc(ctx, messageID)
}

func (m *mockMessageService) History(ctx context.Context, userID, friendID uuid.UUID) (*models.Conversation, []models.Message, error) {
	return m.HistoryFunc(ctx, userID, friendID)
}

type mockReceiptService struct {
	MarkOneFunc              func(ctx context.Context, messageID, readerID uuid.UUID) (*models.Message, error)
	MarkConversationReadFunc func(ctx context.Context, conversationID, readerID uuid.UUID) (int, error)
	UnreadCountFunc          func(ctx context.Context, userID uuid.UUID, conversationID *uuid.UUID) (int, error)
}

func (m *mockReceiptService) MarkOne(ctx context.Context, messageID, readerID uuid.UUID) (*models.Message, error) {
	return m.MarkOneFunc(ctx, messageID, readerID)
}

func (m *mockReceiptService) MarkConversationRead(ctx context.Context, conversationID, readerID uuid.UUID) (int, error) {
	return m.MarkConversationReadFunc(ctx, conversationID, readerID)
}

func (m *mockReceiptService) UnreadCount(ctx context.Context, userID uuid.UUID, conversationID *uuid.UUID) (int, error) {
	return m.UnreadCountFunc(ctx, userID, conversationID)
}

// fakeClient records replies in memory.
type fakeClient struct {
	id string

	mu     sync.Mutex
	userID uuid.UUID
	events []models.Event
}

func (c *fakeClient) ID() string { return c.id }

func (c *fakeClient) Send(ev models.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return true
}

func (c *fakeClient) UserID() uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

func (c *fakeClient) SetUserID(userID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userID = userID
}

func (c *fakeClient) only(t *testing.T) models.Event {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.events) != 1 {
		t.Fatalf("expected exactly 1 reply, got %d: %+v", len(c.events), c.events)
	}
	return c.events[0]
}

func (c *fakeClient) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func errorText(t *testing.T, ev models.Event) string {
	t.Helper()
	var p models.ErrorPayload
	if err := json.Unmarshal(ev.Data, &p); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	return p.Message
}

func quietLogger() *logging.Logger {
	return logging.New().SetOutput(io.Discard)
}

func event(t *testing.T, name string, data any) models.Event {
	t.Helper()
	ev, err := models.NewEvent(name, data)
	if err != nil {
		t.Fatalf("encode event: %v", err)
	}
	return ev
}
