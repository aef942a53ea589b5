package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/HammerMeetNail/skillswap/internal/models"
)

// memStore executes the statements the services issue against in-memory
// tables. Each statement is atomic; transactions are not isolated.
type memStore struct {
	mu            sync.Mutex
	users         map[uuid.UUID]*models.User
	friends       map[[2]uuid.UUID]bool
	requests      map[uuid.UUID]*models.FriendRequest
	conversations map[[2]uuid.UUID]*models.Conversation
	messages      []*models.Message
	clock         time.Time
}

func newMemStore(users ...*models.User) *memStore {
	m := &memStore{
		users:         make(map[uuid.UUID]*models.User),
		friends:       make(map[[2]uuid.UUID]bool),
		requests:      make(map[uuid.UUID]*models.FriendRequest),
		conversations: make(map[[2]uuid.UUID]*models.Conversation),
		clock:         time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *memStore) db() *fakeDB {
	return &fakeDB{QueryRowFunc: m.queryRow, QueryFunc: m.query, ExecFunc: m.exec}
}

func (m *memStore) now() time.Time {
	m.clock = m.clock.Add(time.Millisecond)
	return m.clock
}

func (m *memStore) addPendingRequest(from, to uuid.UUID) *models.FriendRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	r := &models.FriendRequest{ID: uuid.New(), FromUserID: from, ToUserID: to, Status: models.FriendRequestPending, CreatedAt: now, UpdatedAt: now}
	m.requests[r.ID] = r
	return r
}

func (m *memStore) makeFriends(a, b uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.friends[[2]uuid.UUID{a, b}] = true
	m.friends[[2]uuid.UUID{b, a}] = true
}

func (m *memStore) conversationCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.conversations)
}

func (m *memStore) messagesIn(conversationID uuid.UUID) []models.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Message
	for _, msg := range m.messages {
		if msg.ConversationID == conversationID {
			out = append(out, *msg)
		}
	}
	return out
}

func (m *memStore) findMessage(id uuid.UUID) *models.Message {
	for _, msg := range m.messages {
		if msg.ID == id {
			return msg
		}
	}
	return nil
}

func (m *memStore) conversationByID(id uuid.UUID) *models.Conversation {
	for _, c := range m.conversations {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func pairKey(a, b uuid.UUID) [2]uuid.UUID {
	low, high := models.OrderedPair(a, b)
	return [2]uuid.UUID{low, high}
}

func (m *memStore) queryRow(ctx context.Context, sql string, args ...any) Row {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case strings.Contains(sql, "EXISTS(SELECT 1 FROM users"):
		userID, otherID := args[0].(uuid.UUID), args[1].(uuid.UUID)
		_, exists := m.users[userID]
		return rowFromValues(exists, m.friends[[2]uuid.UUID{userID, otherID}])

	case strings.Contains(sql, "FROM users WHERE id = $1"):
		u := m.users[args[0].(uuid.UUID)]
		if u == nil {
			return noRows
		}
		return rowFromValues(userRow(u)...)

	case strings.Contains(sql, "INSERT INTO friend_requests"):
		from, to := args[0].(uuid.UUID), args[1].(uuid.UUID)
		if m.users[from] == nil || m.users[to] == nil {
			return errRow(&pgconn.PgError{Code: pgForeignKeyViolation})
		}
		for _, r := range m.requests {
			if r.Status == models.FriendRequestPending && pairKey(r.FromUserID, r.ToUserID) == pairKey(from, to) {
				return errRow(&pgconn.PgError{Code: pgUniqueViolation})
			}
		}
		now := m.now()
		r := &models.FriendRequest{ID: uuid.New(), FromUserID: from, ToUserID: to, Status: models.FriendRequestPending, CreatedAt: now, UpdatedAt: now}
		m.requests[r.ID] = r
		return rowFromValues(friendRequestRow(r)...)

	case strings.Contains(sql, "UPDATE friend_requests SET status"):
		r := m.requests[args[0].(uuid.UUID)]
		if r == nil || r.Status != models.FriendRequestPending {
			return noRows
		}
		r.Status = models.FriendRequestStatus(args[1].(string))
		r.UpdatedAt = m.now()
		return rowFromValues(friendRequestRow(r)...)

	case strings.Contains(sql, "FROM friend_requests WHERE id = $1"):
		r := m.requests[args[0].(uuid.UUID)]
		if r == nil {
			return noRows
		}
		return rowFromValues(friendRequestRow(r)...)

	case strings.Contains(sql, "FROM friend_requests"):
		from, to := args[0].(uuid.UUID), args[1].(uuid.UUID)
		pending := false
		for _, r := range m.requests {
			if r.Status == models.FriendRequestPending && pairKey(r.FromUserID, r.ToUserID) == pairKey(from, to) {
				pending = true
			}
		}
		return rowFromValues(m.friends[[2]uuid.UUID{from, to}], pending)

	case strings.Contains(sql, "INSERT INTO conversations"):
		key := [2]uuid.UUID{args[0].(uuid.UUID), args[1].(uuid.UUID)}
		if _, exists := m.conversations[key]; exists {
			return noRows
		}
		now := m.now()
		c := &models.Conversation{ID: uuid.New(), UserLow: key[0], UserHigh: key[1], CreatedAt: now, UpdatedAt: now}
		m.conversations[key] = c
		return rowFromValues(conversationRow(c)...)

	case strings.Contains(sql, "WHERE user_low = $1 AND user_high = $2"):
		c := m.conversations[[2]uuid.UUID{args[0].(uuid.UUID), args[1].(uuid.UUID)}]
		if c == nil {
			return noRows
		}
		return rowFromValues(conversationRow(c)...)

	case strings.Contains(sql, "UPDATE conversations SET last_message_id"):
		c := m.conversationByID(args[0].(uuid.UUID))
		if c == nil {
			return noRows
		}
		id := args[1].(uuid.UUID)
		c.LastMessageID = &id
		c.UpdatedAt = m.now()
		return rowFromValues(c.UpdatedAt)

	case strings.Contains(sql, "FROM conversations WHERE id = $1"):
		c := m.conversationByID(args[0].(uuid.UUID))
		if c == nil {
			return noRows
		}
		return rowFromValues(conversationRow(c)...)

	case strings.Contains(sql, "INSERT INTO messages"):
		msg := &models.Message{
			ID:             uuid.New(),
			ConversationID: args[0].(uuid.UUID),
			SenderID:       args[1].(uuid.UUID),
			Content:        args[2].(string),
			Status:         models.MessageSent,
			CreatedAt:      m.now(),
		}
		m.messages = append(m.messages, msg)
		return rowFromValues(messageRow(msg)...)

	case strings.Contains(sql, "UPDATE messages SET status = $2"):
		msg := m.findMessage(args[0].(uuid.UUID))
		if msg == nil {
			return noRows
		}
		allowed := false
		for _, s := range args[2].([]string) {
			if string(msg.Status) == s {
				allowed = true
			}
		}
		if !allowed {
			return noRows
		}
		msg.Status = models.MessageStatus(args[1].(string))
		return rowFromValues(messageRow(msg)...)

	case strings.Contains(sql, "SELECT EXISTS(SELECT 1 FROM messages"):
		return rowFromValues(m.findMessage(args[0].(uuid.UUID)) != nil)
	}
	return errRow(fmt.Errorf("memStore: unhandled query row: %s", sql))
}

func (m *memStore) query(ctx context.Context, sql string, args ...any) (Rows, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case strings.Contains(sql, "FROM users WHERE id = ANY($1)"):
		var rows [][]any
		for _, id := range args[0].([]uuid.UUID) {
			if u := m.users[id]; u != nil {
				rows = append(rows, userRow(u))
			}
		}
		return &fakeRows{rows: rows}, nil

	case strings.Contains(sql, "UPDATE messages SET status = 'read'"):
		convID, readerID := args[0].(uuid.UUID), args[1].(uuid.UUID)
		var rows [][]any
		for _, msg := range m.messages {
			if msg.ConversationID == convID && msg.SenderID != readerID && msg.Status != models.MessageRead {
				msg.Status = models.MessageRead
				rows = append(rows, []any{msg.ID, msg.SenderID})
			}
		}
		return &fakeRows{rows: rows}, nil
	}
	return nil, fmt.Errorf("memStore: unhandled query: %s", sql)
}

func (m *memStore) exec(ctx context.Context, sql string, args ...any) (CommandTag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case strings.Contains(sql, "INSERT INTO user_friends"):
		a, b := args[0].(uuid.UUID), args[1].(uuid.UUID)
		m.friends[[2]uuid.UUID{a, b}] = true
		m.friends[[2]uuid.UUID{b, a}] = true
		return fakeCommandTag{rowsAffected: 2}, nil

	case strings.Contains(sql, "UPDATE messages SET status = 'delivered'"):
		msg := m.findMessage(args[0].(uuid.UUID))
		if msg == nil || msg.Status != models.MessageSent {
			return fakeCommandTag{}, nil
		}
		msg.Status = models.MessageDelivered
		return fakeCommandTag{rowsAffected: 1}, nil
	}
	return nil, fmt.Errorf("memStore: unhandled exec: %s", sql)
}
