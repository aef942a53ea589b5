package services

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/HammerMeetNail/skillswap/internal/models"
)

type fakeCommandTag struct {
	rowsAffected int64
}

func (t fakeCommandTag) RowsAffected() int64 { return t.rowsAffected }

type fakeRow struct {
	values   []any
	err      error
	scanFunc func(dest ...any) error
}

func rowFromValues(values ...any) fakeRow {
	return fakeRow{values: values}
}

func errRow(err error) fakeRow {
	return fakeRow{err: err}
}

func (r fakeRow) Scan(dest ...any) error {
	if r.scanFunc != nil {
		return r.scanFunc(dest...)
	}
	if r.err != nil {
		return r.err
	}
	return assignAll(dest, r.values)
}

type fakeRows struct {
	rows   [][]any
	idx    int
	err    error
	closed bool
}

func (r *fakeRows) Next() bool {
	if r.idx >= len(r.rows) {
		return false
	}
	r.idx++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	if r.idx == 0 || r.idx > len(r.rows) {
		return errors.New("scan called without row")
	}
	return assignAll(dest, r.rows[r.idx-1])
}

func (r *fakeRows) Close()     { r.closed = true }
func (r *fakeRows) Err() error { return r.err }

func assignAll(dest []any, values []any) error {
	if len(dest) != len(values) {
		return fmt.Errorf("scan: expected %d destinations, got %d", len(values), len(dest))
	}
	for i := range dest {
		if err := assignValue(dest[i], values[i]); err != nil {
			return fmt.Errorf("scan column %d: %w", i, err)
		}
	}
	return nil
}

func assignValue(dest any, val any) error {
	dv := reflect.ValueOf(dest)
	if dv.Kind() != reflect.Ptr || dv.IsNil() {
		return errors.New("destination must be a non-nil pointer")
	}
	target := dv.Elem()
	if val == nil {
		target.Set(reflect.Zero(target.Type()))
		return nil
	}
	v := reflect.ValueOf(val)
	if v.Type().AssignableTo(target.Type()) {
		target.Set(v)
		return nil
	}
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			target.Set(reflect.Zero(target.Type()))
			return nil
		}
		return assignValue(dest, v.Elem().Interface())
	}
	if target.Kind() == reflect.Ptr {
		elem := reflect.New(target.Type().Elem())
		if err := assignValue(elem.Interface(), val); err != nil {
			return err
		}
		target.Set(elem)
		return nil
	}
	if v.Type().ConvertibleTo(target.Type()) {
		target.Set(v.Convert(target.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", val, target.Type())
}

type fakeDB struct {
	ExecFunc     func(ctx context.Context, sql string, args ...any) (CommandTag, error)
	QueryFunc    func(ctx context.Context, sql string, args ...any) (Rows, error)
	QueryRowFunc func(ctx context.Context, sql string, args ...any) Row
	BeginFunc    func(ctx context.Context) (Tx, error)
}

func (f *fakeDB) Exec(ctx context.Context, sql string, args ...any) (CommandTag, error) {
	if f.ExecFunc == nil {
		return nil, fmt.Errorf("unexpected exec: %s", sql)
	}
	return f.ExecFunc(ctx, sql, args...)
}

func (f *fakeDB) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	if f.QueryFunc == nil {
		return nil, fmt.Errorf("unexpected query: %s", sql)
	}
	return f.QueryFunc(ctx, sql, args...)
}

func (f *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) Row {
	if f.QueryRowFunc == nil {
		return errRow(fmt.Errorf("unexpected query row: %s", sql))
	}
	return f.QueryRowFunc(ctx, sql, args...)
}

// Begin returns BeginFunc's transaction, or one that runs its statements through the fakeDB.
func (f *fakeDB) Begin(ctx context.Context) (Tx, error) {
	if f.BeginFunc != nil {
		return f.BeginFunc(ctx)
	}
	return &fakeTx{db: f}, nil
}

type fakeTx struct {
	db           *fakeDB
	ExecFunc     func(ctx context.Context, sql string, args ...any) (CommandTag, error)
	QueryFunc    func(ctx context.Context, sql string, args ...any) (Rows, error)
	QueryRowFunc func(ctx context.Context, sql string, args ...any) Row
	CommitFunc   func(ctx context.Context) error
	RollbackFunc func(ctx context.Context) error

	committed  bool
	rolledBack bool
}

func (t *fakeTx) Exec(ctx context.Context, sql string, args ...any) (CommandTag, error) {
	if t.ExecFunc != nil {
		return t.ExecFunc(ctx, sql, args...)
	}
	if t.db != nil {
		return t.db.Exec(ctx, sql, args...)
	}
	return nil, fmt.Errorf("unexpected exec: %s", sql)
}

func (t *fakeTx) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	if t.QueryFunc != nil {
		return t.QueryFunc(ctx, sql, args...)
	}
	if t.db != nil {
		return t.db.Query(ctx, sql, args...)
	}
	return nil, fmt.Errorf("unexpected query: %s", sql)
}

func (t *fakeTx) QueryRow(ctx context.Context, sql string, args ...any) Row {
	if t.QueryRowFunc != nil {
		return t.QueryRowFunc(ctx, sql, args...)
	}
	if t.db != nil {
		return t.db.QueryRow(ctx, sql, args...)
	}
	return errRow(fmt.Errorf("unexpected query row: %s", sql))
}

func (t *fakeTx) Commit(ctx context.Context) error {
	if t.CommitFunc != nil {
		if err := t.CommitFunc(ctx); err != nil {
			return err
		}
	}
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	t.rolledBack = true
	if t.RollbackFunc != nil {
		return t.RollbackFunc(ctx)
	}
	return nil
}

type notification struct {
	userID  uuid.UUID
	event   string
	payload any
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notification
}

func (n *fakeNotifier) Notify(userID uuid.UUID, event string, payload any) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification{userID: userID, event: event, payload: payload})
	return true
}

func (n *fakeNotifier) to(userID uuid.UUID, event string) []notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notification
	for _, s := range n.sent {
		if s.userID == userID && s.event == event {
			out = append(out, s)
		}
	}
	return out
}

func (n *fakeNotifier) count(event string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, s := range n.sent {
		if s.event == event {
			c++
		}
	}
	return c
}

func (n *fakeNotifier) total() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

type fakePresence map[uuid.UUID]bool

func (p fakePresence) IsOnline(userID uuid.UUID) bool { return p[userID] }

type fakePublisher struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (p *fakePublisher) Publish(ctx context.Context, key string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, key)
	return p.err
}

type fakeUsers struct {
	GetByIDFunc     func(ctx context.Context, id uuid.UUID) (*models.User, error)
	AreFriendsFunc  func(ctx context.Context, userID, otherUserID uuid.UUID) (bool, error)
	ListFriendsFunc func(ctx context.Context, userID uuid.UUID) ([]models.Friend, error)
}

func (f *fakeUsers) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if f.GetByIDFunc == nil {
		return nil, ErrUserNotFound
	}
	return f.GetByIDFunc(ctx, id)
}

func (f *fakeUsers) AreFriends(ctx context.Context, userID, otherUserID uuid.UUID) (bool, error) {
	if f.AreFriendsFunc == nil {
		return false, nil
	}
	return f.AreFriendsFunc(ctx, userID, otherUserID)
}

func (f *fakeUsers) ListFriends(ctx context.Context, userID uuid.UUID) ([]models.Friend, error) {
	if f.ListFriendsFunc == nil {
		return nil, nil
	}
	return f.ListFriendsFunc(ctx, userID)
}

type fakeRedis struct {
	GetFunc    func(ctx context.Context, key string) (string, error)
	ExpireFunc func(ctx context.Context, key string, expiration time.Duration) error
}

func (f *fakeRedis) Get(ctx context.Context, key string) (string, error) {
	return f.GetFunc(ctx, key)
}

func (f *fakeRedis) Expire(ctx context.Context, key string, expiration time.Duration) error {
	if f.ExpireFunc == nil {
		return nil
	}
	return f.ExpireFunc(ctx, key, expiration)
}

func userRow(u *models.User) []any {
	return []any{u.ID, u.Username, u.Email, u.DisplayName, u.CreatedAt, u.UpdatedAt}
}

func newUser(name string) *models.User {
	now := time.Now()
	return &models.User{ID: uuid.New(), Username: name, Email: name + "@example.com", CreatedAt: now, UpdatedAt: now}
}

func messageRow(m *models.Message) []any {
	return []any{m.ID, m.ConversationID, m.SenderID, m.Content, m.Status, m.CreatedAt}
}

func conversationRow(c *models.Conversation) []any {
	return []any{c.ID, c.UserLow, c.UserHigh, c.IsGroup, c.LastMessageID, c.CreatedAt, c.UpdatedAt}
}

func friendRequestRow(r *models.FriendRequest) []any {
	return []any{r.ID, r.FromUserID, r.ToUserID, r.Status, r.CreatedAt, r.UpdatedAt}
}

var noRows = errRow(pgx.ErrNoRows)
