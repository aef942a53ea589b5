package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/HammerMeetNail/skillswap/internal/models"
)

func TestSessionService_ValidateSession(t *testing.T) {
	user := newUser("alice")
	var expired string
	rdb := &fakeRedis{
		GetFunc: func(ctx context.Context, key string) (string, error) {
			if key != sessionKeyPrefix+hashToken("tok") {
				return "", redis.Nil
			}
			return user.ID.String(), nil
		},
		ExpireFunc: func(ctx context.Context, key string, expiration time.Duration) error {
			expired = key
			return nil
		},
	}
	users := &fakeUsers{
		GetByIDFunc: func(ctx context.Context, id uuid.UUID) (*models.User, error) {
			if id != user.ID {
				return nil, ErrUserNotFound
			}
			return user, nil
		},
	}
	svc := NewSessionService(rdb, users)

	got, err := svc.ValidateSession(context.Background(), "tok")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != user.ID {
		t.Fatalf("expected %s, got %s", user.ID, got.ID)
	}
	if expired != sessionKeyPrefix+hashToken("tok") {
		t.Fatalf("expected session expiry to be extended, got %q", expired)
	}

	if _, err := svc.ValidateSession(context.Background(), "other"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if _, err := svc.ValidateSession(context.Background(), ""); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound for empty token, got %v", err)
	}
}

func TestSessionService_ValidateSession_Errors(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		getErr  error
		userErr error
		want    error
	}{
		{name: "redis down", getErr: errors.New("dial tcp: refused")},
		{name: "bad user id", value: "not-a-uuid"},
		{name: "deleted user", value: uuid.NewString(), userErr: ErrUserNotFound, want: ErrSessionNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rdb := &fakeRedis{GetFunc: func(ctx context.Context, key string) (string, error) { return tt.value, tt.getErr }}
			users := &fakeUsers{GetByIDFunc: func(ctx context.Context, id uuid.UUID) (*models.User, error) { return nil, tt.userErr }}
			_, err := NewSessionService(rdb, users).ValidateSession(context.Background(), "tok")
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}
