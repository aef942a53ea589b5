package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/skillswap/internal/models"
)

const (
	sessionKeyPrefix = "session:"
	sessionDuration  = 30 * 24 * time.Hour
)

var ErrSessionNotFound = errors.New("session not found")

// SessionService resolves session tokens written to Redis by the account service.
type SessionService struct {
	redis RedisClient
	users UserServiceInterface
}

func NewSessionService(redis RedisClient, users UserServiceInterface) *SessionService {
	return &SessionService{redis: redis, users: users}
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// ValidateSession returns the user owning token and slides the session expiry.
func (s *SessionService) ValidateSession(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, ErrSessionNotFound
	}

	key := sessionKeyPrefix + hashToken(token)
	userIDStr, err := s.redis.Get(ctx, key)
	if isRedisNil(err) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading session: %w", err)
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return nil, fmt.Errorf("parsing user id: %w", err)
	}

	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}

	// Best effort.
	_ = s.redis.Expire(ctx, key, sessionDuration)
	return user, nil
}
