package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/HammerMeetNail/skillswap/internal/models"
)

// UserService reads accounts and friend lists. Accounts are owned by the
// account service; this side only reads them and mutates user_friends.
type UserService struct {
	db       DB
	presence PresenceChecker
}

func NewUserService(db DB, presence PresenceChecker) *UserService {
	if presence == nil {
		presence = offline{}
	}
	return &UserService{db: db, presence: presence}
}

const userColumns = `id, username, email, display_name, created_at, updated_at`

func scanUser(row Row) (*models.User, error) {
	user := &models.User{}
	if err := row.Scan(&user.ID, &user.Username, &user.Email, &user.DisplayName, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return getUser(ctx, s.db, id)
}

func getUser(ctx context.Context, q Querier, id uuid.UUID) (*models.User, error) {
	user, err := scanUser(q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting user by id: %w", err)
	}
	return user, nil
}

// getUsers loads the given users keyed by id. Unknown ids are absent from the result.
func getUsers(ctx context.Context, q Querier, ids []uuid.UUID) (map[uuid.UUID]*models.User, error) {
	users := make(map[uuid.UUID]*models.User, len(ids))
	if len(ids) == 0 {
		return users, nil
	}

	rows, err := q.Query(ctx, `SELECT `+userColumns+` FROM users WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("getting users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users[user.ID] = user
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating users: %w", err)
	}
	return users, nil
}

// AreFriends reports whether otherUserID is on userID's friend list. It fails
// with ErrUserNotFound when userID does not exist.
func (s *UserService) AreFriends(ctx context.Context, userID, otherUserID uuid.UUID) (bool, error) {
	var userExists, friends bool
	err := s.db.QueryRow(ctx,
		`SELECT
			EXISTS(SELECT 1 FROM users WHERE id = $1),
			EXISTS(SELECT 1 FROM user_friends WHERE user_id = $1 AND friend_id = $2)`,
		userID, otherUserID,
	).Scan(&userExists, &friends)
	if err != nil {
		return false, fmt.Errorf("checking friendship: %w", err)
	}
	if !userExists {
		return false, ErrUserNotFound
	}
	return friends, nil
}

// ListFriends returns userID's friends, most recent conversation first.
// Friends without a conversation sort last by username.
func (s *UserService) ListFriends(ctx context.Context, userID uuid.UUID) ([]models.Friend, error) {
	rows, err := s.db.Query(ctx,
		`SELECT u.id, u.username, u.email, MAX(c.updated_at)
		 FROM user_friends f
		 JOIN users u ON u.id = f.friend_id
		 LEFT JOIN conversations c
		   ON NOT c.is_group
		  AND c.user_low = LEAST(f.user_id, f.friend_id)
		  AND c.user_high = GREATEST(f.user_id, f.friend_id)
		 WHERE f.user_id = $1
		 GROUP BY u.id, u.username, u.email
		 ORDER BY MAX(c.updated_at) DESC NULLS LAST, u.username`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing friends: %w", err)
	}
	defer rows.Close()

	friends := []models.Friend{}
	for rows.Next() {
		var f models.Friend
		var lastActivity *time.Time
		if err := rows.Scan(&f.ID, &f.Username, &f.Email, &lastActivity); err != nil {
			return nil, fmt.Errorf("scanning friend: %w", err)
		}
		f.LastActivityAt = lastActivity
		f.Online = s.presence.IsOnline(f.ID)
		friends = append(friends, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating friends: %w", err)
	}
	return friends, nil
}

// addFriendship records the friendship in both directions. Existing rows are kept.
func addFriendship(ctx context.Context, q Querier, a, b uuid.UUID) error {
	_, err := q.Exec(ctx,
		`INSERT INTO user_friends (user_id, friend_id)
		 VALUES ($1, $2), ($2, $1)
		 ON CONFLICT DO NOTHING`,
		a, b,
	)
	if err != nil {
		return fmt.Errorf("adding friendship: %w", err)
	}
	return nil
}
