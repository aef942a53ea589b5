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

const (
	requesterGreeting = "Hi %s! I'm excited to connect with you on Skill Swap! 👋"
	acceptorGreeting  = "Hello %s! Great to connect! Looking forward to learning together! 🎉"
)

const conversationColumns = `id, user_low, user_high, is_group, last_message_id, created_at, updated_at`

// ConversationService owns the one-to-one conversations between friends.
type ConversationService struct {
	db DB
}

func NewConversationService(db DB) *ConversationService {
	return &ConversationService{db: db}
}

func scanConversation(row Row) (*models.Conversation, error) {
	c := &models.Conversation{}
	err := row.Scan(&c.ID, &c.UserLow, &c.UserHigh, &c.IsGroup, &c.LastMessageID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// getOrCreateConversation returns the conversation between initiator and
// responder on q, creating it when missing. Only the caller that inserts the
// row seeds the two greetings, the first from initiator. created is false when
// the row already existed or another transaction won the insert.
func getOrCreateConversation(ctx context.Context, q Querier, initiator, responder uuid.UUID) (*models.Conversation, bool, error) {
	if initiator == responder {
		return nil, false, invalid("userId", "a conversation needs two distinct users")
	}

	conv, err := findConversation(ctx, q, initiator, responder)
	if err == nil {
		return conv, false, nil
	}
	if !errors.Is(err, ErrConversationNotFound) {
		return nil, false, err
	}

	conv, err = insertConversation(ctx, q, initiator, responder)
	if errors.Is(err, errConversationRace) {
		conv, err = findConversation(ctx, q, initiator, responder)
		if err != nil {
			return nil, false, fmt.Errorf("reading conversation after race: %w", err)
		}
		return conv, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	if err := seedGreetings(ctx, q, conv, initiator, responder); err != nil {
		return nil, false, err
	}
	return conv, true, nil
}

func findConversation(ctx context.Context, q Querier, a, b uuid.UUID) (*models.Conversation, error) {
	low, high := models.OrderedPair(a, b)
	conv, err := scanConversation(q.QueryRow(ctx,
		`SELECT `+conversationColumns+`
		 FROM conversations
		 WHERE user_low = $1 AND user_high = $2 AND NOT is_group`,
		low, high,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding conversation: %w", err)
	}
	return conv, nil
}

func insertConversation(ctx context.Context, q Querier, a, b uuid.UUID) (*models.Conversation, error) {
	low, high := models.OrderedPair(a, b)
	conv, err := scanConversation(q.QueryRow(ctx,
		`INSERT INTO conversations (user_low, user_high, is_group)
		 VALUES ($1, $2, false)
		 ON CONFLICT (user_low, user_high) WHERE NOT is_group DO NOTHING
		 RETURNING `+conversationColumns,
		low, high,
	))
	if errors.Is(err, pgx.ErrNoRows) || isUniqueViolation(err) {
		return nil, errConversationRace
	}
	if err != nil {
		return nil, fmt.Errorf("creating conversation: %w", err)
	}
	return conv, nil
}

func seedGreetings(ctx context.Context, q Querier, conv *models.Conversation, initiator, responder uuid.UUID) error {
	users, err := getUsers(ctx, q, []uuid.UUID{initiator, responder})
	if err != nil {
		return err
	}
	from, to := users[initiator], users[responder]
	if from == nil || to == nil {
		return ErrUserNotFound
	}

	if _, err := insertMessage(ctx, q, conv.ID, initiator, fmt.Sprintf(requesterGreeting, to.GreetingName())); err != nil {
		return fmt.Errorf("seeding greeting: %w", err)
	}
	reply, err := insertMessage(ctx, q, conv.ID, responder, fmt.Sprintf(acceptorGreeting, from.GreetingName()))
	if err != nil {
		return fmt.Errorf("seeding greeting: %w", err)
	}

	updatedAt, err := touchConversation(ctx, q, conv.ID, reply.ID)
	if err != nil {
		return err
	}
	conv.LastMessageID = &reply.ID
	conv.UpdatedAt = updatedAt
	return nil
}

func (s *ConversationService) GetByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	return getConversation(ctx, s.db, id)
}

func getConversation(ctx context.Context, q Querier, id uuid.UUID) (*models.Conversation, error) {
	conv, err := scanConversation(q.QueryRow(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE id = $1`,
		id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting conversation: %w", err)
	}
	return conv, nil
}

// ListForUser returns userID's conversations with the other participant, the
// last message and the unread count, most recently active first.
func (s *ConversationService) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.ConversationSummary, error) {
	rows, err := s.db.Query(ctx,
		`SELECT c.id, c.user_low, c.user_high, c.is_group, c.last_message_id, c.created_at, c.updated_at,
		        u.id, u.username, u.email,
		        m.id, m.sender_id, m.content, m.status, m.created_at,
		        (SELECT COUNT(*) FROM messages um
		          WHERE um.conversation_id = c.id
		            AND um.sender_id <> $1
		            AND um.status IN ('sent', 'delivered'))
		 FROM conversations c
		 JOIN users u ON u.id = CASE WHEN c.user_low = $1 THEN c.user_high ELSE c.user_low END
		 LEFT JOIN messages m ON m.id = c.last_message_id
		 WHERE (c.user_low = $1 OR c.user_high = $1) AND NOT c.is_group
		 ORDER BY c.updated_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	defer rows.Close()

	summaries := []models.ConversationSummary{}
	for rows.Next() {
		var cs models.ConversationSummary
		var (
			msgID        *uuid.UUID
			msgSender    *uuid.UUID
			msgContent   *string
			msgStatus    *models.MessageStatus
			msgCreatedAt *time.Time
		)
		err := rows.Scan(
			&cs.ID, &cs.UserLow, &cs.UserHigh, &cs.IsGroup, &cs.LastMessageID, &cs.CreatedAt, &cs.UpdatedAt,
			&cs.Friend.ID, &cs.Friend.Username, &cs.Friend.Email,
			&msgID, &msgSender, &msgContent, &msgStatus, &msgCreatedAt,
			&cs.UnreadCount,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning conversation: %w", err)
		}
		if msgID != nil {
			cs.LastMessage = &models.Message{
				ID:             *msgID,
				ConversationID: cs.ID,
				SenderID:       *msgSender,
				Content:        *msgContent,
				Status:         *msgStatus,
				CreatedAt:      *msgCreatedAt,
			}
		}
		summaries = append(summaries, cs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating conversations: %w", err)
	}
	return summaries, nil
}
