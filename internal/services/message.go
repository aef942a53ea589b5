package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/HammerMeetNail/skillswap/internal/logging"
	"github.com/HammerMeetNail/skillswap/internal/models"
)

const DefaultMaxMessageLength = 4000

const messageColumns = `id, conversation_id, sender_id, content, status, created_at`

// MessageService persists chat messages and pushes them to the receiver.
type MessageService struct {
	db        DB
	users     UserServiceInterface
	presence  PresenceChecker
	notifier  Notifier
	events    EventPublisher
	maxLength int
}

func NewMessageService(db DB, users UserServiceInterface, presence PresenceChecker, notifier Notifier, events EventPublisher, maxLength int) *MessageService {
	if presence == nil {
		presence = offline{}
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if events == nil {
		events = nopPublisher{}
	}
	if maxLength <= 0 {
		maxLength = DefaultMaxMessageLength
	}
	return &MessageService{
		db:        db,
		users:     users,
		presence:  presence,
		notifier:  notifier,
		events:    events,
		maxLength: maxLength,
	}
}

func scanMessage(row Row) (*models.Message, error) {
	m := &models.Message{}
	if err := row.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &m.Status, &m.CreatedAt); err != nil {
		return nil, err
	}
	return m, nil
}

func insertMessage(ctx context.Context, q Querier, conversationID, senderID uuid.UUID, content string) (*models.Message, error) {
	msg, err := scanMessage(q.QueryRow(ctx,
		`INSERT INTO messages (conversation_id, sender_id, content, status)
		 VALUES ($1, $2, $3, 'sent')
		 RETURNING `+messageColumns,
		conversationID, senderID, content,
	))
	if err != nil {
		return nil, fmt.Errorf("inserting message: %w", err)
	}
	return msg, nil
}

// touchConversation points the conversation at its newest message.
func touchConversation(ctx context.Context, q Querier, conversationID, messageID uuid.UUID) (time.Time, error) {
	var updatedAt time.Time
	err := q.QueryRow(ctx,
		`UPDATE conversations SET last_message_id = $2, updated_at = NOW()
		 WHERE id = $1
		 RETURNING updated_at`,
		conversationID, messageID,
	).Scan(&updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, ErrConversationNotFound
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("updating conversation: %w", err)
	}
	return updatedAt, nil
}

// advanceMessage moves one message forward to status. It returns nil without
// error when the message is already at or past status.
func advanceMessage(ctx context.Context, q Querier, messageID uuid.UUID, status models.MessageStatus) (*models.Message, error) {
	msg, err := scanMessage(q.QueryRow(ctx,
		`UPDATE messages SET status = $2
		 WHERE id = $1 AND status = ANY($3)
		 RETURNING `+messageColumns,
		messageID, string(status), statusNames(status.Before()),
	))
	if err == nil {
		return msg, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("updating message status: %w", err)
	}

	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM messages WHERE id = $1)`, messageID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("checking message existence: %w", err)
	}
	if !exists {
		return nil, ErrMessageNotFound
	}
	return nil, nil
}

func statusNames(statuses []models.MessageStatus) []string {
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}
	return names
}

func (s *MessageService) validate(fromUserID, toUserID uuid.UUID, content string) error {
	if fromUserID == uuid.Nil {
		return invalid("senderId", "is required")
	}
	if toUserID == uuid.Nil {
		return invalid("receiverId", "is required")
	}
	if strings.TrimSpace(content) == "" {
		return invalid("content", "is required")
	}
	if utf8.RuneCountInString(content) > s.maxLength {
		return invalid("content", fmt.Sprintf("must be at most %d characters", s.maxLength))
	}
	return nil
}

// Send stores a message between two friends and pushes it to the receiver.
// When the receiver is online the stored message is upgraded to delivered
// before the push.
func (s *MessageService) Send(ctx context.Context, fromUserID, toUserID uuid.UUID, content string) (*models.Message, error) {
	if err := s.validate(fromUserID, toUserID, content); err != nil {
		return nil, err
	}

	friends, err := s.users.AreFriends(ctx, fromUserID, toUserID)
	if err != nil {
		return nil, err
	}
	if !friends {
		return nil, ErrNotFriends
	}

	conv, err := findConversation(ctx, s.db, fromUserID, toUserID)
	if errors.Is(err, ErrConversationNotFound) {
		return nil, ErrNoConversation
	}
	if err != nil {
		return nil, err
	}

	online := s.presence.IsOnline(toUserID)

	var msg *models.Message
	err = withTx(ctx, s.db, func(tx Tx) error {
		var err error
		msg, err = insertMessage(ctx, tx, conv.ID, fromUserID, content)
		if err != nil {
			return err
		}
		if online {
			tag, err := tx.Exec(ctx,
				`UPDATE messages SET status = 'delivered' WHERE id = $1 AND status = 'sent'`,
				msg.ID,
			)
			if err != nil {
				return fmt.Errorf("marking message delivered: %w", err)
			}
			if tag.RowsAffected() == 1 {
				msg.Status = models.MessageDelivered
			}
		}
		_, err = touchConversation(ctx, tx, conv.ID, msg.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	// The message is committed; a failed sender lookup only leaves the summary empty.
	sender, err := s.users.GetByID(ctx, fromUserID)
	if err != nil {
		logging.Warn("Failed to load message sender", logging.Fields{
			"message_id": msg.ID.String(),
			"sender_id":  fromUserID.String(),
			"error":      err.Error(),
		})
	} else {
		summary := sender.Summary()
		msg.Sender = &summary
	}

	s.notifier.Notify(toUserID, models.EventReceiveMessage, msg)
	publish(ctx, s.events, KeyMessageSent, msg)
	return msg, nil
}

// MarkDelivered records the receiver's delivery acknowledgement and tells the
// sender. It returns nil when the message was already delivered or read.
func (s *MessageService) MarkDelivered(ctx context.Context, messageID uuid.UUID) (*models.Message, error) {
	if messageID == uuid.Nil {
		return nil, invalid("messageId", "is required")
	}

	msg, err := advanceMessage(ctx, s.db, messageID, models.MessageDelivered)
	if err != nil || msg == nil {
		return nil, err
	}

	s.notifier.Notify(msg.SenderID, models.EventMessageStatusUpdate, models.MessageStatusUpdate{
		MessageID: msg.ID,
		Status:    msg.Status,
	})
	return msg, nil
}

// History returns the conversation between userID and friendID with its
// messages oldest first. Without a conversation both results are empty.
func (s *MessageService) History(ctx context.Context, userID, friendID uuid.UUID) (*models.Conversation, []models.Message, error) {
	conv, err := findConversation(ctx, s.db, userID, friendID)
	if errors.Is(err, ErrConversationNotFound) {
		return nil, []models.Message{}, nil
	}
	if err != nil {
		return nil, nil, err
	}

	rows, err := s.db.Query(ctx,
		`SELECT m.id, m.conversation_id, m.sender_id, m.content, m.status, m.created_at,
		        u.username, u.email
		 FROM messages m
		 JOIN users u ON u.id = m.sender_id
		 WHERE m.conversation_id = $1
		 ORDER BY m.created_at ASC, m.id ASC`,
		conv.ID,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	messages := []models.Message{}
	for rows.Next() {
		var m models.Message
		sender := &models.UserSummary{}
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &m.Status, &m.CreatedAt, &sender.Username, &sender.Email); err != nil {
			return nil, nil, fmt.Errorf("scanning message: %w", err)
		}
		sender.ID = m.SenderID
		m.Sender = sender
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterating messages: %w", err)
	}
	return conv, messages, nil
}
