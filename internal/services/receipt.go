package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/HammerMeetNail/skillswap/internal/models"
)

type readRow struct {
	id       uuid.UUID
	senderID uuid.UUID
}

// ReceiptService tracks read receipts and tells senders when their messages are read.
type ReceiptService struct {
	db       DB
	notifier Notifier
	events   EventPublisher
}

func NewReceiptService(db DB, notifier Notifier, events EventPublisher) *ReceiptService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if events == nil {
		events = nopPublisher{}
	}
	return &ReceiptService{db: db, notifier: notifier, events: events}
}

// MarkOne marks a single message read. The sender gets a status update and,
// when readerID is set, the reader gets an unread-count adjustment. It returns
// nil when the message was already read.
func (s *ReceiptService) MarkOne(ctx context.Context, messageID, readerID uuid.UUID) (*models.Message, error) {
	if messageID == uuid.Nil {
		return nil, invalid("messageId", "is required")
	}

	msg, err := advanceMessage(ctx, s.db, messageID, models.MessageRead)
	if err != nil || msg == nil {
		return nil, err
	}

	s.notifier.Notify(msg.SenderID, models.EventMessageStatusUpdate, models.MessageStatusUpdate{
		MessageID: msg.ID,
		Status:    models.MessageRead,
	})
	if readerID != uuid.Nil {
		s.notifier.Notify(readerID, models.EventMessagesMarkedAsRead, models.MessagesMarkedAsRead{
			FriendID: msg.SenderID,
			Count:    1,
		})
	}
	publish(ctx, s.events, KeyMessageRead, models.MessagesRead{
		MessageIDs: []uuid.UUID{msg.ID},
		ReadBy:     readerID,
	})
	return msg, nil
}

// MarkConversationRead marks every unread message in the conversation that
// readerID did not author. Senders get the ids read on their behalf and the
// reader gets the count. Nothing is pushed when no message changed.
func (s *ReceiptService) MarkConversationRead(ctx context.Context, conversationID, readerID uuid.UUID) (int, error) {
	if conversationID == uuid.Nil {
		return 0, invalid("conversationId", "is required")
	}
	if readerID == uuid.Nil {
		return 0, invalid("userId", "is required")
	}

	conv, err := getConversation(ctx, s.db, conversationID)
	if err != nil {
		return 0, err
	}

	rows, err := s.db.Query(ctx,
		`UPDATE messages SET status = 'read'
		 WHERE conversation_id = $1
		   AND sender_id <> $2
		   AND status IN ('sent', 'delivered')
		 RETURNING id, sender_id`,
		conversationID, readerID,
	)
	if err != nil {
		return 0, fmt.Errorf("marking conversation read: %w", err)
	}
	defer rows.Close()

	var changed []readRow
	for rows.Next() {
		var r readRow
		if err := rows.Scan(&r.id, &r.senderID); err != nil {
			return 0, fmt.Errorf("scanning read message: %w", err)
		}
		changed = append(changed, r)
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterating read messages: %w", err)
	}
	if len(changed) == 0 {
		return 0, nil
	}

	bySender := lo.GroupBy(changed, func(r readRow) uuid.UUID { return r.senderID })
	for senderID, group := range bySender {
		payload := models.MessagesRead{
			MessageIDs: lo.Map(group, func(r readRow, _ int) uuid.UUID { return r.id }),
			ReadBy:     readerID,
		}
		s.notifier.Notify(senderID, models.EventMessagesRead, payload)
		publish(ctx, s.events, KeyMessageRead, payload)
	}

	s.notifier.Notify(readerID, models.EventMessagesMarkedAsRead, models.MessagesMarkedAsRead{
		ConversationID: &conv.ID,
		FriendID:       conv.Other(readerID),
		Count:          len(changed),
	})
	return len(changed), nil
}

// UnreadCount counts messages addressed to userID that are not yet read,
// either in one conversation or across all of them.
func (s *ReceiptService) UnreadCount(ctx context.Context, userID uuid.UUID, conversationID *uuid.UUID) (int, error) {
	var count int
	var err error
	if conversationID != nil {
		err = s.db.QueryRow(ctx,
			`SELECT COUNT(*) FROM messages
			 WHERE conversation_id = $1
			   AND sender_id <> $2
			   AND status IN ('sent', 'delivered')`,
			*conversationID, userID,
		).Scan(&count)
	} else {
		err = s.db.QueryRow(ctx,
			`SELECT COUNT(*) FROM messages m
			 JOIN conversations c ON c.id = m.conversation_id
			 WHERE (c.user_low = $1 OR c.user_high = $1)
			   AND m.sender_id <> $1
			   AND m.status IN ('sent', 'delivered')`,
			userID,
		).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("counting unread messages: %w", err)
	}
	return count, nil
}
