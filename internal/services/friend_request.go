package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/HammerMeetNail/skillswap/internal/logging"
	"github.com/HammerMeetNail/skillswap/internal/models"
)

const friendRequestColumns = `id, from_user, to_user, status, created_at, updated_at`

// FriendRequestService runs the friend request workflow. Accepting a request
// records the friendship and bootstraps the pair's conversation in the same
// transaction as the status change.
type FriendRequestService struct {
	db       DB
	notifier Notifier
	events   EventPublisher
}

func NewFriendRequestService(db DB, notifier Notifier, events EventPublisher) *FriendRequestService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if events == nil {
		events = nopPublisher{}
	}
	return &FriendRequestService{db: db, notifier: notifier, events: events}
}

func scanFriendRequest(row Row) (*models.FriendRequest, error) {
	r := &models.FriendRequest{}
	if err := row.Scan(&r.ID, &r.FromUserID, &r.ToUserID, &r.Status, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	return r, nil
}

func getFriendRequest(ctx context.Context, q Querier, id uuid.UUID) (*models.FriendRequest, error) {
	req, err := scanFriendRequest(q.QueryRow(ctx,
		`SELECT `+friendRequestColumns+` FROM friend_requests WHERE id = $1`,
		id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrFriendRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting friend request: %w", err)
	}
	return req, nil
}

// Send creates a pending request from fromUserID to toUserID and pushes it to the receiver.
func (s *FriendRequestService) Send(ctx context.Context, fromUserID, toUserID uuid.UUID) (*models.FriendRequestView, error) {
	if fromUserID == uuid.Nil {
		return nil, invalid("senderId", "is required")
	}
	if toUserID == uuid.Nil {
		return nil, invalid("receiverId", "is required")
	}
	if fromUserID == toUserID {
		return nil, invalid("receiverId", "cannot send a friend request to yourself")
	}

	var alreadyFriends, pending bool
	err := s.db.QueryRow(ctx,
		`SELECT
			EXISTS(SELECT 1 FROM user_friends WHERE user_id = $1 AND friend_id = $2),
			EXISTS(SELECT 1 FROM friend_requests
			       WHERE status = 'pending'
			         AND ((from_user = $1 AND to_user = $2) OR (from_user = $2 AND to_user = $1)))`,
		fromUserID, toUserID,
	).Scan(&alreadyFriends, &pending)
	if err != nil {
		return nil, fmt.Errorf("checking existing requests: %w", err)
	}
	if alreadyFriends {
		return nil, ErrAlreadyFriends
	}
	if pending {
		return nil, ErrDuplicateRequest
	}

	req, err := scanFriendRequest(s.db.QueryRow(ctx,
		`INSERT INTO friend_requests (from_user, to_user, status)
		 VALUES ($1, $2, 'pending')
		 RETURNING `+friendRequestColumns,
		fromUserID, toUserID,
	))
	if isUniqueViolation(err) {
		return nil, ErrDuplicateRequest
	}
	if isForeignKeyViolation(err) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("creating friend request: %w", err)
	}

	view := s.view(ctx, req)
	s.notifier.Notify(toUserID, models.EventNewFriendRequest, view)
	publish(ctx, s.events, KeyFriendRequestCreated, view)
	return view, nil
}

// Resolve applies decision to a pending request. Only the first resolution
// wins; later ones fail with ErrAlreadyProcessed and change nothing.
func (s *FriendRequestService) Resolve(ctx context.Context, requestID uuid.UUID, decision models.FriendRequestStatus) (*models.FriendRequestView, error) {
	if requestID == uuid.Nil {
		return nil, invalid("requestId", "is required")
	}
	if !decision.IsDecision() {
		return nil, invalid("status", "must be accepted or rejected")
	}

	var req *models.FriendRequest
	var conv *models.Conversation
	err := withTx(ctx, s.db, func(tx Tx) error {
		var err error
		req, err = scanFriendRequest(tx.QueryRow(ctx,
			`UPDATE friend_requests SET status = $2, updated_at = NOW()
			 WHERE id = $1 AND status = 'pending'
			 RETURNING `+friendRequestColumns,
			requestID, string(decision),
		))
		if errors.Is(err, pgx.ErrNoRows) {
			if _, err := getFriendRequest(ctx, tx, requestID); err != nil {
				return err
			}
			return ErrAlreadyProcessed
		}
		if err != nil {
			return fmt.Errorf("resolving friend request: %w", err)
		}
		if decision != models.FriendRequestAccepted {
			return nil
		}

		if err := addFriendship(ctx, tx, req.FromUserID, req.ToUserID); err != nil {
			return err
		}
		conv, _, err = getOrCreateConversation(ctx, tx, req.FromUserID, req.ToUserID)
		return err
	})
	if err != nil {
		return nil, err
	}

	view := s.view(ctx, req)
	if conv != nil {
		view.ConversationID = &conv.ID
	}

	if decision == models.FriendRequestAccepted {
		s.notifier.Notify(req.FromUserID, models.EventFriendRequestAccepted, view)
		s.notifier.Notify(req.ToUserID, models.EventFriendRequestAccepted, view)
		publish(ctx, s.events, KeyFriendRequestAccepted, view)
	} else {
		s.notifier.Notify(req.FromUserID, models.EventFriendRequestRejected, view)
		publish(ctx, s.events, KeyFriendRequestRejected, view)
	}
	return view, nil
}

// Cancel withdraws a pending request sent by userID.
func (s *FriendRequestService) Cancel(ctx context.Context, userID, requestID uuid.UUID) error {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM friend_requests WHERE id = $1 AND from_user = $2 AND status = 'pending'`,
		requestID, userID,
	)
	if err != nil {
		return fmt.Errorf("canceling friend request: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	req, err := getFriendRequest(ctx, s.db, requestID)
	if err != nil {
		return err
	}
	if req.FromUserID != userID {
		return ErrFriendRequestNotFound
	}
	return ErrAlreadyProcessed
}

// ListPending returns requests waiting on userID, newest first.
func (s *FriendRequestService) ListPending(ctx context.Context, userID uuid.UUID) ([]models.FriendRequestView, error) {
	return s.list(ctx,
		`SELECT fr.id, fr.from_user, fr.to_user, fr.status, fr.created_at, fr.updated_at,
		        u.id, u.username, u.email
		 FROM friend_requests fr
		 JOIN users u ON u.id = fr.from_user
		 WHERE fr.to_user = $1 AND fr.status = 'pending'
		 ORDER BY fr.created_at DESC`,
		userID, true)
}

// ListSent returns pending requests userID has sent, newest first.
func (s *FriendRequestService) ListSent(ctx context.Context, userID uuid.UUID) ([]models.FriendRequestView, error) {
	return s.list(ctx,
		`SELECT fr.id, fr.from_user, fr.to_user, fr.status, fr.created_at, fr.updated_at,
		        u.id, u.username, u.email
		 FROM friend_requests fr
		 JOIN users u ON u.id = fr.to_user
		 WHERE fr.from_user = $1 AND fr.status = 'pending'
		 ORDER BY fr.created_at DESC`,
		userID, false)
}

func (s *FriendRequestService) list(ctx context.Context, sql string, userID uuid.UUID, incoming bool) ([]models.FriendRequestView, error) {
	rows, err := s.db.Query(ctx, sql, userID)
	if err != nil {
		return nil, fmt.Errorf("listing friend requests: %w", err)
	}
	defer rows.Close()

	views := []models.FriendRequestView{}
	for rows.Next() {
		var v models.FriendRequestView
		other := &models.UserSummary{}
		err := rows.Scan(&v.ID, &v.FromUserID, &v.ToUserID, &v.Status, &v.CreatedAt, &v.UpdatedAt,
			&other.ID, &other.Username, &other.Email)
		if err != nil {
			return nil, fmt.Errorf("scanning friend request: %w", err)
		}
		if incoming {
			v.From = other
		} else {
			v.To = other
		}
		views = append(views, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating friend requests: %w", err)
	}
	return views, nil
}

// view attaches both parties' summaries. A failed lookup leaves them empty
// because the request itself is already committed.
func (s *FriendRequestService) view(ctx context.Context, req *models.FriendRequest) *models.FriendRequestView {
	view := &models.FriendRequestView{FriendRequest: *req}
	users, err := getUsers(ctx, s.db, []uuid.UUID{req.FromUserID, req.ToUserID})
	if err != nil {
		logging.Warn("Failed to load friend request parties", logging.Fields{
			"request_id": req.ID.String(),
			"error":      err.Error(),
		})
		return view
	}
	if u, ok := users[req.FromUserID]; ok {
		summary := u.Summary()
		view.From = &summary
	}
	if u, ok := users[req.ToUserID]; ok {
		summary := u.Summary()
		view.To = &summary
	}
	return view
}
