// Package ws is the realtime event gateway: a websocket transport that decodes
// inbound events, runs the matching workflow and answers the initiator.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/HammerMeetNail/skillswap/internal/broker"
	"github.com/HammerMeetNail/skillswap/internal/logging"
	"github.com/HammerMeetNail/skillswap/internal/metrics"
	"github.com/HammerMeetNail/skillswap/internal/models"
	"github.com/HammerMeetNail/skillswap/internal/presence"
	"github.com/HammerMeetNail/skillswap/internal/services"
)

// Client is the connection an inbound event arrived on.
type Client interface {
	presence.Handle
	UserID() uuid.UUID
	SetUserID(userID uuid.UUID)
}

// Registry is the presence bookkeeping the router updates on registerUser.
type Registry interface {
	Register(userID uuid.UUID, h presence.Handle) presence.Handle
	Unregister(h presence.Handle) (uuid.UUID, bool)
}

type handlerFunc func(ctx context.Context, c Client, data json.RawMessage) error

// Router maps event names to workflows.
type Router struct {
	registry       Registry
	friendRequests services.FriendRequestServiceInterface
	messages       services.MessageServiceInterface
	receipts       services.ReceiptServiceInterface
	metrics        *metrics.Metrics
	logger         *logging.Logger
	validate       *validator.Validate
	handlers       map[string]handlerFunc
}

func NewRouter(
	registry Registry,
	friendRequests services.FriendRequestServiceInterface,
	messages services.MessageServiceInterface,
	receipts services.ReceiptServiceInterface,
	m *metrics.Metrics,
	logger *logging.Logger,
) *Router {
	if logger == nil {
		logger = logging.Default
	}
	r := &Router{
		registry:       registry,
		friendRequests: friendRequests,
		messages:       messages,
		receipts:       receipts,
		metrics:        m,
		logger:         logger.WithComponent("ws"),
		validate:       newValidator(),
	}
	r.handlers = map[string]handlerFunc{
		models.EventRegisterUser:        r.registerUser,
		models.EventSendFriendRequest:   r.sendFriendRequest,
		models.EventUpdateFriendRequest: r.updateFriendRequest,
		models.EventSendMessage:         r.sendMessage,
		models.EventMessageDelivered:    r.messageDelivered,
		models.EventMarkMessageAsRead:   r.markMessageAsRead,
		models.EventMarkMessagesAsRead:  r.markMessagesAsRead,
	}
	return r
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// Route runs the workflow for ev. Failures are answered on c; none of them
// close the connection.
func (r *Router) Route(ctx context.Context, c Client, ev models.Event) {
	start := time.Now()
	ctx = broker.WithCorrelationID(ctx, uuid.NewString())

	h, ok := r.handlers[ev.Name]
	if !ok {
		r.reply(c, models.EventError, models.ErrorPayload{Message: fmt.Sprintf("Unknown event: %s", ev.Name)})
		r.metrics.ObserveEvent("unknown", metrics.OutcomeRejected, time.Since(start))
		return
	}

	outcome := metrics.OutcomeOK
	if err := h(ctx, c, ev.Data); err != nil {
		outcome = r.classify(ctx, c, ev.Name, err)
	}
	r.metrics.ObserveEvent(ev.Name, outcome, time.Since(start))
}

// classify logs err and returns the metrics outcome. Client replies are
// already sent by the handler.
func (r *Router) classify(ctx context.Context, c Client, event string, err error) string {
	if isClientError(err) {
		return metrics.OutcomeRejected
	}
	fields := logging.Fields{
		"event":   event,
		"session": c.ID(),
		"error":   err.Error(),
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		r.logger.Warn("Event timed out", fields)
		return metrics.OutcomeTimeout
	}
	r.logger.Error("Event failed", fields)
	return metrics.OutcomeFailed
}

func (r *Router) reply(c Client, event string, payload any) {
	ev, err := models.NewEvent(event, payload)
	if err != nil {
		r.logger.Error("Failed to encode reply", logging.Fields{"event": event, "error": err.Error()})
		return
	}
	if !c.Send(ev) {
		r.logger.Warn("Dropped reply for slow connection", logging.Fields{"event": event, "session": c.ID()})
	}
}

// fail answers the initiator on the error event of its family and returns err.
func (r *Router) fail(c Client, event string, err error, fallback string) error {
	r.reply(c, event, models.ErrorPayload{Message: clientMessage(err, fallback)})
	return err
}

// decode unmarshals and validates an object payload.
func (r *Router) decode(data json.RawMessage, dst any) error {
	if len(data) == 0 {
		return &services.ValidationError{Field: "data", Reason: "is required"}
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return &services.ValidationError{Field: "data", Reason: "is not valid JSON for this event"}
	}
	if err := r.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return &services.ValidationError{Field: verrs[0].Field(), Reason: describeTag(verrs[0])}
		}
		return &services.ValidationError{Field: "data", Reason: err.Error()}
	}
	return nil
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "uuid":
		return "must be a UUID"
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return "failed " + fe.Tag()
	}
}

// actor returns the explicit id when given, otherwise the registered identity.
func actor(c Client, raw, field string) (uuid.UUID, error) {
	if raw != "" {
		return uuid.MustParse(raw), nil
	}
	if id := c.UserID(); id != uuid.Nil {
		return id, nil
	}
	return uuid.Nil, &services.ValidationError{Field: field, Reason: "is required"}
}

type registerPayload struct {
	UserID string `json:"userId" validate:"required,uuid"`
}

func (r *Router) registerUser(ctx context.Context, c Client, data json.RawMessage) error {
	var p registerPayload
	var bare string
	if err := json.Unmarshal(data, &bare); err == nil {
		p.UserID = bare
		if err := r.validate.Struct(&p); err != nil {
			return r.fail(c, models.EventError, &services.ValidationError{Field: "userId", Reason: "must be a UUID"}, "")
		}
	} else if err := r.decode(data, &p); err != nil {
		return r.fail(c, models.EventError, err, "")
	}

	userID := uuid.MustParse(p.UserID)
	if prev := c.UserID(); prev != uuid.Nil && prev != userID {
		r.registry.Unregister(c)
	}
	c.SetUserID(userID)
	if replaced := r.registry.Register(userID, c); replaced != nil {
		r.logger.Info("Connection superseded", logging.Fields{
			"user_id":  userID.String(),
			"previous": replaced.ID(),
			"session":  c.ID(),
		})
	}
	return nil
}

type sendFriendRequestPayload struct {
	FromUserID string `json:"fromUserId" validate:"omitempty,uuid"`
	ToUserID   string `json:"toUserId" validate:"required,uuid"`
}

func (r *Router) sendFriendRequest(ctx context.Context, c Client, data json.RawMessage) error {
	var p sendFriendRequestPayload
	if err := r.decode(data, &p); err != nil {
		return r.fail(c, models.EventFriendRequestError, err, "")
	}
	from, err := actor(c, p.FromUserID, "fromUserId")
	if err != nil {
		return r.fail(c, models.EventFriendRequestError, err, "")
	}

	view, err := r.friendRequests.Send(ctx, from, uuid.MustParse(p.ToUserID))
	if err != nil {
		return r.fail(c, models.EventFriendRequestError, err, "Server error while sending request")
	}
	r.reply(c, models.EventFriendRequestSent, view)
	return nil
}

type updateFriendRequestPayload struct {
	RequestID string `json:"requestId" validate:"required,uuid"`
	Status    string `json:"status" validate:"required,oneof=accepted rejected"`
}

func (r *Router) updateFriendRequest(ctx context.Context, c Client, data json.RawMessage) error {
	var p updateFriendRequestPayload
	if err := r.decode(data, &p); err != nil {
		return r.fail(c, models.EventFriendRequestError, err, "")
	}

	view, err := r.friendRequests.Resolve(ctx, uuid.MustParse(p.RequestID), models.FriendRequestStatus(p.Status))
	if err != nil {
		return r.fail(c, models.EventFriendRequestError, err, "Error updating request")
	}
	r.reply(c, models.EventFriendRequestUpdated, view)
	return nil
}

type sendMessagePayload struct {
	FromUserID string `json:"fromUserId" validate:"omitempty,uuid"`
	ToUserID   string `json:"toUserId" validate:"required,uuid"`
	Message    string `json:"message"`
}

func (r *Router) sendMessage(ctx context.Context, c Client, data json.RawMessage) error {
	var p sendMessagePayload
	if err := r.decode(data, &p); err != nil {
		return r.fail(c, models.EventChatError, err, "")
	}
	from, err := actor(c, p.FromUserID, "fromUserId")
	if err != nil {
		return r.fail(c, models.EventChatError, err, "")
	}

	msg, err := r.messages.Send(ctx, from, uuid.MustParse(p.ToUserID), p.Message)
	if err != nil {
		return r.fail(c, models.EventChatError, err, "Error sending message")
	}
	r.reply(c, models.EventMessageSent, msg)
	return nil
}

type messageDeliveredPayload struct {
	MessageID string `json:"messageId" validate:"required,uuid"`
}

func (r *Router) messageDelivered(ctx context.Context, c Client, data json.RawMessage) error {
	var p messageDeliveredPayload
	if err := r.decode(data, &p); err != nil {
		return r.fail(c, models.EventChatError, err, "")
	}
	_, err := r.messages.MarkDelivered(ctx, uuid.MustParse(p.MessageID))
	if services.IsNotFound(err) {
		// Delivery acks are not answered; a stale id is only logged.
		r.logger.Warn("Delivery ack for unknown message", logging.Fields{
			"session":    c.ID(),
			"message_id": p.MessageID,
		})
		return err
	}
	if err != nil {
		return r.fail(c, models.EventChatError, err, "Error updating delivery status")
	}
	return nil
}

type markMessageAsReadPayload struct {
	MessageID string `json:"messageId" validate:"required,uuid"`
	UserID    string `json:"userId" validate:"omitempty,uuid"`
}

func (r *Router) markMessageAsRead(ctx context.Context, c Client, data json.RawMessage) error {
	var p markMessageAsReadPayload
	if err := r.decode(data, &p); err != nil {
		return r.fail(c, models.EventChatError, err, "")
	}
	reader := c.UserID()
	if p.UserID != "" {
		reader = uuid.MustParse(p.UserID)
	}
	if _, err := r.receipts.MarkOne(ctx, uuid.MustParse(p.MessageID), reader); err != nil {
		return r.fail(c, models.EventChatError, err, "Error updating read status")
	}
	return nil
}

type markMessagesAsReadPayload struct {
	ConversationID string `json:"conversationId" validate:"required,uuid"`
	UserID         string `json:"userId" validate:"omitempty,uuid"`
}

func (r *Router) markMessagesAsRead(ctx context.Context, c Client, data json.RawMessage) error {
	var p markMessagesAsReadPayload
	if err := r.decode(data, &p); err != nil {
		return r.fail(c, models.EventChatError, err, "")
	}
	reader, err := actor(c, p.UserID, "userId")
	if err != nil {
		return r.fail(c, models.EventChatError, err, "")
	}
	if _, err := r.receipts.MarkConversationRead(ctx, uuid.MustParse(p.ConversationID), reader); err != nil {
		return r.fail(c, models.EventChatError, err, "Error updating read status")
	}
	return nil
}
