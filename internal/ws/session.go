package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/HammerMeetNail/skillswap/internal/logging"
	"github.com/HammerMeetNail/skillswap/internal/models"
)

// Session is one websocket connection. Outbound events go through a buffered
// channel drained by writeLoop; inbound events are handled concurrently up to
// the configured in-flight limit.
type Session struct {
	id         string
	conn       *websocket.Conn
	server     *Server
	remoteAddr string
	logger     *logging.Logger

	send      chan models.Event
	done      chan struct{}
	closeOnce sync.Once
	inflight  chan struct{}
	handlers  sync.WaitGroup

	mu     sync.RWMutex
	userID uuid.UUID
}

func newSession(srv *Server, conn *websocket.Conn, remoteAddr string) *Session {
	id := uuid.NewString()
	return &Session{
		id:         id,
		conn:       conn,
		server:     srv,
		remoteAddr: remoteAddr,
		logger:     srv.logger.WithField("session", id),
		send:       make(chan models.Event, srv.cfg.SendBuffer),
		done:       make(chan struct{}),
		inflight:   make(chan struct{}, srv.cfg.MaxInflight),
	}
}

func (s *Session) ID() string { return s.id }

// Send queues ev without blocking. It returns false once the session is
// closed or when the outbound buffer is full.
func (s *Session) Send(ev models.Event) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- ev:
		return true
	default:
		return false
	}
}

func (s *Session) UserID() uuid.UUID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

func (s *Session) SetUserID(userID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = userID
}

func (s *Session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(s.server.cfg.WriteWait))
		_ = s.conn.Close()
	})
}

func (s *Session) readLoop() {
	defer func() {
		s.close()
		s.server.registry.Unregister(s)
		s.handlers.Wait()
		s.server.sessionGone(s)
		s.logger.Info("Session closed", logging.Fields{"user_id": s.UserID().String()})
	}()

	cfg := s.server.cfg
	s.conn.SetReadLimit(cfg.ReadLimit)
	_ = s.conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				s.logger.Warn("Read failed", logging.Fields{"error": err.Error()})
			}
			return
		}
		s.dispatchRaw(raw)
	}
}

func (s *Session) dispatchRaw(raw []byte) {
	var ev models.Event
	if err := json.Unmarshal(raw, &ev); err != nil || ev.Name == "" {
		s.logger.Debug("Malformed frame", logging.Fields{"size": len(raw)})
		if reply, err := models.NewEvent(models.EventError, models.ErrorPayload{Message: "Malformed event"}); err == nil {
			s.Send(reply)
		}
		return
	}

	// Registration runs inline so that later events on this connection see it.
	if ev.Name == models.EventRegisterUser {
		ctx, cancel := context.WithTimeout(s.server.ctx, s.server.cfg.EventTimeout)
		defer cancel()
		s.server.router.Route(ctx, s, ev)
		return
	}

	select {
	case s.inflight <- struct{}{}:
	case <-s.done:
		return
	}
	s.handlers.Add(1)
	go func() {
		defer func() {
			<-s.inflight
			s.handlers.Done()
		}()
		ctx, cancel := context.WithTimeout(s.server.ctx, s.server.cfg.EventTimeout)
		defer cancel()
		s.server.router.Route(ctx, s, ev)
	}()
}

func (s *Session) writeLoop() {
	cfg := s.server.cfg
	ticker := time.NewTicker(cfg.PongWait * 9 / 10)
	defer func() {
		ticker.Stop()
		s.close()
	}()

	for {
		select {
		case ev := <-s.send:
			if err := s.write(websocket.TextMessage, ev); err != nil {
				s.logger.Warn("Write failed", logging.Fields{"error": err.Error()})
				return
			}
		case <-ticker.C:
			if err := s.write(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.done:
			return
		}
	}
}

func (s *Session) write(messageType int, v any) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(s.server.cfg.WriteWait))
	if messageType != websocket.TextMessage {
		return s.conn.WriteMessage(messageType, nil)
	}
	return s.conn.WriteJSON(v)
}
