package ws

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/HammerMeetNail/skillswap/internal/config"
	"github.com/HammerMeetNail/skillswap/internal/logging"
	"github.com/HammerMeetNail/skillswap/internal/metrics"
)

// Server upgrades HTTP requests to websocket sessions.
type Server struct {
	cfg      config.RealtimeConfig
	registry Registry
	router   *Router
	metrics  *metrics.Metrics
	logger   *logging.Logger
	upgrader websocket.Upgrader

	ctx     context.Context
	cancel  context.CancelFunc
	closing atomic.Bool

	mu       sync.Mutex
	sessions map[*Session]struct{}
	wg       sync.WaitGroup
}

func NewServer(cfg config.RealtimeConfig, registry Registry, router *Router, m *metrics.Metrics, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.Default
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:      cfg,
		registry: registry,
		router:   router,
		metrics:  m,
		logger:   logger.WithComponent("ws"),
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[*Session]struct{}),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// checkOrigin allows requests without an Origin header (non-browser clients)
// and browser requests from the allow list. An empty list allows any origin.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(s.cfg.AllowedOrigins) == 0 {
		return true
	}
	for _, allowed := range s.cfg.AllowedOrigins {
		if allowed == origin {
			return true
		}
	}
	return false
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.closing.Load() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		s.logger.Warn("Upgrade failed", logging.Fields{"error": err.Error(), "remote_addr": r.RemoteAddr})
		return
	}

	sess := newSession(s, conn, r.RemoteAddr)
	s.mu.Lock()
	if s.closing.Load() {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.sessions[sess] = struct{}{}
	s.wg.Add(1)
	count := len(s.sessions)
	s.mu.Unlock()

	s.metrics.SessionOpened()
	sess.logger.Info("Session started", logging.Fields{"remote_addr": sess.remoteAddr, "sessions": count})

	go sess.writeLoop()
	go sess.readLoop()
}

func (s *Server) sessionGone(sess *Session) {
	s.mu.Lock()
	delete(s.sessions, sess)
	s.mu.Unlock()
	s.wg.Done()
}

// Shutdown closes every session and waits for in-flight events to finish or ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	s.closing.Store(true)
	defer s.cancel()

	s.mu.Lock()
	for sess := range s.sessions {
		sess.close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
