package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/HammerMeetNail/skillswap/internal/broker"
	"github.com/HammerMeetNail/skillswap/internal/config"
	"github.com/HammerMeetNail/skillswap/internal/database"
	"github.com/HammerMeetNail/skillswap/internal/handlers"
	"github.com/HammerMeetNail/skillswap/internal/logging"
	"github.com/HammerMeetNail/skillswap/internal/metrics"
	"github.com/HammerMeetNail/skillswap/internal/middleware"
	"github.com/HammerMeetNail/skillswap/internal/notify"
	"github.com/HammerMeetNail/skillswap/internal/presence"
	"github.com/HammerMeetNail/skillswap/internal/services"
	"github.com/HammerMeetNail/skillswap/internal/ws"
	"github.com/HammerMeetNail/skillswap/migrations"
)

func main() {
	if err := run(); err != nil {
		logging.Error("Application error", logging.Fields{"error": err.Error()})
		os.Exit(1)
	}
}

// eventSink is a domain event publisher that can be closed on shutdown.
type eventSink interface {
	services.EventPublisher
	Close() error
}

func run() error {
	// A missing .env is fine; the environment may already be set.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.Warn("Could not read .env", logging.Fields{"error": err.Error()})
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	level := logging.ParseLevel(cfg.Server.LogLevel)
	logging.SetDefaultLevel(level)
	logger := logging.New().SetLevel(level)
	logger.Info("Starting Skill Swap realtime server", logging.Fields{"env": cfg.Server.Environment})

	logger.Info("Connecting to PostgreSQL", logging.Fields{
		"host": cfg.Database.Host,
		"port": cfg.Database.Port,
	})
	db, err := database.NewPostgresDB(cfg.Database.DSN(), database.PoolOptions{
		MaxConns: cfg.Database.MaxConns,
		MinConns: cfg.Database.MinConns,
	})
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer db.Close()

	logger.Info("Running database migrations...")
	migrator, err := database.NewEmbeddedMigrator(cfg.Database.DSN(), migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	if err := migrator.Up(); err != nil {
		_ = migrator.Close()
		return fmt.Errorf("running migrations: %w", err)
	}
	_ = migrator.Close()

	logger.Info("Connecting to Redis", logging.Fields{"addr": cfg.Redis.Addr()})
	redisDB, err := database.NewRedisDB(database.RedisOptions{
		Addr:         cfg.Redis.Addr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	})
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() { _ = redisDB.Close() }()

	var events eventSink = broker.Noop{}
	if cfg.Broker.Enabled() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		publisher, err := broker.Connect(ctx, broker.Options{
			URL:           cfg.Broker.URL,
			Exchange:      cfg.Broker.Exchange,
			RetryAttempts: 5,
			Delay:         time.Second,
			Logger:        logger,
		})
		cancel()
		if err != nil {
			return fmt.Errorf("connecting to broker: %w", err)
		}
		events = publisher
		logger.Info("Publishing domain events", logging.Fields{"exchange": cfg.Broker.Exchange})
	}
	defer func() { _ = events.Close() }()

	registry := presence.NewRegistry()
	m := metrics.New("skillswap", registry)
	dispatcher := notify.NewDispatcher(registry, m, logger)

	dbAdapter := services.NewPoolAdapter(db.Pool)
	userService := services.NewUserService(dbAdapter, registry)
	sessionService := services.NewSessionService(services.NewRedisAdapter(redisDB.Client), userService)
	conversationService := services.NewConversationService(dbAdapter)
	friendRequestService := services.NewFriendRequestService(dbAdapter, dispatcher, events)
	messageService := services.NewMessageService(dbAdapter, userService, registry, dispatcher, events, cfg.Realtime.MaxMessageLength)
	receiptService := services.NewReceiptService(dbAdapter, dispatcher, events)

	router := ws.NewRouter(registry, friendRequestService, messageService, receiptService, m, logger)
	gateway := ws.NewServer(cfg.Realtime, registry, router, m, logger)

	healthHandler := handlers.NewHealthHandler(db, redisDB)
	friendHandler := handlers.NewFriendHandler(userService, friendRequestService)
	chatHandler := handlers.NewChatHandler(userService, conversationService, messageService, receiptService)

	authMiddleware := middleware.NewAuthMiddleware(sessionService)
	csrfMiddleware := middleware.NewCSRFMiddleware(cfg.Server.Environment == "production")
	securityHeaders := middleware.NewSecurityHeaders(cfg.Server.Environment == "production")
	requestLogger := middleware.NewRequestLogger(logger)
	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRedisCounter(redisDB.Client),
		cfg.RateLimit.Requests, cfg.RateLimit.Window, "ratelimit:api:", middleware.UserOrIP,
	)
	upgradeLimiter := middleware.NewRateLimiter(
		middleware.NewRedisCounter(redisDB.Client),
		cfg.RateLimit.Requests, cfg.RateLimit.Window, "ratelimit:ws:", nil,
	)

	requireAuth := func(h http.HandlerFunc) http.Handler {
		return rateLimiter.Middleware(authMiddleware.RequireAuth(h))
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", healthHandler.Health)
	mux.HandleFunc("GET /ready", healthHandler.Ready)
	mux.HandleFunc("GET /live", healthHandler.Live)
	mux.Handle("GET "+cfg.Server.MetricsPath, m.Handler())

	mux.Handle("GET /ws", upgradeLimiter.Middleware(gateway))

	mux.HandleFunc("GET /api/csrf", csrfMiddleware.GetToken)

	mux.Handle("GET /api/friends", requireAuth(friendHandler.List))
	mux.Handle("GET /api/friends/requests", requireAuth(friendHandler.ListRequests))
	mux.Handle("GET /api/friends/requests/sent", requireAuth(friendHandler.ListSentRequests))
	mux.Handle("DELETE /api/friends/requests/{id}", requireAuth(friendHandler.CancelRequest))

	mux.Handle("GET /api/chat/conversations", requireAuth(chatHandler.ListConversations))
	mux.Handle("GET /api/chat/messages/{friendId}", requireAuth(chatHandler.History))
	mux.Handle("GET /api/chat/unread-count", requireAuth(chatHandler.UnreadCount))
	mux.Handle("GET /api/chat/unread-count/{conversationId}", requireAuth(chatHandler.UnreadCount))

	// Outermost first: logger, security headers, CSRF, then session lookup.
	var handler http.Handler = mux
	handler = authMiddleware.Authenticate(handler)
	handler = csrfMiddleware.Protect(handler)
	handler = securityHeaders.Apply(handler)
	handler = requestLogger.Apply(handler)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	done := make(chan struct{})
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		logger.Info("Server is shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		server.SetKeepAlivesEnabled(false)
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("Could not gracefully shutdown the server", logging.Fields{"error": err.Error()})
		}
		// Hijacked websocket connections are not tracked by http.Server.
		if err := gateway.Shutdown(ctx); err != nil {
			logger.Error("Could not drain websocket sessions", logging.Fields{"error": err.Error()})
		}
		close(done)
	}()

	logger.Info("Server listening", logging.Fields{"addr": addr})
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	<-done
	logger.Info("Server stopped")
	return nil
}
