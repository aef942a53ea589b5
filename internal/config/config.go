package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Realtime  RealtimeConfig
	Broker    BrokerConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Host        string
	Port        int
	Environment string // "development", "production", "test"
	LogLevel    string
	MetricsPath string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

type RedisConfig struct {
	Host         string
	Port         int
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
}

// RealtimeConfig tunes the websocket event gateway.
type RealtimeConfig struct {
	AllowedOrigins   []string // empty allows any origin
	SendBuffer       int      // outbound frames queued per connection
	MaxInflight      int      // concurrent inbound events per connection
	EventTimeout     time.Duration
	ReadLimit        int64 // max inbound frame size in bytes
	PongWait         time.Duration
	WriteWait        time.Duration
	MaxMessageLength int // max chat message length in runes
}

// BrokerConfig points at the optional RabbitMQ exchange that mirrors domain events.
// An empty URL disables publishing.
type BrokerConfig struct {
	URL      string
	Exchange string
}

type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

func (b BrokerConfig) Enabled() bool {
	return b.URL != ""
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:        getEnv("SERVER_HOST", "0.0.0.0"),
			Port:        getEnvInt("SERVER_PORT", 8000),
			Environment: getEnv("APP_ENV", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			MetricsPath: getEnv("METRICS_PATH", "/metrics"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "skillswap"),
			Password: getEnv("DB_PASSWORD", "skillswap"),
			DBName:   getEnv("DB_NAME", "skill_swap"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: int32(getEnvInt("DB_MAX_CONNS", 25)),
			MinConns: int32(getEnvInt("DB_MIN_CONNS", 5)),
		},
		Redis: RedisConfig{
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnvInt("REDIS_PORT", 6379),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvInt("REDIS_DB", 0),
			PoolSize:     getEnvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvInt("REDIS_MIN_IDLE_CONNS", 3),
		},
		Realtime: RealtimeConfig{
			AllowedOrigins:   getEnvList("WS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			SendBuffer:       getEnvInt("WS_SEND_BUFFER", 64),
			MaxInflight:      getEnvInt("WS_MAX_INFLIGHT", 8),
			EventTimeout:     getEnvDuration("WS_EVENT_TIMEOUT", 10*time.Second),
			ReadLimit:        int64(getEnvInt("WS_READ_LIMIT", 64*1024)),
			PongWait:         getEnvDuration("WS_PONG_WAIT", 60*time.Second),
			WriteWait:        getEnvDuration("WS_WRITE_WAIT", 10*time.Second),
			MaxMessageLength: getEnvInt("CHAT_MAX_MESSAGE_LENGTH", 4000),
		},
		Broker: BrokerConfig{
			URL:      getEnv("AMQP_URL", ""),
			Exchange: getEnv("AMQP_EXCHANGE", "skillswap.events"),
		},
		RateLimit: RateLimitConfig{
			Requests: getEnvInt("RATE_LIMIT_REQUESTS", 120),
			Window:   getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
	}

	if cfg.Realtime.SendBuffer <= 0 {
		return nil, fmt.Errorf("WS_SEND_BUFFER must be positive, got %d", cfg.Realtime.SendBuffer)
	}
	if cfg.Realtime.MaxInflight <= 0 {
		return nil, fmt.Errorf("WS_MAX_INFLIGHT must be positive, got %d", cfg.Realtime.MaxInflight)
	}
	if cfg.Realtime.PongWait <= 0 {
		return nil, fmt.Errorf("WS_PONG_WAIT must be positive, got %s", cfg.Realtime.PongWait)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated value. An explicitly empty variable yields an empty list.
func getEnvList(key string, defaultValue []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
