package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/HammerMeetNail/skillswap/internal/logging"
)

const producerName = "skillswap-realtime"

type amqpChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type amqpConnection interface {
	Channel() (amqpChannel, error)
	Close() error
}

type connAdapter struct {
	conn *amqp.Connection
}

func (c connAdapter) Channel() (amqpChannel, error) {
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, err
	}
	return ch, nil
}

func (c connAdapter) Close() error {
	return c.conn.Close()
}

var dialAMQP = func(url string) (amqpConnection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	return connAdapter{conn: conn}, nil
}

// Options configure Connect.
type Options struct {
	URL           string
	Exchange      string
	RetryAttempts int
	Delay         time.Duration
	Logger        *logging.Logger
}

const maxRetryDelay = 30 * time.Second

// Publisher publishes JSON envelopes to a durable topic exchange. It is safe
// for concurrent use; each publish opens its own channel.
type Publisher struct {
	conn     amqpConnection
	exchange string
	logger   *logging.Logger
}

// Connect dials the broker with exponential backoff and declares the exchange.
func Connect(ctx context.Context, opts Options) (*Publisher, error) {
	if opts.Logger == nil {
		opts.Logger = logging.Default
	}
	logger := opts.Logger.WithComponent("broker")
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = 1
	}

	conn, err := dialWithRetry(ctx, opts, logger)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("opening channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(opts.Exchange, "topic", true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declaring exchange %s: %w", opts.Exchange, err)
	}

	return &Publisher{conn: conn, exchange: opts.Exchange, logger: logger}, nil
}

func dialWithRetry(ctx context.Context, opts Options, logger *logging.Logger) (amqpConnection, error) {
	var lastErr error
	delay := opts.Delay
	for attempt := 1; attempt <= opts.RetryAttempts; attempt++ {
		conn, err := dialAMQP(opts.URL)
		if err == nil {
			if attempt > 1 {
				logger.Info("Broker connected", logging.Fields{"attempt": attempt})
			}
			return conn, nil
		}
		lastErr = err
		if attempt == opts.RetryAttempts {
			break
		}

		logger.Warn("Broker dial failed", logging.Fields{
			"attempt": attempt,
			"sleep":   delay.String(),
			"error":   err.Error(),
		})

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("dial cancelled: %w", ctx.Err())
		case <-timer.C:
		}

		delay *= 2
		if delay > maxRetryDelay {
			delay = maxRetryDelay
		}
	}
	return nil, fmt.Errorf("connecting to broker after %d attempts: %w", opts.RetryAttempts, lastErr)
}

// Publish wraps payload in an envelope and routes it by key.
func (p *Publisher) Publish(ctx context.Context, key string, payload any) error {
	env := NewEnvelope(producerName, key, payload)
	env.Meta.CorrelationID = correlationID(ctx)

	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encoding envelope: %w", err)
	}

	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("opening channel: %w", err)
	}
	defer ch.Close()

	cid := uuid.NewString()
	if env.Meta.CorrelationID != nil {
		cid = *env.Meta.CorrelationID
	}

	err = ch.PublishWithContext(ctx, p.exchange, key, false, false, amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		MessageId:     env.Meta.ID,
		CorrelationId: cid,
		Timestamp:     env.Meta.Time,
		Type:          env.Meta.Type,
		Body:          body,
	})
	if err != nil {
		return fmt.Errorf("publishing %s: %w", key, err)
	}
	p.logger.Debug("Published", logging.Fields{"key": key, "exchange": p.exchange})
	return nil
}

func (p *Publisher) Close() error {
	if p == nil || p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	if errors.Is(err, amqp.ErrClosed) {
		return nil
	}
	return err
}

// Noop discards events when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, string, any) error { return nil }
func (Noop) Close() error                                { return nil }
