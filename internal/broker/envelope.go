// Package broker mirrors domain events to a RabbitMQ topic exchange.
package broker

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Meta describes one published event.
type Meta struct {
	ID            string    `json:"id"`
	CorrelationID *string   `json:"correlation_id,omitempty"`
	Producer      string    `json:"producer"`
	Time          time.Time `json:"time"`
	// Type is the routing key with a schema version, e.g. message.sent.v1.
	Type string `json:"type"`
}

type Envelope struct {
	Meta Meta `json:"meta"`
	Data any  `json:"data"`
}

// NewEnvelope wraps data for routing key.
func NewEnvelope(producer, key string, data any) Envelope {
	return Envelope{
		Meta: Meta{
			ID:       uuid.NewString(),
			Producer: producer,
			Time:     time.Now().UTC(),
			Type:     key + ".v1",
		},
		Data: data,
	}
}

type correlationKey struct{}

// WithCorrelationID attaches id to ctx so envelopes published under it carry the id.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

func correlationID(ctx context.Context) *string {
	if id, ok := ctx.Value(correlationKey{}).(string); ok && id != "" {
		return &id
	}
	return nil
}
