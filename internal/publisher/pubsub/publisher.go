// Package pubsub publishes index transition events to Google Cloud Pub/Sub.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"go.opentelemetry.io/otel"
)

// TopicAttribute carries the logical topic, since several event kinds may
// share one Pub/Sub topic.
const TopicAttribute = "event_topic"

// Attributer is implemented by payloads that contribute message attributes
// for subscription filters.
type Attributer interface {
	Attributes() map[string]string
}

// OrderingKeyer is implemented by payloads that must be delivered in order
// per key. The topic publisher must have message ordering enabled.
type OrderingKeyer interface {
	OrderingKey() string
}

// Publisher wraps a Pub/Sub topic publisher.
type Publisher struct {
	publisher *pubsub.Publisher
}

// New creates a Publisher for the provided topic publisher.
func New(publisher *pubsub.Publisher) *Publisher {
	return &Publisher{publisher: publisher}
}

// Publish marshals the payload to JSON, tags it with the logical topic and
// trace context, and waits for the server id.
func (p *Publisher) Publish(ctx context.Context, topic string, payload any) (string, error) {
	if p.publisher == nil {
		return "", fmt.Errorf("pubsub publisher is not configured")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	msg := &pubsub.Message{Data: data, Attributes: map[string]string{}}
	if a, ok := payload.(Attributer); ok {
		for k, v := range a.Attributes() {
			msg.Attributes[k] = v
		}
	}
	if topic != "" {
		msg.Attributes[TopicAttribute] = topic
	}
	if o, ok := payload.(OrderingKeyer); ok && p.publisher.EnableMessageOrdering {
		msg.OrderingKey = o.OrderingKey()
	}
	otel.GetTextMapPropagator().Inject(ctx, &carrier{attrs: msg.Attributes})

	id, err := p.publisher.Publish(ctx, msg).Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish message: %w", err)
	}
	return id, nil
}

// carrier implements propagation.TextMapCarrier over message attributes.
type carrier struct {
	attrs map[string]string
}

func (c *carrier) Get(key string) string { return c.attrs[key] }

func (c *carrier) Set(key, value string) { c.attrs[key] = value }

func (c *carrier) Keys() []string {
	keys := make([]string, 0, len(c.attrs))
	for k := range c.attrs {
		keys = append(keys, k)
	}
	return keys
}
