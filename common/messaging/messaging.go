// Package messaging provides abstractions for publishing events to a message
// broker without coupling callers to a specific broker implementation.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Message represents a message sent to a message broker.
type Message struct {
	// Subject is the topic/channel the message is published to.
	Subject string

	// Data is the raw message payload.
	Data []byte

	// Metadata contains optional key-value pairs for message headers.
	Metadata map[string]string

	// Timestamp is when the message was published.
	Timestamp time.Time
}

// Publisher publishes messages to subjects.
type Publisher interface {
	// Publish sends a message to the specified subject.
	Publish(ctx context.Context, subject string, data []byte) error

	// PublishMsg sends a Message with full control over headers.
	PublishMsg(ctx context.Context, msg *Message) error

	// Close releases any resources held by the publisher.
	Close() error
}

// PublishOption configures message publishing behavior.
type PublishOption func(*Message)

// WithHeader adds a header to the published message.
func WithHeader(key, value string) PublishOption {
	return func(m *Message) {
		if m.Metadata == nil {
			m.Metadata = make(map[string]string)
		}
		m.Metadata[key] = value
	}
}

// PublishJSON marshals v and publishes it to subject through p.
func PublishJSON(ctx context.Context, p Publisher, subject string, v any, opts ...PublishOption) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	msg := &Message{
		Subject:   subject,
		Data:      data,
		Timestamp: time.Now(),
	}
	for _, opt := range opts {
		opt(msg)
	}
	if len(msg.Metadata) == 0 {
		return p.Publish(ctx, subject, data)
	}
	return p.PublishMsg(ctx, msg)
}

// NoOpPublisher drops every message (event publishing disabled).
type NoOpPublisher struct{}

func (NoOpPublisher) Publish(context.Context, string, []byte) error {
	return nil
}

func (NoOpPublisher) PublishMsg(context.Context, *Message) error {
	return nil
}

func (NoOpPublisher) Close() error {
	return nil
}
