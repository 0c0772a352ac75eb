package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Account lifecycle event types.
const (
	EventAccountRegistered = "account.registered"
	EventSessionStarted    = "session.started"
	EventSessionRotated    = "session.rotated"
	EventSessionEnded      = "session.ended"
)

// AccountEvent is the JSON payload published for account lifecycle changes.
// It never carries credentials or tokens.
type AccountEvent struct {
	Type       string    `json:"type"`
	AccountID  string    `json:"accountId"`
	Username   string    `json:"username,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Publisher is the subset of MQ used to emit events.
type Publisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// AccountEventPublisher publishes AccountEvents to a single channel.
type AccountEventPublisher struct {
	publisher Publisher
	channel   string
}

// NewAccountEventPublisher constructs a publisher for the named channel.
func NewAccountEventPublisher(publisher Publisher, channel string) (*AccountEventPublisher, error) {
	if publisher == nil {
		return nil, errors.New("publisher is required")
	}
	if strings.TrimSpace(channel) == "" {
		return nil, errors.New("account events channel is required")
	}
	return &AccountEventPublisher{publisher: publisher, channel: channel}, nil
}

// PublishAccountEvent encodes event and publishes it with its type as an attribute.
func (p *AccountEventPublisher) PublishAccountEvent(ctx context.Context, event AccountEvent) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode account event: %w", err)
	}
	if _, err := p.publisher.Publish(ctx, p.channel, data, map[string]string{"type": event.Type}); err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	return nil
}
