package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/layer-3/keyauth/ports"
)

const (
	TopicSessionCreated = "keyauth.session.created"
	TopicSessionRevoked = "keyauth.session.revoked"
	TopicReplayDetected = "keyauth.replay.detected"
)

// AuthEvent is the payload of every published event
type AuthEvent struct {
	AccountID  string    `json:"account_id"`
	SubjectID  string    `json:"subject_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
}

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher) ports.EventPublisher {
	return &WatermillPublisher{publisher: publisher}
}

// PublishSessionCreated announces a new session; sessionID is never the token.
func (p *WatermillPublisher) PublishSessionCreated(ctx context.Context, accountID, sessionID string) error {
	return p.publish(ctx, TopicSessionCreated, accountID, sessionID)
}

// PublishSessionRevoked announces a logout.
func (p *WatermillPublisher) PublishSessionRevoked(ctx context.Context, accountID, sessionID string) error {
	return p.publish(ctx, TopicSessionRevoked, accountID, sessionID)
}

// PublishReplayDetected announces a second use of a consumed challenge.
func (p *WatermillPublisher) PublishReplayDetected(ctx context.Context, accountID, challengeID string) error {
	return p.publish(ctx, TopicReplayDetected, accountID, challengeID)
}

func (p *WatermillPublisher) publish(ctx context.Context, topic, accountID, subjectID string) error {
	payload, err := json.Marshal(AuthEvent{
		AccountID:  accountID,
		SubjectID:  subjectID,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(uuid.NewString(), payload)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// NopPublisher drops every event. Used when event publishing is disabled.
type NopPublisher struct{}

func (NopPublisher) PublishSessionCreated(context.Context, string, string) error { return nil }
func (NopPublisher) PublishSessionRevoked(context.Context, string, string) error { return nil }
func (NopPublisher) PublishReplayDetected(context.Context, string, string) error { return nil }
