package ports

import "context"

// EventPublisher publishes events to notify other instances
type EventPublisher interface {
	PublishSessionCreated(ctx context.Context, accountID, sessionID string) error
	PublishSessionRevoked(ctx context.Context, accountID, sessionID string) error
	PublishReplayDetected(ctx context.Context, accountID, challengeID string) error
}
