package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
)

// Publisher provides typed methods for publishing events to NATS JetStream.
type Publisher struct {
	js jetstream.JetStream
}

// NewPublisher creates a new Publisher.
func NewPublisher(js jetstream.JetStream) *Publisher {
	return &Publisher{js: js}
}

// PublishMessageQueued publishes a sent message for dispatch processing.
func (p *Publisher) PublishMessageQueued(ctx context.Context, msg QueuedMessage) error {
	return p.publish(ctx, SubjectMessageQueued, msg)
}

// PublishQuotaReset publishes a window-reset event. Satisfies the usage
// sweeper's event sink.
func (p *Publisher) PublishQuotaReset(ctx context.Context, accountID uuid.UUID, window string) error {
	return p.publish(ctx, SubjectQuotaReset, QuotaResetEvent{
		AccountID: accountID,
		Window:    window,
		Timestamp: time.Now(),
	})
}

// PublishQuotaDenied publishes a denial event. Satisfies the quota
// engine's denial sink.
func (p *Publisher) PublishQuotaDenied(ctx context.Context, accountID uuid.UUID, quotaType, message string) error {
	return p.publish(ctx, SubjectQuotaDenied, QuotaDeniedEvent{
		AccountID: accountID,
		QuotaType: quotaType,
		Message:   message,
		Timestamp: time.Now(),
	})
}

// PublishContainerEvent publishes a container lifecycle event.
func (p *Publisher) PublishContainerEvent(ctx context.Context, event ContainerEvent) error {
	return p.publish(ctx, SubjectContainerEvent, event)
}

func (p *Publisher) publish(ctx context.Context, subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling event for %s: %w", subject, err)
	}
	_, err = p.js.Publish(ctx, subject, payload)
	if err != nil {
		return fmt.Errorf("publishing to %s: %w", subject, err)
	}
	return nil
}
