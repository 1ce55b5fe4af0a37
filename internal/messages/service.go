package messages

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/crewdeck-platform/crewdeck/internal/nats"
	"github.com/crewdeck-platform/crewdeck/internal/usage"
)

// EventSink publishes queued messages for dispatch. Nil-able in tests.
type EventSink interface {
	PublishMessageQueued(ctx context.Context, msg nats.QueuedMessage) error
}

// Service meters message sends against the rolling 30-day quota. The
// counter is bumped when the send is accepted, not when it is delivered,
// and is never refunded on failure.
type Service struct {
	repo   Repository
	quota  *usage.Service
	events EventSink
}

func NewService(repo Repository, quota *usage.Service, events EventSink) *Service {
	return &Service{repo: repo, quota: quota, events: events}
}

// Send checks the message quota, persists the message as queued, commits
// the usage increment, and hands the message to the dispatch stream.
func (s *Service) Send(ctx context.Context, accountID uuid.UUID, req *SendMessageRequest) (*Message, error) {
	res, err := s.quota.CheckQuota(ctx, accountID, usage.QuotaMessages)
	if err != nil {
		return nil, err
	}
	if !res.Allowed {
		return nil, &usage.DeniedError{Result: res}
	}

	msg := &Message{
		ID:        uuid.New(),
		AccountID: accountID,
		AgentID:   req.AgentID,
		Body:      req.Body,
		Status:    StatusQueued,
		CreatedAt: time.Now(),
	}

	if err := s.repo.Create(ctx, msg); err != nil {
		return nil, err
	}

	if err := s.quota.IncrementUsage(ctx, accountID, usage.QuotaMessages); err != nil {
		return nil, fmt.Errorf("recording message usage: %w", err)
	}

	if s.events != nil {
		err := s.events.PublishMessageQueued(ctx, nats.QueuedMessage{
			ID:        msg.ID,
			AccountID: msg.AccountID,
			AgentID:   msg.AgentID,
			Body:      msg.Body,
			QueuedAt:  msg.CreatedAt,
		})
		if err != nil {
			// The message is persisted and counted; dispatch can be
			// retried out of band, so the send still succeeds.
			slog.Error("publishing queued message", "message_id", msg.ID, "error", err)
		}
	}

	return msg, nil
}

// MarkDelivered is called by dispatch workers once an agent has handled
// the message.
func (s *Service) MarkDelivered(ctx context.Context, id uuid.UUID) error {
	return s.repo.SetStatus(ctx, id, StatusDelivered)
}

// MarkFailed records a dispatch failure. The quota counter is not
// decremented.
func (s *Service) MarkFailed(ctx context.Context, id uuid.UUID) error {
	return s.repo.SetStatus(ctx, id, StatusFailed)
}

func (s *Service) ListByAccount(ctx context.Context, accountID uuid.UUID, params ListMessagesParams) ([]*Message, int64, error) {
	offset := (params.Page - 1) * params.PageSize

	msgs, err := s.repo.ListByAccount(ctx, accountID, params.PageSize, offset)
	if err != nil {
		return nil, 0, err
	}

	count, err := s.repo.CountByAccount(ctx, accountID)
	if err != nil {
		return nil, 0, err
	}

	return msgs, count, nil
}
