package containers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/crewdeck-platform/crewdeck/internal/nats"
	"github.com/crewdeck-platform/crewdeck/internal/resources"
	"github.com/crewdeck-platform/crewdeck/internal/usage"
)

// EventSink publishes container lifecycle events. Nil-able in tests.
type EventSink interface {
	PublishContainerEvent(ctx context.Context, event nats.ContainerEvent) error
}

// Service gates container creation twice: the plan's live container
// count first, then the resource quota for the requested allocation.
// Both commits happen only after both checks pass; deletion releases
// both in the same order.
type Service struct {
	repo   Repository
	quota  *usage.Service
	resQ   *resources.Service
	events EventSink
}

func NewService(repo Repository, quota *usage.Service, resQ *resources.Service, events EventSink) *Service {
	return &Service{repo: repo, quota: quota, resQ: resQ, events: events}
}

func (s *Service) Create(ctx context.Context, accountID uuid.UUID, req *CreateContainerRequest) (*Container, error) {
	countRes, err := s.quota.CheckQuota(ctx, accountID, usage.QuotaContainers)
	if err != nil {
		return nil, err
	}
	if !countRes.Allowed {
		return nil, &usage.DeniedError{Result: countRes}
	}

	resRes, err := s.resQ.CheckResourceQuota(ctx, accountID, resources.Request{
		CPU:    req.CPU,
		Memory: req.Memory,
		Disk:   req.Disk,
	})
	if err != nil {
		return nil, err
	}
	if !resRes.Allowed {
		return nil, &resources.DeniedError{Result: resRes}
	}

	now := time.Now()
	c := &Container{
		ID:        uuid.New(),
		AccountID: accountID,
		AgentID:   req.AgentID,
		Name:      req.Name,
		Image:     req.Image,
		CPU:       req.CPU,
		Memory:    req.Memory,
		Disk:      req.Disk,
		Status:    StatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}

	if err := s.quota.IncrementUsage(ctx, accountID, usage.QuotaContainers); err != nil {
		return nil, fmt.Errorf("recording container count: %w", err)
	}
	if err := s.resQ.IncrementResourceUsage(ctx, accountID, c.CPU, c.Memory, c.Disk); err != nil {
		return nil, fmt.Errorf("recording resource usage: %w", err)
	}

	s.publishEvent(ctx, c, "created")
	return c, nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Container, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByAccount(ctx context.Context, accountID uuid.UUID, params ListContainersParams) ([]*Container, int64, error) {
	offset := (params.Page - 1) * params.PageSize

	out, err := s.repo.ListByAccount(ctx, accountID, params.PageSize, offset)
	if err != nil {
		return nil, 0, err
	}

	count, err := s.repo.CountByAccount(ctx, accountID)
	if err != nil {
		return nil, 0, err
	}

	return out, count, nil
}

// Delete releases the container's quota slot and its resource
// allocation. Both decrements floor at zero, so a replayed delete of an
// already-gone container cannot drive the totals negative.
func (s *Service) Delete(ctx context.Context, c *Container) error {
	if err := s.repo.SoftDelete(ctx, c.ID); err != nil {
		return err
	}

	if err := s.quota.DecrementUsage(ctx, c.AccountID, usage.QuotaContainers); err != nil {
		return fmt.Errorf("releasing container count: %w", err)
	}
	if err := s.resQ.DecrementResourceUsage(ctx, c.AccountID, c.CPU, c.Memory, c.Disk); err != nil {
		return fmt.Errorf("releasing resource usage: %w", err)
	}

	s.publishEvent(ctx, c, "deleted")
	return nil
}

func (s *Service) publishEvent(ctx context.Context, c *Container, eventType string) {
	if s.events == nil {
		return
	}
	err := s.events.PublishContainerEvent(ctx, nats.ContainerEvent{
		ContainerID: c.ID,
		AccountID:   c.AccountID,
		EventType:   eventType,
		CPU:         c.CPU,
		Memory:      c.Memory,
		Disk:        c.Disk,
		Timestamp:   time.Now(),
	})
	if err != nil {
		slog.Error("publishing container event", "container_id", c.ID, "event", eventType, "error", err)
	}
}
