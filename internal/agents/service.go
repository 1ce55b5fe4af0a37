package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/crewdeck-platform/crewdeck/internal/usage"
)

// Service is quota-gated agent CRUD. Create checks the account's agent
// quota before inserting and bumps the live count after; Delete reverses
// the count. The check and the increment are separate calls, so two
// racing creates at the last free slot can both land — the counter still
// ends up correct, the ceiling is just soft by the race width.
type Service struct {
	repo  Repository
	quota *usage.Service
}

func NewService(repo Repository, quota *usage.Service) *Service {
	return &Service{repo: repo, quota: quota}
}

func (s *Service) Create(ctx context.Context, accountID uuid.UUID, req *CreateAgentRequest) (*Agent, error) {
	res, err := s.quota.CheckQuota(ctx, accountID, usage.QuotaAgents)
	if err != nil {
		return nil, err
	}
	if !res.Allowed {
		return nil, &usage.DeniedError{Result: res}
	}

	now := time.Now()
	agent := &Agent{
		ID:           uuid.New(),
		AccountID:    accountID,
		Name:         req.Name,
		Description:  req.Description,
		SystemPrompt: req.SystemPrompt,
		Config:       defaultJSON(req.Config),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Create(ctx, agent); err != nil {
		return nil, err
	}

	if err := s.quota.IncrementUsage(ctx, accountID, usage.QuotaAgents); err != nil {
		return nil, fmt.Errorf("recording agent count: %w", err)
	}

	return agent, nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Agent, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByAccount(ctx context.Context, accountID uuid.UUID, params ListAgentsParams) ([]*Agent, int64, error) {
	offset := (params.Page - 1) * params.PageSize

	agents, err := s.repo.ListByAccount(ctx, accountID, params.PageSize, offset)
	if err != nil {
		return nil, 0, err
	}

	count, err := s.repo.CountByAccount(ctx, accountID)
	if err != nil {
		return nil, 0, err
	}

	return agents, count, nil
}

func (s *Service) Update(ctx context.Context, agent *Agent, req *UpdateAgentRequest) (*Agent, error) {
	if req.Name != nil {
		agent.Name = *req.Name
	}
	if req.Description != nil {
		agent.Description = *req.Description
	}
	if req.SystemPrompt != nil {
		agent.SystemPrompt = *req.SystemPrompt
	}
	if req.Config != nil {
		agent.Config = defaultJSON(*req.Config)
	}
	agent.UpdatedAt = time.Now()

	if err := s.repo.Update(ctx, agent); err != nil {
		return nil, err
	}
	return agent, nil
}

// Delete soft-deletes the agent and releases its quota slot. The count
// decrement floors at zero in the store, so replays cannot underflow.
func (s *Service) Delete(ctx context.Context, accountID, id uuid.UUID) error {
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return err
	}
	if err := s.quota.DecrementUsage(ctx, accountID, usage.QuotaAgents); err != nil {
		return fmt.Errorf("releasing agent count: %w", err)
	}
	return nil
}

func defaultJSON(data json.RawMessage) []byte {
	if len(data) == 0 {
		return []byte("{}")
	}
	return data
}
