package agents

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemRepository is an in-memory Repository for tests.
type MemRepository struct {
	mu     sync.Mutex
	agents map[uuid.UUID]*Agent
}

func NewMemRepository() *MemRepository {
	return &MemRepository{agents: make(map[uuid.UUID]*Agent)}
}

func (r *MemRepository) Create(_ context.Context, agent *Agent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *agent
	r.agents[agent.ID] = &cp
	return nil
}

func (r *MemRepository) GetByID(_ context.Context, id uuid.UUID) (*Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	agent, ok := r.agents[id]
	if !ok || agent.DeletedAt != nil {
		return nil, ErrAgentNotFound
	}
	cp := *agent
	return &cp, nil
}

func (r *MemRepository) ListByAccount(_ context.Context, accountID uuid.UUID, limit, offset int) ([]*Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*Agent
	for _, agent := range r.agents {
		if agent.AccountID == accountID && agent.DeletedAt == nil {
			cp := *agent
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	if offset >= len(out) {
		return nil, nil
	}
	end := offset + limit
	if end > len(out) {
		end = len(out)
	}
	return out[offset:end], nil
}

func (r *MemRepository) CountByAccount(_ context.Context, accountID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var count int64
	for _, agent := range r.agents {
		if agent.AccountID == accountID && agent.DeletedAt == nil {
			count++
		}
	}
	return count, nil
}

func (r *MemRepository) Update(_ context.Context, agent *Agent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.agents[agent.ID]
	if !ok || existing.DeletedAt != nil {
		return ErrAgentNotFound
	}
	cp := *agent
	r.agents[agent.ID] = &cp
	return nil
}

func (r *MemRepository) SoftDelete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	agent, ok := r.agents[id]
	if !ok || agent.DeletedAt != nil {
		return ErrAgentNotFound
	}
	now := time.Now()
	agent.DeletedAt = &now
	return nil
}
