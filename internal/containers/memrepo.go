package containers

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemRepository is an in-memory Repository for tests.
type MemRepository struct {
	mu         sync.Mutex
	containers map[uuid.UUID]*Container
}

func NewMemRepository() *MemRepository {
	return &MemRepository{containers: make(map[uuid.UUID]*Container)}
}

func (r *MemRepository) Create(_ context.Context, c *Container) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.containers[c.ID] = &cp
	return nil
}

func (r *MemRepository) GetByID(_ context.Context, id uuid.UUID) (*Container, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.containers[id]
	if !ok || c.DeletedAt != nil {
		return nil, ErrContainerNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *MemRepository) ListByAccount(_ context.Context, accountID uuid.UUID, limit, offset int) ([]*Container, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*Container
	for _, c := range r.containers {
		if c.AccountID == accountID && c.DeletedAt == nil {
			cp := *c
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
	for _, c := range r.containers {
		if c.AccountID == accountID && c.DeletedAt == nil {
			count++
		}
	}
	return count, nil
}

func (r *MemRepository) SoftDelete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.containers[id]
	if !ok || c.DeletedAt != nil {
		return ErrContainerNotFound
	}
	now := time.Now()
	c.Status = StatusDeleted
	c.DeletedAt = &now
	return nil
}
