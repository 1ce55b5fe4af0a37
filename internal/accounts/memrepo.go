package accounts

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/crewdeck-platform/crewdeck/internal/plan"
)

// MemRepository is an in-memory Repository for tests and local development.
type MemRepository struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]*Account
	byEmail map[string]uuid.UUID
}

func NewMemRepository() *MemRepository {
	return &MemRepository{
		byID:    make(map[uuid.UUID]*Account),
		byEmail: make(map[string]uuid.UUID),
	}
}

func (r *MemRepository) Create(_ context.Context, acc *Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byEmail[acc.Email]; ok {
		return ErrEmailTaken
	}
	cp := *acc
	r.byID[acc.ID] = &cp
	r.byEmail[acc.Email] = acc.ID
	return nil
}

func (r *MemRepository) GetByID(_ context.Context, id uuid.UUID) (*Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	acc, ok := r.byID[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	cp := *acc
	return &cp, nil
}

func (r *MemRepository) GetByEmail(_ context.Context, email string) (*Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byEmail[email]
	if !ok {
		return nil, ErrAccountNotFound
	}
	cp := *r.byID[id]
	return &cp, nil
}

func (r *MemRepository) SetPlan(_ context.Context, id uuid.UUID, tier plan.Tier) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	acc, ok := r.byID[id]
	if !ok {
		return ErrAccountNotFound
	}
	acc.Plan = tier
	acc.UpdatedAt = time.Now()
	return nil
}
