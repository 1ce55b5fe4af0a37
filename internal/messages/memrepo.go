package messages

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemRepository is an in-memory Repository for tests.
type MemRepository struct {
	mu   sync.Mutex
	msgs map[uuid.UUID]*Message
}

func NewMemRepository() *MemRepository {
	return &MemRepository{msgs: make(map[uuid.UUID]*Message)}
}

func (r *MemRepository) Create(_ context.Context, msg *Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *msg
	r.msgs[msg.ID] = &cp
	return nil
}

func (r *MemRepository) GetByID(_ context.Context, id uuid.UUID) (*Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg, ok := r.msgs[id]
	if !ok {
		return nil, ErrMessageNotFound
	}
	cp := *msg
	return &cp, nil
}

func (r *MemRepository) SetStatus(_ context.Context, id uuid.UUID, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg, ok := r.msgs[id]
	if !ok {
		return ErrMessageNotFound
	}
	msg.Status = status
	if status == StatusDelivered {
		now := time.Now()
		msg.DeliveredAt = &now
	}
	return nil
}

func (r *MemRepository) ListByAccount(_ context.Context, accountID uuid.UUID, limit, offset int) ([]*Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*Message
	for _, msg := range r.msgs {
		if msg.AccountID == accountID {
			cp := *msg
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
	for _, msg := range r.msgs {
		if msg.AccountID == accountID {
			count++
		}
	}
	return count, nil
}
