package usage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/crewdeck-platform/crewdeck/internal/plan"
)

// MemStore is an in-memory Store with the same window semantics as the
// PostgreSQL store. Used by engine tests and local development; mutations
// take a single lock so each write is atomic per record, matching the
// per-row atomicity the SQL store gets from single UPDATE statements.
type MemStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]*Record

	// Now is the clock used for window-elapsed checks. Tests may replace it.
	Now func() time.Time
}

// NewMemStore creates an empty in-memory usage store.
func NewMemStore() *MemStore {
	return &MemStore{
		records: make(map[uuid.UUID]*Record),
		Now:     time.Now,
	}
}

func (s *MemStore) Get(_ context.Context, accountID uuid.UUID) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[accountID]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (s *MemStore) Create(_ context.Context, rec *Record) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[rec.AccountID]; ok {
		return false, nil
	}
	cp := *rec
	s.records[rec.AccountID] = &cp
	return true, nil
}

func (s *MemStore) IncrementWindowed(_ context.Context, accountID uuid.UUID, qt QuotaType, window time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[accountID]
	if !ok {
		return ErrRecordNotFound
	}

	now := s.Now()
	switch qt {
	case QuotaMessages:
		if now.Sub(rec.MessagesMonthStart) > window {
			rec.MessagesThisMonth = 1
			rec.MessagesMonthStart = now
		} else {
			rec.MessagesThisMonth++
		}
	case QuotaAPICalls:
		if now.Sub(rec.APICallsDayStart) > window {
			rec.APICallsToday = 1
			rec.APICallsDayStart = now
		} else {
			rec.APICallsToday++
		}
	default:
		return ErrUnknownQuotaType
	}
	rec.UpdatedAt = now
	return nil
}

func (s *MemStore) IncrementCount(_ context.Context, accountID uuid.UUID, qt QuotaType) error {
	return s.adjustCount(accountID, qt, 1)
}

func (s *MemStore) DecrementCount(_ context.Context, accountID uuid.UUID, qt QuotaType) error {
	return s.adjustCount(accountID, qt, -1)
}

func (s *MemStore) adjustCount(accountID uuid.UUID, qt QuotaType, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[accountID]
	if !ok {
		return ErrRecordNotFound
	}

	switch qt {
	case QuotaAgents:
		rec.AgentCount = max(0, rec.AgentCount+delta)
	case QuotaContainers:
		rec.ContainerCount = max(0, rec.ContainerCount+delta)
	default:
		return ErrUnknownQuotaType
	}
	rec.UpdatedAt = s.Now()
	return nil
}

func (s *MemStore) ResetMonthly(_ context.Context, accountID uuid.UUID, window time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[accountID]
	if !ok {
		return false, nil
	}

	now := s.Now()
	if now.Sub(rec.MessagesMonthStart) <= window {
		return false, nil
	}
	rec.MessagesThisMonth = 0
	rec.MessagesMonthStart = now
	rec.UpdatedAt = now
	return true, nil
}

func (s *MemStore) ResetDaily(_ context.Context, accountID uuid.UUID, window time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[accountID]
	if !ok {
		return false, nil
	}

	now := s.Now()
	if now.Sub(rec.APICallsDayStart) <= window {
		return false, nil
	}
	rec.APICallsToday = 0
	rec.APICallsDayStart = now
	rec.UpdatedAt = now
	return true, nil
}

func (s *MemStore) SetPlan(_ context.Context, accountID uuid.UUID, tier plan.Tier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[accountID]
	if !ok {
		return ErrRecordNotFound
	}
	rec.PlanID = tier
	rec.UpdatedAt = s.Now()
	return nil
}

func (s *MemStore) List(_ context.Context) ([]*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := make([]*Record, 0, len(s.records))
	for _, rec := range s.records {
		cp := *rec
		records = append(records, &cp)
	}
	return records, nil
}

// Put replaces a record wholesale. Test helper.
func (s *MemStore) Put(rec *Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.records[rec.AccountID] = &cp
}
