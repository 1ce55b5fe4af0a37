package resources

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/crewdeck-platform/crewdeck/internal/plan"
)

// MemStore is an in-memory Store for engine tests and local development.
type MemStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]*Record
}

// NewMemStore creates an empty in-memory resource quota store.
func NewMemStore() *MemStore {
	return &MemStore{records: make(map[uuid.UUID]*Record)}
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

func (s *MemStore) AddUsage(_ context.Context, accountID uuid.UUID, cpu, memory, disk int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[accountID]
	if !ok {
		return ErrRecordNotFound
	}
	rec.CurrentTotalCPUInUse += cpu
	rec.CurrentTotalMemoryInUse += memory
	rec.CurrentTotalDiskInUse += disk
	rec.UpdatedAt = time.Now()
	return nil
}

func (s *MemStore) SubtractUsage(_ context.Context, accountID uuid.UUID, cpu, memory, disk int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[accountID]
	if !ok {
		return ErrRecordNotFound
	}
	rec.CurrentTotalCPUInUse = max(0, rec.CurrentTotalCPUInUse-cpu)
	rec.CurrentTotalMemoryInUse = max(0, rec.CurrentTotalMemoryInUse-memory)
	rec.CurrentTotalDiskInUse = max(0, rec.CurrentTotalDiskInUse-disk)
	rec.UpdatedAt = time.Now()
	return nil
}

func (s *MemStore) SetLimits(_ context.Context, accountID uuid.UUID, tier plan.Tier, limits plan.ResourceLimits) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[accountID]
	if !ok {
		return ErrRecordNotFound
	}
	rec.PlanID = tier
	rec.MaxCPUPerContainer = limits.MaxCPUPerContainer
	rec.MaxMemoryPerContainer = limits.MaxMemoryPerContainer
	rec.MaxDiskPerContainer = limits.MaxDiskPerContainer
	rec.MaxTotalCPU = limits.MaxTotalCPU
	rec.MaxTotalMemory = limits.MaxTotalMemory
	rec.MaxTotalDisk = limits.MaxTotalDisk
	rec.UpdatedAt = time.Now()
	return nil
}

// Put replaces a record wholesale. Test helper.
func (s *MemStore) Put(rec *Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.records[rec.AccountID] = &cp
}
