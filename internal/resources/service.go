package resources

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/crewdeck-platform/crewdeck/internal/metrics"
	"github.com/crewdeck-platform/crewdeck/internal/plan"
)

// ErrRecordNotFound is returned by store mutations against an account
// with no resource quota record. The service layer never surfaces it on
// the read path — records are created lazily on first access.
var ErrRecordNotFound = errors.New("resource quota record not found")

// PlanResolver reports the current plan tier for an account.
type PlanResolver interface {
	PlanFor(ctx context.Context, accountID uuid.UUID) (plan.Tier, error)
}

// Service is the resource quota engine: aggregate CPU/memory/disk
// accounting across an account's containers, with per-container and
// account-wide ceilings.
//
// Like the count-based quota engine, admission is check-then-commit:
// CheckResourceQuota reserves nothing, and IncrementResourceUsage commits
// unconditionally. Concurrent callers can collectively overshoot the
// aggregate ceiling; callers that need a hard guarantee must serialize
// container admissions per account.
type Service struct {
	store   Store
	plans   PlanResolver
	catalog *plan.Catalog
}

// NewService creates a resource quota engine.
func NewService(store Store, plans PlanResolver, catalog *plan.Catalog) *Service {
	return &Service{store: store, plans: plans, catalog: catalog}
}

// GetResourceQuota returns the account's resource quota record, creating
// it lazily from the account's current plan. A record whose plan no
// longer matches the account's is re-seeded with the new plan's ceilings
// before being returned, so plan changes take effect on the next touch.
func (s *Service) GetResourceQuota(ctx context.Context, accountID uuid.UUID) (*Record, error) {
	tier, err := s.plans.PlanFor(ctx, accountID)
	if err != nil {
		return nil, err
	}
	limits, err := s.catalog.ResourceLimitsFor(tier)
	if err != nil {
		return nil, err
	}

	rec, err := s.store.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		rec = newRecord(accountID, tier, limits)
		if _, err := s.store.Create(ctx, rec); err != nil {
			return nil, err
		}
		// Re-read in case a concurrent caller created it first.
		rec, err = s.store.Get(ctx, accountID)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			return nil, fmt.Errorf("%w: account %s", ErrRecordNotFound, accountID)
		}
	}

	if rec.PlanID != tier {
		if err := s.store.SetLimits(ctx, accountID, tier, limits); err != nil {
			return nil, err
		}
		rec.PlanID = tier
		rec.MaxCPUPerContainer = limits.MaxCPUPerContainer
		rec.MaxMemoryPerContainer = limits.MaxMemoryPerContainer
		rec.MaxDiskPerContainer = limits.MaxDiskPerContainer
		rec.MaxTotalCPU = limits.MaxTotalCPU
		rec.MaxTotalMemory = limits.MaxTotalMemory
		rec.MaxTotalDisk = limits.MaxTotalDisk
	}

	return rec, nil
}

// CheckResourceQuota validates a requested allocation in two tiers,
// short-circuiting on the first failure: per-container ceilings checked
// CPU, memory, disk, then aggregate availability in the same order.
// Read-only — capacity is not reserved; the caller commits with
// IncrementResourceUsage after creating the container.
func (s *Service) CheckResourceQuota(ctx context.Context, accountID uuid.UUID, req Request) (*CheckResult, error) {
	rec, err := s.GetResourceQuota(ctx, accountID)
	if err != nil {
		return nil, err
	}

	checks := []struct {
		requested int
		perMax    int
		available int
		perMsg    string
		aggMsg    string
	}{
		{req.CPU, rec.MaxCPUPerContainer, rec.MaxTotalCPU - rec.CurrentTotalCPUInUse,
			fmt.Sprintf("CPU limit exceeds per-container maximum: Requested: %dm, Maximum: %dm", req.CPU, rec.MaxCPUPerContainer),
			fmt.Sprintf("Insufficient CPU quota. Available: %dm, Requested: %dm", rec.MaxTotalCPU-rec.CurrentTotalCPUInUse, req.CPU)},
		{req.Memory, rec.MaxMemoryPerContainer, rec.MaxTotalMemory - rec.CurrentTotalMemoryInUse,
			fmt.Sprintf("Memory limit exceeds per-container maximum: Requested: %dMB, Maximum: %dMB", req.Memory, rec.MaxMemoryPerContainer),
			fmt.Sprintf("Insufficient memory quota. Available: %dMB, Requested: %dMB", rec.MaxTotalMemory-rec.CurrentTotalMemoryInUse, req.Memory)},
		{req.Disk, rec.MaxDiskPerContainer, rec.MaxTotalDisk - rec.CurrentTotalDiskInUse,
			fmt.Sprintf("Disk limit exceeds per-container maximum: Requested: %dMB, Maximum: %dMB", req.Disk, rec.MaxDiskPerContainer),
			fmt.Sprintf("Insufficient disk quota. Available: %dMB, Requested: %dMB", rec.MaxTotalDisk-rec.CurrentTotalDiskInUse, req.Disk)},
	}

	// Tier 1: per-container ceilings.
	for _, c := range checks {
		if c.requested > c.perMax {
			metrics.ResourceChecksTotal.WithLabelValues("denied").Inc()
			return &CheckResult{Allowed: false, Message: c.perMsg}, nil
		}
	}
	// Tier 2: aggregate availability.
	for _, c := range checks {
		if c.requested > c.available {
			metrics.ResourceChecksTotal.WithLabelValues("denied").Inc()
			return &CheckResult{Allowed: false, Message: c.aggMsg}, nil
		}
	}

	metrics.ResourceChecksTotal.WithLabelValues("allowed").Inc()
	return &CheckResult{Allowed: true}, nil
}

// IncrementResourceUsage commits an allocation to the aggregate in-use
// totals. Unconditional: no re-check against the ceilings happens here.
func (s *Service) IncrementResourceUsage(ctx context.Context, accountID uuid.UUID, cpu, memory, disk int) error {
	// Ensure the record exists before the additive update.
	if _, err := s.GetResourceQuota(ctx, accountID); err != nil {
		return err
	}
	return s.store.AddUsage(ctx, accountID, cpu, memory, disk)
}

// DecrementResourceUsage releases an allocation. Each dimension floors at
// zero independently, so a duplicate release cannot underflow — though
// deltas that don't match the original increment will silently
// under-count.
func (s *Service) DecrementResourceUsage(ctx context.Context, accountID uuid.UUID, cpu, memory, disk int) error {
	if _, err := s.GetResourceQuota(ctx, accountID); err != nil {
		return err
	}
	return s.store.SubtractUsage(ctx, accountID, cpu, memory, disk)
}

func newRecord(accountID uuid.UUID, tier plan.Tier, limits plan.ResourceLimits) *Record {
	return &Record{
		AccountID:             accountID,
		PlanID:                tier,
		MaxCPUPerContainer:    limits.MaxCPUPerContainer,
		MaxMemoryPerContainer: limits.MaxMemoryPerContainer,
		MaxDiskPerContainer:   limits.MaxDiskPerContainer,
		MaxTotalCPU:           limits.MaxTotalCPU,
		MaxTotalMemory:        limits.MaxTotalMemory,
		MaxTotalDisk:          limits.MaxTotalDisk,
		UpdatedAt:             time.Now(),
	}
}
