package accounts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/crewdeck-platform/crewdeck/internal/plan"
	"github.com/crewdeck-platform/crewdeck/internal/usage"
)

// Service owns account lifecycle. It is also the engines' PlanResolver:
// every quota check re-reads the plan tier through PlanFor, so a plan
// change takes effect on the very next admission decision.
type Service struct {
	repo        Repository
	usage       *usage.Service
	defaultPlan plan.Tier
}

func NewService(repo Repository, usageSvc *usage.Service, defaultPlan plan.Tier) *Service {
	if !plan.Valid(defaultPlan) {
		defaultPlan = plan.TierFree
	}
	return &Service{repo: repo, usage: usageSvc, defaultPlan: defaultPlan}
}

// Create registers an account on the default plan and initializes its
// usage record in the same call, satisfying the quota engine's
// precondition that every account has a record before its first check.
// The password arrives pre-hashed from the auth handler.
func (s *Service) Create(ctx context.Context, email, name, passwordHash string) (*Account, error) {
	now := time.Now()
	acc := &Account{
		ID:           uuid.New(),
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
		Plan:         s.defaultPlan,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Create(ctx, acc); err != nil {
		return nil, err
	}

	if err := s.usage.InitializeAccountUsage(ctx, acc.ID, acc.Plan); err != nil {
		return nil, fmt.Errorf("initializing account usage: %w", err)
	}

	return acc, nil
}

// Get returns the account by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Account, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByEmail returns the account by email.
func (s *Service) GetByEmail(ctx context.Context, email string) (*Account, error) {
	return s.repo.GetByEmail(ctx, email)
}

// PlanFor implements the engines' PlanResolver.
func (s *Service) PlanFor(ctx context.Context, accountID uuid.UUID) (plan.Tier, error) {
	acc, err := s.repo.GetByID(ctx, accountID)
	if err != nil {
		return "", err
	}
	return acc.Plan, nil
}

// PlanResolver resolves plan tiers straight from the repository, so the
// quota engines can be built before the accounts service that shares it.
type PlanResolver struct {
	repo Repository
}

func NewPlanResolver(repo Repository) *PlanResolver {
	return &PlanResolver{repo: repo}
}

func (r *PlanResolver) PlanFor(ctx context.Context, accountID uuid.UUID) (plan.Tier, error) {
	acc, err := r.repo.GetByID(ctx, accountID)
	if err != nil {
		return "", err
	}
	return acc.Plan, nil
}

// ChangePlan patches the account's plan and the usage record's plan id.
// The two writes commit independently; the resource quota record is not
// touched here — its ceilings re-sync the next time the resource engine
// reads it.
func (s *Service) ChangePlan(ctx context.Context, accountID uuid.UUID, tier plan.Tier) (*Account, error) {
	if !plan.Valid(tier) {
		return nil, fmt.Errorf("%w: %q", plan.ErrInvalidPlan, tier)
	}

	if err := s.repo.SetPlan(ctx, accountID, tier); err != nil {
		return nil, err
	}

	if err := s.usage.SetPlan(ctx, accountID, tier); err != nil {
		// An account predating usage tracking has no record yet; create
		// one on the new plan instead of failing the upgrade.
		if errors.Is(err, usage.ErrRecordNotFound) {
			err = s.usage.InitializeAccountUsage(ctx, accountID, tier)
		}
		if err != nil {
			return nil, fmt.Errorf("syncing usage plan: %w", err)
		}
	}

	return s.repo.GetByID(ctx, accountID)
}
