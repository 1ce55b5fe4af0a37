package accounts

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crewdeck-platform/crewdeck/internal/plan"
	"github.com/crewdeck-platform/crewdeck/internal/usage"
)

// deferredResolver lets the usage engine resolve plans through the
// accounts service even though the two are constructed in a cycle.
type deferredResolver struct {
	svc **Service
}

func (d deferredResolver) PlanFor(ctx context.Context, accountID uuid.UUID) (plan.Tier, error) {
	return (*d.svc).PlanFor(ctx, accountID)
}

func newTestService(t *testing.T) (*Service, *usage.MemStore) {
	t.Helper()
	repo := NewMemRepository()
	store := usage.NewMemStore()

	var svc *Service
	usageEngine := usage.NewService(store, deferredResolver{&svc}, plan.NewCatalog())
	svc = NewService(repo, usageEngine, plan.TierFree)
	return svc, store
}

func TestCreate_InitializesUsage(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	acc, err := svc.Create(ctx, "ada@example.com", "Ada", "$2a$10$fakehash")
	require.NoError(t, err)
	assert.Equal(t, plan.TierFree, acc.Plan)

	rec, err := store.Get(ctx, acc.ID)
	require.NoError(t, err)
	require.NotNil(t, rec, "account creation must create the usage record")
	assert.Zero(t, rec.MessagesThisMonth)
	assert.Zero(t, rec.AgentCount)
}

func TestCreate_DuplicateEmail(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "ada@example.com", "Ada", "$2a$10$fakehash")
	require.NoError(t, err)

	_, err = svc.Create(ctx, "ada@example.com", "Ada", "$2a$10$fakehash")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestGetByEmail(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, "ada@example.com", "Ada", "$2a$10$fakehash")
	require.NoError(t, err)

	acc, err := svc.GetByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, acc.ID)

	_, err = svc.GetByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestChangePlan_SyncsUsageRecord(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	acc, err := svc.Create(ctx, "ada@example.com", "Ada", "$2a$10$fakehash")
	require.NoError(t, err)

	upgraded, err := svc.ChangePlan(ctx, acc.ID, plan.TierPro)
	require.NoError(t, err)
	assert.Equal(t, plan.TierPro, upgraded.Plan)

	rec, err := store.Get(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, plan.TierPro, rec.PlanID)

	tier, err := svc.PlanFor(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, plan.TierPro, tier)
}

func TestChangePlan_InvalidTier(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	acc, err := svc.Create(ctx, "ada@example.com", "Ada", "$2a$10$fakehash")
	require.NoError(t, err)

	_, err = svc.ChangePlan(ctx, acc.ID, "platinum")
	assert.ErrorIs(t, err, plan.ErrInvalidPlan)
}
