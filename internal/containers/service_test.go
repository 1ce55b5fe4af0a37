package containers

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crewdeck-platform/crewdeck/internal/nats"
	"github.com/crewdeck-platform/crewdeck/internal/plan"
	"github.com/crewdeck-platform/crewdeck/internal/resources"
	"github.com/crewdeck-platform/crewdeck/internal/usage"
)

type stubPlans struct {
	tier plan.Tier
}

func (s stubPlans) PlanFor(context.Context, uuid.UUID) (plan.Tier, error) {
	return s.tier, nil
}

type recordingSink struct {
	events []nats.ContainerEvent
}

func (r *recordingSink) PublishContainerEvent(_ context.Context, event nats.ContainerEvent) error {
	r.events = append(r.events, event)
	return nil
}

type testEnv struct {
	svc       *Service
	accountID uuid.UUID
	usageSt   *usage.MemStore
	resSt     *resources.MemStore
	sink      *recordingSink
}

func newTestEnv(t *testing.T, tier plan.Tier) *testEnv {
	t.Helper()
	catalog := plan.NewCatalog()
	plans := stubPlans{tier: tier}

	usageStore := usage.NewMemStore()
	quota := usage.NewService(usageStore, plans, catalog)

	resStore := resources.NewMemStore()
	resQ := resources.NewService(resStore, plans, catalog)

	accountID := uuid.New()
	require.NoError(t, quota.InitializeAccountUsage(context.Background(), accountID, tier))

	sink := &recordingSink{}
	return &testEnv{
		svc:       NewService(NewMemRepository(), quota, resQ, sink),
		accountID: accountID,
		usageSt:   usageStore,
		resSt:     resStore,
		sink:      sink,
	}
}

func smallRequest() *CreateContainerRequest {
	return &CreateContainerRequest{
		Name:   "web",
		Image:  "nginx:1.27",
		CPU:    500,
		Memory: 512,
		Disk:   1024,
	}
}

func TestCreate_CommitsBothQuotas(t *testing.T) {
	env := newTestEnv(t, plan.TierFree)
	ctx := context.Background()

	c, err := env.svc.Create(ctx, env.accountID, smallRequest())
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, c.Status)

	rec, err := env.usageSt.Get(ctx, env.accountID)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.ContainerCount)

	resRec, err := env.resSt.Get(ctx, env.accountID)
	require.NoError(t, err)
	assert.Equal(t, 500, resRec.CurrentTotalCPUInUse)
	assert.Equal(t, 512, resRec.CurrentTotalMemoryInUse)
	assert.Equal(t, 1024, resRec.CurrentTotalDiskInUse)

	require.Len(t, env.sink.events, 1)
	assert.Equal(t, "created", env.sink.events[0].EventType)
	assert.Equal(t, c.ID, env.sink.events[0].ContainerID)
}

func TestCreate_DeniedByContainerCount(t *testing.T) {
	// Free plan allows a single container.
	env := newTestEnv(t, plan.TierFree)
	ctx := context.Background()

	_, err := env.svc.Create(ctx, env.accountID, smallRequest())
	require.NoError(t, err)

	_, err = env.svc.Create(ctx, env.accountID, smallRequest())
	var denied *usage.DeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, usage.QuotaContainers, denied.Result.QuotaType)
}

func TestCreate_DeniedByPerContainerCeiling(t *testing.T) {
	env := newTestEnv(t, plan.TierPro)
	ctx := context.Background()

	req := smallRequest()
	req.CPU = 2500 // pro per-container ceiling is 2000m

	_, err := env.svc.Create(ctx, env.accountID, req)
	var denied *resources.DeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, "CPU limit exceeds per-container maximum: Requested: 2500m, Maximum: 2000m", denied.Result.Message)

	// Nothing committed on denial.
	rec, err := env.usageSt.Get(ctx, env.accountID)
	require.NoError(t, err)
	assert.Zero(t, rec.ContainerCount)
	assert.Empty(t, env.sink.events)
}

func TestCreate_DeniedByAggregateExhaustion(t *testing.T) {
	env := newTestEnv(t, plan.TierPro)
	ctx := context.Background()

	big := &CreateContainerRequest{Name: "crunch", Image: "worker:1", CPU: 2000, Memory: 1024, Disk: 2048}
	_, err := env.svc.Create(ctx, env.accountID, big)
	require.NoError(t, err)
	_, err = env.svc.Create(ctx, env.accountID, big)
	require.NoError(t, err)

	// Pro aggregate CPU is 4000m; both slots are spoken for.
	small := &CreateContainerRequest{Name: "extra", Image: "worker:1", CPU: 500, Memory: 256, Disk: 512}
	_, err = env.svc.Create(ctx, env.accountID, small)
	var denied *resources.DeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, "Insufficient CPU quota. Available: 0m, Requested: 500m", denied.Result.Message)
}

func TestDelete_ReleasesBothQuotas(t *testing.T) {
	env := newTestEnv(t, plan.TierFree)
	ctx := context.Background()

	c, err := env.svc.Create(ctx, env.accountID, smallRequest())
	require.NoError(t, err)

	require.NoError(t, env.svc.Delete(ctx, c))

	rec, err := env.usageSt.Get(ctx, env.accountID)
	require.NoError(t, err)
	assert.Zero(t, rec.ContainerCount)

	resRec, err := env.resSt.Get(ctx, env.accountID)
	require.NoError(t, err)
	assert.Zero(t, resRec.CurrentTotalCPUInUse)
	assert.Zero(t, resRec.CurrentTotalMemoryInUse)
	assert.Zero(t, resRec.CurrentTotalDiskInUse)

	require.Len(t, env.sink.events, 2)
	assert.Equal(t, "deleted", env.sink.events[1].EventType)

	// The freed slot admits a new container.
	_, err = env.svc.Create(ctx, env.accountID, smallRequest())
	assert.NoError(t, err)
}
