package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crewdeck-platform/crewdeck/internal/plan"
)

func newTestAuthService(t *testing.T) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	mgr := NewJWTManager("access-secret-32-chars-long!!!!!", "refresh-secret-32-chars-long!!!!", 15*time.Minute, 7*24*time.Hour)
	return NewService(mgr, client)
}

func TestService_RefreshRotatesToken(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	pair, err := svc.GenerateTokens(ctx, "acct-1", "a@example.com", plan.TierFree)
	require.NoError(t, err)

	rotated, err := svc.RefreshTokens(ctx, pair.RefreshToken, "a@example.com", plan.TierFree)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)

	// The presented token is one-shot: a replay must fail.
	_, err = svc.RefreshTokens(ctx, pair.RefreshToken, "a@example.com", plan.TierFree)
	assert.Error(t, err)
}

func TestService_LogoutRevokesAll(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	pair1, err := svc.GenerateTokens(ctx, "acct-2", "b@example.com", plan.TierPro)
	require.NoError(t, err)
	pair2, err := svc.GenerateTokens(ctx, "acct-2", "b@example.com", plan.TierPro)
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, "acct-2"))

	_, err = svc.RefreshTokens(ctx, pair1.RefreshToken, "b@example.com", plan.TierPro)
	assert.Error(t, err)
	_, err = svc.RefreshTokens(ctx, pair2.RefreshToken, "b@example.com", plan.TierPro)
	assert.Error(t, err)
}

func TestService_RefreshCarriesCurrentPlan(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	pair, err := svc.GenerateTokens(ctx, "acct-3", "c@example.com", plan.TierFree)
	require.NoError(t, err)

	// Simulates an upgrade between login and refresh.
	rotated, err := svc.RefreshTokens(ctx, pair.RefreshToken, "c@example.com", plan.TierEnterprise)
	require.NoError(t, err)

	claims, err := svc.ValidateAccessToken(rotated.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, plan.TierEnterprise, claims.Plan)
}
