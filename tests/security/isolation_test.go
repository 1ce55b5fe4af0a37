//go:build integration

package security

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/crewdeck-platform/crewdeck/internal/accounts"
	"github.com/crewdeck-platform/crewdeck/internal/agents"
	"github.com/crewdeck-platform/crewdeck/internal/api"
	"github.com/crewdeck-platform/crewdeck/internal/auth"
	"github.com/crewdeck-platform/crewdeck/internal/containers"
	"github.com/crewdeck-platform/crewdeck/internal/database"
	"github.com/crewdeck-platform/crewdeck/internal/messages"
	"github.com/crewdeck-platform/crewdeck/internal/plan"
	"github.com/crewdeck-platform/crewdeck/internal/resources"
	"github.com/crewdeck-platform/crewdeck/internal/usage"
)

type testEnv struct {
	server *httptest.Server
	pool   *pgxpool.Pool
}

func setupSecurityTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       "crewdeck_security_test",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { pgContainer.Terminate(ctx) })

	pgHost, _ := pgContainer.Host(ctx)
	pgPort, _ := pgContainer.MappedPort(ctx, "5432")

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { redisContainer.Terminate(ctx) })

	redisHost, _ := redisContainer.Host(ctx)
	redisPort, _ := redisContainer.MappedPort(ctx, "6379")

	dsn := fmt.Sprintf("postgres://test:test@%s:%s/crewdeck_security_test?sslmode=disable", pgHost, pgPort.Port())
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	require.NoError(t, database.RunMigrations(dsn, getMigrationsPath()))

	redisClient := redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%s", redisHost, redisPort.Port()),
	})
	t.Cleanup(func() { redisClient.Close() })

	catalog := plan.NewCatalog()
	accountRepo := accounts.NewRepository(pool)
	planResolver := accounts.NewPlanResolver(accountRepo)

	usageStore := usage.NewStore(pool)
	quotaSvc := usage.NewService(usageStore, planResolver, catalog)

	resourceStore := resources.NewStore(pool)
	resourceSvc := resources.NewService(resourceStore, planResolver, catalog)

	accountSvc := accounts.NewService(accountRepo, quotaSvc, plan.TierFree)
	accountHandler := accounts.NewHandler(accountSvc)

	jwtMgr := auth.NewJWTManager("sec-test-access-secret-32-chars!!", "sec-test-refresh-secret-32-chrs!!", 15*time.Minute, 7*24*time.Hour)
	authSvc := auth.NewService(jwtMgr, redisClient)
	authHandler := auth.NewHandler(authSvc, accountSvc)

	quotaHandler := usage.NewHandler(quotaSvc)
	resourceHandler := resources.NewHandler(resourceSvc)

	agentRepo := agents.NewRepository(pool)
	agentSvc := agents.NewService(agentRepo, quotaSvc)
	agentHandler := agents.NewHandler(agentSvc)

	containerRepo := containers.NewRepository(pool)
	containerSvc := containers.NewService(containerRepo, quotaSvc, resourceSvc, nil)
	containerHandler := containers.NewHandler(containerSvc)

	messageRepo := messages.NewRepository(pool)
	messageSvc := messages.NewService(messageRepo, quotaSvc, nil)
	messageHandler := messages.NewHandler(messageSvc)

	router := api.NewRouter(pool, nil, api.RouterConfig{}, api.HandlerSet{
		Register: authHandler.Register,
		Login:    authHandler.Login,
		Refresh:  authHandler.Refresh,
		Logout:   authHandler.Logout,

		Me:         accountHandler.Me,
		ChangePlan: accountHandler.ChangePlan,

		QuotaStatus:        quotaHandler.Status,
		QuotaCheck:         quotaHandler.Check,
		ResourceQuota:      resourceHandler.Get,
		ResourceQuotaCheck: resourceHandler.Check,

		CreateAgent:              agentHandler.Create,
		ListAgents:               agentHandler.List,
		GetAgent:                 agentHandler.Get,
		UpdateAgent:              agentHandler.Update,
		DeleteAgent:              agentHandler.Delete,
		AgentOwnershipMiddleware: agentHandler.OwnershipMiddleware,

		CreateContainer:              containerHandler.Create,
		ListContainers:               containerHandler.List,
		GetContainer:                 containerHandler.Get,
		DeleteContainer:              containerHandler.Delete,
		ContainerOwnershipMiddleware: containerHandler.OwnershipMiddleware,

		SendMessage:  messageHandler.Send,
		ListMessages: messageHandler.List,

		AuthMiddleware: auth.Middleware(authSvc),
	})

	server := httptest.NewServer(router)
	t.Cleanup(func() { server.Close() })

	return &testEnv{server: server, pool: pool}
}

func getMigrationsPath() string {
	paths := []string{"../../migrations", "../../../migrations"}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	log.Fatal("migrations directory not found")
	return ""
}

func doReq(t *testing.T, env *testEnv, method, path string, body any, token string) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		r = bytes.NewReader(b)
	}
	req, _ := http.NewRequest(method, env.server.URL+path, r)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func parseResp(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var m map[string]any
	json.NewDecoder(resp.Body).Decode(&m)
	return m
}

func register(t *testing.T, env *testEnv, email string) string {
	t.Helper()
	body := map[string]string{"email": email, "name": "Tenant", "password": "password123"}
	resp := doReq(t, env, "POST", "/api/v1/auth/register", body, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	r := parseResp(t, resp)
	return r["data"].(map[string]any)["access_token"].(string)
}

// TestMultiTenantBoundary tests that multi-tenant isolation is enforced
// across many accounts trying to access each other's resources.
func TestMultiTenantBoundary(t *testing.T) {
	env := setupSecurityTestEnv(t)

	// Create 5 accounts, each with an agent
	type tenantAgent struct {
		token   string
		agentID string
	}

	var tenants []tenantAgent
	for i := 0; i < 5; i++ {
		email := fmt.Sprintf("tenant-%d@security.test", i)
		token := register(t, env, email)

		body := map[string]any{
			"name":          fmt.Sprintf("Agent %d", i),
			"system_prompt": fmt.Sprintf("Prompt for tenant %d", i),
		}
		resp := doReq(t, env, "POST", "/api/v1/agents/", body, token)
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		result := parseResp(t, resp)
		agentID := result["data"].(map[string]any)["id"].(string)
		tenants = append(tenants, tenantAgent{token: token, agentID: agentID})
	}

	t.Run("no account can access another accounts agent", func(t *testing.T) {
		for i, ta := range tenants {
			for j, other := range tenants {
				if i == j {
					continue
				}
				resp := doReq(t, env, "GET", "/api/v1/agents/"+other.agentID, nil, ta.token)
				assert.Equal(t, http.StatusForbidden, resp.StatusCode,
					"tenant %d should not GET tenant %d's agent", i, j)
				resp.Body.Close()

				resp = doReq(t, env, "PUT", "/api/v1/agents/"+other.agentID,
					map[string]any{"name": "hacked"}, ta.token)
				assert.Equal(t, http.StatusForbidden, resp.StatusCode,
					"tenant %d should not UPDATE tenant %d's agent", i, j)
				resp.Body.Close()

				resp = doReq(t, env, "DELETE", "/api/v1/agents/"+other.agentID, nil, ta.token)
				assert.Equal(t, http.StatusForbidden, resp.StatusCode,
					"tenant %d should not DELETE tenant %d's agent", i, j)
				resp.Body.Close()
			}
		}
	})

	t.Run("each account only sees own agents in list", func(t *testing.T) {
		for i, ta := range tenants {
			resp := doReq(t, env, "GET", "/api/v1/agents/", nil, ta.token)
			require.Equal(t, http.StatusOK, resp.StatusCode)

			result := parseResp(t, resp)
			agentsList := result["data"].([]any)

			for _, a := range agentsList {
				agent := a.(map[string]any)
				assert.Equal(t, ta.agentID, agent["id"].(string),
					"tenant %d should only see their own agent", i)
			}
		}
	})

	t.Run("quota usage is isolated per tenant", func(t *testing.T) {
		// Fill tenant 0's agent quota.
		for i := 0; i < 2; i++ {
			body := map[string]any{"name": "Filler", "system_prompt": "fill"}
			resp := doReq(t, env, "POST", "/api/v1/agents/", body, tenants[0].token)
			require.Equal(t, http.StatusCreated, resp.StatusCode)
			resp.Body.Close()
		}
		denied := doReq(t, env, "POST", "/api/v1/agents/",
			map[string]any{"name": "Over", "system_prompt": "over"}, tenants[0].token)
		assert.Equal(t, http.StatusTooManyRequests, denied.StatusCode)
		denied.Body.Close()

		// Tenant 1 is unaffected.
		resp := doReq(t, env, "POST", "/api/v1/quota/check",
			map[string]string{"quota_type": "agents"}, tenants[1].token)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		data := parseResp(t, resp)["data"].(map[string]any)
		assert.True(t, data["allowed"].(bool))
		assert.Equal(t, float64(1), data["current"])
	})
}
