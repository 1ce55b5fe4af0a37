//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
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

type TestEnv struct {
	Pool        *pgxpool.Pool
	RedisClient *redis.Client
	Server      *httptest.Server
	AccountSvc  *accounts.Service
	QuotaSvc    *usage.Service
	ResourceSvc *resources.Service
	UsageStore  usage.Store
}

var testEnv *TestEnv

func SetupTestEnv(t *testing.T) *TestEnv {
	t.Helper()
	if testEnv != nil {
		return testEnv
	}

	ctx := context.Background()

	// Start PostgreSQL container
	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       "crewdeck_test",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("starting postgres container: %v", err)
	}
	t.Cleanup(func() { pgContainer.Terminate(ctx) })

	pgHost, _ := pgContainer.Host(ctx)
	pgPort, _ := pgContainer.MappedPort(ctx, "5432")

	// Start Redis container
	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("starting redis container: %v", err)
	}
	t.Cleanup(func() { redisContainer.Terminate(ctx) })

	redisHost, _ := redisContainer.Host(ctx)
	redisPort, _ := redisContainer.MappedPort(ctx, "6379")

	// Connect to PostgreSQL
	dsn := fmt.Sprintf("postgres://test:test@%s:%s/crewdeck_test?sslmode=disable", pgHost, pgPort.Port())
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connecting to postgres: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	// Run migrations
	if err := database.RunMigrations(dsn, getMigrationsPath(t)); err != nil {
		t.Fatalf("running migrations: %v", err)
	}

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%s", redisHost, redisPort.Port()),
	})
	t.Cleanup(func() { redisClient.Close() })

	// Quota engines
	catalog := plan.NewCatalog()
	accountRepo := accounts.NewRepository(pool)
	planResolver := accounts.NewPlanResolver(accountRepo)

	usageStore := usage.NewStore(pool)
	quotaSvc := usage.NewService(usageStore, planResolver, catalog)

	resourceStore := resources.NewStore(pool)
	resourceSvc := resources.NewService(resourceStore, planResolver, catalog)

	// Accounts and auth
	accountSvc := accounts.NewService(accountRepo, quotaSvc, plan.TierFree)
	accountHandler := accounts.NewHandler(accountSvc)

	jwtManager := auth.NewJWTManager("test-access-secret-32-chars-long!!", "test-refresh-secret-32-chars-lng!", 15*time.Minute, 7*24*time.Hour)
	authSvc := auth.NewService(jwtManager, redisClient)
	authHandler := auth.NewHandler(authSvc, accountSvc)

	quotaHandler := usage.NewHandler(quotaSvc)
	resourceHandler := resources.NewHandler(resourceSvc)

	// Gated services, no event sink
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

		AuthMiddleware:     auth.Middleware(authSvc),
		APIQuotaMiddleware: usage.APIQuota(quotaSvc),
	})

	server := httptest.NewServer(router)
	t.Cleanup(func() { server.Close() })

	testEnv = &TestEnv{
		Pool:        pool,
		RedisClient: redisClient,
		Server:      server,
		AccountSvc:  accountSvc,
		QuotaSvc:    quotaSvc,
		ResourceSvc: resourceSvc,
		UsageStore:  usageStore,
	}

	return testEnv
}

func getMigrationsPath(t *testing.T) string {
	t.Helper()
	paths := []string{
		"../../migrations",
		"../../../migrations",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	t.Fatal("migrations directory not found")
	return ""
}

// Helper functions

func RegisterAccount(t *testing.T, env *TestEnv, email, password string) map[string]any {
	t.Helper()
	body := map[string]string{"email": email, "name": "Test Account", "password": password}
	resp := DoRequest(t, env, "POST", "/api/v1/auth/register", body, "")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register failed: status %d", resp.StatusCode)
	}
	return ParseResponse(t, resp)
}

func LoginAccount(t *testing.T, env *TestEnv, email, password string) string {
	t.Helper()
	body := map[string]string{"email": email, "password": password}
	resp := DoRequest(t, env, "POST", "/api/v1/auth/login", body, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login failed: status %d", resp.StatusCode)
	}
	result := ParseResponse(t, resp)
	data := result["data"].(map[string]any)
	return data["access_token"].(string)
}

func DoRequest(t *testing.T, env *TestEnv, method, path string, body any, token string) *http.Response {
	t.Helper()
	var bodyReader io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, env.Server.URL+path, bodyReader)
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("doing request: %v", err)
	}
	return resp
}

func ParseResponse(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("parsing response: %v", err)
	}
	return result
}

// CreateTestAgent registers an agent for the account behind token and
// returns its id.
func CreateTestAgent(t *testing.T, env *TestEnv, token, name string) string {
	t.Helper()
	body := map[string]any{
		"name":          name,
		"system_prompt": "You are a test agent.",
	}
	resp := DoRequest(t, env, "POST", "/api/v1/agents/", body, token)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("creating agent: status %d", resp.StatusCode)
	}
	result := ParseResponse(t, resp)
	data := result["data"].(map[string]any)
	return data["id"].(string)
}
