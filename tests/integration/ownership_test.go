//go:build integration

package integration

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOwnershipIsolation(t *testing.T) {
	env := SetupTestEnv(t)

	// Create two accounts
	RegisterAccount(t, env, "owner-a@example.com", "password123")
	RegisterAccount(t, env, "owner-b@example.com", "password123")

	tokenA := LoginAccount(t, env, "owner-a@example.com", "password123")
	tokenB := LoginAccount(t, env, "owner-b@example.com", "password123")

	// Account A creates an agent
	body := map[string]any{
		"name":          "Account A Agent",
		"system_prompt": "I belong to account A",
	}
	resp := DoRequest(t, env, "POST", "/api/v1/agents/", body, tokenA)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	result := ParseResponse(t, resp)
	data := result["data"].(map[string]any)
	agentAID := data["id"].(string)

	t.Run("owner can access own agent", func(t *testing.T) {
		resp := DoRequest(t, env, "GET", "/api/v1/agents/"+agentAID, nil, tokenA)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("other account cannot GET agent", func(t *testing.T) {
		resp := DoRequest(t, env, "GET", "/api/v1/agents/"+agentAID, nil, tokenB)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("other account cannot UPDATE agent", func(t *testing.T) {
		updateBody := map[string]any{"name": "Hacked Name"}
		resp := DoRequest(t, env, "PUT", "/api/v1/agents/"+agentAID, updateBody, tokenB)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("other account cannot DELETE agent", func(t *testing.T) {
		resp := DoRequest(t, env, "DELETE", "/api/v1/agents/"+agentAID, nil, tokenB)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("listing only returns own agents", func(t *testing.T) {
		// Account B creates their own agent
		bodyB := map[string]any{
			"name":          "Account B Agent",
			"system_prompt": "I belong to account B",
		}
		DoRequest(t, env, "POST", "/api/v1/agents/", bodyB, tokenB)

		// Account A's list should not contain account B's agents
		listResp := DoRequest(t, env, "GET", "/api/v1/agents/", nil, tokenA)
		require.Equal(t, http.StatusOK, listResp.StatusCode)

		listResult := ParseResponse(t, listResp)
		agents := listResult["data"].([]any)
		for _, a := range agents {
			agent := a.(map[string]any)
			assert.NotEqual(t, "Account B Agent", agent["name"],
				"account A should not see account B's agents")
		}
	})

	t.Run("unauthenticated access denied", func(t *testing.T) {
		resp := DoRequest(t, env, "GET", "/api/v1/agents/"+agentAID, nil, "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("invalid token access denied", func(t *testing.T) {
		resp := DoRequest(t, env, "GET", "/api/v1/agents/"+agentAID, nil, "invalid-jwt-token")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestContainerOwnershipIsolation(t *testing.T) {
	env := SetupTestEnv(t)

	RegisterAccount(t, env, "cowner-a@example.com", "password123")
	RegisterAccount(t, env, "cowner-b@example.com", "password123")

	tokenA := LoginAccount(t, env, "cowner-a@example.com", "password123")
	tokenB := LoginAccount(t, env, "cowner-b@example.com", "password123")

	resp := createContainer(t, env, tokenA, 500, 512, 1024)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	containerID := ParseResponse(t, resp)["data"].(map[string]any)["id"].(string)

	t.Run("other account cannot GET container", func(t *testing.T) {
		resp := DoRequest(t, env, "GET", "/api/v1/containers/"+containerID, nil, tokenB)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("other account cannot DELETE container", func(t *testing.T) {
		resp := DoRequest(t, env, "DELETE", "/api/v1/containers/"+containerID, nil, tokenB)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)

		// A's allocation is untouched.
		quotaResp := DoRequest(t, env, "GET", "/api/v1/quota/resources", nil, tokenA)
		require.Equal(t, http.StatusOK, quotaResp.StatusCode)
		data := ParseResponse(t, quotaResp)["data"].(map[string]any)
		assert.Equal(t, float64(500), data["current_total_cpu_in_use"])
	})
}
