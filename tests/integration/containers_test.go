//go:build integration

package integration

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createContainer(t *testing.T, env *TestEnv, token string, cpu, memory, disk int) *http.Response {
	t.Helper()
	body := map[string]any{
		"name":           "worker",
		"image":          "crewdeck/worker:latest",
		"cpu_millicores": cpu,
		"memory_mb":      memory,
		"disk_mb":        disk,
	}
	return DoRequest(t, env, "POST", "/api/v1/containers/", body, token)
}

func TestContainerLifecycle(t *testing.T) {
	env := SetupTestEnv(t)

	RegisterAccount(t, env, "container-life@example.com", "password123")
	token := LoginAccount(t, env, "container-life@example.com", "password123")

	var containerID string

	t.Run("create within limits", func(t *testing.T) {
		resp := createContainer(t, env, token, 500, 512, 1024)
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		result := ParseResponse(t, resp)
		data := result["data"].(map[string]any)
		containerID = data["id"].(string)
		assert.Equal(t, "running", data["status"])
	})

	t.Run("allocation shows in resource quota", func(t *testing.T) {
		resp := DoRequest(t, env, "GET", "/api/v1/quota/resources", nil, token)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		result := ParseResponse(t, resp)
		data := result["data"].(map[string]any)
		assert.Equal(t, float64(500), data["current_total_cpu_in_use"])
		assert.Equal(t, float64(512), data["current_total_memory_in_use"])
		assert.Equal(t, float64(1024), data["current_total_disk_in_use"])
	})

	t.Run("second container denied by count quota", func(t *testing.T) {
		resp := createContainer(t, env, token, 100, 128, 256)
		require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

		result := ParseResponse(t, resp)
		assert.Contains(t, result["error"], "Quota exceeded: Containers: 1/1")
	})

	t.Run("delete releases count and resources", func(t *testing.T) {
		resp := DoRequest(t, env, "DELETE", "/api/v1/containers/"+containerID, nil, token)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		quotaResp := DoRequest(t, env, "GET", "/api/v1/quota/resources", nil, token)
		require.Equal(t, http.StatusOK, quotaResp.StatusCode)

		data := ParseResponse(t, quotaResp)["data"].(map[string]any)
		assert.Equal(t, float64(0), data["current_total_cpu_in_use"])
		assert.Equal(t, float64(0), data["current_total_memory_in_use"])
		assert.Equal(t, float64(0), data["current_total_disk_in_use"])

		// The freed slot admits a new container.
		again := createContainer(t, env, token, 200, 256, 512)
		assert.Equal(t, http.StatusCreated, again.StatusCode)
	})
}

func TestResourceQuotaEnforcement(t *testing.T) {
	env := SetupTestEnv(t)

	RegisterAccount(t, env, "container-res@example.com", "password123")
	token := LoginAccount(t, env, "container-res@example.com", "password123")

	// Pro tier: 2000m CPU per container, 4000m aggregate.
	resp := DoRequest(t, env, "PUT", "/api/v1/account/plan", map[string]string{"plan": "pro"}, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	t.Run("per-container ceiling fires first", func(t *testing.T) {
		resp := createContainer(t, env, token, 2500, 512, 1024)
		require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

		result := ParseResponse(t, resp)
		assert.Contains(t, result["error"], "CPU limit exceeds per-container maximum: Requested: 2500m, Maximum: 2000m")
	})

	t.Run("aggregate ceiling", func(t *testing.T) {
		first := createContainer(t, env, token, 2000, 1024, 2048)
		require.Equal(t, http.StatusCreated, first.StatusCode)
		second := createContainer(t, env, token, 1500, 1024, 2048)
		require.Equal(t, http.StatusCreated, second.StatusCode)

		// 3500m of 4000m in use: a 1000m request fits per-container but
		// not the aggregate.
		third := createContainer(t, env, token, 1000, 512, 1024)
		require.Equal(t, http.StatusTooManyRequests, third.StatusCode)

		result := ParseResponse(t, third)
		assert.Contains(t, result["error"], "Insufficient CPU quota. Available: 500m, Requested: 1000m")
	})

	t.Run("read-only resource check", func(t *testing.T) {
		body := map[string]any{"cpu_millicores": 1000, "memory_mb": 512, "disk_mb": 1024}
		resp := DoRequest(t, env, "POST", "/api/v1/quota/resources/check", body, token)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		result := ParseResponse(t, resp)
		data := result["data"].(map[string]any)
		assert.False(t, data["allowed"].(bool))
		assert.Contains(t, data["message"], "Insufficient CPU quota")
	})
}
