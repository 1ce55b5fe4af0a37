//go:build integration

package integration

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendMessage(t *testing.T) {
	env := SetupTestEnv(t)

	RegisterAccount(t, env, "msg-send@example.com", "password123")
	token := LoginAccount(t, env, "msg-send@example.com", "password123")
	agentID := CreateTestAgent(t, env, token, "Messenger")

	t.Run("send queues and counts", func(t *testing.T) {
		body := map[string]any{"agent_id": agentID, "body": "hello there"}
		resp := DoRequest(t, env, "POST", "/api/v1/messages/", body, token)
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		result := ParseResponse(t, resp)
		data := result["data"].(map[string]any)
		assert.Equal(t, "queued", data["status"])

		check := DoRequest(t, env, "POST", "/api/v1/quota/check", map[string]string{"quota_type": "messages"}, token)
		require.Equal(t, http.StatusOK, check.StatusCode)
		checkData := ParseResponse(t, check)["data"].(map[string]any)
		assert.Equal(t, float64(1), checkData["current"])
	})

	t.Run("list messages", func(t *testing.T) {
		resp := DoRequest(t, env, "GET", "/api/v1/messages/", nil, token)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		result := ParseResponse(t, resp)
		msgs := result["data"].([]any)
		require.Len(t, msgs, 1)
		assert.Equal(t, "hello there", msgs[0].(map[string]any)["body"])
	})

	t.Run("empty body rejected", func(t *testing.T) {
		body := map[string]any{"agent_id": agentID, "body": ""}
		resp := DoRequest(t, env, "POST", "/api/v1/messages/", body, token)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestMessageQuotaEnforcement(t *testing.T) {
	env := SetupTestEnv(t)

	RegisterAccount(t, env, "msg-quota@example.com", "password123")
	token := LoginAccount(t, env, "msg-quota@example.com", "password123")
	agentID := CreateTestAgent(t, env, token, "Messenger")

	// Park the counter one below the free limit instead of sending 499
	// messages through the API.
	meResp := DoRequest(t, env, "GET", "/api/v1/account/", nil, token)
	require.Equal(t, http.StatusOK, meResp.StatusCode)
	accountID := ParseResponse(t, meResp)["data"].(map[string]any)["id"].(string)

	_, err := env.Pool.Exec(context.Background(),
		`UPDATE account_usage SET messages_this_month = 499 WHERE account_id = $1`, accountID)
	require.NoError(t, err)

	t.Run("last message within quota succeeds", func(t *testing.T) {
		body := map[string]any{"agent_id": agentID, "body": "number five hundred"}
		resp := DoRequest(t, env, "POST", "/api/v1/messages/", body, token)
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
	})

	t.Run("next message is denied", func(t *testing.T) {
		body := map[string]any{"agent_id": agentID, "body": "one too many"}
		resp := DoRequest(t, env, "POST", "/api/v1/messages/", body, token)
		require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

		result := ParseResponse(t, resp)
		assert.Contains(t, result["error"], "Quota exceeded: Messages: 500/500")
	})

	t.Run("denied send persists nothing", func(t *testing.T) {
		listResp := DoRequest(t, env, "GET", "/api/v1/messages/", nil, token)
		require.Equal(t, http.StatusOK, listResp.StatusCode)
		msgs := ParseResponse(t, listResp)["data"].([]any)
		assert.Len(t, msgs, 1)
	})
}
