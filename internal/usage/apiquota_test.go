package usage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crewdeck-platform/crewdeck/internal/claims"
)

func authedRequest(accountID uuid.UUID) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/agents", nil)
	c := &claims.Claims{AccountID: accountID.String()}
	return req.WithContext(claims.NewContext(req.Context(), c))
}

func TestAPIQuota_CountsRequests(t *testing.T) {
	svc, store, accountID := newTestEngine(t)

	handler := APIQuota(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, authedRequest(accountID))
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	usageRec, err := store.Get(context.Background(), accountID)
	require.NoError(t, err)
	assert.Equal(t, 3, usageRec.APICallsToday)
}

func TestAPIQuota_DeniesAtLimit(t *testing.T) {
	svc, store, accountID := newTestEngine(t)

	// Park the counter at the free plan's 1000-call ceiling.
	rec, err := store.Get(context.Background(), accountID)
	require.NoError(t, err)
	rec.APICallsToday = 1000
	store.Put(rec)

	handler := APIQuota(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run when quota is exhausted")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, authedRequest(accountID))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "Quota exceeded: API calls")
}

func TestAPIQuota_RejectsAnonymous(t *testing.T) {
	svc, _, _ := newTestEngine(t)

	handler := APIQuota(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without claims")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/agents", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
