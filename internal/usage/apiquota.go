package usage

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/crewdeck-platform/crewdeck/internal/api"
	"github.com/crewdeck-platform/crewdeck/internal/claims"
)

// APIQuota meters authenticated requests against the rolling 24-hour
// API-call quota. The check runs before the handler and the increment
// after it, mirroring the engine's two-call protocol; concurrent
// requests at the boundary can each pass the check, so the ceiling is
// soft by the number of in-flight requests.
//
// Quota store errors fail open: metering must not take the API down.
func APIQuota(quota *Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			accountID := claims.AccountID(r.Context())
			if accountID == uuid.Nil {
				api.HandleError(w, api.ErrUnauthorized)
				return
			}

			res, err := quota.CheckQuota(r.Context(), accountID, QuotaAPICalls)
			if err != nil {
				slog.Warn("api quota check failed, failing open", "account_id", accountID, "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if !res.Allowed {
				api.HandleError(w, api.NewQuotaExceededError(res.Message))
				return
			}

			next.ServeHTTP(w, r)

			if err := quota.IncrementUsage(r.Context(), accountID, QuotaAPICalls); err != nil {
				slog.Warn("recording api call", "account_id", accountID, "error", err)
			}
		})
	}
}
