package usage

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/crewdeck-platform/crewdeck/internal/api"
	"github.com/crewdeck-platform/crewdeck/internal/claims"
)

type Handler struct {
	svc      *Service
	validate *validator.Validate
}

func NewHandler(svc *Service) *Handler {
	return &Handler{
		svc:      svc,
		validate: validator.New(),
	}
}

// Status returns the account's standing across all four quota types.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	accountID := claims.AccountID(r.Context())
	if accountID == uuid.Nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	status, err := h.svc.Status(r.Context(), accountID)
	if err != nil {
		slog.Error("fetching quota status", "account_id", accountID, "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, status)
}

type checkRequest struct {
	QuotaType QuotaType `json:"quota_type" validate:"required,oneof=messages api_calls agents containers"`
}

// Check runs a read-only admission check. The response reports the
// would-be outcome; nothing is consumed.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	accountID := claims.AccountID(r.Context())
	if accountID == uuid.Nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	var req checkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	res, err := h.svc.CheckQuota(r.Context(), accountID, req.QuotaType)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			api.HandleError(w, api.NewNotFoundError("usage record not found"))
			return
		}
		slog.Error("checking quota", "account_id", accountID, "quota_type", req.QuotaType, "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, res)
}
