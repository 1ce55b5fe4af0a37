package accounts

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/crewdeck-platform/crewdeck/internal/api"
	"github.com/crewdeck-platform/crewdeck/internal/claims"
	"github.com/crewdeck-platform/crewdeck/internal/plan"
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

// Me returns the authenticated account.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	accountID := claims.AccountID(r.Context())
	if accountID == uuid.Nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	acc, err := h.svc.Get(r.Context(), accountID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			api.HandleError(w, api.ErrNotFound)
			return
		}
		slog.Error("fetching account", "account_id", accountID, "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, acc)
}

// ChangePlan moves the account to a different plan tier.
func (h *Handler) ChangePlan(w http.ResponseWriter, r *http.Request) {
	accountID := claims.AccountID(r.Context())
	if accountID == uuid.Nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	var req ChangePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	acc, err := h.svc.ChangePlan(r.Context(), accountID, req.Plan)
	if err != nil {
		if errors.Is(err, plan.ErrInvalidPlan) {
			api.HandleError(w, api.NewBadRequestError("invalid plan tier"))
			return
		}
		if errors.Is(err, ErrAccountNotFound) {
			api.HandleError(w, api.ErrNotFound)
			return
		}
		slog.Error("changing plan", "account_id", accountID, "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, acc)
}
