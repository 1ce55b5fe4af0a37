package resources

import (
	"encoding/json"
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

// Get returns the account's resource quota record, ceilings and in-use
// totals together.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	accountID := claims.AccountID(r.Context())
	if accountID == uuid.Nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	rec, err := h.svc.GetResourceQuota(r.Context(), accountID)
	if err != nil {
		slog.Error("fetching resource quota", "account_id", accountID, "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, rec)
}

type checkRequest struct {
	CPU    int `json:"cpu_millicores" validate:"required,min=1"`
	Memory int `json:"memory_mb" validate:"required,min=1"`
	Disk   int `json:"disk_mb" validate:"required,min=1"`
}

// Check runs a read-only resource admission check for a prospective
// container allocation.
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

	res, err := h.svc.CheckResourceQuota(r.Context(), accountID, Request{
		CPU:    req.CPU,
		Memory: req.Memory,
		Disk:   req.Disk,
	})
	if err != nil {
		slog.Error("checking resource quota", "account_id", accountID, "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, res)
}
