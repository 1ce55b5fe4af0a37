package containers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/crewdeck-platform/crewdeck/internal/api"
	"github.com/crewdeck-platform/crewdeck/internal/claims"
	"github.com/crewdeck-platform/crewdeck/internal/resources"
	"github.com/crewdeck-platform/crewdeck/internal/usage"
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

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	accountID := claims.AccountID(r.Context())
	if accountID == uuid.Nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	var req CreateContainerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	c, err := h.svc.Create(r.Context(), accountID, &req)
	if err != nil {
		var countDenied *usage.DeniedError
		if errors.As(err, &countDenied) {
			api.HandleError(w, api.NewQuotaExceededError(countDenied.Result.Message))
			return
		}
		var resDenied *resources.DeniedError
		if errors.As(err, &resDenied) {
			api.HandleError(w, api.NewQuotaExceededError(resDenied.Result.Message))
			return
		}
		slog.Error("creating container", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusCreated, c)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	accountID := claims.AccountID(r.Context())
	if accountID == uuid.Nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	params := DefaultListParams()
	if p := r.URL.Query().Get("page"); p != "" {
		if page, err := strconv.Atoi(p); err == nil && page > 0 {
			params.Page = page
		}
	}
	if ps := r.URL.Query().Get("page_size"); ps != "" {
		if pageSize, err := strconv.Atoi(ps); err == nil && pageSize > 0 && pageSize <= 100 {
			params.PageSize = pageSize
		}
	}

	out, totalCount, err := h.svc.ListByAccount(r.Context(), accountID, params)
	if err != nil {
		slog.Error("listing containers", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSONPaginated(w, http.StatusOK, out, totalCount, params.Page, params.PageSize)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	c := GetContainerFromContext(r.Context())
	if c == nil {
		api.HandleError(w, api.ErrNotFound)
		return
	}

	api.JSON(w, http.StatusOK, c)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	c := GetContainerFromContext(r.Context())
	if c == nil {
		api.HandleError(w, api.ErrNotFound)
		return
	}

	if err := h.svc.Delete(r.Context(), c); err != nil {
		slog.Error("deleting container", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSONMessage(w, http.StatusOK, "container deleted successfully")
}

// OwnershipMiddleware verifies container ownership before allowing access.
func (h *Handler) OwnershipMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accountID := claims.AccountID(r.Context())
		if accountID == uuid.Nil {
			api.HandleError(w, api.ErrUnauthorized)
			return
		}

		containerIDStr := chi.URLParam(r, "containerID")
		containerID, err := uuid.Parse(containerIDStr)
		if err != nil {
			api.HandleError(w, api.NewBadRequestError("invalid container ID"))
			return
		}

		c, err := h.svc.GetByID(r.Context(), containerID)
		if err != nil {
			if errors.Is(err, ErrContainerNotFound) {
				api.HandleError(w, api.NewNotFoundError("container not found"))
				return
			}
			slog.Error("fetching container for ownership check", "error", err)
			api.HandleError(w, api.ErrInternalServer)
			return
		}

		if c.AccountID != accountID {
			slog.Warn("ownership violation attempt",
				"container_id", containerID,
				"container_owner", c.AccountID,
				"requester", accountID,
				"path", r.URL.Path,
				"method", r.Method,
			)
			api.HandleError(w, api.ErrOwnershipViolation)
			return
		}

		ctx := SetContainerInContext(r.Context(), c)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
