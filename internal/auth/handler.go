package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/crewdeck-platform/crewdeck/internal/accounts"
	"github.com/crewdeck-platform/crewdeck/internal/api"
	"github.com/crewdeck-platform/crewdeck/internal/claims"
)

type Handler struct {
	authSvc    *Service
	accountSvc *accounts.Service
	validate   *validator.Validate
}

func NewHandler(authSvc *Service, accountSvc *accounts.Service) *Handler {
	return &Handler{
		authSvc:    authSvc,
		accountSvc: accountSvc,
		validate:   validator.New(),
	}
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req accounts.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		slog.Error("hashing password", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	acc, err := h.accountSvc.Create(r.Context(), req.Email, req.Name, hash)
	if err != nil {
		if errors.Is(err, accounts.ErrEmailTaken) {
			api.HandleError(w, api.ErrEmailAlreadyExists)
			return
		}
		slog.Error("creating account", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	tokens, err := h.authSvc.GenerateTokens(r.Context(), acc.ID.String(), acc.Email, acc.Plan)
	if err != nil {
		slog.Error("generating tokens", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusCreated, tokens)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req accounts.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	acc, err := h.accountSvc.GetByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, accounts.ErrAccountNotFound) {
			api.HandleError(w, api.ErrInvalidCredentials)
			return
		}
		slog.Error("getting account by email", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	if err := ComparePassword(acc.PasswordHash, req.Password); err != nil {
		api.HandleError(w, api.ErrInvalidCredentials)
		return
	}

	tokens, err := h.authSvc.GenerateTokens(r.Context(), acc.ID.String(), acc.Email, acc.Plan)
	if err != nil {
		slog.Error("generating tokens", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, tokens)
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	refreshClaims, err := h.authSvc.ParseRefreshToken(req.RefreshToken)
	if err != nil {
		api.HandleError(w, api.ErrInvalidToken)
		return
	}

	accountID, err := uuid.Parse(refreshClaims.AccountID)
	if err != nil {
		api.HandleError(w, api.ErrInvalidToken)
		return
	}

	// Reload the account so the new access token carries the current
	// email and plan tier, not whatever the old token was minted with.
	acc, err := h.accountSvc.Get(r.Context(), accountID)
	if err != nil {
		api.HandleError(w, api.ErrInvalidToken)
		return
	}

	tokens, err := h.authSvc.RefreshTokens(r.Context(), req.RefreshToken, acc.Email, acc.Plan)
	if err != nil {
		slog.Error("refreshing tokens", "error", err)
		api.HandleError(w, api.ErrInvalidToken)
		return
	}

	api.JSON(w, http.StatusOK, tokens)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	c := claims.FromContext(r.Context())
	if c == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	if err := h.authSvc.Logout(r.Context(), c.AccountID); err != nil {
		slog.Error("logging out", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSONMessage(w, http.StatusOK, "logged out successfully")
}
