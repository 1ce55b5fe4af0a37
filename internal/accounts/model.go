package accounts

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/crewdeck-platform/crewdeck/internal/plan"
)

var (
	// ErrAccountNotFound indicates a dangling or invalid account id.
	ErrAccountNotFound = errors.New("account not found")

	// ErrEmailTaken indicates a registration against an existing email.
	ErrEmailTaken = errors.New("email already registered")
)

// Account is a tenant: the owner of usage and resource quota records.
type Account struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Plan         plan.Tier `json:"plan"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RegisterRequest creates a new account on the default plan.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required,min=1,max=120"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// LoginRequest authenticates an existing account.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ChangePlanRequest moves an account to a different plan tier.
type ChangePlanRequest struct {
	Plan plan.Tier `json:"plan" validate:"required,oneof=free pro enterprise"`
}
