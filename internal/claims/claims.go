// Package claims carries the authenticated account identity through
// request contexts. It sits below auth and the domain handlers so both
// sides can read the caller without importing each other.
package claims

import (
	"context"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/crewdeck-platform/crewdeck/internal/plan"
)

// Claims is the access-token payload. The tier in the token is
// informational only — quota decisions always re-resolve the plan from
// the accounts store, so a stale claim cannot widen limits.
type Claims struct {
	AccountID string    `json:"aid"`
	Email     string    `json:"email"`
	Plan      plan.Tier `json:"plan"`
	jwt.RegisteredClaims
}

type contextKey string

const ctxKey contextKey = "account_claims"

// NewContext returns ctx with the verified claims attached.
func NewContext(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, ctxKey, c)
}

// FromContext returns the request's claims, or nil when unauthenticated.
func FromContext(ctx context.Context) *Claims {
	c, _ := ctx.Value(ctxKey).(*Claims)
	return c
}

// AccountID returns the authenticated account id, or uuid.Nil when the
// request carries no valid claims.
func AccountID(ctx context.Context) uuid.UUID {
	c := FromContext(ctx)
	if c == nil {
		return uuid.Nil
	}
	id, err := uuid.Parse(c.AccountID)
	if err != nil {
		return uuid.Nil
	}
	return id
}
