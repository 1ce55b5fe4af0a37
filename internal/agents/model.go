package agents

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrAgentNotFound covers both missing and soft-deleted agents.
var ErrAgentNotFound = errors.New("agent not found")

// Agent is a configured worker identity owned by an account. Agents are
// counted live against the plan's agent quota: creation consumes a slot,
// deletion releases it.
type Agent struct {
	ID           uuid.UUID       `json:"id"`
	AccountID    uuid.UUID       `json:"account_id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	SystemPrompt string          `json:"system_prompt"`
	Config       json.RawMessage `json:"config"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	DeletedAt    *time.Time      `json:"deleted_at,omitempty"`
}

type CreateAgentRequest struct {
	Name         string          `json:"name" validate:"required,min=1,max=255"`
	Description  string          `json:"description" validate:"max=1000"`
	SystemPrompt string          `json:"system_prompt" validate:"required,min=1"`
	Config       json.RawMessage `json:"config"`
}

type UpdateAgentRequest struct {
	Name         *string          `json:"name" validate:"omitempty,min=1,max=255"`
	Description  *string          `json:"description" validate:"omitempty,max=1000"`
	SystemPrompt *string          `json:"system_prompt" validate:"omitempty,min=1"`
	Config       *json.RawMessage `json:"config"`
}

type ListAgentsParams struct {
	Page     int
	PageSize int
}

func DefaultListParams() ListAgentsParams {
	return ListAgentsParams{
		Page:     1,
		PageSize: 20,
	}
}
