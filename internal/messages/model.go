package messages

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrMessageNotFound = errors.New("message not found")

// Message statuses.
const (
	StatusQueued    = "queued"
	StatusDelivered = "delivered"
	StatusFailed    = "failed"
)

// Message is one metered send from an account through one of its agents.
// Sends count against the rolling 30-day message quota and are never
// given back: delivery failure changes the status, not the counter.
type Message struct {
	ID          uuid.UUID  `json:"id"`
	AccountID   uuid.UUID  `json:"account_id"`
	AgentID     uuid.UUID  `json:"agent_id"`
	Body        string     `json:"body"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
}

type SendMessageRequest struct {
	AgentID uuid.UUID `json:"agent_id" validate:"required"`
	Body    string    `json:"body" validate:"required,min=1,max=10000"`
}

type ListMessagesParams struct {
	Page     int
	PageSize int
}

func DefaultListParams() ListMessagesParams {
	return ListMessagesParams{
		Page:     1,
		PageSize: 50,
	}
}
