package containers

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrContainerNotFound = errors.New("container not found")

// Container statuses.
const (
	StatusRunning = "running"
	StatusDeleted = "deleted"
)

// Container is a provisioned workload owned by an account. Creation is
// gated twice: once against the plan's live container count and once
// against the account's resource quota. The requested allocation is held
// for the container's whole lifetime and released on deletion.
type Container struct {
	ID        uuid.UUID  `json:"id"`
	AccountID uuid.UUID  `json:"account_id"`
	AgentID   *uuid.UUID `json:"agent_id,omitempty"`
	Name      string     `json:"name"`
	Image     string     `json:"image"`
	CPU       int        `json:"cpu_millicores"`
	Memory    int        `json:"memory_mb"`
	Disk      int        `json:"disk_mb"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

type CreateContainerRequest struct {
	Name    string     `json:"name" validate:"required,min=1,max=255"`
	Image   string     `json:"image" validate:"required,min=1,max=512"`
	AgentID *uuid.UUID `json:"agent_id"`
	CPU     int        `json:"cpu_millicores" validate:"required,min=1"`
	Memory  int        `json:"memory_mb" validate:"required,min=1"`
	Disk    int        `json:"disk_mb" validate:"required,min=1"`
}

type ListContainersParams struct {
	Page     int
	PageSize int
}

func DefaultListParams() ListContainersParams {
	return ListContainersParams{
		Page:     1,
		PageSize: 20,
	}
}
