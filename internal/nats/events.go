package nats

import (
	"time"

	"github.com/google/uuid"
)

// FetchTimeout is the default timeout for batch fetching messages from consumers.
const FetchTimeout = 2 * time.Second

// Stream names.
const (
	StreamMessages = "CREWDECK_MESSAGES"
	StreamEvents   = "CREWDECK_EVENTS"
)

// Subject constants.
const (
	SubjectMessageQueued  = "crewdeck.messages.queued"
	SubjectQuotaReset     = "crewdeck.events.quota.reset"
	SubjectQuotaDenied    = "crewdeck.events.quota.denied"
	SubjectContainerEvent = "crewdeck.events.container"
)

// QueuedMessage is published when an account sends a message through an
// agent; dispatch workers consume it off the work queue.
type QueuedMessage struct {
	ID        uuid.UUID `json:"id"`
	AccountID uuid.UUID `json:"account_id"`
	AgentID   uuid.UUID `json:"agent_id"`
	Body      string    `json:"body"`
	QueuedAt  time.Time `json:"queued_at"`
}

// QuotaResetEvent is published when the sweep or an on-demand check
// rolls a usage window back to zero.
type QuotaResetEvent struct {
	AccountID uuid.UUID `json:"account_id"`
	Window    string    `json:"window"` // "monthly" or "daily"
	Timestamp time.Time `json:"timestamp"`
}

// QuotaDeniedEvent is published when an admission check rejects an
// operation, for billing and upgrade-nudge pipelines.
type QuotaDeniedEvent struct {
	AccountID uuid.UUID `json:"account_id"`
	QuotaType string    `json:"quota_type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// ContainerEvent is published for container lifecycle transitions.
type ContainerEvent struct {
	ContainerID uuid.UUID `json:"container_id"`
	AccountID   uuid.UUID `json:"account_id"`
	EventType   string    `json:"event_type"` // "created", "deleted"
	CPU         int       `json:"cpu_millicores"`
	Memory      int       `json:"memory_mb"`
	Disk        int       `json:"disk_mb"`
	Timestamp   time.Time `json:"timestamp"`
}
