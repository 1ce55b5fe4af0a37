package usage

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/crewdeck-platform/crewdeck/internal/plan"
)

// QuotaType identifies one of the four metered counters.
type QuotaType string

const (
	QuotaMessages   QuotaType = "messages"
	QuotaAPICalls   QuotaType = "api_calls"
	QuotaAgents     QuotaType = "agents"
	QuotaContainers QuotaType = "containers"
)

// Rolling window lengths for the rate-based counters. Messages accumulate
// over 30 days, API calls over 24 hours. Agent and container counts are
// live counts and have no window.
const (
	MonthlyWindow = 30 * 24 * time.Hour
	DailyWindow   = 24 * time.Hour
)

var (
	// ErrRecordNotFound means the account's usage record was never
	// initialized. Callers must run InitializeAccountUsage at account
	// creation; hitting this is a precondition violation, not user error.
	ErrRecordNotFound = errors.New("usage record not found")

	// ErrUnknownQuotaType means a caller passed an unsupported quota type.
	ErrUnknownQuotaType = errors.New("unknown quota type")
)

// Record matches the account_usage table schema: one row per account
// holding the rolling-window counters and the live counts.
type Record struct {
	AccountID          uuid.UUID `json:"account_id"`
	PlanID             plan.Tier `json:"plan_id"`
	MessagesThisMonth  int       `json:"messages_this_month"`
	MessagesMonthStart time.Time `json:"messages_month_start"`
	APICallsToday      int       `json:"api_calls_today"`
	APICallsDayStart   time.Time `json:"api_calls_day_start"`
	AgentCount         int       `json:"agent_count"`
	ContainerCount     int       `json:"container_count"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// CheckResult is the outcome of an admission check. Denial is expressed
// here as Allowed=false, never as an error.
type CheckResult struct {
	Allowed   bool      `json:"allowed"`
	QuotaType QuotaType `json:"quota_type"`
	Current   int       `json:"current"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	Message   string    `json:"message"`
}

// DeniedError lets gated services (agents, containers, messages) carry a
// denial through their error return. CheckQuota itself never produces it;
// callers wrap the CheckResult when an admission fails mid-operation.
type DeniedError struct {
	Result *CheckResult
}

func (e *DeniedError) Error() string {
	return e.Result.Message
}

// Status is the dashboard summary across all four quota types.
type Status struct {
	AccountID uuid.UUID     `json:"account_id"`
	Plan      plan.Tier     `json:"plan"`
	Quotas    []CheckResult `json:"quotas"`
}

// windowed reports whether the quota type resets on a rolling window.
func (qt QuotaType) windowed() bool {
	return qt == QuotaMessages || qt == QuotaAPICalls
}

// label returns the human-readable name used in quota messages.
func (qt QuotaType) label() string {
	switch qt {
	case QuotaMessages:
		return "Messages"
	case QuotaAPICalls:
		return "API calls"
	case QuotaAgents:
		return "Agents"
	case QuotaContainers:
		return "Containers"
	}
	return string(qt)
}

// action returns the verb phrase used in upgrade suggestions.
func (qt QuotaType) action() string {
	switch qt {
	case QuotaMessages:
		return "send more messages"
	case QuotaAPICalls:
		return "make more API calls"
	case QuotaAgents:
		return "create more agents"
	case QuotaContainers:
		return "create more containers"
	}
	return "increase your limits"
}

func known(qt QuotaType) bool {
	switch qt {
	case QuotaMessages, QuotaAPICalls, QuotaAgents, QuotaContainers:
		return true
	}
	return false
}
