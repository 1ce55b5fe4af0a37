package resources

import (
	"time"

	"github.com/google/uuid"

	"github.com/crewdeck-platform/crewdeck/internal/plan"
)

// Record matches the resource_quotas table schema: one row per account
// holding per-container ceilings, aggregate ceilings, and aggregate
// current-in-use totals. CPU is in millicores, memory and disk in MB.
//
// Ceilings are seeded from the account's plan at creation and re-synced
// whenever the record is touched after a plan change, so an upgrade takes
// effect on the next quota check rather than requiring a migration.
type Record struct {
	AccountID uuid.UUID `json:"account_id"`
	PlanID    plan.Tier `json:"plan_id"`

	MaxCPUPerContainer    int `json:"max_cpu_per_container"`
	MaxMemoryPerContainer int `json:"max_memory_per_container"`
	MaxDiskPerContainer   int `json:"max_disk_per_container"`

	MaxTotalCPU    int `json:"max_total_cpu"`
	MaxTotalMemory int `json:"max_total_memory"`
	MaxTotalDisk   int `json:"max_total_disk"`

	// Invariant: each in-use total equals the sum of the corresponding
	// limit over the account's live containers. The increment/decrement
	// pair preserves it; floors at zero guard against double-release.
	CurrentTotalCPUInUse    int `json:"current_total_cpu_in_use"`
	CurrentTotalMemoryInUse int `json:"current_total_memory_in_use"`
	CurrentTotalDiskInUse   int `json:"current_total_disk_in_use"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Request is a container's requested resource allocation.
type Request struct {
	CPU    int `json:"cpu"`
	Memory int `json:"memory"`
	Disk   int `json:"disk"`
}

// CheckResult is the outcome of a resource admission check. On denial,
// Message names the first failing dimension only.
type CheckResult struct {
	Allowed bool   `json:"allowed"`
	Message string `json:"message,omitempty"`
}

// DeniedError carries a denial through the error return of services that
// gate on resource checks mid-operation.
type DeniedError struct {
	Result *CheckResult
}

func (e *DeniedError) Error() string {
	return e.Result.Message
}
