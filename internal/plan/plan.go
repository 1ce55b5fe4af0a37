package plan

import (
	"errors"
	"fmt"
)

// Tier is an account's subscription plan tier.
type Tier string

const (
	TierFree       Tier = "free"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// Unlimited is the sentinel for enterprise quotas that are effectively
// uncapped. Large enough that no real account reaches it, small enough
// to stay well clear of integer overflow in counter arithmetic.
const Unlimited = 1_000_000

// ErrInvalidPlan indicates an unrecognized plan tier reached the catalog.
var ErrInvalidPlan = errors.New("invalid plan tier")

// Quotas holds the count/rate ceilings for a plan tier.
type Quotas struct {
	MessagesPerMonth int `json:"messages_per_month"`
	APICallsPerDay   int `json:"api_calls_per_day"`
	MaxAgents        int `json:"max_agents"`
	MaxContainers    int `json:"max_containers"`
}

// ResourceLimits holds per-container and aggregate CPU/memory/disk
// ceilings for a plan tier. CPU is in millicores, memory and disk in MB.
type ResourceLimits struct {
	MaxCPUPerContainer    int `json:"max_cpu_per_container"`
	MaxMemoryPerContainer int `json:"max_memory_per_container"`
	MaxDiskPerContainer   int `json:"max_disk_per_container"`
	MaxTotalCPU           int `json:"max_total_cpu"`
	MaxTotalMemory        int `json:"max_total_memory"`
	MaxTotalDisk          int `json:"max_total_disk"`
}

// Catalog is an immutable tier -> limits lookup table. Build one with
// NewCatalog at startup and inject it; there is no package-level state.
type Catalog struct {
	quotas    map[Tier]Quotas
	resources map[Tier]ResourceLimits
}

// NewCatalog returns the default plan catalog.
// Every quota and resource value is non-decreasing free -> pro -> enterprise,
// and each aggregate resource ceiling is at least its per-container ceiling.
func NewCatalog() *Catalog {
	return &Catalog{
		quotas: map[Tier]Quotas{
			TierFree: {
				MessagesPerMonth: 500,
				APICallsPerDay:   1000,
				MaxAgents:        3,
				MaxContainers:    1,
			},
			TierPro: {
				MessagesPerMonth: 10_000,
				APICallsPerDay:   25_000,
				MaxAgents:        20,
				MaxContainers:    5,
			},
			TierEnterprise: {
				MessagesPerMonth: Unlimited,
				APICallsPerDay:   Unlimited,
				MaxAgents:        Unlimited,
				MaxContainers:    100,
			},
		},
		resources: map[Tier]ResourceLimits{
			TierFree: {
				MaxCPUPerContainer:    1000,
				MaxMemoryPerContainer: 1024,
				MaxDiskPerContainer:   2048,
				MaxTotalCPU:           1000,
				MaxTotalMemory:        1024,
				MaxTotalDisk:          2048,
			},
			TierPro: {
				MaxCPUPerContainer:    2000,
				MaxMemoryPerContainer: 4096,
				MaxDiskPerContainer:   10_240,
				MaxTotalCPU:           4000,
				MaxTotalMemory:        8192,
				MaxTotalDisk:          51_200,
			},
			TierEnterprise: {
				MaxCPUPerContainer:    8000,
				MaxMemoryPerContainer: 32_768,
				MaxDiskPerContainer:   102_400,
				MaxTotalCPU:           64_000,
				MaxTotalMemory:        262_144,
				MaxTotalDisk:          1_048_576,
			},
		},
	}
}

// LimitsFor returns the count/rate quotas for a tier.
func (c *Catalog) LimitsFor(tier Tier) (Quotas, error) {
	q, ok := c.quotas[tier]
	if !ok {
		return Quotas{}, fmt.Errorf("%w: %q", ErrInvalidPlan, tier)
	}
	return q, nil
}

// ResourceLimitsFor returns the CPU/memory/disk limits for a tier.
func (c *Catalog) ResourceLimitsFor(tier Tier) (ResourceLimits, error) {
	r, ok := c.resources[tier]
	if !ok {
		return ResourceLimits{}, fmt.Errorf("%w: %q", ErrInvalidPlan, tier)
	}
	return r, nil
}

// Tiers returns all known tiers in ascending order.
func (c *Catalog) Tiers() []Tier {
	return []Tier{TierFree, TierPro, TierEnterprise}
}

// Valid reports whether tier is a recognized plan tier.
func Valid(tier Tier) bool {
	switch tier {
	case TierFree, TierPro, TierEnterprise:
		return true
	}
	return false
}
