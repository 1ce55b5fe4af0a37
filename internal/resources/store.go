package resources

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crewdeck-platform/crewdeck/internal/plan"
)

// Store persists per-account resource quota records. Usage adjustments
// are single-row atomic updates.
type Store interface {
	// Get returns the account's record, or nil when none exists.
	Get(ctx context.Context, accountID uuid.UUID) (*Record, error)
	// Create inserts the record unless one already exists.
	Create(ctx context.Context, rec *Record) (bool, error)
	// AddUsage adds the deltas to the in-use totals.
	AddUsage(ctx context.Context, accountID uuid.UUID, cpu, memory, disk int) error
	// SubtractUsage subtracts the deltas, flooring each dimension at zero
	// independently.
	SubtractUsage(ctx context.Context, accountID uuid.UUID, cpu, memory, disk int) error
	// SetLimits replaces the record's ceilings with the given plan's.
	SetLimits(ctx context.Context, accountID uuid.UUID, tier plan.Tier, limits plan.ResourceLimits) error
}

type postgresStore struct {
	pool *pgxpool.Pool
}

// NewStore creates a PostgreSQL-backed resource quota store.
func NewStore(pool *pgxpool.Pool) Store {
	return &postgresStore{pool: pool}
}

const recordColumns = `account_id, plan_id,
	       max_cpu_per_container, max_memory_per_container, max_disk_per_container,
	       max_total_cpu, max_total_memory, max_total_disk,
	       current_total_cpu_in_use, current_total_memory_in_use, current_total_disk_in_use,
	       updated_at`

func scanRecord(row pgx.Row) (*Record, error) {
	rec := &Record{}
	err := row.Scan(&rec.AccountID, &rec.PlanID,
		&rec.MaxCPUPerContainer, &rec.MaxMemoryPerContainer, &rec.MaxDiskPerContainer,
		&rec.MaxTotalCPU, &rec.MaxTotalMemory, &rec.MaxTotalDisk,
		&rec.CurrentTotalCPUInUse, &rec.CurrentTotalMemoryInUse, &rec.CurrentTotalDiskInUse,
		&rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *postgresStore) Get(ctx context.Context, accountID uuid.UUID) (*Record, error) {
	rec, err := scanRecord(s.pool.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM resource_quotas WHERE account_id = $1`, accountID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying resource quota: %w", err)
	}
	return rec, nil
}

func (s *postgresStore) Create(ctx context.Context, rec *Record) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO resource_quotas (account_id, plan_id,
		        max_cpu_per_container, max_memory_per_container, max_disk_per_container,
		        max_total_cpu, max_total_memory, max_total_disk,
		        current_total_cpu_in_use, current_total_memory_in_use, current_total_disk_in_use,
		        updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (account_id) DO NOTHING`,
		rec.AccountID, rec.PlanID,
		rec.MaxCPUPerContainer, rec.MaxMemoryPerContainer, rec.MaxDiskPerContainer,
		rec.MaxTotalCPU, rec.MaxTotalMemory, rec.MaxTotalDisk,
		rec.CurrentTotalCPUInUse, rec.CurrentTotalMemoryInUse, rec.CurrentTotalDiskInUse,
		rec.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("inserting resource quota: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *postgresStore) AddUsage(ctx context.Context, accountID uuid.UUID, cpu, memory, disk int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE resource_quotas
		 SET current_total_cpu_in_use = current_total_cpu_in_use + $2,
		     current_total_memory_in_use = current_total_memory_in_use + $3,
		     current_total_disk_in_use = current_total_disk_in_use + $4,
		     updated_at = NOW()
		 WHERE account_id = $1`,
		accountID, cpu, memory, disk)
	if err != nil {
		return fmt.Errorf("adding resource usage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *postgresStore) SubtractUsage(ctx context.Context, accountID uuid.UUID, cpu, memory, disk int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE resource_quotas
		 SET current_total_cpu_in_use = GREATEST(current_total_cpu_in_use - $2, 0),
		     current_total_memory_in_use = GREATEST(current_total_memory_in_use - $3, 0),
		     current_total_disk_in_use = GREATEST(current_total_disk_in_use - $4, 0),
		     updated_at = NOW()
		 WHERE account_id = $1`,
		accountID, cpu, memory, disk)
	if err != nil {
		return fmt.Errorf("subtracting resource usage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *postgresStore) SetLimits(ctx context.Context, accountID uuid.UUID, tier plan.Tier, limits plan.ResourceLimits) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE resource_quotas
		 SET plan_id = $2,
		     max_cpu_per_container = $3, max_memory_per_container = $4, max_disk_per_container = $5,
		     max_total_cpu = $6, max_total_memory = $7, max_total_disk = $8,
		     updated_at = NOW()
		 WHERE account_id = $1`,
		accountID, tier,
		limits.MaxCPUPerContainer, limits.MaxMemoryPerContainer, limits.MaxDiskPerContainer,
		limits.MaxTotalCPU, limits.MaxTotalMemory, limits.MaxTotalDisk)
	if err != nil {
		return fmt.Errorf("updating resource limits: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRecordNotFound
	}
	return nil
}
