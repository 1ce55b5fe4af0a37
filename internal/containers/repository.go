package containers

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	Create(ctx context.Context, c *Container) error
	GetByID(ctx context.Context, id uuid.UUID) (*Container, error)
	ListByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*Container, error)
	CountByAccount(ctx context.Context, accountID uuid.UUID) (int64, error)
	SoftDelete(ctx context.Context, id uuid.UUID) error
}

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{pool: pool}
}

func (r *postgresRepository) Create(ctx context.Context, c *Container) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO containers (id, account_id, agent_id, name, image, cpu_millicores, memory_mb, disk_mb, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		c.ID, c.AccountID, c.AgentID, c.Name, c.Image, c.CPU, c.Memory, c.Disk, c.Status, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting container: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Container, error) {
	c := &Container{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, account_id, agent_id, name, image, cpu_millicores, memory_mb, disk_mb, status, created_at, updated_at, deleted_at
		 FROM containers WHERE id = $1 AND deleted_at IS NULL`, id).
		Scan(&c.ID, &c.AccountID, &c.AgentID, &c.Name, &c.Image, &c.CPU, &c.Memory, &c.Disk,
			&c.Status, &c.CreatedAt, &c.UpdatedAt, &c.DeletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrContainerNotFound
		}
		return nil, fmt.Errorf("querying container by id: %w", err)
	}
	return c, nil
}

func (r *postgresRepository) ListByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*Container, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, account_id, agent_id, name, image, cpu_millicores, memory_mb, disk_mb, status, created_at, updated_at, deleted_at
		 FROM containers
		 WHERE account_id = $1 AND deleted_at IS NULL
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		accountID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing containers: %w", err)
	}
	defer rows.Close()

	var out []*Container
	for rows.Next() {
		c := &Container{}
		err := rows.Scan(&c.ID, &c.AccountID, &c.AgentID, &c.Name, &c.Image, &c.CPU, &c.Memory, &c.Disk,
			&c.Status, &c.CreatedAt, &c.UpdatedAt, &c.DeletedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning container row: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *postgresRepository) CountByAccount(ctx context.Context, accountID uuid.UUID) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM containers WHERE account_id = $1 AND deleted_at IS NULL`, accountID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting containers: %w", err)
	}
	return count, nil
}

func (r *postgresRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE containers SET status = $2, deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`,
		id, StatusDeleted)
	if err != nil {
		return fmt.Errorf("soft deleting container: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrContainerNotFound
	}
	return nil
}
