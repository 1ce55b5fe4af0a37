package agents

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	Create(ctx context.Context, agent *Agent) error
	GetByID(ctx context.Context, id uuid.UUID) (*Agent, error)
	ListByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*Agent, error)
	CountByAccount(ctx context.Context, accountID uuid.UUID) (int64, error)
	Update(ctx context.Context, agent *Agent) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
}

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{pool: pool}
}

func (r *postgresRepository) Create(ctx context.Context, agent *Agent) error {
	query := `
		INSERT INTO agents (id, account_id, name, description, system_prompt, config, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.pool.Exec(ctx, query,
		agent.ID, agent.AccountID, agent.Name, agent.Description,
		agent.SystemPrompt, agent.Config, agent.CreatedAt, agent.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting agent: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Agent, error) {
	query := `
		SELECT id, account_id, name, description, system_prompt, config, created_at, updated_at, deleted_at
		FROM agents
		WHERE id = $1 AND deleted_at IS NULL`

	agent := &Agent{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&agent.ID, &agent.AccountID, &agent.Name, &agent.Description,
		&agent.SystemPrompt, &agent.Config, &agent.CreatedAt, &agent.UpdatedAt, &agent.DeletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAgentNotFound
		}
		return nil, fmt.Errorf("querying agent by id: %w", err)
	}
	return agent, nil
}

func (r *postgresRepository) ListByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*Agent, error) {
	query := `
		SELECT id, account_id, name, description, system_prompt, config, created_at, updated_at, deleted_at
		FROM agents
		WHERE account_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, accountID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing agents: %w", err)
	}
	defer rows.Close()

	var agents []*Agent
	for rows.Next() {
		agent := &Agent{}
		err := rows.Scan(
			&agent.ID, &agent.AccountID, &agent.Name, &agent.Description,
			&agent.SystemPrompt, &agent.Config, &agent.CreatedAt, &agent.UpdatedAt, &agent.DeletedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning agent row: %w", err)
		}
		agents = append(agents, agent)
	}
	return agents, rows.Err()
}

func (r *postgresRepository) CountByAccount(ctx context.Context, accountID uuid.UUID) (int64, error) {
	query := `SELECT COUNT(*) FROM agents WHERE account_id = $1 AND deleted_at IS NULL`

	var count int64
	err := r.pool.QueryRow(ctx, query, accountID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting agents: %w", err)
	}
	return count, nil
}

func (r *postgresRepository) Update(ctx context.Context, agent *Agent) error {
	query := `
		UPDATE agents
		SET name = $2, description = $3, system_prompt = $4, config = $5, updated_at = $6
		WHERE id = $1 AND deleted_at IS NULL`

	result, err := r.pool.Exec(ctx, query,
		agent.ID, agent.Name, agent.Description, agent.SystemPrompt, agent.Config, agent.UpdatedAt)
	if err != nil {
		return fmt.Errorf("updating agent: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrAgentNotFound
	}
	return nil
}

func (r *postgresRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE agents SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("soft deleting agent: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrAgentNotFound
	}
	return nil
}
