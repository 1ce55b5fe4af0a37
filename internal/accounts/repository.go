package accounts

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crewdeck-platform/crewdeck/internal/plan"
)

type Repository interface {
	Create(ctx context.Context, acc *Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	SetPlan(ctx context.Context, id uuid.UUID, tier plan.Tier) error
}

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{pool: pool}
}

func (r *postgresRepository) Create(ctx context.Context, acc *Account) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO accounts (id, email, name, password_hash, plan, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		acc.ID, acc.Email, acc.Name, acc.PasswordHash, acc.Plan, acc.CreatedAt, acc.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrEmailTaken
		}
		return fmt.Errorf("inserting account: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	acc := &Account{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, email, name, password_hash, plan, created_at, updated_at
		 FROM accounts WHERE id = $1`, id).
		Scan(&acc.ID, &acc.Email, &acc.Name, &acc.PasswordHash, &acc.Plan, &acc.CreatedAt, &acc.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("querying account by id: %w", err)
	}
	return acc, nil
}

func (r *postgresRepository) GetByEmail(ctx context.Context, email string) (*Account, error) {
	acc := &Account{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, email, name, password_hash, plan, created_at, updated_at
		 FROM accounts WHERE email = $1`, email).
		Scan(&acc.ID, &acc.Email, &acc.Name, &acc.PasswordHash, &acc.Plan, &acc.CreatedAt, &acc.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("querying account by email: %w", err)
	}
	return acc, nil
}

func (r *postgresRepository) SetPlan(ctx context.Context, id uuid.UUID, tier plan.Tier) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE accounts SET plan = $2, updated_at = NOW() WHERE id = $1`, id, tier)
	if err != nil {
		return fmt.Errorf("updating account plan: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}
