package messages

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	Create(ctx context.Context, msg *Message) error
	GetByID(ctx context.Context, id uuid.UUID) (*Message, error)
	SetStatus(ctx context.Context, id uuid.UUID, status string) error
	ListByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*Message, error)
	CountByAccount(ctx context.Context, accountID uuid.UUID) (int64, error)
}

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{pool: pool}
}

func (r *postgresRepository) Create(ctx context.Context, msg *Message) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO messages (id, account_id, agent_id, body, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		msg.ID, msg.AccountID, msg.AgentID, msg.Body, msg.Status, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Message, error) {
	msg := &Message{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, account_id, agent_id, body, status, created_at, delivered_at
		 FROM messages WHERE id = $1`, id).
		Scan(&msg.ID, &msg.AccountID, &msg.AgentID, &msg.Body, &msg.Status, &msg.CreatedAt, &msg.DeliveredAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMessageNotFound
		}
		return nil, fmt.Errorf("querying message by id: %w", err)
	}
	return msg, nil
}

func (r *postgresRepository) SetStatus(ctx context.Context, id uuid.UUID, status string) error {
	query := `UPDATE messages SET status = $2 WHERE id = $1`
	if status == StatusDelivered {
		query = `UPDATE messages SET status = $2, delivered_at = NOW() WHERE id = $1`
	}

	tag, err := r.pool.Exec(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("updating message status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrMessageNotFound
	}
	return nil
}

func (r *postgresRepository) ListByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*Message, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, account_id, agent_id, body, status, created_at, delivered_at
		 FROM messages
		 WHERE account_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		accountID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	var msgs []*Message
	for rows.Next() {
		msg := &Message{}
		err := rows.Scan(&msg.ID, &msg.AccountID, &msg.AgentID, &msg.Body, &msg.Status, &msg.CreatedAt, &msg.DeliveredAt)
		if err != nil {
			return nil, fmt.Errorf("scanning message row: %w", err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

func (r *postgresRepository) CountByAccount(ctx context.Context, accountID uuid.UUID) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM messages WHERE account_id = $1`, accountID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting messages: %w", err)
	}
	return count, nil
}
