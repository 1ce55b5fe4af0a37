package usage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crewdeck-platform/crewdeck/internal/plan"
)

// Store persists account usage records. Every mutation is a single-row
// read-modify-write executed atomically by the backing store; the
// check-then-increment protocol across calls is the caller's concern
// (see Service).
type Store interface {
	// Get returns the account's record, or nil when none exists.
	Get(ctx context.Context, accountID uuid.UUID) (*Record, error)
	// Create inserts the record unless one already exists.
	// Returns false when the account already had a record.
	Create(ctx context.Context, rec *Record) (bool, error)
	// IncrementWindowed adds one unit to a windowed counter. When the
	// window has elapsed it instead sets the counter to exactly 1 and
	// rebases the window start, in the same atomic write.
	IncrementWindowed(ctx context.Context, accountID uuid.UUID, qt QuotaType, window time.Duration) error
	// IncrementCount adds one to a live count (agents, containers).
	IncrementCount(ctx context.Context, accountID uuid.UUID, qt QuotaType) error
	// DecrementCount subtracts one from a live count, clamped at zero.
	DecrementCount(ctx context.Context, accountID uuid.UUID, qt QuotaType) error
	// ResetMonthly zeroes the monthly counter if its window has elapsed.
	// Missing records and un-elapsed windows are silent no-ops.
	ResetMonthly(ctx context.Context, accountID uuid.UUID, window time.Duration) (bool, error)
	// ResetDaily is ResetMonthly for the daily counter.
	ResetDaily(ctx context.Context, accountID uuid.UUID, window time.Duration) (bool, error)
	// SetPlan updates the record's plan id after a plan change.
	SetPlan(ctx context.Context, accountID uuid.UUID, tier plan.Tier) error
	// List returns all usage records, for the reset sweep.
	List(ctx context.Context) ([]*Record, error)
}

type postgresStore struct {
	pool *pgxpool.Pool
}

// NewStore creates a PostgreSQL-backed usage store.
func NewStore(pool *pgxpool.Pool) Store {
	return &postgresStore{pool: pool}
}

const recordColumns = `account_id, plan_id, messages_this_month, messages_month_start,
	       api_calls_today, api_calls_day_start, agent_count, container_count, updated_at`

func scanRecord(row pgx.Row) (*Record, error) {
	rec := &Record{}
	err := row.Scan(&rec.AccountID, &rec.PlanID, &rec.MessagesThisMonth, &rec.MessagesMonthStart,
		&rec.APICallsToday, &rec.APICallsDayStart, &rec.AgentCount, &rec.ContainerCount, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *postgresStore) Get(ctx context.Context, accountID uuid.UUID) (*Record, error) {
	rec, err := scanRecord(s.pool.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM account_usage WHERE account_id = $1`, accountID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying usage record: %w", err)
	}
	return rec, nil
}

func (s *postgresStore) Create(ctx context.Context, rec *Record) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO account_usage (account_id, plan_id, messages_this_month, messages_month_start,
		                            api_calls_today, api_calls_day_start, agent_count, container_count, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (account_id) DO NOTHING`,
		rec.AccountID, rec.PlanID, rec.MessagesThisMonth, rec.MessagesMonthStart,
		rec.APICallsToday, rec.APICallsDayStart, rec.AgentCount, rec.ContainerCount, rec.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("inserting usage record: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// windowedColumns maps a windowed quota type to its counter and
// window-start columns.
func windowedColumns(qt QuotaType) (counter, start string, err error) {
	switch qt {
	case QuotaMessages:
		return "messages_this_month", "messages_month_start", nil
	case QuotaAPICalls:
		return "api_calls_today", "api_calls_day_start", nil
	}
	return "", "", fmt.Errorf("%w: %q is not windowed", ErrUnknownQuotaType, qt)
}

func countColumn(qt QuotaType) (string, error) {
	switch qt {
	case QuotaAgents:
		return "agent_count", nil
	case QuotaContainers:
		return "container_count", nil
	}
	return "", fmt.Errorf("%w: %q is not a live count", ErrUnknownQuotaType, qt)
}

func (s *postgresStore) IncrementWindowed(ctx context.Context, accountID uuid.UUID, qt QuotaType, window time.Duration) error {
	counter, start, err := windowedColumns(qt)
	if err != nil {
		return err
	}

	// The elapsed check and the counter write happen in one statement so
	// the reset-to-1 and the rebase cannot be torn apart by a concurrent
	// increment. The boundary is exclusive: a window exactly `window` old
	// has not elapsed yet.
	query := fmt.Sprintf(`
		UPDATE account_usage
		SET %[1]s = CASE WHEN %[2]s < NOW() - make_interval(secs => $2) THEN 1 ELSE %[1]s + 1 END,
		    %[2]s = CASE WHEN %[2]s < NOW() - make_interval(secs => $2) THEN NOW() ELSE %[2]s END,
		    updated_at = NOW()
		WHERE account_id = $1`, counter, start)

	tag, err := s.pool.Exec(ctx, query, accountID, window.Seconds())
	if err != nil {
		return fmt.Errorf("incrementing %s: %w", qt, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *postgresStore) IncrementCount(ctx context.Context, accountID uuid.UUID, qt QuotaType) error {
	col, err := countColumn(qt)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, fmt.Sprintf(
		`UPDATE account_usage SET %[1]s = %[1]s + 1, updated_at = NOW() WHERE account_id = $1`, col),
		accountID)
	if err != nil {
		return fmt.Errorf("incrementing %s: %w", qt, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *postgresStore) DecrementCount(ctx context.Context, accountID uuid.UUID, qt QuotaType) error {
	col, err := countColumn(qt)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, fmt.Sprintf(
		`UPDATE account_usage SET %[1]s = GREATEST(%[1]s - 1, 0), updated_at = NOW() WHERE account_id = $1`, col),
		accountID)
	if err != nil {
		return fmt.Errorf("decrementing %s: %w", qt, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *postgresStore) ResetMonthly(ctx context.Context, accountID uuid.UUID, window time.Duration) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE account_usage
		 SET messages_this_month = 0, messages_month_start = NOW(), updated_at = NOW()
		 WHERE account_id = $1 AND messages_month_start < NOW() - make_interval(secs => $2)`,
		accountID, window.Seconds())
	if err != nil {
		return false, fmt.Errorf("resetting monthly quota: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *postgresStore) ResetDaily(ctx context.Context, accountID uuid.UUID, window time.Duration) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE account_usage
		 SET api_calls_today = 0, api_calls_day_start = NOW(), updated_at = NOW()
		 WHERE account_id = $1 AND api_calls_day_start < NOW() - make_interval(secs => $2)`,
		accountID, window.Seconds())
	if err != nil {
		return false, fmt.Errorf("resetting daily quota: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *postgresStore) SetPlan(ctx context.Context, accountID uuid.UUID, tier plan.Tier) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE account_usage SET plan_id = $2, updated_at = NOW() WHERE account_id = $1`,
		accountID, tier)
	if err != nil {
		return fmt.Errorf("updating usage plan: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *postgresStore) List(ctx context.Context) ([]*Record, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+recordColumns+` FROM account_usage ORDER BY account_id`)
	if err != nil {
		return nil, fmt.Errorf("listing usage records: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning usage record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
