package usage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/crewdeck-platform/crewdeck/internal/metrics"
)

// ResetEventSink receives quota reset notifications. Fire-and-forget:
// publish failures are logged, never fatal to the sweep.
type ResetEventSink interface {
	PublishQuotaReset(ctx context.Context, accountID uuid.UUID, window string) error
}

// SweepResult summarizes one pass of the reset sweep.
type SweepResult struct {
	Scanned    int      `json:"scanned"`
	ResetCount int      `json:"reset_count"`
	ErrorCount int      `json:"error_count"`
	Errors     []string `json:"errors,omitempty"`
}

// Sweeper proactively resets elapsed usage windows across all accounts so
// idle accounts see zeroed counters on their next dashboard load instead
// of waiting for a lazy reset-on-touch.
type Sweeper struct {
	store    Store
	events   ResetEventSink
	interval time.Duration
}

// NewSweeper creates a reset sweeper. events may be nil.
func NewSweeper(store Store, events ResetEventSink, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Sweeper{store: store, events: events, interval: interval}
}

// Start runs the sweep on a fixed interval until ctx is canceled.
func (s *Sweeper) Start(ctx context.Context) {
	slog.Info("quota reset sweeper started", "interval", s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("quota reset sweeper stopped")
			return
		case <-ticker.C:
			result := s.RunOnce(ctx)
			slog.Info("quota reset sweep complete",
				"scanned", result.Scanned, "resets", result.ResetCount, "errors", result.ErrorCount)
		}
	}
}

// RunOnce sweeps every usage record, applying the monthly and daily
// resets wherever a window has elapsed. Per-record failures are collected
// rather than aborting the pass; one bad record never blocks the rest.
func (s *Sweeper) RunOnce(ctx context.Context) *SweepResult {
	result := &SweepResult{}

	records, err := s.store.List(ctx)
	if err != nil {
		result.ErrorCount++
		result.Errors = append(result.Errors, fmt.Sprintf("listing usage records: %v", err))
		return result
	}
	result.Scanned = len(records)

	for _, rec := range records {
		reset, err := s.store.ResetMonthly(ctx, rec.AccountID, MonthlyWindow)
		if err != nil {
			result.ErrorCount++
			result.Errors = append(result.Errors, fmt.Sprintf("account %s monthly: %v", rec.AccountID, err))
		} else if reset {
			result.ResetCount++
			s.notify(ctx, rec.AccountID, "monthly")
		}

		reset, err = s.store.ResetDaily(ctx, rec.AccountID, DailyWindow)
		if err != nil {
			result.ErrorCount++
			result.Errors = append(result.Errors, fmt.Sprintf("account %s daily: %v", rec.AccountID, err))
		} else if reset {
			result.ResetCount++
			s.notify(ctx, rec.AccountID, "daily")
		}
	}

	metrics.QuotaSweepResetsTotal.Add(float64(result.ResetCount))
	metrics.QuotaSweepErrorsTotal.Add(float64(result.ErrorCount))
	return result
}

func (s *Sweeper) notify(ctx context.Context, accountID uuid.UUID, window string) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishQuotaReset(ctx, accountID, window); err != nil {
		slog.Warn("publishing quota reset event", "account_id", accountID, "window", window, "error", err)
	}
}
