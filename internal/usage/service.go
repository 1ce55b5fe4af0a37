package usage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/crewdeck-platform/crewdeck/internal/metrics"
	"github.com/crewdeck-platform/crewdeck/internal/plan"
)

// PlanResolver reports the current plan tier for an account. Implemented
// by the accounts service; the engine re-reads the tier on every check so
// plan upgrades take effect on the next admission decision.
type PlanResolver interface {
	PlanFor(ctx context.Context, accountID uuid.UUID) (plan.Tier, error)
}

// DenialEventSink receives quota denial notifications for billing and
// upgrade-nudge pipelines. Fire-and-forget: publish failures are logged,
// never surfaced to the admission path.
type DenialEventSink interface {
	PublishQuotaDenied(ctx context.Context, accountID uuid.UUID, quotaType, message string) error
}

// Service is the quota engine: admission checks and counter mutations for
// the four metered quota types.
//
// Admission follows a check-then-commit protocol: CheckQuota is read-only,
// the caller performs its effect, then calls IncrementUsage. The two calls
// are not atomic with each other — each individual write is a single
// atomic row update, but N concurrent callers can all pass the check on
// pre-increment state and overshoot the limit by up to N-1 units. Callers
// that cannot tolerate that must serialize admissions per account.
type Service struct {
	store   Store
	plans   PlanResolver
	catalog *plan.Catalog
	events  DenialEventSink
	now     func() time.Time
}

// NewService creates a quota engine over the given store and plan catalog.
func NewService(store Store, plans PlanResolver, catalog *plan.Catalog) *Service {
	return &Service{
		store:   store,
		plans:   plans,
		catalog: catalog,
		now:     time.Now,
	}
}

// SetDenialSink attaches a sink for denial events. Nil (the default)
// disables publishing.
func (s *Service) SetDenialSink(events DenialEventSink) {
	s.events = events
}

// CheckQuota decides whether the account may consume one more unit of the
// given quota type. Read-only: window-elapsed counters are treated as zero
// for this decision without persisting the reset, so it is safe to call
// once per concurrent request.
func (s *Service) CheckQuota(ctx context.Context, accountID uuid.UUID, qt QuotaType) (*CheckResult, error) {
	if !known(qt) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownQuotaType, qt)
	}

	rec, err := s.store.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: account %s", ErrRecordNotFound, accountID)
	}

	tier, err := s.plans.PlanFor(ctx, accountID)
	if err != nil {
		return nil, err
	}
	quotas, err := s.catalog.LimitsFor(tier)
	if err != nil {
		return nil, err
	}

	current := s.effectiveCurrent(rec, qt)
	limit := limitFor(quotas, qt)

	remaining := limit - current
	if remaining < 0 {
		remaining = 0
	}

	result := &CheckResult{
		Allowed:   remaining > 0,
		QuotaType: qt,
		Current:   current,
		Limit:     limit,
		Remaining: remaining,
	}
	if result.Allowed {
		result.Message = fmt.Sprintf("%s: %d/%d", qt.label(), current, limit)
	} else {
		result.Message = fmt.Sprintf("Quota exceeded: %s: %d/%d — Upgrade your plan to %s",
			qt.label(), current, limit, qt.action())
		metrics.QuotaDenialsTotal.WithLabelValues(string(qt)).Inc()
		if s.events != nil {
			if err := s.events.PublishQuotaDenied(ctx, accountID, string(qt), result.Message); err != nil {
				slog.Warn("publishing quota denied event", "account_id", accountID, "quota_type", qt, "error", err)
			}
		}
	}
	metrics.QuotaChecksTotal.WithLabelValues(string(qt), allowedLabel(result.Allowed)).Inc()

	return result, nil
}

// effectiveCurrent applies window-elapsed logic in memory. The boundary
// is exclusive: a window exactly MonthlyWindow/DailyWindow old has not
// elapsed and the stored counter still counts.
func (s *Service) effectiveCurrent(rec *Record, qt QuotaType) int {
	now := s.now()
	switch qt {
	case QuotaMessages:
		if now.Sub(rec.MessagesMonthStart) > MonthlyWindow {
			return 0
		}
		return rec.MessagesThisMonth
	case QuotaAPICalls:
		if now.Sub(rec.APICallsDayStart) > DailyWindow {
			return 0
		}
		return rec.APICallsToday
	case QuotaAgents:
		return rec.AgentCount
	case QuotaContainers:
		return rec.ContainerCount
	}
	return 0
}

func limitFor(q plan.Quotas, qt QuotaType) int {
	switch qt {
	case QuotaMessages:
		return q.MessagesPerMonth
	case QuotaAPICalls:
		return q.APICallsPerDay
	case QuotaAgents:
		return q.MaxAgents
	case QuotaContainers:
		return q.MaxContainers
	}
	return 0
}

// IncrementUsage records one unit of usage. It performs no admission
// check of its own — callers run CheckQuota first. For windowed types an
// elapsed window resets the counter to exactly 1 and rebases the window
// start in the same write; this increment is the first unit of the new
// window.
func (s *Service) IncrementUsage(ctx context.Context, accountID uuid.UUID, qt QuotaType) error {
	switch qt {
	case QuotaMessages:
		return s.store.IncrementWindowed(ctx, accountID, qt, MonthlyWindow)
	case QuotaAPICalls:
		return s.store.IncrementWindowed(ctx, accountID, qt, DailyWindow)
	case QuotaAgents, QuotaContainers:
		return s.store.IncrementCount(ctx, accountID, qt)
	}
	return fmt.Errorf("%w: %q", ErrUnknownQuotaType, qt)
}

// DecrementUsage releases one unit of a live count (agents, containers).
// Clamped at zero so a duplicate delete cannot drive the count negative.
// Windowed types are rate counters and cannot be decremented.
func (s *Service) DecrementUsage(ctx context.Context, accountID uuid.UUID, qt QuotaType) error {
	if !known(qt) {
		return fmt.Errorf("%w: %q", ErrUnknownQuotaType, qt)
	}
	if qt.windowed() {
		return fmt.Errorf("quota type %q is windowed and cannot be decremented", qt)
	}
	return s.store.DecrementCount(ctx, accountID, qt)
}

// ResetMonthlyQuota zeroes the monthly counter if its window has elapsed.
// No-op — no write at all — when the window is still open or the account
// has no usage record; this is a maintenance path, never a failure.
func (s *Service) ResetMonthlyQuota(ctx context.Context, accountID uuid.UUID) error {
	_, err := s.store.ResetMonthly(ctx, accountID, MonthlyWindow)
	return err
}

// ResetDailyQuota is ResetMonthlyQuota for the daily counter.
func (s *Service) ResetDailyQuota(ctx context.Context, accountID uuid.UUID) error {
	_, err := s.store.ResetDaily(ctx, accountID, DailyWindow)
	return err
}

// InitializeAccountUsage creates the account's usage record with zeroed
// counters and both windows starting now. Idempotent: an existing record
// is left untouched.
func (s *Service) InitializeAccountUsage(ctx context.Context, accountID uuid.UUID, tier plan.Tier) error {
	if !plan.Valid(tier) {
		return fmt.Errorf("%w: %q", plan.ErrInvalidPlan, tier)
	}

	now := s.now()
	_, err := s.store.Create(ctx, &Record{
		AccountID:          accountID,
		PlanID:             tier,
		MessagesMonthStart: now,
		APICallsDayStart:   now,
		UpdatedAt:          now,
	})
	return err
}

// SetPlan records a plan change on the usage record. Called by the
// accounts service alongside the account's own plan patch.
func (s *Service) SetPlan(ctx context.Context, accountID uuid.UUID, tier plan.Tier) error {
	if !plan.Valid(tier) {
		return fmt.Errorf("%w: %q", plan.ErrInvalidPlan, tier)
	}
	return s.store.SetPlan(ctx, accountID, tier)
}

// Status returns the dashboard summary: one CheckResult per quota type.
func (s *Service) Status(ctx context.Context, accountID uuid.UUID) (*Status, error) {
	tier, err := s.plans.PlanFor(ctx, accountID)
	if err != nil {
		return nil, err
	}

	status := &Status{AccountID: accountID, Plan: tier}
	for _, qt := range []QuotaType{QuotaMessages, QuotaAPICalls, QuotaAgents, QuotaContainers} {
		res, err := s.CheckQuota(ctx, accountID, qt)
		if err != nil {
			return nil, err
		}
		status.Quotas = append(status.Quotas, *res)
	}
	return status, nil
}

func allowedLabel(allowed bool) string {
	if allowed {
		return "allowed"
	}
	return "denied"
}
