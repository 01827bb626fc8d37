package subscription

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arkai-assistant/backend/internal/models"
)

// Resource is a metered quota.
type Resource string

const (
	ResourceAIChat  Resource = "ai_chat"
	ResourceTask    Resource = "task"
	ResourceStorage Resource = "storage"
)

// Feature is a plan-gated capability.
type Feature string

const (
	FeatureSummaryToday     Feature = "summary_today"
	FeatureSummaryYesterday Feature = "summary_yesterday"
	FeatureAssignTask       Feature = "assign_task"
)

// Decision is the outcome of a quota or feature check. Message is user-facing when denied.
type Decision struct {
	Allowed bool
	Message string
}

// Allow returns an allowing decision.
func Allow() Decision { return Decision{Allowed: true} }

// Deny returns a denying decision carrying msg.
func Deny(msg string) Decision { return Decision{Message: msg} }

// CounterStore applies targeted counter updates to an organization row.
type CounterStore interface {
	ResetAIChats(ctx context.Context, id uuid.UUID, periodStart, now time.Time) error
	ResetTasks(ctx context.Context, id uuid.UUID, periodStart, now time.Time) error
	IncrementAIChats(ctx context.Context, id uuid.UUID, n int) error
	IncrementTasks(ctx context.Context, id uuid.UUID, n int) error
	AddStorageBytes(ctx context.Context, id uuid.UUID, delta int64) error
}

// Ledger gates and records per-organization usage against plan limits.
type Ledger struct {
	store  CounterStore
	policy Policy
	loc    *time.Location
	now    func() time.Time
	logger *zap.Logger
}

// NewLedger creates a usage ledger. Calendar windows are evaluated in loc.
func NewLedger(store CounterStore, policy Policy, loc *time.Location, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Ledger{store: store, policy: policy, loc: loc, now: time.Now, logger: logger}
}

// Location returns the time zone calendar windows use.
func (l *Ledger) Location() *time.Location { return l.loc }

// Check decides whether org may consume resource. incoming is the byte size for storage and ignored otherwise.
// An elapsed daily or monthly window is reset before the limit is compared, and the first use of a
// new window is always allowed. A denial leaves every counter untouched.
func (l *Ledger) Check(ctx context.Context, resource Resource, org *models.Organization, incoming int64) Decision {
	if org == nil {
		return Allow()
	}
	limits := LimitsFor(org.Plan)
	now := l.now().In(l.loc)

	switch resource {
	case ResourceAIChat:
		start := dayStart(now)
		if org.AIChatsResetAt.Before(start) {
			if err := l.resetAIChats(ctx, org, start, now); err != nil {
				return l.policy.onCheckError(l.logger, resource, err)
			}
			return Allow()
		}
		if org.AIChatsToday >= limits.AIChatsPerDay {
			return Deny(aiQuotaMessage(org.Plan, limits))
		}
	case ResourceTask:
		start := monthStart(now)
		if org.TasksResetAt.Before(start) {
			if err := l.resetTasks(ctx, org, start, now); err != nil {
				return l.policy.onCheckError(l.logger, resource, err)
			}
			return Allow()
		}
		if org.TasksThisMonth >= limits.TasksPerMonth {
			return Deny(taskQuotaMessage(limits))
		}
	case ResourceStorage:
		if org.StorageUsedBytes+incoming > limits.StorageBytes {
			return Deny(storageQuotaMessage(org.StorageUsedBytes, limits))
		}
	}
	return Allow()
}

func (l *Ledger) resetAIChats(ctx context.Context, org *models.Organization, start, now time.Time) error {
	if !org.IsSentinel() {
		if err := l.store.ResetAIChats(ctx, org.ID, start, now); err != nil {
			return err
		}
	}
	org.AIChatsToday = 0
	org.AIChatsResetAt = now
	return nil
}

func (l *Ledger) resetTasks(ctx context.Context, org *models.Organization, start, now time.Time) error {
	if !org.IsSentinel() {
		if err := l.store.ResetTasks(ctx, org.ID, start, now); err != nil {
			return err
		}
	}
	org.TasksThisMonth = 0
	org.TasksResetAt = now
	return nil
}

// Record adds amount of resource to org's usage after the gated action succeeded.
// Negative storage amounts release space. Errors follow the ledger's policy.
func (l *Ledger) Record(ctx context.Context, resource Resource, org *models.Organization, amount int64) error {
	if org == nil || org.IsSentinel() || amount == 0 {
		return nil
	}
	var err error
	switch resource {
	case ResourceAIChat:
		err = l.store.IncrementAIChats(ctx, org.ID, int(amount))
		if err == nil {
			org.AIChatsToday += int(amount)
		}
	case ResourceTask:
		err = l.store.IncrementTasks(ctx, org.ID, int(amount))
		if err == nil {
			org.TasksThisMonth += int(amount)
		}
	case ResourceStorage:
		err = l.store.AddStorageBytes(ctx, org.ID, amount)
		if err == nil {
			org.StorageUsedBytes = max(org.StorageUsedBytes+amount, 0)
		}
	}
	if err != nil {
		return l.policy.onRecordError(l.logger.With(zap.String("org_id", org.ID.String())), resource, err)
	}
	return nil
}

// FeatureAllowed reports whether org's plan unlocks feature.
func (l *Ledger) FeatureAllowed(org *models.Organization, feature Feature) Decision {
	plan := models.PlanFree
	if org != nil {
		plan = org.Plan
	}
	limits := LimitsFor(plan)
	switch feature {
	case FeatureSummaryToday:
		if !limits.CanSummaryToday {
			return Deny(MsgSummaryTodayLocked)
		}
	case FeatureSummaryYesterday:
		if !limits.CanSummaryYesterday {
			return Deny(MsgSummaryYesterdayLocked)
		}
	case FeatureAssignTask:
		if !limits.CanAssignTasks {
			return Deny(MsgAssignLocked)
		}
	}
	return Allow()
}

func dayStart(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func monthStart(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
}
