package organizations

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arkai-assistant/backend/internal/models"
)

// Store is the persistence the resolver needs.
type Store interface {
	Upsert(ctx context.Context, externalID string, isGroup bool) (*models.Organization, error)
	GetByExternalID(ctx context.Context, externalID string, isGroup bool) (*models.Organization, error)
	DowngradeExpired(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
}

// Resolver maps a chat source to its organization.
type Resolver struct {
	store  Store
	now    func() time.Time
	logger *zap.Logger
}

// NewResolver creates a tenant resolver.
func NewResolver(store Store, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{store: store, now: time.Now, logger: logger}
}

// Resolve returns the organization for externalID, creating it on first contact and
// downgrading an expired paid plan before returning. It never fails: when persistence
// is unavailable it falls back to a plain read and then to the sentinel organization.
func (r *Resolver) Resolve(ctx context.Context, externalID string, isGroup bool) *models.Organization {
	org, err := r.store.Upsert(ctx, externalID, isGroup)
	if err != nil {
		r.logger.Error("resolve organization failed", zap.String("external_id", externalID), zap.Bool("group", isGroup), zap.Error(err))
		if existing, rerr := r.store.GetByExternalID(ctx, externalID, isGroup); rerr == nil {
			return existing
		}
		return Sentinel(externalID, isGroup, r.now())
	}

	now := r.now()
	if org.Expired(now) {
		if _, err := r.store.DowngradeExpired(ctx, org.ID, now); err != nil {
			r.logger.Warn("downgrade expired plan failed", zap.String("org_id", org.ID.String()), zap.Error(err))
		} else {
			r.logger.Info("plan expired, downgraded to free", zap.String("org_id", org.ID.String()), zap.String("plan", string(org.Plan)))
		}
		org.Plan = models.PlanFree
		org.PlanExpiresAt = nil
	}
	return org
}

// Sentinel is the degraded free organization used when persistence is unreachable.
// It carries the caller's identity so replies can still be addressed.
func Sentinel(externalID string, isGroup bool, now time.Time) *models.Organization {
	org := &models.Organization{
		ID:             models.SentinelOrganizationID,
		Plan:           models.PlanFree,
		AIChatsResetAt: now,
		TasksResetAt:   now,
	}
	id := externalID
	if isGroup {
		org.LineGroupID = &id
	} else {
		org.LineUserID = &id
	}
	return org
}
