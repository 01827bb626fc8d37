package organizations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arkai-assistant/backend/internal/models"
	"github.com/arkai-assistant/backend/pkg/database"
)

// ErrNotFound is returned when no organization matches.
var ErrNotFound = errors.New("organization not found")

const orgColumns = `id, line_user_id, line_group_id, plan, plan_expires_at,
	ai_chats_today, ai_chats_reset_at, tasks_this_month, tasks_reset_at,
	storage_used_bytes, created_at, updated_at`

// Repository handles organization persistence. Every counter mutation is a targeted
// single-column update so concurrent writers never overwrite each other's fields.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an organizations repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func identityColumn(isGroup bool) string {
	if isGroup {
		return "line_group_id"
	}
	return "line_user_id"
}

// Upsert returns the organization for externalID, creating a free one on first contact.
// ON CONFLICT makes concurrent first contact from the same identity converge on one row.
func (r *Repository) Upsert(ctx context.Context, externalID string, isGroup bool) (*models.Organization, error) {
	col := identityColumn(isGroup)
	q := fmt.Sprintf(`INSERT INTO organizations (%[1]s, plan)
		VALUES ($1, 'free')
		ON CONFLICT (%[1]s) DO UPDATE SET %[1]s = EXCLUDED.%[1]s
		RETURNING %[2]s`, col, orgColumns)
	org, err := scanOrganization(r.pool.QueryRow(ctx, q, externalID))
	if err != nil {
		return nil, fmt.Errorf("upsert organization: %w", err)
	}
	return org, nil
}

// GetByExternalID returns the organization bound to an external identity.
func (r *Repository) GetByExternalID(ctx context.Context, externalID string, isGroup bool) (*models.Organization, error) {
	q := fmt.Sprintf(`SELECT %s FROM organizations WHERE %s = $1`, orgColumns, identityColumn(isGroup))
	org, err := scanOrganization(r.pool.QueryRow(ctx, q, externalID))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return org, nil
}

// GetByID returns an organization by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	q := `SELECT ` + orgColumns + ` FROM organizations WHERE id = $1`
	org, err := scanOrganization(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return org, nil
}

// DowngradeExpired moves an organization whose paid plan expired before now back to free.
// The WHERE clause re-checks expiry so a concurrent renewal is never undone.
func (r *Repository) DowngradeExpired(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	const q = `UPDATE organizations
		SET plan = 'free', plan_expires_at = NULL, updated_at = NOW()
		WHERE id = $1 AND plan_expires_at IS NOT NULL AND plan_expires_at < $2`
	tag, err := r.pool.Exec(ctx, q, id, now)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ResetAIChats zeroes the daily AI counter when its window started before periodStart.
func (r *Repository) ResetAIChats(ctx context.Context, id uuid.UUID, periodStart, now time.Time) error {
	const q = `UPDATE organizations
		SET ai_chats_today = 0, ai_chats_reset_at = $3, updated_at = NOW()
		WHERE id = $1 AND ai_chats_reset_at < $2`
	_, err := r.pool.Exec(ctx, q, id, periodStart, now)
	return err
}

// ResetTasks zeroes the monthly task counter when its window started before periodStart.
func (r *Repository) ResetTasks(ctx context.Context, id uuid.UUID, periodStart, now time.Time) error {
	const q = `UPDATE organizations
		SET tasks_this_month = 0, tasks_reset_at = $3, updated_at = NOW()
		WHERE id = $1 AND tasks_reset_at < $2`
	_, err := r.pool.Exec(ctx, q, id, periodStart, now)
	return err
}

// IncrementAIChats adds n to the daily AI counter.
func (r *Repository) IncrementAIChats(ctx context.Context, id uuid.UUID, n int) error {
	const q = `UPDATE organizations SET ai_chats_today = ai_chats_today + $2, updated_at = NOW() WHERE id = $1`
	return r.execOne(ctx, q, id, n)
}

// IncrementTasks adds n to the monthly task counter.
func (r *Repository) IncrementTasks(ctx context.Context, id uuid.UUID, n int) error {
	const q = `UPDATE organizations SET tasks_this_month = tasks_this_month + $2, updated_at = NOW() WHERE id = $1`
	return r.execOne(ctx, q, id, n)
}

// AddStorageBytes adjusts storage usage by delta (negative on delete), never below zero.
func (r *Repository) AddStorageBytes(ctx context.Context, id uuid.UUID, delta int64) error {
	const q = `UPDATE organizations
		SET storage_used_bytes = GREATEST(storage_used_bytes + $2, 0), updated_at = NOW()
		WHERE id = $1`
	return r.execOne(ctx, q, id, delta)
}

func (r *Repository) execOne(ctx context.Context, q string, args ...any) error {
	tag, err := r.pool.Exec(ctx, q, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ApplyUpgrade sets plan and expiry and grants fresh AI/task windows. It runs inside the caller's transaction.
func ApplyUpgrade(ctx context.Context, tx pgx.Tx, id uuid.UUID, plan models.Plan, expiresAt, now time.Time) error {
	const q = `UPDATE organizations
		SET plan = $2, plan_expires_at = $3,
			ai_chats_today = 0, ai_chats_reset_at = $4,
			tasks_this_month = 0, tasks_reset_at = $4,
			updated_at = NOW()
		WHERE id = $1`
	tag, err := tx.Exec(ctx, q, id, string(plan), expiresAt, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanOrganization(row pgx.Row) (*models.Organization, error) {
	var org models.Organization
	var plan string
	err := row.Scan(
		&org.ID, &org.LineUserID, &org.LineGroupID, &plan, &org.PlanExpiresAt,
		&org.AIChatsToday, &org.AIChatsResetAt, &org.TasksThisMonth, &org.TasksResetAt,
		&org.StorageUsedBytes, &org.CreatedAt, &org.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	org.Plan = models.Plan(plan)
	return &org, nil
}
