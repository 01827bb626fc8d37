package reminders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arkai-assistant/backend/internal/models"
)

// DefaultHour is the local hour reminders fire at.
const DefaultHour = 9

// NextAt returns the next occurrence of DefaultHour:00 in loc strictly after now, at least one calendar day ahead.
func NextAt(now time.Time, loc *time.Location) time.Time {
	d := now.In(loc).AddDate(0, 0, 1)
	return time.Date(d.Year(), d.Month(), d.Day(), DefaultHour, 0, 0, 0, loc)
}

// Repository handles reminder persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a reminders repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a reminder.
func (r *Repository) Create(ctx context.Context, rem *models.Reminder) error {
	const q = `INSERT INTO reminders (org_id, topic, remind_at, daily) VALUES ($1, $2, $3, $4) RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, rem.OrgID, rem.Topic, rem.RemindAt, rem.Daily).Scan(&rem.ID, &rem.CreatedAt)
}

// CountActive returns unsent one-off reminders plus daily reminders of the org.
func (r *Repository) CountActive(ctx context.Context, orgID string) (int, error) {
	const q = `SELECT COUNT(*) FROM reminders WHERE org_id = $1 AND sent_at IS NULL`
	var n int
	err := r.pool.QueryRow(ctx, q, orgID).Scan(&n)
	return n, err
}

// Due returns reminders whose time has come, oldest first.
func (r *Repository) Due(ctx context.Context, now time.Time, limit int) ([]models.Reminder, error) {
	const q = `SELECT id, org_id, topic, remind_at, daily, sent_at, created_at FROM reminders
		WHERE sent_at IS NULL AND remind_at <= $1
		ORDER BY remind_at
		LIMIT $2`
	rows, err := r.pool.Query(ctx, q, now, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Reminder, error) {
		var rem models.Reminder
		err := row.Scan(&rem.ID, &rem.OrgID, &rem.Topic, &rem.RemindAt, &rem.Daily, &rem.SentAt, &rem.CreatedAt)
		return rem, err
	})
}

// MarkSent closes a one-off reminder.
func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	const q = `UPDATE reminders SET sent_at = $2 WHERE id = $1 AND sent_at IS NULL`
	_, err := r.pool.Exec(ctx, q, id, at)
	return err
}

// Reschedule moves a daily reminder to its next occurrence.
func (r *Repository) Reschedule(ctx context.Context, id uuid.UUID, next time.Time) error {
	const q = `UPDATE reminders SET remind_at = $2 WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, id, next)
	return err
}
