package tasks

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arkai-assistant/backend/internal/models"
)

const taskColumns = `id, org_id, title, description, due_date, assignee, created_by, status, created_at, updated_at`

// Repository handles task persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a tasks repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a task and fills its id and timestamps.
func (r *Repository) Create(ctx context.Context, t *models.Task) error {
	const q = `INSERT INTO tasks (org_id, title, description, due_date, assignee, created_by, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`
	if t.Status == "" {
		t.Status = models.TaskStatusPending
	}
	return r.pool.QueryRow(ctx, q, t.OrgID, t.Title, t.Description, t.DueDate, t.Assignee, t.CreatedBy, t.Status).
		Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
}

// ListPending returns pending tasks, newest first. An empty assignee lists every task of the org.
func (r *Repository) ListPending(ctx context.Context, orgID, assignee string) ([]models.Task, error) {
	if assignee == "" {
		const q = `SELECT ` + taskColumns + ` FROM tasks WHERE org_id = $1 AND status = 'pending' ORDER BY created_at DESC`
		return r.query(ctx, q, orgID)
	}
	const q = `SELECT ` + taskColumns + ` FROM tasks
		WHERE org_id = $1 AND status = 'pending' AND (assignee = $2 OR (assignee = '' AND created_by = $2))
		ORDER BY created_at DESC`
	return r.query(ctx, q, orgID, assignee)
}

// ListByAssignee returns every task assigned to assignee regardless of status.
func (r *Repository) ListByAssignee(ctx context.Context, orgID, assignee string) ([]models.Task, error) {
	const q = `SELECT ` + taskColumns + ` FROM tasks WHERE org_id = $1 AND assignee = $2 ORDER BY created_at DESC`
	return r.query(ctx, q, orgID, assignee)
}

// MarkDone completes a pending task of the org. It reports false when no pending task matched.
func (r *Repository) MarkDone(ctx context.Context, orgID string, id uuid.UUID) (bool, error) {
	const q = `UPDATE tasks SET status = 'done', updated_at = NOW() WHERE id = $1 AND org_id = $2 AND status = 'pending'`
	tag, err := r.pool.Exec(ctx, q, id, orgID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *Repository) query(ctx context.Context, q string, args ...any) ([]models.Task, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Task, error) {
		var t models.Task
		err := row.Scan(&t.ID, &t.OrgID, &t.Title, &t.Description, &t.DueDate, &t.Assignee, &t.CreatedBy, &t.Status, &t.CreatedAt, &t.UpdatedAt)
		return t, err
	})
}
