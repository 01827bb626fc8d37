package messages

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arkai-assistant/backend/internal/models"
	"github.com/arkai-assistant/backend/pkg/database"
)

// Repository stores chat lines for summaries.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a messages repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Save inserts one chat line.
func (r *Repository) Save(ctx context.Context, m *models.Message) error {
	const q = `INSERT INTO messages (org_id, sender, text) VALUES ($1, $2, $3) RETURNING id, created_at`
	if m.Sender == "" {
		m.Sender = "unknown"
	}
	return r.pool.QueryRow(ctx, q, m.OrgID, m.Sender, m.Text).Scan(&m.ID, &m.CreatedAt)
}

// Between returns lines in [from, to) in chronological order.
func (r *Repository) Between(ctx context.Context, orgID string, from, to time.Time) ([]models.Message, error) {
	const q = `SELECT id, org_id, sender, text, created_at FROM messages
		WHERE org_id = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY created_at`
	return r.query(ctx, q, orgID, from, to)
}

// Search returns the latest lines containing term, in chronological order.
func (r *Repository) Search(ctx context.Context, orgID, term string, limit int) ([]models.Message, error) {
	const q = `SELECT id, org_id, sender, text, created_at FROM (
			SELECT id, org_id, sender, text, created_at FROM messages
			WHERE org_id = $1 AND text ILIKE $2
			ORDER BY created_at DESC
			LIMIT $3
		) latest ORDER BY created_at`
	return r.query(ctx, q, orgID, database.ContainsPattern(term), limit)
}

func (r *Repository) query(ctx context.Context, q string, args ...any) ([]models.Message, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Message, error) {
		var m models.Message
		err := row.Scan(&m.ID, &m.OrgID, &m.Sender, &m.Text, &m.CreatedAt)
		return m, err
	})
}
