package notes

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arkai-assistant/backend/internal/models"
	"github.com/arkai-assistant/backend/pkg/database"
)

// Classify derives the note type from its wording.
func Classify(text string) string {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "ตกลง") || strings.Contains(lower, "agree"):
		return models.NoteTypeAgreement
	case strings.Contains(lower, "รับผิดชอบ") || strings.Contains(lower, "responsible"):
		return models.NoteTypeResponsibility
	default:
		return models.NoteTypeGeneral
	}
}

// Repository handles note persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a notes repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a note.
func (r *Repository) Create(ctx context.Context, n *models.Note) error {
	const q = `INSERT INTO notes (org_id, text, type) VALUES ($1, $2, $3) RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, n.OrgID, n.Text, n.Type).Scan(&n.ID, &n.CreatedAt)
}

// Count returns how many notes the org has stored.
func (r *Repository) Count(ctx context.Context, orgID string) (int, error) {
	const q = `SELECT COUNT(*) FROM notes WHERE org_id = $1`
	var n int
	err := r.pool.QueryRow(ctx, q, orgID).Scan(&n)
	return n, err
}

// Search returns notes of type (any type when empty) whose text contains term (any text when empty), newest first.
func (r *Repository) Search(ctx context.Context, orgID, noteType, term string, limit int) ([]models.Note, error) {
	const q = `SELECT id, org_id, text, type, created_at FROM notes
		WHERE org_id = $1
			AND ($2 = '' OR type = $2)
			AND ($3 = '' OR text ILIKE $4)
		ORDER BY created_at DESC
		LIMIT $5`
	rows, err := r.pool.Query(ctx, q, orgID, noteType, term, database.ContainsPattern(term), limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Note, error) {
		var n models.Note
		err := row.Scan(&n.ID, &n.OrgID, &n.Text, &n.Type, &n.CreatedAt)
		return n, err
	})
}
