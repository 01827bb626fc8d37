package files

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arkai-assistant/backend/internal/models"
	"github.com/arkai-assistant/backend/pkg/database"
)

const fileColumns = `id, org_id, filename, object_key, content_type, media_type, size_bytes, created_at`

// Stats summarises an org's stored files.
type Stats struct {
	Count int
	Bytes int64
}

// Repository handles file metadata persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a files repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts file metadata.
func (r *Repository) Create(ctx context.Context, f *models.StoredFile) error {
	const q = `INSERT INTO files (org_id, filename, object_key, content_type, media_type, size_bytes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, f.OrgID, f.Filename, f.ObjectKey, f.ContentType, f.MediaType, f.SizeBytes).
		Scan(&f.ID, &f.CreatedAt)
}

// Recent returns the newest files.
func (r *Repository) Recent(ctx context.Context, orgID string, limit int) ([]models.StoredFile, error) {
	const q = `SELECT ` + fileColumns + ` FROM files WHERE org_id = $1 ORDER BY created_at DESC LIMIT $2`
	return r.query(ctx, q, orgID, limit)
}

// SearchName returns files whose name contains term.
func (r *Repository) SearchName(ctx context.Context, orgID, term string, limit int) ([]models.StoredFile, error) {
	const q = `SELECT ` + fileColumns + ` FROM files WHERE org_id = $1 AND filename ILIKE $2 ORDER BY created_at DESC LIMIT $3`
	return r.query(ctx, q, orgID, database.ContainsPattern(term), limit)
}

// SearchKind returns files of a media type or whose extension or MIME type names kind (e.g. "pdf").
func (r *Repository) SearchKind(ctx context.Context, orgID, kind string, limit int) ([]models.StoredFile, error) {
	const q = `SELECT ` + fileColumns + ` FROM files
		WHERE org_id = $1 AND (media_type = $2 OR filename ILIKE $3 OR content_type ILIKE $4)
		ORDER BY created_at DESC LIMIT $5`
	return r.query(ctx, q, orgID, kind, database.SuffixPattern("."+kind), database.ContainsPattern(kind), limit)
}

// Stats returns the number and total size of stored files.
func (r *Repository) Stats(ctx context.Context, orgID string) (Stats, error) {
	const q = `SELECT COUNT(*), COALESCE(SUM(size_bytes), 0) FROM files WHERE org_id = $1`
	var s Stats
	err := r.pool.QueryRow(ctx, q, orgID).Scan(&s.Count, &s.Bytes)
	return s, err
}

func (r *Repository) query(ctx context.Context, q string, args ...any) ([]models.StoredFile, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.StoredFile, error) {
		var f models.StoredFile
		err := row.Scan(&f.ID, &f.OrgID, &f.Filename, &f.ObjectKey, &f.ContentType, &f.MediaType, &f.SizeBytes, &f.CreatedAt)
		return f, err
	})
}
