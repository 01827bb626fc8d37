package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arkai-assistant/backend/internal/models"
	"github.com/arkai-assistant/backend/internal/organizations"
	"github.com/arkai-assistant/backend/pkg/database"
)

const paymentColumns = `id, org_id, line_org_id, provider, payment_ref, amount_cents, currency, plan, period, status, completed_at, created_at, updated_at`

// Repository handles payment persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a payments repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreatePending records a checkout or charge attempt. ErrDuplicate is returned when the reference exists.
func (r *Repository) CreatePending(ctx context.Context, p *models.Payment) error {
	const q = `INSERT INTO payments (org_id, line_org_id, provider, payment_ref, amount_cents, currency, plan, period, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'pending')
		RETURNING id, status, created_at, updated_at`
	if p.Currency == "" {
		p.Currency = "thb"
	}
	err := r.pool.QueryRow(ctx, q, p.OrgID, p.LineOrgID, p.Provider, p.PaymentRef, p.AmountCents, p.Currency, string(p.Plan), string(p.Period)).
		Scan(&p.ID, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if database.IsUniqueViolation(err, "payments_provider_ref_key") {
		return ErrDuplicate
	}
	return err
}

// GetByRef returns the payment with the given provider reference.
func (r *Repository) GetByRef(ctx context.Context, provider, ref string) (*models.Payment, error) {
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE provider = $1 AND payment_ref = $2`
	rows, err := r.pool.Query(ctx, q, provider, ref)
	if err != nil {
		return nil, err
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanPayment)
	if database.IsNoRows(err) {
		return nil, fmt.Errorf("payment %s/%s: %w", provider, ref, err)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Complete claims the reference and applies the upgrade in one transaction.
// The claim inserts the row or moves a pending row to completed; when neither happens the
// reference was already settled and Complete reports false without touching the organization.
func (r *Repository) Complete(ctx context.Context, ev Event, expiresAt, now time.Time) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback is safe to call after commit

	const claim = `INSERT INTO payments (org_id, line_org_id, provider, payment_ref, amount_cents, plan, period, status, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'completed', $8)
		ON CONFLICT (provider, payment_ref) DO UPDATE
			SET status = 'completed', completed_at = EXCLUDED.completed_at, updated_at = NOW()
			WHERE payments.status = 'pending'
		RETURNING id`
	var id uuid.UUID
	err = tx.QueryRow(ctx, claim, ev.OrgID, ev.LineOrgID, ev.Provider, ev.PaymentRef, ev.AmountSatang,
		string(ev.Plan), string(ev.Period), now).Scan(&id)
	if database.IsNoRows(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("claim payment: %w", database.Describe(err))
	}

	if err := organizations.ApplyUpgrade(ctx, tx, ev.OrgID, ev.Plan, expiresAt, now); err != nil {
		return false, fmt.Errorf("apply upgrade: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit payment: %w", err)
	}
	return true, nil
}

// MarkFailed moves a pending payment to failed. It reports whether a row changed.
func (r *Repository) MarkFailed(ctx context.Context, provider, ref string) (bool, error) {
	const q = `UPDATE payments SET status = 'failed', updated_at = NOW()
		WHERE provider = $1 AND payment_ref = $2 AND status = 'pending'`
	tag, err := r.pool.Exec(ctx, q, provider, ref)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ListPending returns pending payments of provider created after since, oldest first.
// uuid.Nil lists every organization.
func (r *Repository) ListPending(ctx context.Context, provider string, orgID uuid.UUID, since time.Time) ([]models.Payment, error) {
	const q = `SELECT ` + paymentColumns + ` FROM payments
		WHERE provider = $1 AND status = 'pending' AND created_at >= $2 AND ($3 = '00000000-0000-0000-0000-000000000000'::uuid OR org_id = $3)
		ORDER BY created_at`
	rows, err := r.pool.Query(ctx, q, provider, since, orgID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanPayment)
}

func scanPayment(row pgx.CollectableRow) (models.Payment, error) {
	var p models.Payment
	var plan, period string
	err := row.Scan(&p.ID, &p.OrgID, &p.LineOrgID, &p.Provider, &p.PaymentRef, &p.AmountCents, &p.Currency,
		&plan, &period, &p.Status, &p.CompletedAt, &p.CreatedAt, &p.UpdatedAt)
	p.Plan = models.Plan(plan)
	p.Period = models.Period(period)
	return p, err
}
