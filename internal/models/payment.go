package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentProvider is Stripe or Omise.
const (
	PaymentProviderStripe = "stripe"
	PaymentProviderOmise  = "omise"
)

// PaymentStatus for payments.
const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
)

// Payment is one checkout or charge attempt. PaymentRef is unique per provider.
type Payment struct {
	ID          uuid.UUID  `json:"id"`
	OrgID       uuid.UUID  `json:"org_id"`
	LineOrgID   string     `json:"line_org_id"`
	Provider    string     `json:"provider"`
	PaymentRef  string     `json:"payment_ref"`
	AmountCents int64      `json:"amount_cents"`
	Currency    string     `json:"currency"`
	Plan        Plan       `json:"plan"`
	Period      Period     `json:"period"`
	Status      string     `json:"status"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
