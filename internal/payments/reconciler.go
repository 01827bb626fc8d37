package payments

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arkai-assistant/backend/internal/models"
	"github.com/arkai-assistant/backend/internal/subscription"
)

var (
	ErrInvalidSignature    = errors.New("invalid webhook signature")
	ErrMalformedEvent      = errors.New("malformed payment event")
	ErrProviderUnavailable = errors.New("payment provider not configured")
	ErrUnknownPlan         = errors.New("unknown plan")
	ErrChargeFailed        = errors.New("charge failed")
	ErrDuplicate           = errors.New("payment already completed")
)

const notifyTimeout = 10 * time.Second

// Outcome is the normalized result of a provider event.
type Outcome int

const (
	OutcomeSuccess Outcome = iota + 1
	OutcomeFailure
)

// Event is a provider event normalized into the common payment tuple.
type Event struct {
	Provider     string
	PaymentRef   string
	OrgID        uuid.UUID
	LineOrgID    string
	Plan         models.Plan
	Period       models.Period
	AmountSatang int64
	Outcome      Outcome
}

// Result describes what a reconciliation did.
type Result struct {
	Applied   bool
	Duplicate bool
	Failed    bool
	Ignored   bool
	ExpiresAt time.Time
}

// Provider verifies and normalizes one provider's webhook deliveries.
// Normalize returns a nil event for deliveries that carry no payment outcome.
type Provider interface {
	Name() string
	Verify(body []byte, header http.Header) error
	Normalize(ctx context.Context, body []byte) (*Event, error)
}

// Store is the payment persistence used by the reconciler.
type Store interface {
	CreatePending(ctx context.Context, p *models.Payment) error
	Complete(ctx context.Context, ev Event, expiresAt, now time.Time) (bool, error)
	MarkFailed(ctx context.Context, provider, ref string) (bool, error)
	ListPending(ctx context.Context, provider string, orgID uuid.UUID, since time.Time) ([]models.Payment, error)
}

// Notifier pushes a message to a chat without a reply token.
type Notifier interface {
	Push(ctx context.Context, to, text string) error
}

// Reconciler applies payment outcomes to organizations exactly once per charge reference.
type Reconciler struct {
	store    Store
	notifier Notifier
	loc      *time.Location
	logger   *zap.Logger
	now      func() time.Time
}

// NewReconciler creates a reconciler. A nil notifier disables confirmation pushes.
func NewReconciler(store Store, notifier Notifier, loc *time.Location, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Reconciler{store: store, notifier: notifier, loc: loc, logger: logger, now: time.Now}
}

// ExpiresAt returns the plan expiration for a purchase made at now.
func ExpiresAt(period models.Period, now time.Time) time.Time {
	if period == models.PeriodYearly {
		return now.AddDate(1, 0, 0)
	}
	return now.AddDate(0, 1, 0)
}

// HandleWebhook verifies, normalizes and reconciles one provider delivery.
func (r *Reconciler) HandleWebhook(ctx context.Context, p Provider, body []byte, header http.Header) (Result, error) {
	if err := p.Verify(body, header); err != nil {
		return Result{}, err
	}
	ev, err := p.Normalize(ctx, body)
	if err != nil {
		return Result{}, err
	}
	if ev == nil {
		return Result{Ignored: true}, nil
	}
	return r.Reconcile(ctx, *ev)
}

// Reconcile applies ev. A redelivery of an already completed reference is a successful no-op.
func (r *Reconciler) Reconcile(ctx context.Context, ev Event) (Result, error) {
	log := r.logger.With(zap.String("provider", ev.Provider), zap.String("payment_ref", ev.PaymentRef))
	if ev.PaymentRef == "" {
		return Result{}, fmt.Errorf("%w: missing payment reference", ErrMalformedEvent)
	}

	if ev.Outcome == OutcomeFailure {
		changed, err := r.store.MarkFailed(ctx, ev.Provider, ev.PaymentRef)
		if err != nil {
			return Result{}, fmt.Errorf("mark payment failed: %w", err)
		}
		log.Info("payment failed", zap.Bool("changed", changed))
		return Result{Failed: true}, nil
	}

	if ev.OrgID == uuid.Nil {
		return Result{}, fmt.Errorf("%w: missing organization id", ErrMalformedEvent)
	}
	if _, ok := subscription.PriceFor(ev.Plan, ev.Period); !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownPlan, ev.Plan)
	}

	now := r.now()
	expiresAt := ExpiresAt(ev.Period, now)
	applied, err := r.store.Complete(ctx, ev, expiresAt, now)
	if err != nil {
		return Result{}, fmt.Errorf("complete payment: %w", err)
	}
	if !applied {
		log.Info("duplicate payment delivery ignored")
		return Result{Duplicate: true}, nil
	}
	log.Info("payment completed",
		zap.String("org_id", ev.OrgID.String()),
		zap.String("plan", string(ev.Plan)),
		zap.String("period", string(ev.Period)),
		zap.Time("expires_at", expiresAt))

	r.notify(ctx, ev, expiresAt)
	return Result{Applied: true, ExpiresAt: expiresAt}, nil
}

func (r *Reconciler) notify(ctx context.Context, ev Event, expiresAt time.Time) {
	if r.notifier == nil || ev.LineOrgID == "" {
		return
	}
	text := subscription.UpgradeConfirmation(ev.Plan, ev.Period, expiresAt, r.loc)
	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
		defer cancel()
		if err := r.notifier.Push(ctx, ev.LineOrgID, text); err != nil {
			r.logger.Warn("upgrade confirmation push failed",
				zap.String("payment_ref", ev.PaymentRef), zap.Error(err))
		}
	}()
}
