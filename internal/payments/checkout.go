package payments

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arkai-assistant/backend/internal/models"
	"github.com/arkai-assistant/backend/internal/subscription"
)

// Method selects how the customer pays.
type Method string

const (
	MethodAny       Method = ""
	MethodPromptPay Method = "promptpay"
	MethodCard      Method = "card"
)

// CheckoutRequest is a plan purchase asked for from chat.
type CheckoutRequest struct {
	Plan      models.Plan
	Period    models.Period
	Method    Method
	CardToken string
}

// CheckoutResult tells the customer where to pay, or that the charge already succeeded.
type CheckoutResult struct {
	Provider   string
	PaymentRef string
	URL        string
	Completed  bool
}

// SessionProvider creates hosted checkout pages.
type SessionProvider interface {
	CreateSession(ctx context.Context, req SessionRequest) (id, url string, err error)
}

// ChargeProvider creates and looks up direct charges.
type ChargeProvider interface {
	CreateCharge(ctx context.Context, p ChargeParams) (*Charge, error)
	RetrieveCharge(ctx context.Context, id string) (*Charge, error)
}

// ReturnTokens signs the charge return link.
type ReturnTokens interface {
	Generate(provider, paymentRef string, orgID uuid.UUID) (string, error)
}

// CheckoutConfig wires the checkout service.
type CheckoutConfig struct {
	Sessions   SessionProvider // nil when Stripe is not configured
	Charges    ChargeProvider  // nil when Omise is not configured
	Store      Store
	Reconciler *Reconciler
	Tokens     ReturnTokens
	BaseURL    string
	Logger     *zap.Logger

	// RetrieveTries bounds charge lookups during sync; zero means DefaultRetrieveTries.
	RetrieveTries uint
	// RetryInterval is the first backoff delay between lookups; zero means 500ms.
	RetryInterval time.Duration
}

// DefaultRetrieveTries is the number of charge lookups attempted before a sync gives up.
const DefaultRetrieveTries = 3

// CheckoutService starts purchases on Stripe or Omise.
type CheckoutService struct {
	sessions   SessionProvider
	charges    ChargeProvider
	store      Store
	reconciler *Reconciler
	tokens     ReturnTokens
	baseURL    string
	tries      uint
	interval   time.Duration
	logger     *zap.Logger
}

// NewCheckoutService creates the service.
func NewCheckoutService(cfg CheckoutConfig) *CheckoutService {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.RetrieveTries == 0 {
		cfg.RetrieveTries = DefaultRetrieveTries
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 500 * time.Millisecond
	}
	return &CheckoutService{
		sessions:   cfg.Sessions,
		charges:    cfg.Charges,
		store:      cfg.Store,
		reconciler: cfg.Reconciler,
		tokens:     cfg.Tokens,
		baseURL:    cfg.BaseURL,
		tries:      cfg.RetrieveTries,
		interval:   cfg.RetryInterval,
		logger:     cfg.Logger,
	}
}

// Start routes the request. PromptPay and tokenized cards go to Omise when it is configured;
// everything else opens a Stripe checkout.
func (s *CheckoutService) Start(ctx context.Context, org *models.Organization, req CheckoutRequest) (*CheckoutResult, error) {
	amount, ok := subscription.AmountSatang(req.Plan, req.Period)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlan, req.Plan)
	}
	wantsCharge := req.Method == MethodPromptPay || (req.Method == MethodCard && req.CardToken != "")
	switch {
	case s.charges != nil && (wantsCharge || s.sessions == nil):
		return s.charge(ctx, org, req, amount)
	case s.sessions != nil:
		return s.session(ctx, org, req, amount)
	default:
		return nil, ErrProviderUnavailable
	}
}

func (s *CheckoutService) session(ctx context.Context, org *models.Organization, req CheckoutRequest, amount int64) (*CheckoutResult, error) {
	label := subscription.PlanLabel(req.Plan)
	periodLabel := "รายเดือน"
	if req.Period == models.PeriodYearly {
		periodLabel = "รายปี"
	}
	id, link, err := s.sessions.CreateSession(ctx, SessionRequest{
		Name:         fmt.Sprintf("Arkai %s %s", label, periodLabel),
		Description:  "อัพเกรด Arkai Work Assistant เป็นแผน " + label,
		AmountSatang: amount,
		SuccessURL:   s.baseURL + "/payment/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:    s.baseURL + "/payment/cancel",
		Metadata:     checkoutMetadata(org, req.Plan, req.Period),
	})
	if err != nil {
		return nil, err
	}
	if err := s.recordPending(ctx, org, req, models.PaymentProviderStripe, id, amount); err != nil {
		return nil, err
	}
	return &CheckoutResult{Provider: models.PaymentProviderStripe, PaymentRef: id, URL: link}, nil
}

func (s *CheckoutService) charge(ctx context.Context, org *models.Organization, req CheckoutRequest, amount int64) (*CheckoutResult, error) {
	if req.Method == MethodCard && req.CardToken == "" {
		return nil, fmt.Errorf("%w: card token required", ErrChargeFailed)
	}
	returnURI, err := s.returnURI(org)
	if err != nil {
		return nil, err
	}
	params := ChargeParams{
		AmountSatang: amount,
		ReturnURI:    returnURI,
		Metadata:     checkoutMetadata(org, req.Plan, req.Period),
	}
	if req.Method == MethodCard {
		params.Card = req.CardToken
	} else {
		params.SourceType = "promptpay"
	}
	ch, err := s.charges.CreateCharge(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("create charge: %w", err)
	}
	log := s.logger.With(zap.String("payment_ref", ch.ID), zap.String("status", ch.Status))
	// the webhook or poller may have settled this charge before we record it
	if err := s.recordPending(ctx, org, req, models.PaymentProviderOmise, ch.ID, amount); err != nil {
		if !errors.Is(err, ErrDuplicate) {
			return nil, err
		}
		log.Info("charge already recorded")
	}

	res := &CheckoutResult{Provider: models.PaymentProviderOmise, PaymentRef: ch.ID}
	switch ch.Status {
	case ChargeSuccessful:
		if _, err := s.reconciler.Reconcile(ctx, *NormalizeCharge(ch)); err != nil {
			return nil, err
		}
		res.Completed = true
	case ChargePending:
		res.URL = ch.AuthorizeURI
		if qr := ch.QRCodeURL(); qr != "" {
			res.URL = qr
		}
	default:
		if _, err := s.reconciler.Reconcile(ctx, Event{Provider: models.PaymentProviderOmise, PaymentRef: ch.ID, Outcome: OutcomeFailure}); err != nil {
			log.Warn("mark failed charge", zap.Error(err))
		}
		log.Info("charge rejected", zap.String("failure_code", ch.FailureCode))
		return nil, fmt.Errorf("%w: %s", ErrChargeFailed, ch.FailureCode)
	}
	return res, nil
}

func (s *CheckoutService) recordPending(ctx context.Context, org *models.Organization, req CheckoutRequest, provider, ref string, amount int64) error {
	err := s.store.CreatePending(ctx, &models.Payment{
		OrgID:       org.ID,
		LineOrgID:   org.ExternalID(),
		Provider:    provider,
		PaymentRef:  ref,
		AmountCents: amount,
		Currency:    "thb",
		Plan:        req.Plan,
		Period:      req.Period,
	})
	if err != nil {
		return fmt.Errorf("record pending payment: %w", err)
	}
	return nil
}

func (s *CheckoutService) returnURI(org *models.Organization) (string, error) {
	if s.tokens == nil {
		return s.baseURL + "/payment/success", nil
	}
	tok, err := s.tokens.Generate(models.PaymentProviderOmise, "", org.ID)
	if err != nil {
		return "", fmt.Errorf("sign return token: %w", err)
	}
	return s.baseURL + "/payment/omise/return?token=" + url.QueryEscape(tok), nil
}

// SyncStatus is the state of a charge after polling it.
type SyncStatus string

const (
	SyncCompleted SyncStatus = "completed"
	SyncPending   SyncStatus = "pending"
	SyncFailed    SyncStatus = "failed"
	SyncNone      SyncStatus = "none"
)

// SyncCharge re-fetches one Omise charge and reconciles its outcome.
func (s *CheckoutService) SyncCharge(ctx context.Context, ref string) (SyncStatus, error) {
	if s.charges == nil {
		return "", ErrProviderUnavailable
	}
	ch, err := s.retrieve(ctx, ref)
	if err != nil {
		return "", fmt.Errorf("retrieve charge %s: %w", ref, err)
	}
	ev := NormalizeCharge(ch)
	if ev == nil {
		return SyncPending, nil
	}
	res, err := s.reconciler.Reconcile(ctx, *ev)
	if err != nil {
		return "", err
	}
	if res.Failed {
		return SyncFailed, nil
	}
	return SyncCompleted, nil
}

// retrieve looks a charge up, retrying transport failures and retryable API answers.
func (s *CheckoutService) retrieve(ctx context.Context, ref string) (*Charge, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.interval
	return backoff.Retry(ctx, func() (*Charge, error) {
		ch, err := s.charges.RetrieveCharge(ctx, ref)
		var apiErr *OmiseAPIError
		if errors.As(err, &apiErr) && !apiErr.Retryable() {
			return nil, backoff.Permanent(err)
		}
		return ch, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(s.tries),
		backoff.WithMaxElapsedTime(30*time.Second),
		backoff.WithNotify(func(err error, next time.Duration) {
			s.logger.Debug("charge lookup retry", zap.String("payment_ref", ref), zap.Duration("next", next), zap.Error(err))
		}),
	)
}

// SyncPending polls every pending Omise charge of org (uuid.Nil for all) created after since.
// The result is completed if any charge completed, pending while one is still open and none with nothing to poll.
func (s *CheckoutService) SyncPending(ctx context.Context, orgID uuid.UUID, since time.Time) (SyncStatus, error) {
	pending, err := s.store.ListPending(ctx, models.PaymentProviderOmise, orgID, since)
	if err != nil {
		return "", fmt.Errorf("list pending charges: %w", err)
	}
	if len(pending) == 0 {
		return SyncNone, nil
	}
	status := SyncFailed
	var firstErr error
	for _, p := range pending {
		st, err := s.SyncCharge(ctx, p.PaymentRef)
		if err != nil {
			s.logger.Warn("charge sync failed", zap.String("payment_ref", p.PaymentRef), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		switch {
		case st == SyncCompleted:
			status = SyncCompleted
		case st == SyncPending && status != SyncCompleted:
			status = SyncPending
		}
	}
	if firstErr != nil && status == SyncFailed {
		return "", firstErr
	}
	return status, nil
}
