package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/client"
	"github.com/stripe/stripe-go/v72/webhook"
	"go.uber.org/zap"

	"github.com/arkai-assistant/backend/internal/models"
)

// Stripe event types that carry a checkout outcome.
const (
	stripeSessionCompleted     = "checkout.session.completed"
	stripeAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
	stripeAsyncPaymentFailed   = "checkout.session.async_payment_failed"
	stripeSessionExpired       = "checkout.session.expired"
)

// Metadata keys written at checkout and read back from provider events.
const (
	metaOrgID     = "orgId"
	metaLineOrgID = "lineOrgId"
	metaIsGroup   = "isGroup"
	metaPlan      = "plan"
	metaPeriod    = "period"
)

// SessionRequest is one hosted checkout to create.
type SessionRequest struct {
	Name         string
	Description  string
	AmountSatang int64
	SuccessURL   string
	CancelURL    string
	Metadata     map[string]string
}

type sessionCreator interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// Stripe creates hosted checkout sessions and verifies Stripe webhooks.
type Stripe struct {
	sessions      sessionCreator
	webhookSecret string
	logger        *zap.Logger
}

func (s *Stripe) log() *zap.Logger {
	if s.logger == nil {
		return zap.NewNop()
	}
	return s.logger
}

// NewStripe returns nil when secretKey is empty.
func NewStripe(secretKey, webhookSecret string, logger *zap.Logger) *Stripe {
	if secretKey == "" {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	sc := &client.API{}
	sc.Init(secretKey, nil)
	return &Stripe{sessions: sc.CheckoutSessions, webhookSecret: webhookSecret, logger: logger}
}

func (s *Stripe) Name() string { return models.PaymentProviderStripe }

// CreateSession opens a one-time THB checkout accepting card and PromptPay.
func (s *Stripe) CreateSession(_ context.Context, req SessionRequest) (id, url string, err error) {
	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card", "promptpay"}),
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:         stripe.String(req.SuccessURL),
		CancelURL:          stripe.String(req.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String("thb"),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name:        stripe.String(req.Name),
					Description: stripe.String(req.Description),
				},
				UnitAmount: stripe.Int64(req.AmountSatang),
			},
			Quantity: stripe.Int64(1),
		}},
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	sess, err := s.sessions.New(params)
	if err != nil {
		return "", "", fmt.Errorf("create checkout session: %w", err)
	}
	return sess.ID, sess.URL, nil
}

// Verify checks the Stripe-Signature header against the endpoint secret.
func (s *Stripe) Verify(body []byte, header http.Header) error {
	if s.webhookSecret == "" {
		return fmt.Errorf("stripe webhook secret: %w", ErrProviderUnavailable)
	}
	sig := header.Get("Stripe-Signature")
	if sig == "" {
		return ErrInvalidSignature
	}
	if _, err := webhook.ConstructEvent(body, sig, s.webhookSecret); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return nil
}

// Normalize maps checkout session events onto the payment tuple.
// A completed session whose payment is still processing (PromptPay) is left for the async event.
func (s *Stripe) Normalize(_ context.Context, body []byte) (*Event, error) {
	var ev stripe.Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	var outcome Outcome
	switch ev.Type {
	case stripeSessionCompleted, stripeAsyncPaymentSucceeded:
		outcome = OutcomeSuccess
	case stripeAsyncPaymentFailed, stripeSessionExpired:
		outcome = OutcomeFailure
	default:
		s.log().Debug("stripe event ignored", zap.String("type", ev.Type))
		return nil, nil
	}
	if ev.Data == nil {
		return nil, fmt.Errorf("%w: event without data", ErrMalformedEvent)
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(ev.Data.Raw, &sess); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if ev.Type == stripeSessionCompleted && sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusUnpaid {
		return nil, nil
	}
	out := eventFromMetadata(models.PaymentProviderStripe, sess.ID, sess.Metadata)
	out.AmountSatang = sess.AmountTotal
	out.Outcome = outcome
	return out, nil
}

func checkoutMetadata(org *models.Organization, plan models.Plan, period models.Period) map[string]string {
	return map[string]string{
		metaOrgID:     org.ID.String(),
		metaLineOrgID: org.ExternalID(),
		metaIsGroup:   strconv.FormatBool(org.IsGroup()),
		metaPlan:      string(plan),
		metaPeriod:    string(period),
	}
}

func eventFromMetadata(provider, ref string, md map[string]string) *Event {
	orgID, _ := uuid.Parse(md[metaOrgID])
	plan, _ := models.ParsePlan(md[metaPlan])
	return &Event{
		Provider:   provider,
		PaymentRef: ref,
		OrgID:      orgID,
		LineOrgID:  md[metaLineOrgID],
		Plan:       plan,
		Period:     models.ParsePeriod(md[metaPeriod]),
	}
}
