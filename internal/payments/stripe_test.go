package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v72"

	"github.com/arkai-assistant/backend/internal/models"
)

type fakeSessions struct {
	params *stripe.CheckoutSessionParams
	err    error
}

func (f *fakeSessions) New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	f.params = params
	if f.err != nil {
		return nil, f.err
	}
	return &stripe.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.com/c/pay/cs_test_1"}, nil
}

const testWebhookSecret = "whsec_test"

func stripeSignature(payload []byte, secret string, ts time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func stripePayload(eventType, paymentStatus string, orgID uuid.UUID) []byte {
	return []byte(fmt.Sprintf(`{"id":"evt_1","object":"event","api_version":%q,"type":%q,"data":{"object":{"id":"cs_test_1","object":"checkout.session","payment_status":%q,"amount_total":300000,"metadata":{"orgId":%q,"lineOrgId":"C999","isGroup":"true","plan":"pro","period":"yearly"}}}}`,
		stripe.APIVersion, eventType, paymentStatus, orgID.String()))
}

func TestStripeCreateSession(t *testing.T) {
	fs := &fakeSessions{}
	s := &Stripe{sessions: fs, webhookSecret: testWebhookSecret}

	id, url, err := s.CreateSession(context.Background(), SessionRequest{
		Name:         "Arkai Pro",
		AmountSatang: 30000,
		SuccessURL:   "https://app.example/payment/success",
		CancelURL:    "https://app.example/payment/cancel",
		Metadata:     map[string]string{"plan": "pro"},
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", id)
	assert.Contains(t, url, "cs_test_1")

	require.NotNil(t, fs.params)
	assert.Equal(t, "payment", *fs.params.Mode)
	require.Len(t, fs.params.PaymentMethodTypes, 2)
	assert.Equal(t, "card", *fs.params.PaymentMethodTypes[0])
	assert.Equal(t, "promptpay", *fs.params.PaymentMethodTypes[1])
	require.Len(t, fs.params.LineItems, 1)
	assert.Equal(t, int64(30000), *fs.params.LineItems[0].PriceData.UnitAmount)
	assert.Equal(t, "thb", *fs.params.LineItems[0].PriceData.Currency)
	assert.Equal(t, "pro", fs.params.Metadata["plan"])
}

func TestNewStripeDisabledWithoutKey(t *testing.T) {
	assert.Nil(t, NewStripe("", "whsec", nil))
}

func TestStripeVerify(t *testing.T) {
	s := &Stripe{webhookSecret: testWebhookSecret}
	payload := stripePayload(stripeSessionCompleted, "paid", uuid.New())

	h := http.Header{}
	h.Set("Stripe-Signature", stripeSignature(payload, testWebhookSecret, time.Now()))
	assert.NoError(t, s.Verify(payload, h))

	h.Set("Stripe-Signature", stripeSignature(payload, "whsec_other", time.Now()))
	assert.ErrorIs(t, s.Verify(payload, h), ErrInvalidSignature)

	tampered := append([]byte{}, payload...)
	tampered[len(tampered)-3] = 'X'
	h.Set("Stripe-Signature", stripeSignature(payload, testWebhookSecret, time.Now()))
	assert.ErrorIs(t, s.Verify(tampered, h), ErrInvalidSignature)

	assert.ErrorIs(t, s.Verify(payload, http.Header{}), ErrInvalidSignature)

	noSecret := &Stripe{}
	assert.ErrorIs(t, noSecret.Verify(payload, h), ErrProviderUnavailable)
}

func TestStripeNormalize(t *testing.T) {
	s := &Stripe{}
	orgID := uuid.New()

	ev, err := s.Normalize(context.Background(), stripePayload(stripeSessionCompleted, "paid", orgID))
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, models.PaymentProviderStripe, ev.Provider)
	assert.Equal(t, "cs_test_1", ev.PaymentRef)
	assert.Equal(t, orgID, ev.OrgID)
	assert.Equal(t, "C999", ev.LineOrgID)
	assert.Equal(t, models.PlanPro, ev.Plan)
	assert.Equal(t, models.PeriodYearly, ev.Period)
	assert.Equal(t, int64(300000), ev.AmountSatang)
	assert.Equal(t, OutcomeSuccess, ev.Outcome)

	ev, err = s.Normalize(context.Background(), stripePayload(stripeSessionCompleted, "unpaid", orgID))
	require.NoError(t, err)
	assert.Nil(t, ev, "PromptPay still processing")

	ev, err = s.Normalize(context.Background(), stripePayload(stripeAsyncPaymentSucceeded, "paid", orgID))
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, OutcomeSuccess, ev.Outcome)

	ev, err = s.Normalize(context.Background(), stripePayload(stripeSessionExpired, "unpaid", orgID))
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, OutcomeFailure, ev.Outcome)

	ev, err = s.Normalize(context.Background(), stripePayload("customer.created", "", orgID))
	require.NoError(t, err)
	assert.Nil(t, ev)

	_, err = s.Normalize(context.Background(), []byte(`{"type":`))
	assert.ErrorIs(t, err, ErrMalformedEvent)
}
