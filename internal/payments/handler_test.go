package payments

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkai-assistant/backend/internal/auth"
	"github.com/arkai-assistant/backend/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.POST("/payment/stripe-webhook", h.StripeWebhook)
	r.POST("/payment/omise-webhook", h.OmiseWebhook)
	r.GET("/payment/omise/return", h.OmiseReturn)
	r.GET("/payment/success", h.Success)
	r.GET("/payment/cancel", h.Cancel)
	return r
}

func post(r http.Handler, path string, body []byte) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	r.ServeHTTP(w, req)
	return w
}

func TestWebhookAcknowledgesReceived(t *testing.T) {
	store := newMemStore()
	rec := NewReconciler(store, nil, time.UTC, nil)
	ev := successEvent(uuid.New(), "chrg_h", models.PeriodMonthly)
	h := NewHandler(rec, nil, &fakeProvider{event: &ev}, nil, nil, nil)
	r := newTestRouter(h)

	for i := 0; i < 2; i++ {
		w := post(r, "/payment/omise-webhook", []byte(`{"key":"charge.complete"}`))
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"received":true}`, w.Body.String())
	}
	assert.Equal(t, models.PaymentStatusCompleted, store.status(models.PaymentProviderOmise, "chrg_h"))
}

func TestWebhookFailures(t *testing.T) {
	rec := NewReconciler(newMemStore(), nil, time.UTC, nil)
	h := NewHandler(rec, nil, &fakeProvider{verifyErr: ErrInvalidSignature}, nil, nil, nil)
	r := newTestRouter(h)

	w := post(r, "/payment/stripe-webhook", []byte(`{}`))
	assert.Equal(t, http.StatusBadRequest, w.Code, "unconfigured provider")

	w = post(r, "/payment/omise-webhook", []byte(`{}`))
	assert.Equal(t, http.StatusBadRequest, w.Code, "bad signature")

	w = post(r, "/payment/omise-webhook", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, "empty body")
}

func TestStripeWebhookEndToEnd(t *testing.T) {
	store := newMemStore()
	rec := NewReconciler(store, nil, time.UTC, nil)
	s := &Stripe{webhookSecret: testWebhookSecret}
	h := NewHandler(rec, s, nil, nil, nil, nil)
	r := newTestRouter(h)
	orgID := uuid.New()
	payload := stripePayload(stripeSessionCompleted, "paid", orgID)

	req := httptest.NewRequest(http.MethodPost, "/payment/stripe-webhook", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", stripeSignature(payload, testWebhookSecret, time.Now()))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.PlanPro, store.upgrades[orgID])
}

func TestOmiseReturn(t *testing.T) {
	store := newMemStore()
	charges := &fakeCharges{status: ChargePending}
	tokens := auth.NewCheckoutTokens("test-secret", time.Hour)
	svc := newCheckout(nil, charges, store)
	h := NewHandler(NewReconciler(store, nil, time.UTC, nil), nil, nil, svc, tokens, nil)
	r := newTestRouter(h)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/payment/omise/return?token=bogus", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	org := testOrg()
	_, err := svc.Start(t.Context(), org, CheckoutRequest{Plan: models.PlanPro, Period: models.PeriodMonthly, Method: MethodPromptPay})
	require.NoError(t, err)
	charges.charges["chrg_1"].Status = ChargeSuccessful

	tok, err := tokens.Generate(models.PaymentProviderOmise, "", org.ID)
	require.NoError(t, err)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/payment/omise/return?token="+tok, nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data struct {
			Status string `json:"status"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, string(SyncCompleted), body.Data.Status)
	assert.Equal(t, models.PlanPro, store.upgrades[org.ID])
}

func TestSuccessAndCancelPages(t *testing.T) {
	r := newTestRouter(NewHandler(nil, nil, nil, nil, nil, nil))
	for _, path := range []string{"/payment/success", "/payment/cancel"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}
