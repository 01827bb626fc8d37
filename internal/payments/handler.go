package payments

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arkai-assistant/backend/internal/auth"
	"github.com/arkai-assistant/backend/pkg/response"
)

const (
	maxWebhookBody = 1 << 20
	pendingWindow  = 24 * time.Hour
)

// TokenValidator checks signed return tokens.
type TokenValidator interface {
	Validate(token string) (*auth.CheckoutClaims, error)
}

// ChargeSyncer polls Omise charges.
type ChargeSyncer interface {
	SyncCharge(ctx context.Context, ref string) (SyncStatus, error)
	SyncPending(ctx context.Context, orgID uuid.UUID, since time.Time) (SyncStatus, error)
}

// Handler serves the payment webhooks and redirect endpoints.
type Handler struct {
	reconciler *Reconciler
	stripe     Provider // nil when Stripe is not configured
	omise      Provider // nil when Omise is not configured
	syncer     ChargeSyncer
	tokens     TokenValidator
	logger     *zap.Logger
}

// NewHandler creates a payment handler. Pass untyped nil for unconfigured providers.
func NewHandler(reconciler *Reconciler, stripe, omise Provider, syncer ChargeSyncer, tokens TokenValidator, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{reconciler: reconciler, stripe: stripe, omise: omise, syncer: syncer, tokens: tokens, logger: logger}
}

// StripeWebhook handles POST /payment/stripe-webhook.
func (h *Handler) StripeWebhook(c *gin.Context) { h.webhook(c, h.stripe) }

// OmiseWebhook handles POST /payment/omise-webhook.
func (h *Handler) OmiseWebhook(c *gin.Context) { h.webhook(c, h.omise) }

func (h *Handler) webhook(c *gin.Context, p Provider) {
	if p == nil {
		response.BadRequest(c, "payment provider not configured")
		return
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil || len(body) == 0 {
		response.BadRequest(c, "missing body")
		return
	}
	res, err := h.reconciler.HandleWebhook(c.Request.Context(), p, body, c.Request.Header)
	if err != nil {
		log := h.logger.With(zap.String("provider", p.Name()))
		if errors.Is(err, ErrInvalidSignature) {
			log.Warn("payment webhook signature rejected")
		} else {
			log.Error("payment webhook failed", zap.Error(err))
		}
		response.BadRequest(c, "webhook processing failed")
		return
	}
	h.logger.Debug("payment webhook handled",
		zap.String("provider", p.Name()),
		zap.Bool("applied", res.Applied),
		zap.Bool("duplicate", res.Duplicate))
	response.Received(c)
}

// OmiseReturn handles GET /payment/omise/return?token=... after a 3-D Secure or QR flow.
func (h *Handler) OmiseReturn(c *gin.Context) {
	if h.syncer == nil || h.tokens == nil {
		response.BadRequest(c, "payment provider not configured")
		return
	}
	claims, err := h.tokens.Validate(c.Query("token"))
	if err != nil {
		response.BadRequest(c, "invalid token")
		return
	}
	ctx := c.Request.Context()
	var status SyncStatus
	if claims.PaymentRef != "" {
		status, err = h.syncer.SyncCharge(ctx, claims.PaymentRef)
	} else {
		status, err = h.syncer.SyncPending(ctx, claims.OrgID, time.Now().Add(-pendingWindow))
	}
	if err != nil {
		h.logger.Error("charge return sync failed", zap.String("org_id", claims.OrgID.String()), zap.Error(err))
		response.Internal(c, "could not check payment status")
		return
	}
	response.OK(c, gin.H{"status": status, "message": returnMessage(status)})
}

func returnMessage(s SyncStatus) string {
	switch s {
	case SyncCompleted:
		return "ชำระเงินสำเร็จ! กลับไปที่แชท LINE แล้วพิมพ์ /plan เพื่อเช็คสถานะ"
	case SyncFailed:
		return "ชำระเงินไม่สำเร็จ พิมพ์ /upgrade ในแชท LINE เพื่อลองใหม่"
	default:
		return "กำลังตรวจสอบการชำระเงิน ระบบจะแจ้งผลในแชท LINE"
	}
}

// Success handles GET /payment/success.
func (h *Handler) Success(c *gin.Context) {
	response.OK(c, gin.H{"message": "ชำระเงินสำเร็จ! ระบบกำลังอัพเกรดแผนของคุณอัตโนมัติ กลับไปที่แชท LINE แล้วพิมพ์ /plan เพื่อเช็คสถานะ"})
}

// Cancel handles GET /payment/cancel.
func (h *Handler) Cancel(c *gin.Context) {
	response.OK(c, gin.H{"message": "ยกเลิกการชำระเงิน พิมพ์ /upgrade ในแชท LINE อีกครั้งเมื่อพร้อม"})
}
