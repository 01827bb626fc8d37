package webhook

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/arkai-assistant/backend/config"
	"github.com/arkai-assistant/backend/internal/auth"
	"github.com/arkai-assistant/backend/pkg/response"
)

// Signature headers, in order of preference.
const (
	HeaderLineSignature = "X-Line-Signature"
	HeaderSignature     = "X-Signature"
)

// Enqueuer hands a verified body to the asynchronous worker.
type Enqueuer interface {
	EnqueueLineEvents(ctx context.Context, body []byte) error
}

// BodyProcessor runs a verified body through the pipeline.
type BodyProcessor interface {
	Process(ctx context.Context, body []byte) error
}

// Handler serves POST /webhook.
type Handler struct {
	cfg       config.LineConfig
	maxBody   int64
	queue     Enqueuer
	processor BodyProcessor
	logger    *zap.Logger
}

// NewHandler creates the webhook handler. queue may be nil, in which case bodies are processed in-process.
func NewHandler(cfg config.LineConfig, maxBody int64, queue Enqueuer, processor BodyProcessor, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxBody <= 0 {
		maxBody = 1 << 20
	}
	return &Handler{cfg: cfg, maxBody: maxBody, queue: queue, processor: processor, logger: logger}
}

// Receive verifies the delivery and acknowledges it before any event is processed.
func (h *Handler) Receive(c *gin.Context) {
	if err := h.cfg.RequireSecrets(); err != nil {
		h.logger.Error("line webhook rejected: channel not configured", zap.Error(err))
		response.Internal(c, "webhook not configured")
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBody))
	if err != nil {
		response.BadRequest(c, "unreadable body")
		return
	}
	signature := c.GetHeader(HeaderLineSignature)
	if signature == "" {
		signature = c.GetHeader(HeaderSignature)
	}
	if !auth.VerifyLineSignature(body, signature, h.cfg.ChannelSecret) {
		h.logger.Warn("line webhook signature mismatch", zap.String("client_ip", c.ClientIP()))
		response.Unauthorized(c, "invalid signature")
		return
	}

	response.Status(c, http.StatusOK)
	h.dispatch(c.Request.Context(), body)
}

func (h *Handler) dispatch(ctx context.Context, body []byte) {
	ctx = context.WithoutCancel(ctx)
	if h.queue != nil {
		err := h.queue.EnqueueLineEvents(ctx, body)
		if err == nil {
			return
		}
		h.logger.Warn("enqueue failed, processing in-process", zap.Error(err))
	}
	go func() {
		if err := h.processor.Process(ctx, body); err != nil {
			h.logger.Error("webhook body dropped", zap.Error(err))
		}
	}()
}
