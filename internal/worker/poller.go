package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arkai-assistant/backend/internal/payments"
)

const (
	// PollInterval is how often pending Omise charges are re-checked.
	PollInterval = time.Minute
	// PollWindow limits polling to charges created this recently.
	PollWindow = 24 * time.Hour
)

// ChargeSyncer reconciles pending charges against the provider.
type ChargeSyncer interface {
	SyncPending(ctx context.Context, orgID uuid.UUID, since time.Time) (payments.SyncStatus, error)
}

// ChargePoller picks up charges whose webhook never arrived.
type ChargePoller struct {
	syncer   ChargeSyncer
	interval time.Duration
	window   time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

// NewChargePoller creates a poller with the default interval and window.
func NewChargePoller(syncer ChargeSyncer, logger *zap.Logger) *ChargePoller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChargePoller{syncer: syncer, interval: PollInterval, window: PollWindow, now: time.Now, logger: logger}
}

// PollOnce syncs every pending charge of every org inside the window.
func (p *ChargePoller) PollOnce(ctx context.Context) (payments.SyncStatus, error) {
	status, err := p.syncer.SyncPending(ctx, uuid.Nil, p.now().Add(-p.window))
	if err != nil {
		p.logger.Warn("pending charge poll failed", zap.Error(err))
		return "", err
	}
	if status != payments.SyncNone {
		p.logger.Debug("pending charges polled", zap.String("status", string(status)))
	}
	return status, nil
}

// Run polls until ctx is done.
func (p *ChargePoller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	p.logger.Info("charge poller started", zap.Duration("interval", p.interval))
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("charge poller stopping")
			return
		case <-ticker.C:
			_, _ = p.PollOnce(ctx)
		}
	}
}
