// Package app wires configuration into the running components shared by the server and worker binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/arkai-assistant/backend/config"
	"github.com/arkai-assistant/backend/internal/ai"
	"github.com/arkai-assistant/backend/internal/auth"
	"github.com/arkai-assistant/backend/internal/commands"
	"github.com/arkai-assistant/backend/internal/files"
	"github.com/arkai-assistant/backend/internal/line"
	"github.com/arkai-assistant/backend/internal/messages"
	"github.com/arkai-assistant/backend/internal/middleware"
	"github.com/arkai-assistant/backend/internal/notes"
	"github.com/arkai-assistant/backend/internal/organizations"
	"github.com/arkai-assistant/backend/internal/payments"
	"github.com/arkai-assistant/backend/internal/reminders"
	"github.com/arkai-assistant/backend/internal/subscription"
	"github.com/arkai-assistant/backend/internal/tasks"
	"github.com/arkai-assistant/backend/internal/webhook"
	"github.com/arkai-assistant/backend/internal/worker"
	"github.com/arkai-assistant/backend/pkg/database"
	"github.com/arkai-assistant/backend/pkg/queue"
	"github.com/arkai-assistant/backend/pkg/redis"
	"github.com/arkai-assistant/backend/pkg/response"
	"github.com/arkai-assistant/backend/pkg/storage"
)

// App holds the connected infrastructure and the components built on it.
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	pool  *pgxpool.Pool
	redis *redis.Client
	queue *queue.Queue

	line      *line.Client
	processor *webhook.Processor
	webhook   *webhook.Handler
	payments  *payments.Handler
	checkout  *payments.CheckoutService
	reminders *reminders.Repository
	omise     bool
}

// New connects Postgres and Redis, applies migrations and builds every component.
// Optional integrations (object storage, Stripe, Omise) are disabled with a warning when unconfigured.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	if err := database.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("redis: %w", err)
	}

	a := &App{cfg: cfg, logger: logger, pool: pool, redis: rdb, queue: queue.NewQueue(rdb.Client, logger)}
	if err := a.build(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	cfg, logger := a.cfg, a.logger
	loc := cfg.App.Location()
	if cfg.Line.RequireSecrets() != nil {
		logger.Error("LINE channel secret or access token missing; /webhook will answer 500")
	}

	orgRepo := organizations.NewRepository(a.pool)
	ledger := subscription.NewLedger(orgRepo, subscription.DefaultPolicy, loc, logger)
	resolver := organizations.NewResolver(orgRepo, logger)
	msgRepo := messages.NewRepository(a.pool)
	a.reminders = reminders.NewRepository(a.pool)

	a.line = line.NewClient(line.Config{
		AccessToken: cfg.Line.AccessToken,
		APIBaseURL:  cfg.Line.APIBaseURL,
		DataBaseURL: cfg.Line.DataBaseURL,
		Timeout:     cfg.Line.Timeout,
	}, logger)

	var objects files.ObjectStore
	s3Client, err := storage.NewS3(ctx, storage.S3Config{
		Endpoint:             cfg.Storage.Endpoint,
		Region:               cfg.Storage.Region,
		AccessKeyID:          cfg.Storage.AccessKeyID,
		SecretAccessKey:      cfg.Storage.SecretAccessKey,
		Bucket:               cfg.Storage.Bucket,
		PublicBaseURL:        cfg.Storage.PublicBaseURL,
		PresignExpireMinutes: cfg.Storage.PresignExpireMinutes,
		MaxFileBytes:         cfg.Storage.MaxFileBytes,
	}, logger)
	switch {
	case err == nil:
		objects = s3Client
	case errors.Is(err, storage.ErrNotConfigured):
		logger.Warn("object storage not configured; file auto-save disabled")
	default:
		logger.Warn("object storage disabled", zap.Error(err))
	}
	fileSvc := files.NewService(objects, files.NewRepository(a.pool), ledger, logger)

	if err := a.buildPayments(loc); err != nil {
		return err
	}

	handlers := &commands.Handlers{
		Ledger:    ledger,
		Assistant: ai.NewAssistant(loc),
		Tasks:     tasks.NewRepository(a.pool),
		Notes:     notes.NewRepository(a.pool),
		Reminders: a.reminders,
		Messages:  msgRepo,
		Files:     fileSvc,
		Checkout:  a.checkout,
		Location:  loc,
		Logger:    logger,
	}
	registry, err := commands.NewRegistry(commands.Catalogue(handlers))
	if err != nil {
		return fmt.Errorf("command registry: %w", err)
	}
	router := commands.NewRouter(registry, ledger, handlers.Assistant, logger)

	a.processor = webhook.NewProcessor(webhook.ProcessorConfig{
		Resolver:  resolver,
		Messages:  msgRepo,
		Router:    router,
		Messenger: a.line,
		Files:     fileSvc,
		Dedup:     a.redis,
		BotUserID: cfg.Line.BotUserID,
		Logger:    logger,
	})
	a.webhook = webhook.NewHandler(cfg.Line, cfg.Server.MaxBodyBytes, a.queue, a.processor, logger)
	return nil
}

func (a *App) buildPayments(loc *time.Location) error {
	cfg, logger := a.cfg, a.logger
	store := payments.NewRepository(a.pool)
	reconciler := payments.NewReconciler(store, a.line, loc, logger)

	tokenSecret := cfg.App.CheckoutTokenSecret
	if tokenSecret == "" && cfg.Omise.SecretKey != "" {
		tokenSecret = cfg.Omise.SecretKey
		logger.Warn("CHECKOUT_TOKEN_SECRET not set; signing return links with the Omise secret key")
	}
	tokens := auth.NewCheckoutTokens(tokenSecret, cfg.App.CheckoutTokenTTL)

	var sessions payments.SessionProvider
	var charges payments.ChargeProvider
	var stripeProvider, omiseProvider payments.Provider
	if s := payments.NewStripe(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret, logger); s != nil {
		sessions, stripeProvider = s, s
	} else {
		logger.Warn("Stripe not configured")
	}
	if o := payments.NewOmise(payments.OmiseConfig{
		SecretKey:     cfg.Omise.SecretKey,
		WebhookSecret: cfg.Omise.WebhookSecret,
		APIBaseURL:    cfg.Omise.APIBaseURL,
	}, logger); o != nil {
		charges, omiseProvider = o, o
		a.omise = true
	} else {
		logger.Warn("Omise not configured")
	}

	a.checkout = payments.NewCheckoutService(payments.CheckoutConfig{
		Sessions:   sessions,
		Charges:    charges,
		Store:      store,
		Reconciler: reconciler,
		Tokens:     tokens,
		BaseURL:    cfg.App.BaseURL,
		Logger:     logger,
	})
	a.payments = payments.NewHandler(reconciler, stripeProvider, omiseProvider, a.checkout, tokens, logger)
	return nil
}

// Router returns the HTTP surface.
func (a *App) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(a.logger))

	router.GET("/health", func(c *gin.Context) {
		response.OK(c, gin.H{"status": "ok"})
	})
	router.POST("/webhook", a.webhook.Receive)

	pay := router.Group("/payment")
	{
		pay.POST("/stripe-webhook", a.payments.StripeWebhook)
		pay.POST("/omise-webhook", a.payments.OmiseWebhook)
		pay.GET("/omise/return", a.payments.OmiseReturn)
		pay.GET("/success", a.payments.Success)
		pay.GET("/cancel", a.payments.Cancel)
	}
	return router
}

// StartWorkers runs the queue consumer, the pending-charge poller (Omise only) and the
// reminder schedule. The returned stop function cancels them and waits for in-flight work.
func (a *App) StartWorkers(ctx context.Context) (stop func(), err error) {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup

	consumer := worker.NewEventConsumer(a.queue, a.processor, a.logger)
	wg.Add(1)
	go func() {
		defer wg.Done()
		consumer.Run(ctx)
	}()

	if a.omise {
		poller := worker.NewChargePoller(a.checkout, a.logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			poller.Run(ctx)
		}()
	}

	var stopCron func() context.Context
	if spec := a.cfg.Reminders.Schedule; spec != "" {
		dispatcher := worker.NewReminderDispatcher(a.reminders, a.line, a.redis, a.cfg.App.Location(), a.logger)
		c, err := dispatcher.Start(spec)
		if err != nil {
			cancel()
			wg.Wait()
			return nil, err
		}
		stopCron = c.Stop
	}

	return func() {
		cancel()
		if stopCron != nil {
			<-stopCron().Done()
		}
		wg.Wait()
	}, nil
}

// Close releases Redis and Postgres.
func (a *App) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("close redis", zap.Error(err))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
