package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/arkai-assistant/backend/internal/line"
	"github.com/arkai-assistant/backend/internal/models"
)

const (
	// ReminderLockKey serializes dispatch across worker replicas.
	ReminderLockKey = "reminders:dispatch:lock"
	reminderLockTTL = 50 * time.Second
	reminderBatch   = 100
	reminderTimeout = 45 * time.Second
)

// ReminderStore is the reminder persistence the dispatcher needs.
type ReminderStore interface {
	Due(ctx context.Context, now time.Time, limit int) ([]models.Reminder, error)
	MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error
	Reschedule(ctx context.Context, id uuid.UUID, next time.Time) error
}

// Pusher sends unsolicited chat messages.
type Pusher interface {
	Push(ctx context.Context, to, text string) error
}

// Locker is a Redis SETNX lock.
type Locker interface {
	SetOnce(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// ReminderDispatcher pushes due reminders on a cron schedule.
type ReminderDispatcher struct {
	store  ReminderStore
	pusher Pusher
	locker Locker
	loc    *time.Location
	now    func() time.Time
	logger *zap.Logger
}

// NewReminderDispatcher creates a dispatcher. locker may be nil for a single replica.
func NewReminderDispatcher(store ReminderStore, pusher Pusher, locker Locker, loc *time.Location, logger *zap.Logger) *ReminderDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &ReminderDispatcher{store: store, pusher: pusher, locker: locker, loc: loc, now: time.Now, logger: logger}
}

// ReminderText is the pushed message for one reminder.
func ReminderText(r models.Reminder) string {
	if r.Daily {
		return fmt.Sprintf("⏰ เตือนประจำวัน: %s", r.Topic)
	}
	return fmt.Sprintf("⏰ เตือนความจำ: %s", r.Topic)
}

// Start schedules dispatch with a standard five-field cron spec in the dispatcher's location.
// The caller owns the returned cron and must Stop it.
func (d *ReminderDispatcher) Start(spec string) (*cron.Cron, error) {
	c := cron.New(cron.WithLocation(d.loc))
	if _, err := c.AddFunc(spec, d.tick); err != nil {
		return nil, fmt.Errorf("reminder schedule %q: %w", spec, err)
	}
	c.Start()
	d.logger.Info("reminder dispatcher scheduled", zap.String("spec", spec))
	return c, nil
}

func (d *ReminderDispatcher) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), reminderTimeout)
	defer cancel()
	if _, err := d.RunLocked(ctx); err != nil {
		d.logger.Error("reminder dispatch failed", zap.Error(err))
	}
}

// RunLocked dispatches under the cross-replica lock. It returns -1 when another replica holds it.
func (d *ReminderDispatcher) RunLocked(ctx context.Context) (int, error) {
	if d.locker != nil {
		ok, err := d.locker.SetOnce(ctx, ReminderLockKey, reminderLockTTL)
		if err != nil {
			return 0, fmt.Errorf("acquire reminder lock: %w", err)
		}
		if !ok {
			d.logger.Debug("reminder lock held by another instance")
			return -1, nil
		}
		defer func() {
			if err := d.locker.Release(context.WithoutCancel(ctx), ReminderLockKey); err != nil {
				d.logger.Warn("release reminder lock", zap.Error(err))
			}
		}()
	}
	return d.DispatchDue(ctx)
}

// DispatchDue pushes every due reminder and returns how many were delivered.
// One-off reminders are closed; daily ones move to their next occurrence after now.
// A transient push failure leaves the reminder due for the next run.
func (d *ReminderDispatcher) DispatchDue(ctx context.Context) (int, error) {
	now := d.now()
	due, err := d.store.Due(ctx, now, reminderBatch)
	if err != nil {
		return 0, fmt.Errorf("load due reminders: %w", err)
	}
	sent := 0
	for _, r := range due {
		log := d.logger.With(zap.String("reminder_id", r.ID.String()), zap.String("org_id", r.OrgID))
		if err := d.pusher.Push(ctx, r.OrgID, ReminderText(r)); err != nil {
			if !rejected(err) {
				log.Warn("push reminder failed, will retry", zap.Error(err))
				continue
			}
			log.Warn("push reminder rejected, giving up on this occurrence", zap.Error(err))
		} else {
			sent++
		}
		if err := d.advance(ctx, r, now); err != nil {
			log.Error("advance reminder failed", zap.Error(err))
		}
	}
	return sent, nil
}

func (d *ReminderDispatcher) advance(ctx context.Context, r models.Reminder, now time.Time) error {
	if !r.Daily {
		return d.store.MarkSent(ctx, r.ID, now)
	}
	next := r.RemindAt.Add(24 * time.Hour)
	for !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return d.store.Reschedule(ctx, r.ID, next)
}

// rejected reports a client error from the platform: the target is gone or blocked the bot.
func rejected(err error) bool {
	var apiErr *line.APIError
	return errors.As(err, &apiErr) && apiErr.Status >= http.StatusBadRequest && apiErr.Status < http.StatusInternalServerError &&
		apiErr.Status != http.StatusTooManyRequests
}
