package reminders

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	leaderLockKey   = "reminders:leader"
	DefaultSchedule = "@every 5m"
	DefaultLockTTL  = 2 * time.Minute
)

// Locker grants one worker at a time the right to run the trigger.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	Unlock(ctx context.Context, key, token string) error
	Refresh(ctx context.Context, key, token string, ttl time.Duration) error
}

type Runner interface {
	RunOnce(ctx context.Context) (Result, error)
}

// Worker runs the trigger on a cron schedule. With a Locker, only the
// instance holding the leader lock runs a given tick.
type Worker struct {
	runner   Runner
	locker   Locker
	log      *zap.Logger
	schedule string
	lockTTL  time.Duration

	cron   *cron.Cron
	cancel context.CancelFunc
}

func NewWorker(runner Runner, locker Locker, log *zap.Logger, schedule string, lockTTL time.Duration) *Worker {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if lockTTL <= 0 {
		lockTTL = DefaultLockTTL
	}
	return &Worker{
		runner:   runner,
		locker:   locker,
		log:      log.With(zap.String("component", "reminder_worker")),
		schedule: schedule,
		lockTTL:  lockTTL,
	}
}

func (w *Worker) Start(ctx context.Context) {
	var runCtx context.Context
	runCtx, w.cancel = context.WithCancel(ctx)

	c := cron.New()
	if _, err := c.AddFunc(w.schedule, func() { w.runOnce(runCtx) }); err != nil {
		w.log.Warn("invalid schedule, falling back", zap.String("schedule", w.schedule), zap.String("fallback", DefaultSchedule), zap.Error(err))
		c = cron.New()
		_, _ = c.AddFunc(DefaultSchedule, func() { w.runOnce(runCtx) })
	}
	c.Start()
	w.cron = c
	w.log.Info("reminder worker started", zap.String("schedule", w.schedule))
}

// Stop cancels any in-flight run and waits for it to return.
func (w *Worker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	if w.cron != nil {
		<-w.cron.Stop().Done()
	}
}

func (w *Worker) runOnce(ctx context.Context) {
	if w.locker != nil {
		token, ok, err := w.locker.TryLock(ctx, leaderLockKey, w.lockTTL)
		if err != nil {
			w.log.Warn("leader lock attempt failed", zap.Error(err))
			return
		}
		if !ok {
			w.log.Debug("leader lock held elsewhere, skipping run")
			return
		}
		defer func() {
			if err := w.locker.Unlock(context.WithoutCancel(ctx), leaderLockKey, token); err != nil {
				w.log.Warn("leader lock release failed", zap.Error(err))
			}
		}()

		refreshCtx, stopRefresh := context.WithCancel(ctx)
		defer stopRefresh()
		go w.keepLock(refreshCtx, token)
	}

	started := time.Now()
	res, err := w.runner.RunOnce(ctx)
	if err != nil {
		w.log.Error("reminder run failed", zap.Error(err))
		return
	}
	w.log.Info("reminder run finished",
		zap.Int("reminders", res.Reminders),
		zap.Int("confirmations", res.Confirmations),
		zap.Int("failures", res.Failures),
		zap.Duration("took", time.Since(started)),
	)
}

func (w *Worker) keepLock(ctx context.Context, token string) {
	tick := time.NewTicker(w.lockTTL / 2)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			if err := w.locker.Refresh(ctx, leaderLockKey, token, w.lockTTL); err != nil {
				w.log.Warn("leader lock refresh failed", zap.Error(err))
			}
		}
	}
}
