package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"carebook/backend/internal/config"
	"carebook/backend/internal/service/reminders"
	"carebook/backend/internal/store/postgres"
	redisstore "carebook/backend/internal/store/redis"
)

func workerCmd() *cobra.Command {
	var (
		once      bool
		reconcile string
	)
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Send appointment reminders and confirmation requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap("carebook-worker")
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			var reconcileID uuid.UUID
			if reconcile != "" {
				if reconcileID, err = uuid.Parse(reconcile); err != nil {
					return fmt.Errorf("--reconcile: %w", err)
				}
			}
			return runWorker(cmd.Context(), cfg, log, once, reconcileID)
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "run a single pass and exit")
	cmd.Flags().StringVar(&reconcile, "reconcile", "", "clear the reminder flag of this appointment so the next pass re-sends it")
	return cmd
}

func runWorker(parent context.Context, cfg config.Config, log *zap.Logger, once bool, reconcileID uuid.UUID) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := postgres.Close(db); err != nil {
			log.Warn("database close failed", zap.Error(err))
		}
	}()

	dispatcher, closeDispatcher, err := newDispatcher(cfg, log)
	if err != nil {
		return err
	}
	defer closeDispatcher()

	trigger := reminders.NewTrigger(postgres.NewReminderRepo(db, retryPolicy(cfg)), dispatcher, log, reminders.Config{
		Window:    cfg.ReminderWindow,
		BatchSize: cfg.ReminderBatchSize,
	})

	if reconcileID != uuid.Nil {
		return trigger.Reconcile(ctx, reconcileID)
	}

	if once {
		res, err := trigger.RunOnce(ctx)
		if err != nil {
			return err
		}
		log.Info("reminder pass finished",
			zap.Int("reminders", res.Reminders),
			zap.Int("confirmations", res.Confirmations),
			zap.Int("failures", res.Failures),
		)
		return nil
	}

	var locker reminders.Locker
	rdb, err := redisstore.NewClient(ctx, redisstore.Options{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		log.Warn("redis unavailable, running without leader lock", zap.String("redis_addr", cfg.RedisAddr), zap.Error(err))
	} else {
		defer func() { _ = rdb.Close() }()
		locker = redisstore.NewLocker(rdb, "")
	}

	w := reminders.NewWorker(trigger, locker, log, cfg.ReminderSchedule, cfg.ReminderLockTTL)
	w.Start(ctx)
	<-ctx.Done()
	log.Info("shutdown signal received")
	w.Stop()
	return nil
}
