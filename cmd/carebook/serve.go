package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"carebook/backend/internal/config"
	"carebook/backend/internal/service/appointments"
	"carebook/backend/internal/store/postgres"
	redisstore "carebook/backend/internal/store/redis"
	grpcTransport "carebook/backend/internal/transport/grpc"
	httpTransport "carebook/backend/internal/transport/http"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the gRPC health endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap("carebook-server")
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			return runServer(cmd.Context(), cfg, log)
		},
	}
}

func runServer(parent context.Context, cfg config.Config, log *zap.Logger) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("starting",
		zap.String("version", version),
		zap.String("http_addr", cfg.HTTPAddr),
		zap.String("grpc_addr", cfg.GRPCAddr()),
		zap.String("notify_driver", cfg.NotifyDriver),
	)

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

	retry := retryPolicy(cfg)
	opts := []appointments.Option{
		appointments.WithLogger(log),
		appointments.WithDispatcher(dispatcher),
		appointments.WithDefaultHours(cfg.DefaultHours),
		appointments.WithDefaultDuration(cfg.DefaultDuration),
	}

	checks := []httpTransport.Check{{
		Name:     "database",
		Required: true,
		Ping:     func(ctx context.Context) error { return db.PingContext(ctx) },
	}}

	rdb, err := redisstore.NewClient(ctx, redisstore.Options{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		log.Warn("redis unavailable, slot cache disabled", zap.String("redis_addr", cfg.RedisAddr), zap.Error(err))
	} else {
		defer func() { _ = rdb.Close() }()
		opts = append(opts, appointments.WithSlotCache(redisstore.NewSlotCache(rdb, cfg.SlotCacheTTL)))
		checks = append(checks, httpTransport.Check{
			Name: "redis",
			Ping: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		})
	}

	svc := appointments.NewService(
		postgres.NewAppointmentRepo(db, retry),
		postgres.NewProfileRepo(db),
		opts...,
	)

	httpServer := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpTransport.NewRouter(httpTransport.RouterConfig{
			Service:        svc,
			Health:         httpTransport.NewHealthHandler(version, checks...),
			Log:            log.With(zap.String("component", "http")),
			RequestTimeout: cfg.HTTPRequestTimeout,
			RateLimit:      cfg.HTTPRateLimit,
			AllowedOrigins: cfg.AllowedOrigins,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer, healthServer := grpcTransport.NewServer(cfg.GRPCRequestTimeout, log)
	reporter := grpcTransport.NewHealthReporter(healthServer, db.PingContext, 0, log)
	go reporter.Run(ctx)

	lis, err := net.Listen("tcp", cfg.GRPCAddr())
	if err != nil {
		log.Error("grpc listen failed", zap.Error(err), zap.String("grpc_addr", cfg.GRPCAddr()))
		return err
	}

	errCh := make(chan error, 2)
	go func() {
		errCh <- grpcServer.Serve(lis)
	}()
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()
	log.Info("servers started", zap.String("http_addr", cfg.HTTPAddr), zap.String("grpc_addr", cfg.GRPCAddr()))

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped with error", zap.Error(err))
			runErr = err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("http graceful shutdown failed", zap.Error(err))
	}
	grpcTransport.Shutdown(log, grpcServer, cfg.ShutdownTimeout)
	return runErr
}
