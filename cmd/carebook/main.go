package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"carebook/backend/internal/config"
	"carebook/backend/internal/logging"
	"carebook/backend/internal/notify"
	"carebook/backend/internal/store/postgres"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "carebook",
		Short:         "Appointment scheduling service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(workerCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// bootstrap loads config and builds the logger every subcommand shares.
func bootstrap(service string) (config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat, service)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("build logger: %w", err)
	}
	return cfg, log, nil
}

func openDatabase(ctx context.Context, cfg config.Config, log *zap.Logger) (*bun.DB, error) {
	log.Info("connecting to database", databaseLogFields(cfg.DatabaseURL)...)
	db, err := postgres.Open(ctx, cfg.DatabaseURL, postgres.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
		SlowQuery:       cfg.DBSlowQuery,
	}, log)
	if err != nil {
		fields := append([]zap.Field{zap.Error(err)}, databaseLogFields(cfg.DatabaseURL)...)
		log.Error("database connection failed", fields...)
		return nil, err
	}
	return db, nil
}

func retryPolicy(cfg config.Config) postgres.RetryPolicy {
	p := postgres.DefaultRetryPolicy()
	if cfg.PersistenceMaxAttempts > 0 {
		p.MaxAttempts = cfg.PersistenceMaxAttempts
	}
	if cfg.PersistenceBackoff > 0 {
		p.Backoff = cfg.PersistenceBackoff
	}
	return p
}

// newDispatcher builds the configured notification driver. The returned
// close func is never nil.
func newDispatcher(cfg config.Config, log *zap.Logger) (notify.Dispatcher, func(), error) {
	templates := notify.NewTemplates()
	if cfg.NotifyDriver != "amqp" {
		return notify.NewLogDispatcher(log, templates), func() {}, nil
	}

	conn, err := amqp.Dial(cfg.AMQPURL)
	if err != nil {
		return nil, nil, fmt.Errorf("dial amqp: %w", err)
	}
	d, err := notify.NewAMQPDispatcher(conn, cfg.AMQPQueue, templates, log)
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	log.Info("notifications via amqp", zap.String("queue", cfg.AMQPQueue))
	return d, func() {
		if err := d.Close(); err != nil {
			log.Warn("amqp channel close failed", zap.Error(err))
		}
		if err := conn.Close(); err != nil {
			log.Warn("amqp connection close failed", zap.Error(err))
		}
	}, nil
}

// databaseLogFields describes the database without its credentials.
func databaseLogFields(databaseURL string) []zap.Field {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return []zap.Field{zap.String("db_url", "invalid")}
	}
	name := strings.TrimPrefix(u.Path, "/")
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "default"
	}
	if host == "" {
		host = "unknown"
	}
	if name == "" {
		name = "unknown"
	}
	return []zap.Field{
		zap.String("db_host", host),
		zap.String("db_port", port),
		zap.String("db_name", name),
	}
}
