package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"carebook/backend/internal/store/postgres"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	var dir string
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap("carebook-migrate")
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			if dir == "" {
				dir = cfg.MigrationsDir
			}

			db, err := openDatabase(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer func() { _ = postgres.Close(db) }()

			n, err := postgres.NewMigrator(db, dir).Up(cmd.Context())
			if err != nil {
				return err
			}
			log.Info("migrations complete", zap.Int("applied", n), zap.String("dir", dir))
			return nil
		},
	}
	upCmd.Flags().StringVar(&dir, "dir", "", "migrations directory (default from CAREBOOK_DATABASE_MIGRATIONS_DIR)")
	cmd.AddCommand(upCmd)
	return cmd
}
