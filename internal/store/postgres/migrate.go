package postgres

import (
	"context"
	"fmt"

	migrate "github.com/rubenv/sql-migrate"
	"github.com/uptrace/bun"
)

const migrationsTable = "schema_migrations"

// Migrator applies the sql-migrate files in dir.
type Migrator struct {
	db     *bun.DB
	source *migrate.FileMigrationSource
}

func NewMigrator(db *bun.DB, dir string) *Migrator {
	return &Migrator{db: db, source: &migrate.FileMigrationSource{Dir: dir}}
}

// Up applies every pending migration in id order and returns how many were
// applied. Each file runs in its own transaction.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	set := migrate.MigrationSet{TableName: migrationsTable}
	n, err := set.ExecContext(ctx, m.db.DB, "postgres", m.source, migrate.Up)
	if err != nil {
		return n, fmt.Errorf("apply migrations from %s: %w", m.source.Dir, err)
	}
	return n, nil
}

// LoadMigrations parses the files in dir without touching a database.
func LoadMigrations(dir string) ([]*migrate.Migration, error) {
	migs, err := (&migrate.FileMigrationSource{Dir: dir}).FindMigrations()
	if err != nil {
		return nil, fmt.Errorf("read migrations dir %s: %w", dir, err)
	}
	return migs, nil
}
