package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	driver "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
)

const (
	createMigrationsTableSQL = `
CREATE TABLE IF NOT EXISTS schema_migrations (
  name       VARCHAR(255) NOT NULL PRIMARY KEY,
  applied_at DATETIME(3)  NOT NULL DEFAULT CURRENT_TIMESTAMP(3)
) ENGINE=InnoDB`
	migrationAppliedSQL = `SELECT COUNT(*) FROM schema_migrations WHERE name = ?`
	recordMigrationSQL  = `INSERT INTO schema_migrations (name) VALUES (?)`
)

// MigrationDSN returns dsn with multiStatements enabled, which the
// migration files rely on.
func MigrationDSN(dsn string) (string, error) {
	cfg, err := driver.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MultiStatements = true
	return cfg.FormatDSN(), nil
}

// Migrate applies the *.sql files in dir in lexical order, skipping those
// already recorded in schema_migrations. It returns the names it applied.
func Migrate(ctx context.Context, db *sql.DB, dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}
	var names []string
	for _, e := range ents {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".sql" {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no .sql files in %s", dir)
	}
	sort.Strings(names)

	if _, err := db.ExecContext(ctx, createMigrationsTableSQL); err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}

	var applied []string
	for _, name := range names {
		var n int
		if err := db.QueryRowContext(ctx, migrationAppliedSQL, name).Scan(&n); err != nil {
			return applied, fmt.Errorf("check %s: %w", name, err)
		}
		if n > 0 {
			continue
		}
		body, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return applied, fmt.Errorf("read %s: %w", name, err)
		}
		// DDL commits implicitly in MySQL, so a file is not atomic.
		if _, err := db.ExecContext(ctx, string(body)); err != nil {
			return applied, fmt.Errorf("exec %s: %w", name, err)
		}
		if _, err := db.ExecContext(ctx, recordMigrationSQL, name); err != nil {
			return applied, fmt.Errorf("record %s: %w", name, err)
		}
		log.Info().Str("migration", name).Msg("migration applied")
		applied = append(applied, name)
	}
	return applied, nil
}
