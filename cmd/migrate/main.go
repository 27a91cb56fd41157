package main

import (
	"context"
	"database/sql"
	"flag"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"bookshelf/internal/adapters/observability"
	"bookshelf/internal/shared"
	mysqlrepo "bookshelf/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	dir := flag.String("dir", cfg.MigrationsDir, "directory of *.sql migrations")
	flag.Parse()

	dsn, err := mysqlrepo.MigrationDSN(cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("bad MYSQL_DSN")
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}

	applied, err := mysqlrepo.Migrate(ctx, db, *dir)
	if err != nil {
		log.Fatal().Err(err).Strs("applied", applied).Msg("migration failed")
	}
	log.Info().Int("applied", len(applied)).Str("dir", *dir).Msg("migrations up to date")
}
