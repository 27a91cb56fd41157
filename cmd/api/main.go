package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	server "bookshelf/internal/adapters/http_server"
	"bookshelf/internal/adapters/observability"
	redisad "bookshelf/internal/adapters/redis"
	"bookshelf/internal/app"
	"bookshelf/internal/domain"
	"bookshelf/internal/shared"
	"bookshelf/internal/storage/memory"
	mysqlrepo "bookshelf/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.JWTSecret == "" {
		if cfg.StoreDriver == "mysql" {
			log.Fatal().Msg("JWT_SECRET is required with the mysql store")
		}
		log.Warn().Msg("JWT_SECRET is empty; every authenticated route will answer 401")
	}

	reg := observability.InitRegistry()
	observability.Serve(cfg.MetricsAddr, reg)

	// store
	var store domain.Store
	switch cfg.StoreDriver {
	case "memory":
		store = memory.New()
		log.Warn().Msg("using in-memory store; data is lost on exit")
	default:
		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("sql.Open failed")
		}
		defer db.Close()
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(5 * time.Minute)
		if err := db.PingContext(ctx); err != nil {
			log.Fatal().Err(err).Msg("db.Ping failed")
		}
		log.Info().Msg("database connection ok")
		store = mysqlrepo.New(db)
	}

	// write throttling: shared across instances when redis is configured
	var limiter server.Limiter
	backend := "memory"
	if cfg.RedisAddr != "" {
		rl := redisad.NewLimiter(redisad.NewClient(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB), cfg.WriteBurst, time.Second)
		if err := rl.Ping(ctx); err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable; writes pass unthrottled until it recovers")
		}
		limiter, backend = rl, "redis"
	} else {
		limiter = server.NewMemoryLimiter(cfg.WriteRPS, cfg.WriteBurst)
	}

	h := &server.Handlers{
		Reviews:      app.NewReviewService(store, time.Now),
		Interactions: app.NewInteractionService(store, time.Now),
		Stats:        app.NewStatsService(store, time.Now, cfg.StatsSnapshot),
	}

	// http
	srv := server.New(cfg.RequestTimeout)
	srv.MountHandlers(h, server.JWTVerifier{Secret: []byte(cfg.JWTSecret)}, limiter, backend)
	srv.Mount("/metrics", observability.MetricsHandler(reg))

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Mux(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Str("store", cfg.StoreDriver).Str("limiter", backend).Msg("API listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
