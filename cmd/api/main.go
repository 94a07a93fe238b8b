package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/OussamaRhimi/tender-mvp/internal/auth"
	"github.com/OussamaRhimi/tender-mvp/internal/cache"
	"github.com/OussamaRhimi/tender-mvp/internal/config"
	"github.com/OussamaRhimi/tender-mvp/internal/db"
	httpx "github.com/OussamaRhimi/tender-mvp/internal/http"
	"github.com/OussamaRhimi/tender-mvp/internal/http/handlers"
	"github.com/OussamaRhimi/tender-mvp/internal/notifications"
	"github.com/OussamaRhimi/tender-mvp/internal/observability"
	"github.com/OussamaRhimi/tender-mvp/internal/redisclient"
	"github.com/OussamaRhimi/tender-mvp/internal/repo/memory"
	"github.com/OussamaRhimi/tender-mvp/internal/repo/postgres"
	"github.com/OussamaRhimi/tender-mvp/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	// Load the config set up
	cfg := config.Load()

	// start up the observability logger
	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx := context.Background()

	if cfg.OTelEnabled {
		shutdownTracer, err := observability.InitTracer(ctx, "tender-api", cfg.OTelEndpoint)
		if err != nil {
			return fmt.Errorf("init tracer: %w", err)
		}
		defer func() {
			c, cancel := config.WithTimeout(5 * time.Second)
			defer cancel()
			_ = shutdownTracer(c)
		}()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := observability.NewProm(reg)

	readiness := map[string]handlers.Pinger{}
	var draining atomic.Bool

	deps := httpx.Deps{
		Config:    cfg,
		JWT:       auth.NewManager(cfg.JWTSecret, cfg.SessionTTL()),
		Prom:      prom,
		Gatherer:  reg,
		Readiness: readiness,
		Draining:  draining.Load,
	}

	// stores
	switch cfg.Store {
	case "memory":
		store := memory.NewStore()
		deps.Users = store.Users()
		deps.Tags = store.Tags()
		deps.Tenders = store.Tenders()
		deps.Favorites = store.Favorites()
		deps.Messages = store.Messages()
		deps.Notifications = store.Notifications()
		deps.PasswordResets = store.PasswordResets()
		deps.Stats = store.Stats()
		log.Warn("using in-memory store; data is lost on restart")
	default:
		if cfg.MigrateOnStart {
			if err := db.Migrate(ctx, cfg.DBURL); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			log.Info("migrations applied")
		}

		pool, err := db.NewPool(cfg.DBURL, cfg.DBMaxConns)
		if err != nil {
			return fmt.Errorf("db connect: %w", err)
		}
		defer pool.Close()
		readiness["postgres"] = pool.Ping

		tenders := postgres.NewTendersRepo(pool, prom)
		users := postgres.NewUsersRepo(pool, prom)
		deps.Users = users
		deps.Tags = postgres.NewTagsRepo(pool, prom)
		deps.Tenders = tenders
		deps.Favorites = postgres.NewFavoritesRepo(pool, prom, tenders)
		deps.Messages = postgres.NewMessagesRepo(pool, prom)
		deps.Notifications = postgres.NewNotificationsRepo(pool, prom)
		deps.PasswordResets = postgres.NewPasswordResetsRepo(pool, prom)
		deps.Stats = postgres.NewStatsRepo(pool, prom)
	}

	seedCtx, cancelSeed := config.WithTimeout(5 * time.Second)
	err := db.EnsureAdminUser(seedCtx, deps.Users, cfg)
	cancelSeed()
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	// cache
	if cfg.RedisAddr != "" {
		rdb := redisclient.New(redisclient.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		defer rdb.Close()
		readiness["redis"] = rdb.Ping
		deps.Cache = cache.NewRedis(rdb.Raw(), cfg.CacheTTL())
	} else {
		deps.Cache = cache.NewMemory(cfg.CacheTTL())
	}

	// uploads
	if cfg.MinIOEndpoint != "" {
		m, err := storage.NewMinIO(storage.MinIOConfig{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			Bucket:    cfg.MinIOBucket,
			UseSSL:    cfg.MinIOUseSSL,
			PublicURL: cfg.MinIOPublicURL,
		})
		if err != nil {
			return err
		}
		bctx, cancel := config.WithTimeout(5 * time.Second)
		err = m.EnsureBucket(bctx)
		cancel()
		if err != nil {
			return err
		}
		deps.Files = m
	} else {
		local, err := storage.NewLocal(cfg.UploadDir, cfg.UploadPublicPath)
		if err != nil {
			return err
		}
		deps.Files = local
		deps.UploadDir = local.Dir()
	}

	// mail
	var mailer notifications.Mailer = notifications.NewLogMailer()
	if cfg.SMTPHost != "" {
		mailer = notifications.NewSMTPMailer(notifications.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
	}
	deps.Mailer = notifications.NewProtectedMailer(mailer, notifications.ProtectedMailerConfig{
		Timeout:          10 * time.Second,
		FailureThreshold: 3,
		Cooldown:         30 * time.Second,
	})

	router := httpx.NewRouter(deps)

	// server set up
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)

	go func() {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env, "store", cfg.Store)
		err := srv.ListenAndServe()

		if err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err, ok := <-serveErr:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-stop:
	}

	log.Info("server shutting down")
	draining.Store(true)

	shutdownCtx, cancel := config.WithTimeout(10 * time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	log.Info("shutdown complete")
	return nil
}
