package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"supik-server/internal/audit"
	"supik-server/internal/auth"
	"supik-server/internal/config"
	database "supik-server/internal/db"
	"supik-server/internal/logger"
	"supik-server/internal/ratelimit"
	"supik-server/internal/scheduler"
	"supik-server/internal/storage"

	// Use an alias to prevent naming collisions with the 'server' variable
	apiserver "supik-server/internal/api/server"
)

func main() {
	// 1. Setup Configuration
	cfg := config.Load()

	if err := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	}); err != nil {
		panic(err)
	}
	defer logger.Sync()

	logger.Info("Starting SUPIK API server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Database
	db, err := database.New(cfg)
	if err != nil {
		logger.Fatal("Database connection failed", zap.Error(err))
	}
	defer db.Close()

	if err := db.AutoMigrate(); err != nil {
		logger.Fatal("Migration failed", zap.Error(err))
	}
	if _, err := database.SeedAdminAccount(db.DB, cfg.Auth.AdminUsername, cfg.Auth.AdminPassword, auth.HashPassword); err != nil {
		if errors.Is(err, database.ErrSeedCredentials) {
			logger.Warn("No admin account exists and no bootstrap credentials are set (SUPIK_AUTH_ADMIN_USERNAME, SUPIK_AUTH_ADMIN_PASSWORD)")
		} else {
			logger.Fatal("Admin seed failed", zap.Error(err))
		}
	}

	deps := apiserver.Deps{Audit: audit.NewService(db.DB)}

	// 3. Login throttling (optional)
	if cfg.Redis.Addr != "" {
		rdb, err := ratelimit.Connect(ctx, ratelimit.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			logger.Warn("Redis unavailable, login throttling disabled", zap.Error(err))
		} else {
			defer rdb.Close()
			deps.Limiter = ratelimit.New(rdb, cfg.Auth.LoginRateLimit, cfg.Auth.LoginRateWindow, "")
		}
	}

	// 4. Audit archive (optional)
	jobs := scheduler.NewManager()
	if cfg.Archive.Schedule != "" {
		store, err := storage.New(cfg)
		if err != nil {
			logger.Fatal("Storage init failed", zap.Error(err))
		}
		job := audit.NewArchiveJob(audit.NewExporter(deps.Audit, store, cfg.Archive.Prefix), scheduler.RealClock{})
		if err := jobs.Register("audit-archive", cfg.Archive.Schedule, job.Run); err != nil {
			logger.Fatal("Invalid archive schedule", zap.String("schedule", cfg.Archive.Schedule), zap.Error(err))
		}
		logger.Info("Audit archive scheduled", zap.String("schedule", cfg.Archive.Schedule), zap.String("bucket", store.Bucket()))
	}
	jobs.Start()

	// 5. Setup Metrics
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/_metrics", promhttp.Handler())
	metricsSrv := &http.Server{Addr: cfg.Server.MetricsPort, Handler: metricsMux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("Metrics exposed", zap.String("addr", cfg.Server.MetricsPort), zap.String("path", "/_metrics"))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("Metrics server error", zap.Error(err))
		}
	}()

	// 6. Start Server
	srv := apiserver.New(cfg, db, deps)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("API server listening", zap.String("addr", cfg.Server.Port))
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("Server failed", zap.Error(err))
		}
	case <-ctx.Done():
		logger.Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
	}
	_ = metricsSrv.Shutdown(shutdownCtx)
	jobs.Stop(shutdownCtx)
}
