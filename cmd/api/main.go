package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"campaign-dialer/internal/audit"
	"campaign-dialer/internal/auth"
	"campaign-dialer/internal/campaigns"
	"campaign-dialer/internal/config"
	"campaign-dialer/internal/dialer"
	"campaign-dialer/internal/ingest"
	"campaign-dialer/internal/notify"
	"campaign-dialer/internal/numbers"
	"campaign-dialer/internal/reconcile"
	"campaign-dialer/internal/scheduler"
	"campaign-dialer/pkg/logger"
	"campaign-dialer/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	provider, err := dialer.NewHTTPProvider(dialer.HTTPProviderConfig{
		BaseURL: cfg.Dialer.BaseURL,
		APIKey:  cfg.Dialer.APIKey,
		Timeout: cfg.Dialer.Timeout,
	})
	if err != nil {
		log.Error("dialer init failed", "err", err)
		os.Exit(1)
	}

	store := campaigns.NewPostgresStore(db)
	numberStore := numbers.NewPostgresStore(db)
	pub := notify.NewRedisPublisher(rdb, log)
	auditSvc := audit.NewService(audit.NewPostgresRepo(db))

	reconciler := reconcile.NewReconciler(store, numberStore, pub, log)
	reconciler.SetAudit(auditSvc)

	sched := scheduler.New(store, numberStore, provider, pub, log)
	sched.SetAudit(auditSvc)
	sched.SetInterval(cfg.Scheduler.TickInterval)
	go sched.Run(rootCtx)

	poller := ingest.NewPoller(store, provider, reconciler, log)
	poller.SetInterval(cfg.Poller.Interval)
	poller.SetLocker(ingest.NewRedisLock(rdb, cfg.Poller.LockTTL, log))
	go poller.Run(rootCtx)

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, routeDeps{
		authMW:     auth.RequireAccessToken(authManager),
		auth:       authManager,
		store:      store,
		numbers:    numberStore,
		audit:      auditSvc,
		reconciler: reconciler,
		db:         db,
		redis:      rdb,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}
