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

	"tenant-platform/internal/audit"
	"tenant-platform/internal/auth"
	"tenant-platform/internal/config"
	"tenant-platform/internal/membership"
	"tenant-platform/internal/metrics"
	"tenant-platform/internal/rbac"
	"tenant-platform/internal/records"
	"tenant-platform/internal/store/postgres"
	"tenant-platform/pkg/logger"
	"tenant-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
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

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(rootCtx, stop, cfg, log); err != nil {
		log.Error("api exited", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stop context.CancelFunc, cfg config.Config, log *slog.Logger) error {
	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		return err
	}

	db, err := utils.OpenPostgres(ctx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		return err
	}
	defer db.Close()

	if err := postgres.Migrate(logger.With(ctx, log), db); err != nil {
		return err
	}

	cache, rdb, err := openCache(ctx, cfg)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	auditSvc := audit.NewService(postgres.NewAuditRepo(db))
	denials := audit.NewDenialRecorder(auditSvc, 1024)
	go denials.Run(ctx)

	opts := []rbac.Option{
		rbac.WithObserver(m),
		rbac.WithObserver(denials),
		rbac.WithStoreTimeout(cfg.Access.StoreTimeout),
	}
	if cache != nil {
		opts = append(opts, rbac.WithCache(cache))
	}
	memberStore := postgres.NewMembershipStore(db)
	access := rbac.NewService(memberStore, opts...)

	h := handlers{
		db:      db,
		reg:     reg,
		access:  access,
		members: membership.NewService(memberStore, access, auditSvc),
		records: records.NewService(postgres.NewRecordStore(db), access),
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))
	r.Use(m.Middleware())

	registerRoutes(r, h, auth.RequireAccessToken(authManager))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env, "access_cache", cfg.Access.Cache)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	select {
	case <-denials.Done():
	case <-shutdownCtx.Done():
		log.Warn("audit flush timed out")
	}
	return nil
}

// openCache builds the membership cache selected by ACCESS_CACHE. The returned client is nil
// unless the redis backend is used.
func openCache(ctx context.Context, cfg config.Config) (rbac.Cache, *redis.Client, error) {
	switch cfg.Access.Cache {
	case config.CacheNone:
		return nil, nil, nil
	case config.CacheRedis:
		rdb, err := utils.OpenRedis(ctx, utils.RedisConfig{Addr: cfg.RedisAddr()})
		if err != nil {
			return nil, nil, err
		}
		c, err := rbac.NewRedisCache(rdb, cfg.Access.CacheTTL, "")
		if err != nil {
			_ = rdb.Close()
			return nil, nil, err
		}
		return c, rdb, nil
	default:
		return rbac.NewMemoryCache(cfg.Access.CacheSize, cfg.Access.CacheTTL), nil, nil
	}
}
