package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/d60-Lab/post-scheduler/config"
	"github.com/d60-Lab/post-scheduler/internal/api/handler"
	"github.com/d60-Lab/post-scheduler/internal/api/router"
	"github.com/d60-Lab/post-scheduler/internal/auth"
	"github.com/d60-Lab/post-scheduler/internal/engine"
	"github.com/d60-Lab/post-scheduler/internal/generator"
	"github.com/d60-Lab/post-scheduler/internal/linkedin"
	"github.com/d60-Lab/post-scheduler/internal/repository"
	"github.com/d60-Lab/post-scheduler/internal/scheduler"
	"github.com/d60-Lab/post-scheduler/internal/service"
	"github.com/d60-Lab/post-scheduler/pkg/cache"
	"github.com/d60-Lab/post-scheduler/pkg/database"
	"github.com/d60-Lab/post-scheduler/pkg/errtrack"
	"github.com/d60-Lab/post-scheduler/pkg/logger"
	"github.com/d60-Lab/post-scheduler/pkg/tracing"
)

// @title Post Scheduler API
// @version 1.0
// @description LinkedIn 帖子生成、排期与发布服务
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := errtrack.Init(cfg.Sentry); err != nil {
		logger.Warn("sentry disabled", zap.Error(err))
	}
	defer errtrack.Flush(2 * time.Second)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing := func(context.Context) error { return nil }
	if cfg.Tracing.Enabled {
		if shutdownTracing, err = tracing.Init(ctx, cfg.Tracing); err != nil {
			return fmt.Errorf("init tracing: %w", err)
		}
	}

	db, err := database.InitDB(cfg)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	defer func() { _ = database.Close(db) }()

	liOpts := []linkedin.Option{}
	engOpts := []engine.Option{engine.WithMaxFailures(cfg.Scheduler.MaxFailures)}
	if cfg.Redis.Enabled {
		rdb, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("init redis: %w", err)
		}
		defer rdb.Close()
		liOpts = append(liOpts, linkedin.WithProfileCache(linkedin.NewRedisProfileCache(rdb, cfg.LinkedIn.ProfileTTL)))
		engOpts = append(engOpts, engine.WithLocker(engine.NewRedisLocker(rdb, cfg.Scheduler.LockTTL)))
	}

	repo := repository.NewPostRepository(db)
	li := linkedin.NewClient(cfg.LinkedIn.BaseURL, cfg.LinkedIn.Timeout, liOpts...)
	eng := engine.New(repo, li, engOpts...)
	sessions := auth.NewManager(cfg.JWT, cfg.LinkedIn.AccessToken)
	driver := scheduler.New(eng, sessions, cfg.Scheduler.Interval, scheduler.WithCycleTimeout(cfg.Scheduler.CycleTimeout))

	posts := service.NewPostService(repo, generator.NewOpenAIGenerator(cfg.OpenAI), eng)
	h := handler.NewHandler(posts, sessions, li, driver)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router.Setup(cfg, h, sessions),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	stopDriver := func(context.Context) error { return nil }
	if cfg.Scheduler.Enabled {
		stopDriver = driver.Start(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		logger.Error("http server failed", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if err := stopDriver(shutdownCtx); err != nil {
		logger.Warn("scheduler shutdown", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracing shutdown", zap.Error(err))
	}
	return nil
}
