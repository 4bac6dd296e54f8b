// KeBiao 课表引擎服务
// 主程序入口

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kebiao/kebiao/internal/cache"
	"github.com/kebiao/kebiao/internal/config"
	"github.com/kebiao/kebiao/internal/database"
	"github.com/kebiao/kebiao/internal/handler"
	"github.com/kebiao/kebiao/internal/metrics"
	"github.com/kebiao/kebiao/internal/middleware"
	"github.com/kebiao/kebiao/internal/repository"
	"github.com/kebiao/kebiao/pkg/logger"
	"github.com/kebiao/kebiao/pkg/restriction"
	"github.com/kebiao/kebiao/pkg/scheduler"
	"github.com/kebiao/kebiao/pkg/scheduler/constraint"
)

// 构建信息（通过 ldflags 注入）
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	logger.Init(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})

	fmt.Printf("KeBiao 课表引擎 v%s\n", Version)
	fmt.Printf("Build: %s (%s)\n", BuildTime, GitCommit)
	fmt.Println()

	registry := restriction.NewRegistry()
	var (
		store        scheduler.Store
		locker       scheduler.ScopeLocker
		restrictions *repository.RestrictionRepository
		db           *database.DB
	)

	if cfg.Database.Enabled {
		db, err = database.New(&cfg.Database)
		if err != nil {
			logger.Fatal().Err(err).Msg("数据库连接失败")
		}
		defer db.Close()

		store = repository.NewTimetableRepository(db)
		restrictions = repository.NewRestrictionRepository(db)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		items, err := restrictions.List(ctx)
		cancel()
		if err != nil {
			logger.Fatal().Err(err).Msg("加载预约限制失败")
		}
		registry.Load(items)
		logger.Info().Int("count", len(items)).Msg("预约限制已加载")
	}

	if cfg.Redis.Enabled {
		client, err := cache.NewRedis(&cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("Redis 连接失败")
		}
		defer client.Close()
		locker = cache.NewLocker(client, cfg.Scheduler.LockPrefix)
	}

	svc := scheduler.New(registry, store, locker, scheduler.Options{
		Order:   constraint.SessionOrder(cfg.Scheduler.SessionOrder),
		Timeout: cfg.Scheduler.Timeout,
		LockTTL: cfg.Scheduler.LockTTL,
	})
	if restrictions != nil {
		svc.SetRestrictionStore(restrictions)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logging(),
		middleware.SecurityHeaders(),
		middleware.Timeout(cfg.API.Timeout),
	)
	if cfg.API.CORS.Enabled {
		router.Use(middleware.CORS(cfg.API.CORS.Origins))
	}

	limiterCtx, stopLimiter := context.WithCancel(context.Background())
	defer stopLimiter()
	if rl := cfg.API.RateLimit; rl.Enabled {
		limiter := middleware.NewRateLimiter(rl.Requests, rl.Window)
		go limiter.Run(limiterCtx)
		router.Use(middleware.RateLimit(limiter))
	}

	if cfg.Metrics.Enabled {
		m := metrics.New()
		if db != nil {
			m.RegisterDB(db.DB.DB, cfg.Database.Name)
		}
		svc.SetRecorder(m)
		router.Use(m.Middleware())
		router.GET(cfg.Metrics.Path, gin.WrapH(m.Handler()))
	}

	handler.New(svc, Version).Register(router, cfg.API.Prefix)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.API.Timeout + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// 启动服务器（非阻塞）
	go func() {
		logger.Info().
			Int("port", cfg.App.Port).
			Str("version", Version).
			Str("env", cfg.App.Env).
			Bool("database", cfg.Database.Enabled).
			Bool("redis", cfg.Redis.Enabled).
			Msg("服务器启动")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("服务器启动失败")
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("正在关闭服务器...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("服务器关闭失败")
		return
	}

	logger.Info().Msg("服务器已关闭")
}
