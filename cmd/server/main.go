// Package main - точка входа сервера Questhall Progress Hub.
//
// Сервис собирает прогресс учеников по иерархии сессия - юнит - курс,
// выдаёт случайные награды ровно один раз на пару (ученик, сессия) и
// начисляет XP за уроки по оценкам преподавателя.
//
// Архитектура следует принципам Clean Architecture и DDD:
// - Domain: чистая бизнес-логика без внешних зависимостей
// - Application: оркестрация use cases (Commands/Queries)
// - Infrastructure: PostgreSQL, Redis, event bus
// - Interface: HTTP endpoints
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/questhall/questhall-progress-hub/config"
	"github.com/questhall/questhall-progress-hub/internal/application/command"
	"github.com/questhall/questhall-progress-hub/internal/application/query"
	"github.com/questhall/questhall-progress-hub/internal/domain/learner"
	"github.com/questhall/questhall-progress-hub/internal/infrastructure/messaging"
	"github.com/questhall/questhall-progress-hub/internal/infrastructure/persistence/postgres"
	"github.com/questhall/questhall-progress-hub/internal/infrastructure/persistence/redis"
	httpserver "github.com/questhall/questhall-progress-hub/internal/interface/http"
	"github.com/questhall/questhall-progress-hub/pkg/logger"
	"github.com/questhall/questhall-progress-hub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	// .env удобен в разработке; в production переменные приходят из окружения.
	_ = godotenv.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. ЗАГРУЗКА КОНФИГУРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. НАСТРОЙКА ЛОГИРОВАНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	log := setupSlog(cfg)
	appLog := logger.New(logger.Options{
		Output: os.Stdout,
		Level:  logger.ParseLevel(cfg.Observability.LogLevel),
	})

	log.Info("starting Questhall Progress Hub",
		"env", cfg.App.Environment,
		"debug", cfg.App.Debug,
		"version", cfg.App.Version,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ПОДКЛЮЧЕНИЕ К БАЗЕ ДАННЫХ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database...")
	// При старте база может быть ещё не готова (docker-compose, деплой) -
	// пробуем несколько раз с экспоненциальной задержкой.
	dbConn, err := retry.DoWithData(ctx, func(ctx context.Context) (*postgres.Connection, error) {
		conn, connErr := postgres.NewConnectionFromURL(ctx, cfg.Database.URL, postgres.PoolSettings{
			MaxConns:        int32(cfg.Database.MaxOpenConns),
			MinConns:        int32(cfg.Database.MaxIdleConns),
			MaxConnLifetime: cfg.Database.ConnMaxLifetime,
			MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
		})
		if connErr != nil {
			return nil, retry.Retryable(connErr)
		}
		return conn, nil
	},
		retry.WithMaxAttempts(5),
		retry.WithInitialDelay(time.Second),
		retry.WithMaxDelay(10*time.Second),
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			log.Warn("database not ready, retrying...",
				"attempt", attempt, "delay", delay.String(), "error", err)
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("closing database connection...")
		dbConn.Close()
	}()

	if err := dbConn.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	log.Info("database connection established")

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ЗАПУСК МИГРАЦИЙ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("running database migrations...")
	migrator := postgres.NewMigrator(dbConn)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if applied, err := migrator.GetAppliedMigrations(ctx); err != nil {
		log.Warn("failed to get migration status", "error", err)
	} else {
		log.Info("migrations completed", "applied", len(applied))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ИНИЦИАЛИЗАЦИЯ REDIS (опционально)
	// ─────────────────────────────────────────────────────────────────────────
	// Кеш необязателен: прогресс всегда пересчитывается из PostgreSQL,
	// без Redis запросы просто идут в хранилище.
	var redisCache *redis.Cache
	var rollupCache query.RollupCache

	cacheEnabled := !cfg.Redis.Disabled &&
		cfg.Features.IsEnabled(config.FeatureProgressRollupCache, nil)

	if cacheEnabled {
		log.Info("connecting to Redis...")
		redisCfg := redis.DefaultConfig()
		redisCfg.Host = cfg.Redis.Host
		redisCfg.Port = cfg.Redis.Port
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB
		redisCfg.PoolSize = cfg.Redis.PoolSize
		redisCfg.MinIdleConns = cfg.Redis.MinIdleConns
		redisCfg.DialTimeout = cfg.Redis.DialTimeout
		redisCfg.ReadTimeout = cfg.Redis.ReadTimeout
		redisCfg.WriteTimeout = cfg.Redis.WriteTimeout

		redisCache, err = redis.NewCache(redisCfg)
		if err != nil {
			log.Warn("failed to connect to Redis, caching disabled", "error", err)
		} else {
			defer redisCache.Close()
			rollupCache = redis.NewRollupCache(redisCache)
			log.Info("Redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. ИНИЦИАЛИЗАЦИЯ РЕПОЗИТОРИЕВ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing repositories...")
	learnerRepo := postgres.NewLearnerRepository(dbConn)
	xpCounter := postgres.NewXPCounter(dbConn).
		WithBatchConcurrency(cfg.Lessons.CreditConcurrency)
	assignmentRepo := postgres.NewAssignmentRepository(dbConn)
	completionRepo := postgres.NewCompletionRepository(dbConn)
	snapshotRepo := postgres.NewSnapshotRepository(dbConn)
	claimRepo := postgres.NewClaimRepository(dbConn)
	lessonRepo := postgres.NewLessonRepository(dbConn)

	// ─────────────────────────────────────────────────────────────────────────
	// 7. ИНИЦИАЛИЗАЦИЯ EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing event bus...")
	eventBusConfig := messaging.DefaultInMemoryEventBusConfig()
	eventBusConfig.Logger = log
	eventBus := messaging.NewInMemoryEventBus(eventBusConfig)
	defer func() {
		log.Info("closing event bus...")
		_ = eventBus.Close()
	}()

	// Сброс кеша на каждое событие, двигающее прогресс или XP ученика.
	if rollupCache != nil {
		invalidator := messaging.NewCacheInvalidator(rollupCache, log)
		if err := eventBus.Subscribe(invalidator); err != nil {
			return fmt.Errorf("failed to subscribe cache invalidator: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. ИНИЦИАЛИЗАЦИЯ APPLICATION LAYER (Commands, Queries)
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing application layer...")

	claimCmd := command.NewClaimRewardHandler(
		assignmentRepo, completionRepo, claimRepo, xpCounter, eventBus,
		command.ClaimRewardHandlerConfig{
			DecoysEnabled:    cfg.Features.IsEnabled(config.FeatureRewardDecoyCards, nil),
			QualityThreshold: cfg.Rewards.QualityThreshold,
		},
	)
	// Без флага серий обработчик просто не трогает счётчик.
	var streakLearners learner.Repository
	if cfg.Features.IsEnabled(config.FeatureProgressStreaks, nil) {
		streakLearners = learnerRepo
	}
	refreshCmd := command.NewRefreshProgressHandler(
		assignmentRepo, completionRepo, snapshotRepo, streakLearners, eventBus, nil,
	)
	saveLessonCmd := command.NewSaveLessonHandler(lessonRepo, xpCounter, eventBus)
	createLessonCmd := command.NewCreateLessonHandler(lessonRepo, cfg.Lessons.DefaultBonusMultiplier)

	sessionQuery := query.NewGetSessionProgressHandler(
		assignmentRepo, completionRepo, snapshotRepo, rollupCache, nil,
	)
	unitQuery := query.NewGetUnitProgressHandler(assignmentRepo, snapshotRepo)
	courseQuery := query.NewGetCourseProgressHandler(assignmentRepo, snapshotRepo)
	classRateQuery := query.NewGetClassXPRateHandler(lessonRepo)
	reconciliationQuery := query.NewGetReconciliationReportHandler(claimRepo, cfg.Rewards.ReconciliationMinAge)

	// ─────────────────────────────────────────────────────────────────────────
	// 9. СОЗДАНИЕ HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing HTTP server...")

	httpConfig := httpserver.DefaultConfig()
	httpConfig.Host = cfg.HTTP.Host
	httpConfig.Port = cfg.HTTP.Port
	httpConfig.ReadTimeout = cfg.HTTP.ReadTimeout
	httpConfig.WriteTimeout = cfg.HTTP.WriteTimeout
	httpConfig.IdleTimeout = cfg.HTTP.IdleTimeout

	httpDeps := httpserver.Dependencies{
		GetSessionProgressHandler: sessionQuery,
		GetUnitProgressHandler:    unitQuery,
		GetCourseProgressHandler:  courseQuery,
		GetClassXPRateHandler:     classRateQuery,
		GetReconciliationHandler:  reconciliationQuery,
		ClaimRewardHandler:        claimCmd,
		RefreshProgressHandler:    refreshCmd,
		SaveLessonHandler:         saveLessonCmd,
		CreateLessonHandler:       createLessonCmd,
		Location:                  cfg.App.Location,
		Logger:                    appLog,
		HealthChecker: &storeHealthChecker{
			db:    dbConn,
			cache: redisCache,
		},
	}

	httpServer := httpserver.NewServer(httpConfig, httpDeps)

	// ─────────────────────────────────────────────────────────────────────────
	// 10. ЗАПУСК И GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	errCh := httpServer.StartAsync()

	log.Info("Questhall Progress Hub is running", "http_address", httpServer.Address())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			log.Error("http server error", "error", err)
			return err
		}
		log.Warn("http server stopped unexpectedly")
	}

	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to stop HTTP server gracefully", "error", err)
		return err
	}

	// Event bus и база данных закроются через defer.

	log.Info("shutdown completed successfully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// setupSlog настраивает структурированное логирование для инфраструктуры.
func setupSlog(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}
	if cfg.App.Debug {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Observability.LogFormat == "json" || cfg.IsProduction() {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)

	return log
}

// ══════════════════════════════════════════════════════════════════════════════
// ADAPTERS
// ══════════════════════════════════════════════════════════════════════════════

// storeHealthChecker проверяет доступность PostgreSQL и Redis.
type storeHealthChecker struct {
	db    *postgres.Connection
	cache *redis.Cache
}

// Check implements httpserver.HealthChecker.
func (h *storeHealthChecker) Check(ctx context.Context) httpserver.HealthStatus {
	status := httpserver.HealthStatus{
		Healthy:    true,
		Ready:      true,
		Components: make(map[string]string),
	}

	if err := h.db.Ping(ctx); err != nil {
		status.Healthy = false
		status.Ready = false
		status.Message = "database unreachable"
		status.Components["postgres"] = err.Error()
	} else {
		status.Components["postgres"] = "ok"
	}

	// Redis - деградация, не отказ: без кеша сервис продолжает работать.
	if h.cache != nil {
		if err := h.cache.Ping(ctx); err != nil {
			status.Components["redis"] = err.Error()
		} else {
			status.Components["redis"] = "ok"
		}
	}

	return status
}
