// Package main - точка входа HTTP-сервера движка прогрессии QuizOwl.
//
// Движок ведёт XP, уровни, серии активности, бейджи и ежедневные задания
// учеников мобильного приложения. Сервер принимает события обучения
// (завершённые квизы и уроки) и отдаёт сводки прогресса.
//
// Архитектура следует принципам Clean Architecture и DDD:
// - Domain: чистая бизнес-логика без внешних зависимостей
// - Application: оркестрация записи (Coordinator) и чтения (Queries)
// - Infrastructure: PostgreSQL, Redis, event bus, удалённая синхронизация
// - Interface: REST API
package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/quizowl/quizowl-progression/config"
	app "github.com/quizowl/quizowl-progression/internal/application/progression"
	domain "github.com/quizowl/quizowl-progression/internal/domain/progression"
	"github.com/quizowl/quizowl-progression/internal/domain/shared"
	"github.com/quizowl/quizowl-progression/internal/infrastructure/messaging"
	"github.com/quizowl/quizowl-progression/internal/infrastructure/persistence/postgres"
	"github.com/quizowl/quizowl-progression/internal/infrastructure/persistence/redis"
	httpserver "github.com/quizowl/quizowl-progression/internal/interface/http"
	"github.com/quizowl/quizowl-progression/pkg/logger"
	"github.com/quizowl/quizowl-progression/pkg/timeutil"
)

func main() {
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
	log := setupLogger(cfg)
	log.Info("starting QuizOwl progression server",
		logger.String("env", string(cfg.App.Environment)),
		logger.Bool("debug", cfg.App.Debug),
		logger.String("timezone", cfg.App.Timezone),
		logger.String("version", cfg.App.Version),
	)

	clock := timeutil.NewSystemClock(cfg.App.Location)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ПОДКЛЮЧЕНИЕ К БАЗЕ ДАННЫХ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database...")
	dbConn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
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
	if cfg.Database.MigrateOnStart {
		log.Info("running database migrations...")
		migrator := postgres.NewMigrator(dbConn)
		if err := migrator.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("migrations completed")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ИНИЦИАЛИЗАЦИЯ REDIS (опционально)
	// ─────────────────────────────────────────────────────────────────────────
	var redisCache *redis.Cache
	var progressCache *redis.ProgressCache

	if !cfg.Redis.Disabled {
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
			log.Warn("failed to connect to Redis, caching disabled", logger.Err(err))
			redisCache = nil
		} else {
			defer redisCache.Close()
			progressCache = redis.NewProgressCache(redisCache)
			log.Info("Redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. ИНИЦИАЛИЗАЦИЯ РЕПОЗИТОРИЕВ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing repositories...")
	progressRepo := postgres.NewProgressRepository(dbConn)
	challengeRepo := postgres.NewChallengeRepository(dbConn)
	eventRepo := postgres.NewXPEventRepository(dbConn)

	// ─────────────────────────────────────────────────────────────────────────
	// 7. ИНИЦИАЛИЗАЦИЯ EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing event bus...")
	localBusCfg := messaging.DefaultInMemoryEventBusConfig()
	localBusCfg.Logger = log
	localBusCfg.AsyncMode = cfg.Events.AsyncMode
	localBusCfg.WorkerPoolSize = cfg.Events.WorkerPoolSize

	var publisher eventPublisherCloser

	if cfg.Events.UseRedis && redisCache != nil {
		redisClient := messaging.NewCacheRedisClient(redisCache)
		redisBus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
			Client:         redisClient,
			ChannelName:    cfg.Events.Channel,
			LocalBusConfig: localBusCfg,
			Logger:         log,
		})
		if err != nil {
			return fmt.Errorf("failed to create redis event bus: %w", err)
		}
		publisher = redisBus
		log.Info("using Redis event bus", logger.String("channel", cfg.Events.Channel))
	} else {
		publisher = messaging.NewInMemoryEventBus(localBusCfg)
		log.Info("using in-memory event bus")
	}
	defer func() {
		log.Info("closing event bus...")
		_ = publisher.Close()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 8. ИНИЦИАЛИЗАЦИЯ APPLICATION LAYER
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing application layer...")

	catalog := domain.DefaultBadgeCatalog()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	generator := domain.NewChallengeGenerator(domain.DefaultChallengeTemplates(), rng, uuid.NewString)

	coordinator := app.NewCoordinator(app.CoordinatorConfig{
		ProgressRepo:  progressRepo,
		ChallengeRepo: challengeRepo,
		EventRepo:     eventRepo,
		Cache:         cacheOrNil(progressCache),
		Evaluator:     domain.NewBadgeEvaluator(catalog),
		Generator:     generator,
		Publisher:     publisher,
		Clock:         clock,
		NewID:         uuid.NewString,
		Logger:        log,
	})

	queries := app.NewProgressQueryHandler(
		progressRepo,
		cacheOrNil(progressCache),
		catalog,
		clock,
		cfg.Redis.ProgressCacheTTL,
		log,
	)

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
	httpConfig.EnableCORS = cfg.HTTP.EnableCORS
	httpConfig.AllowedOrigins = cfg.HTTP.AllowedOrigins
	httpConfig.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute
	httpConfig.DeviceTokenHashes = cfg.HTTP.DeviceTokenHashes
	httpConfig.EnableMetrics = cfg.Observability.MetricsEnabled

	httpDeps := httpserver.Dependencies{
		Coordinator:   coordinator,
		Queries:       queries,
		Logger:        log,
		HealthChecker: &healthChecker{db: dbConn, cache: redisCache},
	}

	server := httpserver.NewServer(httpConfig, httpDeps)

	// ─────────────────────────────────────────────────────────────────────────
	// 10. ЗАПУСК И GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	log.Info("QuizOwl progression server is running",
		logger.String("address", server.Address()),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", logger.String("signal", sig.String()))
	case err := <-errCh:
		log.Error("service error", logger.Err(err))
		return err
	}

	log.Info("starting graceful shutdown...",
		logger.Duration("timeout", cfg.App.ShutdownTimeout),
	)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to stop HTTP server gracefully", logger.Err(err))
		return err
	}

	log.Info("shutdown completed successfully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// setupLogger настраивает структурированное логирование.
func setupLogger(cfg *config.Config) *logger.Logger {
	opts := logger.DefaultOptions()
	opts.Level = logger.ParseLevel(cfg.Observability.LogLevel)
	if cfg.App.Debug {
		opts.Level = logger.LevelDebug
	}
	return logger.New(opts)
}

// cacheOrNil возвращает nil-интерфейс для отсутствующего кеша,
// чтобы проверки `cache != nil` в application-слое работали корректно.
func cacheOrNil(c *redis.ProgressCache) domain.ProgressCache {
	if c == nil {
		return nil
	}
	return c
}

// ══════════════════════════════════════════════════════════════════════════════
// ADAPTERS
// ══════════════════════════════════════════════════════════════════════════════

// eventPublisherCloser объединяет публикацию событий и закрытие шины.
type eventPublisherCloser interface {
	Publish(event shared.Event) error
	Close() error
}

// healthChecker проверяет доступность PostgreSQL и Redis.
type healthChecker struct {
	db    *postgres.Connection
	cache *redis.Cache
}

// Check реализует httpserver.HealthChecker.
func (h *healthChecker) Check(ctx context.Context) httpserver.HealthStatus {
	status := httpserver.HealthStatus{
		Healthy: true,
		Ready:   true,
		Checks:  make(map[string]string),
	}

	if err := h.db.Ping(ctx); err != nil {
		status.Healthy = false
		status.Ready = false
		status.Message = "database unreachable"
		status.Checks["postgres"] = err.Error()
	} else {
		status.Checks["postgres"] = "ok"
	}

	// Redis деградирует мягко: без кеша сервис остаётся работоспособным.
	if h.cache != nil {
		if err := h.cache.Ping(ctx); err != nil {
			status.Checks["redis"] = err.Error()
		} else {
			status.Checks["redis"] = "ok"
		}
	}

	return status
}
