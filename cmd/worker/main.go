// Package main - точка входа фоновых процессов (Worker) движка прогрессии
// QuizOwl.
//
// Worker отвечает за периодические задачи:
// - Выгрузка накопленных XP-событий на бэкенд (outbox drain)
// - Ротация ежедневных заданий в полночь
// - Инвалидация кешей пользователей с сериями под угрозой
package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/quizowl/quizowl-progression/config"
	app "github.com/quizowl/quizowl-progression/internal/application/progression"
	domain "github.com/quizowl/quizowl-progression/internal/domain/progression"
	"github.com/quizowl/quizowl-progression/internal/infrastructure/messaging"
	"github.com/quizowl/quizowl-progression/internal/infrastructure/persistence/postgres"
	"github.com/quizowl/quizowl-progression/internal/infrastructure/persistence/redis"
	"github.com/quizowl/quizowl-progression/internal/infrastructure/scheduler"
	"github.com/quizowl/quizowl-progression/internal/infrastructure/scheduler/jobs"
	syncclient "github.com/quizowl/quizowl-progression/internal/infrastructure/sync"
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
	opts := logger.DefaultOptions()
	opts.Level = logger.ParseLevel(cfg.Observability.LogLevel)
	if cfg.App.Debug {
		opts.Level = logger.LevelDebug
	}
	log := logger.New(opts)

	log.Info("starting QuizOwl progression worker",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("timezone", cfg.App.Timezone),
	)

	if !cfg.Worker.Enabled {
		return fmt.Errorf("worker is disabled via WORKER_ENABLED")
	}

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

	// Worker тоже должен работать с актуальной схемой.
	if cfg.Database.MigrateOnStart {
		log.Info("checking database migrations...")
		migrator := postgres.NewMigrator(dbConn)
		if err := migrator.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("database schema is up to date")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ИНИЦИАЛИЗАЦИЯ REDIS (опционально)
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

		redisCache, err = redis.NewCache(redisCfg)
		if err != nil {
			log.Warn("failed to connect to Redis, cache invalidation disabled", logger.Err(err))
			redisCache = nil
		} else {
			defer redisCache.Close()
			progressCache = redis.NewProgressCache(redisCache)
			log.Info("Redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ИНИЦИАЛИЗАЦИЯ РЕПОЗИТОРИЕВ И APPLICATION LAYER
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing repositories...")
	progressRepo := postgres.NewProgressRepository(dbConn)
	challengeRepo := postgres.NewChallengeRepository(dbConn)
	eventRepo := postgres.NewXPEventRepository(dbConn)

	busCfg := messaging.DefaultInMemoryEventBusConfig()
	busCfg.Logger = log
	eventBus := messaging.NewInMemoryEventBus(busCfg)
	defer func() {
		log.Info("closing event bus...")
		_ = eventBus.Close()
	}()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	generator := domain.NewChallengeGenerator(domain.DefaultChallengeTemplates(), rng, uuid.NewString)

	coordinator := app.NewCoordinator(app.CoordinatorConfig{
		ProgressRepo:  progressRepo,
		ChallengeRepo: challengeRepo,
		EventRepo:     eventRepo,
		Cache:         cacheOrNil(progressCache),
		Generator:     generator,
		Publisher:     eventBus,
		Clock:         clock,
		NewID:         uuid.NewString,
		Logger:        log,
	})

	// ─────────────────────────────────────────────────────────────────────────
	// 6. ИНИЦИАЛИЗАЦИЯ SYNC-КЛИЕНТА
	// ─────────────────────────────────────────────────────────────────────────
	var uploader *syncclient.Uploader

	if !cfg.Sync.Disabled && cfg.Sync.BaseURL != "" {
		log.Info("initializing sync client...", logger.String("base_url", cfg.Sync.BaseURL))

		clientCfg := syncclient.DefaultClientConfig(cfg.Sync.BaseURL)
		clientCfg.APIKey = cfg.Sync.APIKey
		clientCfg.Timeout = cfg.Sync.RequestTimeout
		clientCfg.Logger = log

		uploader = syncclient.NewUploader(syncclient.UploaderConfig{
			Events:    eventRepo,
			Client:    syncclient.NewClient(clientCfg),
			Publisher: eventBus,
			Clock:     clock,
			BatchSize: cfg.Sync.BatchSize,
			Logger:    log,
		})
	} else {
		log.Info("remote sync disabled, outbox drain job will not run")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. РЕГИСТРАЦИЯ ЗАДАЧ В ПЛАНИРОВЩИКЕ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing scheduler...")

	schedCfg := scheduler.DefaultConfig()
	schedCfg.Logger = log
	schedCfg.Timezone = cfg.App.Location

	sched := scheduler.New(schedCfg)

	if uploader != nil {
		drainJob := jobs.NewDrainOutboxJob(uploader, log)
		if err := sched.Register(drainJob, scheduler.NewIntervalSchedule(cfg.Worker.DrainOutboxInterval)); err != nil {
			return fmt.Errorf("failed to register drain job: %w", err)
		}
	}

	rotateJob := jobs.NewRotateChallengesJob(challengeRepo, coordinator, clock, log)
	if err := sched.Register(rotateJob, scheduler.NewDailySchedule(cfg.Worker.RotateHour, cfg.Worker.RotateMinute)); err != nil {
		return fmt.Errorf("failed to register rotate job: %w", err)
	}

	sweepJob := jobs.NewStreakSweepJob(progressRepo, cacheOrNil(progressCache), clock, log)
	if err := sched.Register(sweepJob, scheduler.NewIntervalSchedule(cfg.Worker.StreakSweepInterval)); err != nil {
		return fmt.Errorf("failed to register sweep job: %w", err)
	}

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("QuizOwl progression worker is running",
		logger.String("timezone", cfg.App.Timezone),
		logger.Int("jobs", len(sched.ListJobs())),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	sig := <-sigCh
	log.Info("received shutdown signal", logger.String("signal", sig.String()))

	log.Info("starting graceful shutdown...",
		logger.Duration("timeout", cfg.App.ShutdownTimeout),
	)

	if err := sched.Stop(); err != nil {
		log.Error("failed to stop scheduler gracefully", logger.Err(err))
	}

	log.Info("shutdown completed successfully")
	return nil
}

// cacheOrNil возвращает nil-интерфейс для отсутствующего кеша.
func cacheOrNil(c *redis.ProgressCache) domain.ProgressCache {
	if c == nil {
		return nil
	}
	return c
}
