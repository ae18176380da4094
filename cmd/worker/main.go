// Package main - точка входа для фоновых процессов (Worker) Dojo Gamification Hub.
//
// Worker отвечает за периодические задачи:
// - Пересборка кеша лидербордов всех додзё
// - Ежегодное закрытие сезона: архив, годовые достижения, обнуление счёта
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dojo-hub/dojo-gamification-hub/config"

	// Application layer
	"github.com/dojo-hub/dojo-gamification-hub/internal/application/eventhandler"
	"github.com/dojo-hub/dojo-gamification-hub/internal/application/query"

	// Domain layer
	"github.com/dojo-hub/dojo-gamification-hub/internal/domain/leaderboard"

	// Infrastructure layer
	"github.com/dojo-hub/dojo-gamification-hub/internal/infrastructure/messaging"
	"github.com/dojo-hub/dojo-gamification-hub/internal/infrastructure/notify"
	"github.com/dojo-hub/dojo-gamification-hub/internal/infrastructure/persistence/postgres"
	"github.com/dojo-hub/dojo-gamification-hub/internal/infrastructure/persistence/redis"
	"github.com/dojo-hub/dojo-gamification-hub/internal/infrastructure/scheduler"
	"github.com/dojo-hub/dojo-gamification-hub/internal/infrastructure/scheduler/jobs"

	// Packages
	"github.com/dojo-hub/dojo-gamification-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

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
	appLog := setupAppLogger(cfg)

	log.Info("starting Dojo Gamification Hub Worker",
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
		"timezone", cfg.App.Timezone,
	)

	if !cfg.Scheduler.Enabled {
		return fmt.Errorf("scheduler is disabled, worker has nothing to do")
	}

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
	// 4. ЗАПУСК МИГРАЦИЙ (Worker также должен иметь актуальную схему)
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("checking database migrations...")
	migrator := postgres.NewMigrator(dbConn)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("database schema is up to date")

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ИНИЦИАЛИЗАЦИЯ REDIS (опционально)
	// ─────────────────────────────────────────────────────────────────────────
	var lbCache leaderboard.Cache

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

		redisCache, err := redis.NewCache(redisCfg)
		if err != nil {
			// Без кеша пересборка лидерборда бессмысленна, но годовое
			// закрытие сезона работает и так.
			log.Warn("failed to connect to Redis, leaderboard warmup disabled", "error", err)
		} else {
			defer redisCache.Close()
			lbCache = redis.NewLeaderboardCache(redisCache)
			log.Info("Redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. ИНИЦИАЛИЗАЦИЯ РЕПОЗИТОРИЕВ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing repositories...")
	xpRepo := postgres.NewStudentXPRepository(dbConn)
	achievementRepo := postgres.NewAchievementRepository(dbConn)
	seasonHistoryRepo := postgres.NewLeaderboardHistoryRepository(dbConn)
	rosterRepo := postgres.NewRosterRepository(dbConn)

	// ─────────────────────────────────────────────────────────────────────────
	// 7. ИНИЦИАЛИЗАЦИЯ EVENT BUS И УВЕДОМЛЕНИЙ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing event bus...")
	eventBusConfig := messaging.DefaultInMemoryEventBusConfig()
	eventBusConfig.Logger = log
	eventBus := messaging.NewInMemoryEventBus(eventBusConfig)
	defer func() {
		log.Info("closing event bus...")
		_ = eventBus.Close()
	}()

	var notifier *notify.Notifier
	if cfg.Notifications.Enabled {
		notifier = notify.NewNotifier(notify.NewLogSink(log), eventBus, log)
	}

	// Закрытие сезона публикует события достижений; без подписчика они
	// пропали бы молча.
	var hNotifier eventhandler.Notifier
	if notifier != nil {
		hNotifier = notifier
	}
	onAchievementUnlocked := eventhandler.NewOnAchievementUnlockedHandler(achievementRepo, hNotifier, log)
	_ = eventBus.Subscribe(onAchievementUnlocked.EventType(), onAchievementUnlocked.Handle)

	// ─────────────────────────────────────────────────────────────────────────
	// 8. ИНИЦИАЛИЗАЦИЯ ЗАДАЧ И ПЛАНИРОВЩИКА
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing scheduler...")

	leaderboardQuery := query.NewGetLeaderboardHandler(
		rosterRepo, xpRepo, achievementRepo, lbCache, eventBus, cfg.Redis.LeaderboardTTL, appLog)

	var podiumNotifier jobs.PodiumNotifier
	if notifier != nil {
		podiumNotifier = notifier
	}

	rebuildJob := jobs.NewRebuildLeaderboardJob(rosterRepo, leaderboardQuery, log, jobs.RebuildLeaderboardConfig{
		Timeout: cfg.Scheduler.RebuildTimeout,
	})
	annualResetJob := jobs.NewAnnualResetJob(
		rosterRepo, leaderboardQuery, xpRepo, achievementRepo, seasonHistoryRepo,
		lbCache, podiumNotifier, eventBus, log,
		jobs.AnnualResetConfig{
			Timeout:           cfg.Scheduler.AnnualResetTimeout,
			NotifySeasonReset: cfg.Notifications.NotifySeasonReset,
		},
	)

	schedCfg := scheduler.DefaultSchedulerConfig()
	schedCfg.Logger = log
	schedCfg.Timezone = cfg.App.Location
	sched := scheduler.NewScheduler(schedCfg)

	if err := sched.Register(rebuildJob, scheduler.NewIntervalSchedule(cfg.Scheduler.RebuildLeaderboardInterval)); err != nil {
		return fmt.Errorf("failed to register rebuild job: %w", err)
	}
	if err := sched.Register(annualResetJob, scheduler.NewYearlySchedule(
		time.Month(cfg.Scheduler.AnnualResetMonth),
		cfg.Scheduler.AnnualResetDay,
		cfg.Scheduler.AnnualResetHour,
		cfg.Scheduler.AnnualResetMinute,
	)); err != nil {
		return fmt.Errorf("failed to register annual reset job: %w", err)
	}

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 9. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("Dojo Gamification Hub Worker is running",
		"rebuild_interval", cfg.Scheduler.RebuildLeaderboardInterval.String(),
		"annual_reset", fmt.Sprintf("%02d-%02d %02d:%02d",
			cfg.Scheduler.AnnualResetMonth, cfg.Scheduler.AnnualResetDay,
			cfg.Scheduler.AnnualResetHour, cfg.Scheduler.AnnualResetMinute),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	sig := <-sigCh
	log.Info("received shutdown signal", "signal", sig.String())

	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())
	sched.Stop()

	log.Info("shutdown completed successfully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// setupLogger настраивает структурированное логирование.
func setupLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slogLevel(cfg.Observability.LogLevel),
	}

	var handler slog.Handler
	if cfg.Observability.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)

	return log
}

// setupAppLogger настраивает логгер application-слоя.
func setupAppLogger(cfg *config.Config) *logger.Logger {
	opts := logger.DefaultOptions()
	opts.Level = loggerLevel(cfg.Observability.LogLevel)
	return logger.New(opts)
}

func slogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func loggerLevel(level string) logger.Level {
	switch level {
	case "debug":
		return logger.LevelDebug
	case "warn":
		return logger.LevelWarn
	case "error":
		return logger.LevelError
	default:
		return logger.LevelInfo
	}
}
