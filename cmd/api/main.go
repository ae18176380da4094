// Package main - точка входа для API сервера Dojo Gamification Hub.
//
// API отвечает за путь записи и чтения геймификации:
// - Начисление XP с учётом серий и множителей
// - Проверка и разблокировка достижений
// - Лидерборды додзё и места студентов
// - Архив закрытых сезонов
//
// Архитектура следует принципам Clean Architecture и DDD:
// - Domain: чистая бизнес-логика без внешних зависимостей
// - Application: оркестрация use cases (Commands/Queries)
// - Infrastructure: реализация репозиториев, кеш, планировщик
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

	"github.com/dojo-hub/dojo-gamification-hub/config"

	// Application layer
	"github.com/dojo-hub/dojo-gamification-hub/internal/application/command"
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

	// Interface layer
	httpserver "github.com/dojo-hub/dojo-gamification-hub/internal/interface/http"
	"github.com/dojo-hub/dojo-gamification-hub/internal/interface/http/handlers"

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

	log.Info("starting Dojo Gamification Hub API",
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
		"timezone", cfg.App.Timezone,
	)

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
	log.Info("running database migrations...")
	migrator := postgres.NewMigrator(dbConn)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("database schema is up to date")

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ИНИЦИАЛИЗАЦИЯ REDIS (опционально)
	// ─────────────────────────────────────────────────────────────────────────
	var (
		redisCache *redis.Cache
		lbCache    leaderboard.Cache
	)

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
			// Лидерборд строится из базы на каждый запрос, просто медленнее.
			log.Warn("failed to connect to Redis, caching disabled", "error", err)
			redisCache = nil
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
	xpHistoryRepo := postgres.NewXPHistoryRepository(dbConn)
	achievementRepo := postgres.NewAchievementRepository(dbConn)
	seasonHistoryRepo := postgres.NewLeaderboardHistoryRepository(dbConn)
	rosterRepo := postgres.NewRosterRepository(dbConn)

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

	// ─────────────────────────────────────────────────────────────────────────
	// 8. ИНИЦИАЛИЗАЦИЯ УВЕДОМЛЕНИЙ
	// ─────────────────────────────────────────────────────────────────────────
	var notifier *notify.Notifier
	if cfg.Notifications.Enabled {
		notifier = notify.NewNotifier(notify.NewLogSink(log), eventBus, log)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 9. ИНИЦИАЛИЗАЦИЯ APPLICATION LAYER (Commands, Queries)
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing application layer...")
	policy := cfg.StreakPolicy()

	grantXPCmd := command.NewGrantXPHandler(xpRepo, xpHistoryRepo, policy, eventBus, appLog)
	checkAchievementsCmd := command.NewCheckAchievementsHandler(achievementRepo, xpRepo, grantXPCmd, eventBus, appLog)

	leaderboardQuery := query.NewGetLeaderboardHandler(
		rosterRepo, xpRepo, achievementRepo, lbCache, eventBus, cfg.Redis.LeaderboardTTL, appLog)
	studentRankQuery := query.NewGetStudentRankHandler(leaderboardQuery)
	studentProgressQuery := query.NewGetStudentProgressHandler(xpRepo, xpHistoryRepo, policy)
	seasonHistoryQuery := query.NewGetSeasonHistoryHandler(seasonHistoryRepo)

	// ─────────────────────────────────────────────────────────────────────────
	// 10. РЕГИСТРАЦИЯ EVENT HANDLERS
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("registering event handlers...")

	var hNotifier eventhandler.Notifier
	if notifier != nil {
		hNotifier = notifier
	}

	onXPGranted := eventhandler.NewOnXPGrantedHandler(lbCache, log)
	onAchievementUnlocked := eventhandler.NewOnAchievementUnlockedHandler(achievementRepo, hNotifier, log)
	onLevelUp := eventhandler.NewOnLevelUpHandler(hNotifier, log)
	onStreakExtended := eventhandler.NewOnStreakExtendedHandler(policy, hNotifier, log)
	onStreakBroken := eventhandler.NewOnStreakBrokenHandler(hNotifier, log)

	_ = eventBus.Subscribe(onXPGranted.EventType(), onXPGranted.Handle)
	_ = eventBus.Subscribe(onAchievementUnlocked.EventType(), onAchievementUnlocked.Handle)
	_ = eventBus.Subscribe(onLevelUp.EventType(), onLevelUp.Handle)
	_ = eventBus.Subscribe(onStreakExtended.EventType(), onStreakExtended.Handle)
	_ = eventBus.Subscribe(onStreakBroken.EventType(), onStreakBroken.Handle)

	// ─────────────────────────────────────────────────────────────────────────
	// 11. ПЛАНИРОВЩИК ДЛЯ РУЧНОГО ЗАПУСКА ЗАДАЧ
	// Расписание крутит worker; здесь задачи регистрируются только для
	// ручного запуска через /internal/jobs.
	// ─────────────────────────────────────────────────────────────────────────
	schedCfg := scheduler.DefaultSchedulerConfig()
	schedCfg.Logger = log
	schedCfg.Timezone = cfg.App.Location
	sched := scheduler.NewScheduler(schedCfg)

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

	_ = sched.Register(rebuildJob, scheduler.NewIntervalSchedule(cfg.Scheduler.RebuildLeaderboardInterval))
	_ = sched.Register(annualResetJob, scheduler.NewYearlySchedule(
		time.Month(cfg.Scheduler.AnnualResetMonth),
		cfg.Scheduler.AnnualResetDay,
		cfg.Scheduler.AnnualResetHour,
		cfg.Scheduler.AnnualResetMinute,
	))

	// ─────────────────────────────────────────────────────────────────────────
	// 12. HEALTH CHECKS
	// ─────────────────────────────────────────────────────────────────────────
	healthChecker := handlers.NewCompositeHealthChecker(cfg.App.Version)
	healthChecker.AddCheck("postgres", handlers.NewPingCheck(dbConn))
	if redisCache != nil {
		healthChecker.AddCheck("redis", handlers.NewPingCheck(redisCache))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 13. СОЗДАНИЕ И ЗАПУСК HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing HTTP server...")

	httpConfig := httpserver.DefaultConfig()
	httpConfig.Host = cfg.HTTP.Host
	httpConfig.Port = cfg.HTTP.Port
	httpConfig.ReadTimeout = cfg.HTTP.ReadTimeout
	httpConfig.WriteTimeout = cfg.HTTP.WriteTimeout
	httpConfig.IdleTimeout = cfg.HTTP.IdleTimeout
	httpConfig.AdminTokenHash = cfg.HTTP.AdminTokenHash

	httpDeps := httpserver.Dependencies{
		GrantXPHandler:            grantXPCmd,
		CheckAchievementsHandler:  checkAchievementsCmd,
		GetLeaderboardHandler:     leaderboardQuery,
		GetStudentRankHandler:     studentRankQuery,
		GetStudentProgressHandler: studentProgressQuery,
		GetSeasonHistoryHandler:   seasonHistoryQuery,
		Scheduler:                 sched,
		Logger:                    appLog,
		HealthChecker:             healthChecker,
	}

	httpServer := httpserver.NewServer(httpConfig, httpDeps)
	errCh := httpServer.StartAsync()

	// ─────────────────────────────────────────────────────────────────────────
	// 14. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("Dojo Gamification Hub API is running",
		"http_address", httpServer.Address(),
	)

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
	}

	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to stop HTTP server gracefully", "error", err)
		return err
	}

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
